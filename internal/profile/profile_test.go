package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onboard/pkg/domain-errors"
)

func TestMerge(t *testing.T) {
	base := Profile{"age": 30, "pep": "no"}
	merged := base.Merge(map[string]any{"pep": "yes", "tier": "II"})

	assert.Equal(t, Profile{"age": 30, "pep": "yes", "tier": "II"}, merged)
	assert.Equal(t, "no", base["pep"], "merge must not mutate the receiver")
}

func TestValidateFields(t *testing.T) {
	require.NoError(t, ValidateFields(map[string]any{
		"pep": "no", "age": 30.0, "vcip_completed": true, "amount": json.Number("500"),
	}))

	err := ValidateFields(map[string]any{"address": map[string]any{"city": "Pune"}})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	err = ValidateFields(map[string]any{" ": "x"})
	require.Error(t, err)

	err = ValidateFields(map[string]any{"nickname": nil})
	require.Error(t, err)
}

func TestAccessors(t *testing.T) {
	p := Profile{
		"pep":          "YES",
		"tax_resident": false,
		"age":          "42",
		"amount":       json.Number("1500.50"),
		"pan":          "  ABCDE1234F ",
		"odd":          "maybe",
	}

	v, ok := p.Flag("pep")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = p.Flag("tax_resident")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = p.Flag("odd")
	assert.False(t, ok)

	n, ok := p.Number("age")
	assert.True(t, ok)
	assert.Equal(t, 42.0, n)

	n, ok = p.Number("amount")
	assert.True(t, ok)
	assert.Equal(t, 1500.5, n)

	_, ok = p.Number("odd")
	assert.False(t, ok)

	s, ok := p.String("pan")
	assert.True(t, ok)
	assert.Equal(t, "ABCDE1234F", s)

	assert.True(t, Recognized(KeyContribution))
	assert.False(t, Recognized("favourite_colour"))
}
