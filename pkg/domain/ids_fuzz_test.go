package domain

import (
	"testing"
)

// Session ids arrive in the Session-Id header of unauthenticated requests.
func FuzzParseSessionID(f *testing.F) {
	for _, seed := range []string{
		"",
		"7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"00000000-0000-0000-0000-000000000000",
		"{7c9e6679-7425-40de-944b-e07fc1f90ae7}",
		"urn:uuid:7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"7c9e6679-7425-40de-944b-e07fc1f90ae7\x00",
		"\xff\xfe",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err != nil {
			if !id.IsNil() {
				t.Fatalf("rejected input %q produced id %s", input, id)
			}
			return
		}
		if id.IsNil() {
			t.Fatalf("accepted nil id from %q", input)
		}
		again, err := ParseSessionID(id.String())
		if err != nil || again != id {
			t.Fatalf("canonical form %s does not round-trip: %v", id, err)
		}
		for kind, parse := range parsers {
			if got, err := parse(input); err != nil || got != id.String() {
				t.Fatalf("%s parser disagrees on %q: %s %v", kind, input, got, err)
			}
		}
	})
}
