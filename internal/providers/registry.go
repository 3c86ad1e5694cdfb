package providers

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"onboard/internal/onboarding/models"
)

// RegistryRecord is the KYC registry's view of a PAN holder.
type RegistryRecord struct {
	PAN         string    `json:"pan"`
	CKYCNumber  string    `json:"ckyc_number"`
	FullName    string    `json:"full_name"`
	DateOfBirth string    `json:"dob"`
	Found       bool      `json:"found"`
	CheckedAt   time.Time `json:"checked_at"`
}

// RegistryProvider queries the central KYC registry.
type RegistryProvider interface {
	Lookup(ctx context.Context, pan string) (*RegistryRecord, error)
}

// SimulatedRegistry answers from deterministic data and a configurable
// latency to mimic real-world calls. PANs whose fourth letter is not 'P'
// (individual holders) are reported as not registered.
type SimulatedRegistry struct {
	Latency time.Duration
}

func (r *SimulatedRegistry) Lookup(ctx context.Context, pan string) (*RegistryRecord, error) {
	pan = models.NormalizePAN(pan)
	if !models.ValidPAN(pan) {
		return nil, NewProviderError(ErrorBadData, "ckyc", "pan is malformed", nil)
	}
	if r.Latency > 0 {
		select {
		case <-time.After(r.Latency):
		case <-ctx.Done():
			return nil, NewProviderError(ErrorTimeout, "ckyc", "registry lookup cancelled", ctx.Err())
		}
	}
	if pan[3] != 'P' {
		return nil, NewProviderError(ErrorNotFound, "ckyc", "no KYC record for pan", nil)
	}
	return &RegistryRecord{
		PAN:         pan,
		CKYCNumber:  "5" + digits(pan, 13),
		FullName:    "Registered Subscriber",
		DateOfBirth: "1990-02-03",
		Found:       true,
		CheckedAt:   time.Now().UTC(),
	}, nil
}

// CachedRegistry keeps successful lookups for ttl so repeated CKYC checks
// during one onboarding do not hit the registry again.
type CachedRegistry struct {
	next  RegistryProvider
	cache *cache.Cache
}

func NewCachedRegistry(next RegistryProvider, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *CachedRegistry) Lookup(ctx context.Context, pan string) (*RegistryRecord, error) {
	key := models.NormalizePAN(pan)
	if v, ok := r.cache.Get(key); ok {
		record := *v.(*RegistryRecord)
		return &record, nil
	}
	record, err := r.next.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	stored := *record
	r.cache.SetDefault(key, &stored)
	return record, nil
}
