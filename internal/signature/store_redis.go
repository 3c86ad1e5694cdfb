package signature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"onboard/internal/onboarding/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

const (
	pendingKeyPrefix  = "esign:pending:"
	attemptsKeyPrefix = "esign:attempts:"
)

// RedisStore shares pending references across instances. Keys expire with the
// reference.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type pendingRecord struct {
	Reference string    `json:"reference"`
	SessionID string    `json:"session_id"`
	Method    string    `json:"method"`
	ProofHash string    `json:"proof_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *RedisStore) Put(ctx context.Context, pending *models.PendingSignature) error {
	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	data, err := json.Marshal(pendingRecord{
		Reference: pending.Reference,
		SessionID: pending.SessionID.String(),
		Method:    string(pending.Method),
		ProofHash: pending.ProofHash,
		ExpiresAt: pending.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal pending signature: %w", err)
	}
	if err := s.client.Set(ctx, pendingKeyPrefix+pending.Reference, data, ttl).Err(); err != nil {
		return fmt.Errorf("store pending signature: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, reference string) (*models.PendingSignature, error) {
	data, err := s.client.Get(ctx, pendingKeyPrefix+reference).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load pending signature: %w", err)
	}

	var rec pendingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal pending signature: %w", err)
	}
	sessionID, err := id.ParseSessionID(rec.SessionID)
	if err != nil {
		return nil, err
	}
	return &models.PendingSignature{
		Reference: rec.Reference,
		SessionID: sessionID,
		Method:    models.SignatureMethod(rec.Method),
		ProofHash: rec.ProofHash,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, pending *models.PendingSignature) (int, error) {
	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		return 0, sentinel.ErrExpired
	}
	key := attemptsKeyPrefix + pending.Reference
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record signature attempt: %w", err)
	}
	return int(incr.Val()), nil
}

// Consume deletes the reference and its attempt counter. DEL reports how many
// keys it removed, so only one concurrent caller sees the reference go.
func (s *RedisStore) Consume(ctx context.Context, reference string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, pendingKeyPrefix+reference)
		pipe.Del(ctx, attemptsKeyPrefix+reference)
		return nil
	})
	if err != nil {
		return fmt.Errorf("consume pending signature: %w", err)
	}
	if del.Val() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
