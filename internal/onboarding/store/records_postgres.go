package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"onboard/internal/onboarding/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
	txcontext "onboard/pkg/platform/tx"
)

// PostgresVerificationStore persists verification_records. It also serves as
// the risk engine's identity-reuse lookup.
type PostgresVerificationStore struct {
	db *sql.DB
}

func NewPostgresVerificationStore(db *sql.DB) *PostgresVerificationStore {
	return &PostgresVerificationStore{db: db}
}

func (s *PostgresVerificationStore) Create(ctx context.Context, r *models.VerificationRecord) error {
	fields, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("marshal verification fields: %w", err)
	}
	_, err = txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO verification_records (
			id, session_id, method, fields, confidence, content_hash,
			tax_id, aadhaar_last4, tax_id_valid, ckyc_upload_deadline, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(r.ID),
		uuid.UUID(r.SessionID),
		string(r.Method),
		fields,
		r.Confidence,
		r.ContentHash,
		nullString(r.TaxID),
		nullString(r.AadhaarLast4),
		r.TaxIDValid,
		r.CKYCUploadDeadline.UTC(),
		r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert verification record: %w", err)
	}
	return nil
}

// CountByTaxID counts records carrying taxID created at or after since.
func (s *PostgresVerificationStore) CountByTaxID(ctx context.Context, taxID string, since time.Time) (int, error) {
	var count int
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM verification_records
		WHERE tax_id = $1 AND created_at >= $2
	`, taxID, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count verification records: %w", err)
	}
	return count, nil
}

func (s *PostgresVerificationStore) LatestBySession(ctx context.Context, sessionID id.SessionID) (*models.VerificationRecord, error) {
	var (
		r           models.VerificationRecord
		recordID    uuid.UUID
		sid         uuid.UUID
		method      string
		fields      []byte
		taxID, last sql.NullString
	)
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, session_id, method, fields, confidence, content_hash,
			tax_id, aadhaar_last4, tax_id_valid, ckyc_upload_deadline, created_at
		FROM verification_records
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, uuid.UUID(sessionID)).Scan(&recordID, &sid, &method, &fields, &r.Confidence, &r.ContentHash,
		&taxID, &last, &r.TaxIDValid, &r.CKYCUploadDeadline, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification record: %w", err)
	}
	r.ID = id.VerificationID(recordID)
	r.SessionID = id.SessionID(sid)
	r.Method = models.VerificationMethod(method)
	r.TaxID = taxID.String
	r.AadhaarLast4 = last.String
	if err := json.Unmarshal(fields, &r.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal verification fields: %w", err)
	}
	return &r, nil
}

// PostgresPaymentStore persists payments.
type PostgresPaymentStore struct {
	db *sql.DB
}

func NewPostgresPaymentStore(db *sql.DB) *PostgresPaymentStore {
	return &PostgresPaymentStore{db: db}
}

func (s *PostgresPaymentStore) Create(ctx context.Context, p *models.Payment) error {
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO payments (id, session_id, method, amount, tier, vpa, gateway_ref, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(p.ID),
		uuid.UUID(p.SessionID),
		string(p.Method),
		p.Amount,
		string(p.Tier),
		nullString(p.VPA),
		p.GatewayRef,
		string(p.Status),
		p.CreatedAt.UTC(),
		p.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresPaymentStore) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	var (
		p                   models.Payment
		pid, sid            uuid.UUID
		method, tier, state string
		vpa                 sql.NullString
		completedAt         sql.NullTime
	)
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, session_id, method, amount, tier, vpa, gateway_ref, status, created_at, completed_at
		FROM payments
		WHERE id = $1
	`, uuid.UUID(paymentID)).Scan(&pid, &sid, &method, &p.Amount, &tier, &vpa, &p.GatewayRef, &state, &p.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	p.ID = id.PaymentID(pid)
	p.SessionID = id.SessionID(sid)
	p.Method = models.PaymentMethod(method)
	p.Tier = models.Tier(tier)
	p.VPA = vpa.String
	p.Status = models.PaymentStatus(state)
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		p.CompletedAt = &t
	}
	return &p, nil
}

func (s *PostgresPaymentStore) Save(ctx context.Context, p *models.Payment) error {
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE payments SET status = $2, completed_at = $3
		WHERE id = $1
	`, uuid.UUID(p.ID), string(p.Status), p.CompletedAt)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresConsentStore persists consent_artifacts.
type PostgresConsentStore struct {
	db *sql.DB
}

func NewPostgresConsentStore(db *sql.DB) *PostgresConsentStore {
	return &PostgresConsentStore{db: db}
}

func (s *PostgresConsentStore) Create(ctx context.Context, a *models.ConsentArtifact) error {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal consent metadata: %w", err)
	}
	_, err = txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO consent_artifacts (id, session_id, consent_type, text, artifact_hash, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(a.ID),
		uuid.UUID(a.SessionID),
		string(a.Type),
		a.Text,
		a.ArtifactHash,
		metadata,
		nullString(a.IPAddress),
		nullString(a.UserAgent),
		a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert consent artifact: %w", err)
	}
	return nil
}

func (s *PostgresConsentStore) ListBySession(ctx context.Context, sessionID id.SessionID) ([]*models.ConsentArtifact, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, `
		SELECT id, session_id, consent_type, text, artifact_hash, metadata, ip_address, user_agent, created_at
		FROM consent_artifacts
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("query consent artifacts: %w", err)
	}
	defer rows.Close()

	out := []*models.ConsentArtifact{}
	for rows.Next() {
		var (
			a        models.ConsentArtifact
			aid, sid uuid.UUID
			kind     string
			metadata []byte
			ip, ua   sql.NullString
		)
		if err := rows.Scan(&aid, &sid, &kind, &a.Text, &a.ArtifactHash, &metadata, &ip, &ua, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan consent artifact: %w", err)
		}
		a.ID = id.ConsentID(aid)
		a.SessionID = id.SessionID(sid)
		a.Type = models.ConsentType(kind)
		a.IPAddress = ip.String
		a.UserAgent = ua.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal consent metadata: %w", err)
			}
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent artifacts: %w", err)
	}
	return out, nil
}
