package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"onboard/internal/audit"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
	txcontext "onboard/pkg/platform/tx"
)

// LockScope is the advisory lock namespace shared with the session transaction
// runner, so a session commit and its audit append serialise on one key.
const LockScope = "session"

// PostgresStore persists chains in audit_entries. Appends serialise per
// session on a transaction-scoped advisory lock; the (session_id, sequence)
// unique key is the backstop.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AppendNext joins the transaction in ctx if there is one, otherwise opens its own.
func (s *PostgresStore) AppendNext(ctx context.Context, sessionID id.SessionID, build func(last *audit.Entry) (*audit.Entry, error)) (*audit.Entry, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.appendNext(ctx, tx, sessionID, build)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	entry, err := s.appendNext(ctx, tx, sessionID, build)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit audit tx: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) appendNext(ctx context.Context, tx *sql.Tx, sessionID id.SessionID, build func(last *audit.Entry) (*audit.Entry, error)) (*audit.Entry, error) {
	if err := txcontext.AdvisoryLock(ctx, tx, txcontext.LockKey(LockScope, sessionID.String())); err != nil {
		return nil, err
	}

	var frozen bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM audit_freezes WHERE session_id = $1)`,
		uuid.UUID(sessionID),
	).Scan(&frozen)
	if err != nil {
		return nil, fmt.Errorf("check audit freeze: %w", err)
	}
	if frozen {
		return nil, sentinel.ErrFrozen
	}

	row := tx.QueryRowContext(ctx, selectEntries+`
		WHERE session_id = $1
		ORDER BY sequence DESC
		LIMIT 1
	`, uuid.UUID(sessionID))
	last, err := scanEntry(row)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	entry, err := build(last)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_entries (
			session_id, sequence, action, payload_hash, chain_hash, previous_hash,
			timestamp, ip_address, user_agent, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(entry.SessionID),
		entry.Sequence,
		string(entry.Action),
		entry.PayloadHash,
		entry.ChainHash,
		entry.PreviousHash,
		entry.Timestamp,
		nullString(entry.IPAddress),
		nullString(entry.UserAgent),
		metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID id.SessionID) ([]*audit.Entry, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, selectEntries+`
		WHERE session_id = $1
		ORDER BY sequence ASC
	`, uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*audit.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Freeze(ctx context.Context, freeze audit.Freeze) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_freezes (session_id, sequence, reason, frozen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING
	`, uuid.UUID(freeze.SessionID), freeze.Sequence, freeze.Reason, freeze.FrozenAt)
	if err != nil {
		return fmt.Errorf("insert audit freeze: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFrozen(ctx context.Context) ([]audit.Freeze, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, sequence, reason, frozen_at
		FROM audit_freezes
		ORDER BY frozen_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query audit freezes: %w", err)
	}
	defer rows.Close()

	out := []audit.Freeze{}
	for rows.Next() {
		var (
			f   audit.Freeze
			sid uuid.UUID
		)
		if err := rows.Scan(&sid, &f.Sequence, &f.Reason, &f.FrozenAt); err != nil {
			return nil, fmt.Errorf("scan audit freeze: %w", err)
		}
		f.SessionID = id.SessionID(sid)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit freezes: %w", err)
	}
	return out, nil
}

const selectEntries = `
	SELECT session_id, sequence, action, payload_hash, chain_hash, previous_hash,
		timestamp, ip_address, user_agent, metadata
	FROM audit_entries
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*audit.Entry, error) {
	var (
		e         audit.Entry
		sessionID uuid.UUID
		action    string
		ip, ua    sql.NullString
		metadata  []byte
	)
	err := row.Scan(&sessionID, &e.Sequence, &action, &e.PayloadHash, &e.ChainHash,
		&e.PreviousHash, &e.Timestamp, &ip, &ua, &metadata)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}
	e.SessionID = id.SessionID(sessionID)
	e.Action = audit.Action(action)
	e.IPAddress = ip.String
	e.UserAgent = ua.String
	e.Timestamp = e.Timestamp.UTC()
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
		}
	}
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
