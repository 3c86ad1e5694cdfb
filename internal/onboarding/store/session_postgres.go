package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"onboard/internal/onboarding/models"
	"onboard/internal/profile"
	"onboard/internal/risk"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
	txcontext "onboard/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresSessionStore persists sessions in the sessions table.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) Create(ctx context.Context, session *models.Session) error {
	profileJSON, err := json.Marshal(session.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	_, err = txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sessions (
			id, resume_token, status, account_type, language, profile,
			risk_level, risk_reasons, verification_method, signature_method,
			signature_complete, payment_method, account_number,
			ip_address, user_agent, created_at, updated_at, completed_at, pop_agent_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, sessionArgs(session, profileJSON)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Save(ctx context.Context, session *models.Session) error {
	profileJSON, err := json.Marshal(session.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	args := sessionArgs(session, profileJSON)
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE sessions SET
			status = $2,
			language = $3,
			profile = $4,
			risk_level = $5,
			risk_reasons = $6,
			verification_method = $7,
			signature_method = $8,
			signature_complete = $9,
			payment_method = $10,
			account_number = $11,
			updated_at = $12,
			completed_at = $13,
			pop_agent_id = $14
		WHERE id = $1
	`,
		args[0], args[2], args[4], args[5], args[6], args[7], args[8],
		args[9], args[10], args[11], args[12], args[16], args[17], args[18],
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresSessionStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, selectSessions+` WHERE id = $1`, uuid.UUID(sessionID))
	return scanSession(row)
}

func (s *PostgresSessionStore) FindByResumeToken(ctx context.Context, token string) (*models.Session, error) {
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, selectSessions+` WHERE resume_token = $1`, token)
	return scanSession(row)
}

// List returns sessions newest first with the total matching count.
func (s *PostgresSessionStore) List(ctx context.Context, filter ListFilter) ([]*models.Session, int, error) {
	filter = filter.Normalize()
	statuses := make([]string, 0, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses = append(statuses, string(st))
	}

	var (
		conds []string
		args  []any
	)
	if len(statuses) > 0 {
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.AgentID != "" {
		args = append(args, filter.AgentID)
		conds = append(conds, fmt.Sprintf("pop_agent_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	limitPos := len(args) + 1
	query := fmt.Sprintf("%s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		selectSessions, where, limitPos, limitPos+1)
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, total, nil
}

func (s *PostgresSessionStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	counts, err := s.countBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	out := make(map[models.Status]int, len(counts))
	for k, v := range counts {
		out[models.Status(k)] = v
	}
	return out, nil
}

// CountByStatusForAgent counts the sessions attributed to agentID.
func (s *PostgresSessionStore) CountByStatusForAgent(ctx context.Context, agentID string) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM sessions
		WHERE pop_agent_id = $1
		GROUP BY status
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("count agent sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan agent session count: %w", err)
		}
		counts[models.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent session counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresSessionStore) CountByVerificationMethod(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, "verification_method")
}

func (s *PostgresSessionStore) CountByRiskLevel(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, "risk_level")
}

// countBy groups on a fixed column name; column is never caller-supplied.
func (s *PostgresSessionStore) countBy(ctx context.Context, column string) (map[string]int, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) FROM sessions
		WHERE %[1]s IS NOT NULL AND %[1]s <> ''
		GROUP BY %[1]s
	`, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count sessions by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan %s count: %w", column, err)
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s counts: %w", column, err)
	}
	return counts, nil
}

func (s *PostgresSessionStore) CompletionStats(ctx context.Context) (CompletionStats, error) {
	var (
		stats CompletionStats
		avg   sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(EXTRACT(EPOCH FROM (completed_at - created_at)))
		FROM sessions
		WHERE completed_at IS NOT NULL
	`).Scan(&stats.Completed, &avg)
	if err != nil {
		return CompletionStats{}, fmt.Errorf("completion stats: %w", err)
	}
	stats.AverageSeconds = avg.Float64
	return stats, nil
}

const selectSessions = `
	SELECT id, resume_token, status, account_type, language, profile,
		risk_level, risk_reasons, verification_method, signature_method,
		signature_complete, payment_method, account_number,
		ip_address, user_agent, created_at, updated_at, completed_at, pop_agent_id
	FROM sessions`

func sessionArgs(s *models.Session, profileJSON []byte) []any {
	var completedAt *time.Time
	if s.CompletedAt != nil {
		t := s.CompletedAt.UTC()
		completedAt = &t
	}
	return []any{
		uuid.UUID(s.ID),
		s.ResumeToken,
		string(s.Status),
		string(s.AccountType),
		s.Language,
		profileJSON,
		nullString(string(s.RiskLevel)),
		pq.Array(s.RiskReasons),
		nullString(s.VerificationMethod),
		nullString(s.SignatureMethod),
		s.SignatureComplete,
		nullString(s.PaymentMethod),
		nullString(s.AccountNumber),
		nullString(s.IPAddress),
		nullString(s.UserAgent),
		s.CreatedAt.UTC(),
		s.UpdatedAt.UTC(),
		completedAt,
		nullString(s.PopAgentID),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s                                     models.Session
		sessionID                             uuid.UUID
		status, accountType                   string
		profileJSON                           []byte
		riskLevel, verification, signature    sql.NullString
		payment, accountNumber, ip, userAgent sql.NullString
		popAgent                              sql.NullString
		reasons                               pq.StringArray
		completedAt                           sql.NullTime
	)
	err := row.Scan(&sessionID, &s.ResumeToken, &status, &accountType, &s.Language, &profileJSON,
		&riskLevel, &reasons, &verification, &signature,
		&s.SignatureComplete, &payment, &accountNumber,
		&ip, &userAgent, &s.CreatedAt, &s.UpdatedAt, &completedAt, &popAgent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	s.ID = id.SessionID(sessionID)
	s.Status = models.Status(status)
	s.AccountType = models.AccountType(accountType)
	s.Profile = profile.Profile{}
	if len(profileJSON) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(profileJSON)))
		dec.UseNumber()
		if err := dec.Decode(&s.Profile); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
	}
	s.RiskLevel = risk.Level(riskLevel.String)
	s.RiskReasons = []string(reasons)
	if s.RiskReasons == nil {
		s.RiskReasons = []string{}
	}
	s.VerificationMethod = verification.String
	s.SignatureMethod = signature.String
	s.PaymentMethod = payment.String
	s.AccountNumber = accountNumber.String
	s.IPAddress = ip.String
	s.UserAgent = userAgent.String
	s.PopAgentID = popAgent.String
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		s.CompletedAt = &t
	}
	return &s, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
