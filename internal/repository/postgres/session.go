package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/referral-engine/internal/domain"
)

// SessionRepo implements the session store against PostgreSQL.
type SessionRepo struct{ db *sql.DB }

// NewSessionRepo creates a Postgres-backed session repository.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, referral_code, landing_path, referrer_url,
	utm_source, utm_medium, utm_campaign, ip_hash, ua_hash,
	attributed_user_id, created_at, last_seen_at, expires_at`

func (r *SessionRepo) GetBySessionID(ctx context.Context, id string) (*domain.AttributionSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM referral_sessions
		WHERE id = $1 AND expires_at > NOW()
	`, id)
	return scanSession(row)
}

func (r *SessionRepo) GetByFingerprint(ctx context.Context, ipHash, uaHash string, since time.Time) (*domain.AttributionSession, error) {
	if ipHash == "" || uaHash == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM referral_sessions
		WHERE ip_hash = $1 AND ua_hash = $2
		  AND attributed_user_id IS NULL
		  AND last_seen_at >= $3
		ORDER BY last_seen_at DESC
		LIMIT 1
	`, ipHash, uaHash, since)
	return scanSession(row)
}

func (r *SessionRepo) Insert(ctx context.Context, s *domain.AttributionSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referral_sessions (id, referral_code, landing_path, referrer_url,
			utm_source, utm_medium, utm_campaign, ip_hash, ua_hash,
			created_at, last_seen_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, s.ID, s.ReferralCode, s.LandingPath, s.ReferrerURL,
		s.UTMSource, s.UTMMedium, s.UTMCampaign, s.IPHash, s.UAHash,
		s.CreatedAt, s.LastSeenAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Touch(ctx context.Context, id string, lastSeen, expires time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE referral_sessions SET last_seen_at = $2, expires_at = $3 WHERE id = $1
	`, id, lastSeen, expires)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// MarkAttributed links a session to its referred user. The predicate
// makes it a no-op when the session is already linked to someone else,
// so a session can never be stolen by a later registration.
func (r *SessionRepo) MarkAttributed(ctx context.Context, sessionID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE referral_sessions SET attributed_user_id = $2
		WHERE id = $1 AND (attributed_user_id IS NULL OR attributed_user_id = $2)
	`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("mark session attributed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.AttributionSession, error) {
	var (
		s          domain.AttributionSession
		attributed sql.NullString
	)
	err := row.Scan(&s.ID, &s.ReferralCode, &s.LandingPath, &s.ReferrerURL,
		&s.UTMSource, &s.UTMMedium, &s.UTMCampaign, &s.IPHash, &s.UAHash,
		&attributed, &s.CreatedAt, &s.LastSeenAt, &s.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.AttributedUserID = attributed.String
	return &s, nil
}
