package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/referral-engine/internal/domain"
)

// ClickRepo persists click events against PostgreSQL.
type ClickRepo struct{ db *sql.DB }

// NewClickRepo creates a Postgres-backed click repository.
func NewClickRepo(db *sql.DB) *ClickRepo { return &ClickRepo{db: db} }

// RecentClickExists is the authoritative debounce check: true when a
// click for the same (session, code) pair was recorded at or after since.
func (r *ClickRepo) RecentClickExists(ctx context.Context, sessionID, code string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM referral_clicks
			WHERE session_id = $1 AND code = $2 AND created_at >= $3
		)
	`, sessionID, code, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("recent click check: %w", err)
	}
	return exists, nil
}

func (r *ClickRepo) Insert(ctx context.Context, evt *domain.ClickEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referral_clicks (id, session_id, code, landing_path, referrer_url,
			utm_source, utm_medium, utm_campaign, ip_hash, ua_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, evt.ID, evt.SessionID, evt.Code, evt.LandingPath, evt.ReferrerURL,
		evt.UTMSource, evt.UTMMedium, evt.UTMCampaign, evt.IPHash, evt.UAHash, evt.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

// CountByCode returns the number of recorded clicks for a code.
func (r *ClickRepo) CountByCode(ctx context.Context, code string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referral_clicks WHERE code = $1`, code,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return n, nil
}
