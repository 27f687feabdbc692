package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/referral-engine/internal/domain"
)

// DirectoryRepo implements the referral directory against PostgreSQL.
type DirectoryRepo struct{ db *sql.DB }

// NewDirectoryRepo creates a Postgres-backed directory repository.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo { return &DirectoryRepo{db: db} }

func (r *DirectoryRepo) FindByCode(ctx context.Context, code string) (*domain.DirectoryEntry, error) {
	var e domain.DirectoryEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, owner_user_id, status, referral_count, click_count, created_at, updated_at
		FROM referral_directory WHERE code = $1
	`, code).Scan(&e.ID, &e.Code, &e.OwnerUserID, &e.Status,
		&e.ReferralCount, &e.ClickCount, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find directory entry: %w", err)
	}
	return &e, nil
}

func (r *DirectoryRepo) Insert(ctx context.Context, e *domain.DirectoryEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referral_directory (id, code, owner_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`, e.ID, e.Code, e.OwnerUserID, e.Status)
	if isUniqueViolation(err) {
		return domain.ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert directory entry: %w", err)
	}
	return nil
}

func (r *DirectoryRepo) SetStatus(ctx context.Context, code string, status domain.DirectoryStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE referral_directory SET status = $2, updated_at = NOW() WHERE code = $1
	`, code, status)
	if err != nil {
		return fmt.Errorf("set directory status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUnknownCode
	}
	return nil
}

func (r *DirectoryRepo) IncrementReferralCount(ctx context.Context, entryID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE referral_directory
		SET referral_count = referral_count + 1, updated_at = NOW()
		WHERE id = $1
	`, entryID)
	if err != nil {
		return fmt.Errorf("increment referral count: %w", err)
	}
	return nil
}

func (r *DirectoryRepo) IncrementClickCount(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE referral_directory
		SET click_count = click_count + 1, updated_at = NOW()
		WHERE code = $1
	`, code)
	if err != nil {
		return fmt.Errorf("increment click count: %w", err)
	}
	return nil
}

// Stats builds the per-code read model from the authoritative tables
// rather than the informational counters.
func (r *DirectoryRepo) Stats(ctx context.Context, code string) (*domain.DirectoryStats, error) {
	var (
		st        domain.DirectoryStats
		lastClick sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT d.code, d.owner_user_id, d.status,
		       (SELECT COUNT(*) FROM referral_clicks c WHERE c.code = d.code),
		       (SELECT COUNT(*) FROM referral_ledger l WHERE l.code = d.code),
		       (SELECT MAX(c.created_at) FROM referral_clicks c WHERE c.code = d.code)
		FROM referral_directory d WHERE d.code = $1
	`, code).Scan(&st.Code, &st.OwnerUserID, &st.Status, &st.Clicks, &st.Signups, &lastClick)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory stats: %w", err)
	}
	if lastClick.Valid {
		t := lastClick.Time
		st.LastClickAt = &t
	}
	return &st, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
