package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/referral-engine/internal/domain"
)

// LedgerRepo implements the append-only referral ledger against
// PostgreSQL. The unique index on referred_user_id is the single
// serialization point for concurrent attribution attempts.
type LedgerRepo struct{ db *sql.DB }

// NewLedgerRepo creates a Postgres-backed ledger repository.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

func (r *LedgerRepo) HasRecordFor(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM referral_ledger WHERE referred_user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger check: %w", err)
	}
	return exists, nil
}

// Insert appends a referral record. A uniqueness violation on
// referred_user_id means a concurrent resolve won the race; that is
// reported as domain.ErrAlreadyAttributed, never as an internal error.
func (r *LedgerRepo) Insert(ctx context.Context, rec *domain.ReferralRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referral_ledger (id, referrer_id, referred_user_id, code, source, landing_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.ReferrerID, rec.ReferredUserID, rec.Code, rec.Source, rec.LandingPath, rec.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyAttributed
	}
	if err != nil {
		return fmt.Errorf("insert referral record: %w", err)
	}
	return nil
}

func (r *LedgerRepo) GetByReferredUser(ctx context.Context, userID string) (*domain.ReferralRecord, error) {
	var rec domain.ReferralRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, referrer_id, referred_user_id, code, source, landing_path, created_at
		FROM referral_ledger WHERE referred_user_id = $1
	`, userID).Scan(&rec.ID, &rec.ReferrerID, &rec.ReferredUserID,
		&rec.Code, &rec.Source, &rec.LandingPath, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get referral record: %w", err)
	}
	return &rec, nil
}

func (r *LedgerRepo) ListByReferrer(ctx context.Context, referrerID string, limit int) ([]domain.ReferralRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, referrer_id, referred_user_id, code, source, landing_path, created_at
		FROM referral_ledger
		WHERE referrer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, referrerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var out []domain.ReferralRecord
	for rows.Next() {
		var rec domain.ReferralRecord
		if err := rows.Scan(&rec.ID, &rec.ReferrerID, &rec.ReferredUserID,
			&rec.Code, &rec.Source, &rec.LandingPath, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
