package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/referral-engine/internal/domain"
	"github.com/ignite/referral-engine/internal/pkg/logger"
)

// SessionStore is the resolver's view of attribution sessions.
// Lookups return (nil, nil) when nothing matches.
type SessionStore interface {
	GetBySessionID(ctx context.Context, id string) (*domain.AttributionSession, error)
	// GetByFingerprint returns the most recently seen unattributed session
	// matching both hashes with last_seen_at >= since.
	GetByFingerprint(ctx context.Context, ipHash, uaHash string, since time.Time) (*domain.AttributionSession, error)
	// MarkAttributed links a session to a user. It must be a no-op when the
	// session is already linked to a different user.
	MarkAttributed(ctx context.Context, sessionID, userID string) error
}

// DirectoryStore resolves referral codes to their owning accounts.
type DirectoryStore interface {
	FindByCode(ctx context.Context, code string) (*domain.DirectoryEntry, error)
	IncrementReferralCount(ctx context.Context, entryID string) error
}

// ReferralLedger is the append-only (referrer, referred user) relation.
// Insert must return domain.ErrAlreadyAttributed when the referred user
// already has a record, including on a race-induced uniqueness violation.
type ReferralLedger interface {
	HasRecordFor(ctx context.Context, userID string) (bool, error)
	Insert(ctx context.Context, rec *domain.ReferralRecord) error
}

// ResolveRequest carries the attribution signals available at
// registration time. Everything but NewUserID is optional.
type ResolveRequest struct {
	NewUserID    string
	ExplicitCode string
	SessionID    string
	LandingPath  string
	SourceHint   domain.AttributionSource
	ClientIP     string
	UserAgent    string
}

// Resolution is the successful outcome of an attribution resolve.
type Resolution struct {
	RecordID   string                   `json:"record_id"`
	ReferrerID string                   `json:"referrer_id"`
	Code       string                   `json:"code"`
	Source     domain.AttributionSource `json:"source"`
}

// Resolver decides which referrer is credited for a new registration and
// records the referral exactly once. It is stateless per call; all
// cross-request coordination lives in the ledger's uniqueness constraint.
type Resolver struct {
	sessions    SessionStore
	directory   DirectoryStore
	ledger      ReferralLedger
	fingerprint *Fingerprinter

	fallbackWindow time.Duration
	now            func() time.Time
}

// NewResolver creates a resolver. fallbackWindow bounds how far back the
// fingerprint fallback may correlate a session.
func NewResolver(sessions SessionStore, directory DirectoryStore, ledger ReferralLedger, fp *Fingerprinter, fallbackWindow time.Duration) *Resolver {
	return &Resolver{
		sessions:       sessions,
		directory:      directory,
		ledger:         ledger,
		fingerprint:    fp,
		fallbackWindow: fallbackWindow,
		now:            time.Now,
	}
}

// Resolve runs the precedence chain (explicit code, session code,
// fingerprint fallback), validates the candidate, and appends the
// ledger record. Errors from the domain taxonomy describe expected
// policy outcomes; any other error is a storage failure and the caller's
// signup flow must proceed regardless.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	if req.NewUserID == "" {
		return nil, fmt.Errorf("resolve: new user id is required")
	}

	now := r.now()
	var (
		code    string
		source  domain.AttributionSource
		session *domain.AttributionSession
	)

	// Step 1: explicit code wins outright.
	if req.ExplicitCode != "" {
		code = domain.NormalizeCode(req.ExplicitCode)
		source = domain.SourceExplicit
	}

	// Step 2: session lookup. Consulted even when an explicit code is
	// present, for linkage and landing metadata, but never overrides it.
	if req.SessionID != "" {
		s, err := r.sessions.GetBySessionID(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("session lookup: %w", err)
		}
		if s != nil && !s.Expired(now) {
			session = s
			if code == "" && s.ReferralCode != "" {
				code = domain.NormalizeCode(s.ReferralCode)
				source = domain.SourceSession
			}
		}
	}

	// Step 3: fingerprint fallback, only when steps 1-2 yielded nothing.
	if code == "" && req.ClientIP != "" && req.UserAgent != "" {
		ipHash := r.fingerprint.Hash(req.ClientIP)
		uaHash := r.fingerprint.Hash(req.UserAgent)
		s, err := r.sessions.GetByFingerprint(ctx, ipHash, uaHash, now.Add(-r.fallbackWindow))
		if err != nil {
			return nil, fmt.Errorf("fingerprint lookup: %w", err)
		}
		if s != nil && s.ReferralCode != "" {
			session = s
			code = domain.NormalizeCode(s.ReferralCode)
			source = domain.SourceFingerprint
		}
	}

	if code == "" {
		return nil, domain.ErrNoCode
	}
	if source == "" {
		// Structurally unreachable; honor the caller's hint if one exists.
		source = req.SourceHint
	}

	if !domain.ValidCode(code) {
		return nil, domain.ErrInvalidFormat
	}

	entry, err := r.directory.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	if entry == nil {
		return nil, domain.ErrUnknownCode
	}
	if !entry.Active() {
		return nil, domain.ErrInactiveReferrer
	}
	if entry.OwnerUserID == req.NewUserID {
		return nil, domain.ErrSelfReferral
	}

	attributed, err := r.ledger.HasRecordFor(ctx, req.NewUserID)
	if err != nil {
		return nil, fmt.Errorf("ledger check: %w", err)
	}
	if attributed {
		return nil, domain.ErrAlreadyAttributed
	}

	landing := req.LandingPath
	if landing == "" && session != nil {
		landing = session.LandingPath
	}

	rec := &domain.ReferralRecord{
		ID:             uuid.New().String(),
		ReferrerID:     entry.OwnerUserID,
		ReferredUserID: req.NewUserID,
		Code:           code,
		Source:         source,
		LandingPath:    landing,
		CreatedAt:      now,
	}
	if err := r.ledger.Insert(ctx, rec); err != nil {
		// A concurrent registration may have won the insert; the unique
		// constraint already collapsed that race into ErrAlreadyAttributed.
		return nil, err
	}

	// Session linkage is one-time. A session already attributed to a
	// different user is informational-only for this call.
	if session != nil && (session.AttributedUserID == "" || session.AttributedUserID == req.NewUserID) {
		if err := r.sessions.MarkAttributed(ctx, session.ID, req.NewUserID); err != nil {
			logger.Warn("session linkage failed", "session_id", session.ID, "error", err)
		}
	}

	// Counters are informational; never roll back the ledger for them.
	if err := r.directory.IncrementReferralCount(ctx, entry.ID); err != nil {
		logger.Warn("referral counter update failed", "code", code, "error", err)
	}

	logger.Info("referral attributed",
		"code", code, "source", string(source), "referrer_id", entry.OwnerUserID)

	return &Resolution{
		RecordID:   rec.ID,
		ReferrerID: entry.OwnerUserID,
		Code:       code,
		Source:     source,
	}, nil
}
