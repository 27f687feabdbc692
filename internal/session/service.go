package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/referral-engine/internal/attribution"
	"github.com/ignite/referral-engine/internal/domain"
	"github.com/ignite/referral-engine/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Store is the session persistence surface used by click recording.
type Store interface {
	GetBySessionID(ctx context.Context, id string) (*domain.AttributionSession, error)
	Insert(ctx context.Context, s *domain.AttributionSession) error
	// Touch slides the expiry window forward; write-once fields stay put.
	Touch(ctx context.Context, id string, lastSeen, expires time.Time) error
}

// ClickStore persists click events with a server-side debounce check.
type ClickStore interface {
	RecentClickExists(ctx context.Context, sessionID, code string, since time.Time) (bool, error)
	Insert(ctx context.Context, evt *domain.ClickEvent) error
}

// CounterStore is the directory's informational click counter.
type CounterStore interface {
	IncrementClickCount(ctx context.Context, code string) error
}

// ClickPublisher hands a click event off for (possibly asynchronous)
// application. Implementations live in internal/clickqueue.
type ClickPublisher interface {
	Publish(ctx context.Context, evt domain.ClickEvent)
}

// RecordClickRequest is one observed click-through.
type RecordClickRequest struct {
	Code        string
	SessionID   string
	ClientIP    string
	UserAgent   string
	LandingPath string
	ReferrerURL string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

// RecordClickResult reports the session the click was folded into.
type RecordClickResult struct {
	SessionID string
	Minted    bool
}

// Service owns attribution session lifecycle (mint, touch) and click
// event recording. Session writes are synchronous so the caller always
// gets a session id to set as a cookie; click events go through the
// publisher and are debounced at apply time.
type Service struct {
	store       Store
	clicks      ClickStore
	counters    CounterStore
	fingerprint *attribution.Fingerprinter
	redis       *redis.Client // optional debounce fast-path
	publisher   ClickPublisher

	sessionTTL time.Duration
	debounce   time.Duration
	now        func() time.Time
}

// NewService creates a session service. redisClient may be nil; the
// debounce then relies on the store's recency check alone.
func NewService(store Store, clicks ClickStore, counters CounterStore, fp *attribution.Fingerprinter, redisClient *redis.Client, sessionTTL, debounce time.Duration) *Service {
	return &Service{
		store:       store,
		clicks:      clicks,
		counters:    counters,
		fingerprint: fp,
		redis:       redisClient,
		sessionTTL:  sessionTTL,
		debounce:    debounce,
		now:         time.Now,
	}
}

// SetPublisher wires the click-event publisher. Kept as a setter because
// the in-process publisher needs the service itself as its applier.
func (s *Service) SetPublisher(p ClickPublisher) { s.publisher = p }

// RecordClick touches or mints the attribution session for a
// click-through and publishes the click event. The returned session id
// goes back to the client as a 30-day cookie.
func (s *Service) RecordClick(ctx context.Context, req RecordClickRequest) (*RecordClickResult, error) {
	code := domain.NormalizeCode(req.Code)
	if !domain.ValidCode(code) {
		return nil, domain.ErrInvalidFormat
	}

	now := s.now()
	ipHash := s.fingerprint.Hash(req.ClientIP)
	uaHash := s.fingerprint.Hash(req.UserAgent)

	var (
		sessionID string
		minted    bool
	)

	if req.SessionID != "" {
		existing, err := s.store.GetBySessionID(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("session lookup: %w", err)
		}
		if existing != nil && !existing.Expired(now) {
			sessionID = existing.ID
			if err := s.store.Touch(ctx, existing.ID, now, now.Add(s.sessionTTL)); err != nil {
				return nil, fmt.Errorf("session touch: %w", err)
			}
		}
	}

	if sessionID == "" {
		sess := &domain.AttributionSession{
			ID:           uuid.New().String(),
			ReferralCode: code,
			LandingPath:  req.LandingPath,
			ReferrerURL:  req.ReferrerURL,
			UTMSource:    req.UTMSource,
			UTMMedium:    req.UTMMedium,
			UTMCampaign:  req.UTMCampaign,
			IPHash:       ipHash,
			UAHash:       uaHash,
			CreatedAt:    now,
			LastSeenAt:   now,
			ExpiresAt:    now.Add(s.sessionTTL),
		}
		if err := s.store.Insert(ctx, sess); err != nil {
			return nil, fmt.Errorf("session insert: %w", err)
		}
		sessionID = sess.ID
		minted = true
	}

	evt := domain.ClickEvent{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Code:        code,
		LandingPath: req.LandingPath,
		ReferrerURL: req.ReferrerURL,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		IPHash:      ipHash,
		UAHash:      uaHash,
		CreatedAt:   now,
	}
	if s.publisher != nil {
		s.publisher.Publish(ctx, evt)
	}

	return &RecordClickResult{SessionID: sessionID, Minted: minted}, nil
}

// ApplyClick performs the debounced click-event insert plus the
// best-effort click counter bump. It is called by whichever publisher
// path is wired: directly in-process, or from the SQS consumer.
//
// Redis is only a fast-path to skip the round trip for obvious page
// reloads; the store's recency-window check is the correctness
// guarantee and runs regardless of Redis availability.
func (s *Service) ApplyClick(ctx context.Context, evt domain.ClickEvent) error {
	if s.redis != nil {
		key := fmt.Sprintf("click:%s:%s", evt.SessionID, evt.Code)
		ok, err := s.redis.SetNX(ctx, key, 1, s.debounce).Result()
		if err != nil {
			logger.Warn("click debounce redis unavailable", "error", err)
		} else if !ok {
			logger.Debug("click suppressed by redis debounce",
				"session_id", evt.SessionID, "code", evt.Code)
			return nil
		}
	}

	since := evt.CreatedAt.Add(-s.debounce)
	exists, err := s.clicks.RecentClickExists(ctx, evt.SessionID, evt.Code, since)
	if err != nil {
		return fmt.Errorf("click debounce check: %w", err)
	}
	if exists {
		logger.Debug("click suppressed by debounce window",
			"session_id", evt.SessionID, "code", evt.Code)
		return nil
	}

	if err := s.clicks.Insert(ctx, &evt); err != nil {
		return fmt.Errorf("click insert: %w", err)
	}

	if err := s.counters.IncrementClickCount(ctx, evt.Code); err != nil {
		logger.Warn("click counter update failed", "code", evt.Code, "error", err)
	}
	return nil
}
