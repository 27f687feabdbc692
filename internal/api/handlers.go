package api

import (
	"context"
	"crypto/rand"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/referral-engine/internal/attribution"
	"github.com/ignite/referral-engine/internal/domain"
	"github.com/ignite/referral-engine/internal/session"
)

// Resolver is the attribution entry point the API exposes to the
// registration flow.
type Resolver interface {
	Resolve(ctx context.Context, req attribution.ResolveRequest) (*attribution.Resolution, error)
}

// ClickRecorder folds click-throughs into attribution sessions.
type ClickRecorder interface {
	RecordClick(ctx context.Context, req session.RecordClickRequest) (*session.RecordClickResult, error)
}

// DirectoryAdmin is the directory management surface.
type DirectoryAdmin interface {
	Insert(ctx context.Context, e *domain.DirectoryEntry) error
	FindByCode(ctx context.Context, code string) (*domain.DirectoryEntry, error)
	SetStatus(ctx context.Context, code string, status domain.DirectoryStatus) error
	Stats(ctx context.Context, code string) (*domain.DirectoryStats, error)
}

// LedgerReader reads the referral ledger for dashboards.
type LedgerReader interface {
	GetByReferredUser(ctx context.Context, userID string) (*domain.ReferralRecord, error)
	ListByReferrer(ctx context.Context, referrerID string, limit int) ([]domain.ReferralRecord, error)
}

// Handlers bundles the HTTP handlers with their collaborators.
type Handlers struct {
	resolver  Resolver
	clicks    ClickRecorder
	directory DirectoryAdmin
	ledger    LedgerReader

	cookieName   string
	sessionTTL   time.Duration
	redirectBase string
}

// NewHandlers creates the handler set.
func NewHandlers(resolver Resolver, clicks ClickRecorder, directory DirectoryAdmin, ledger LedgerReader, cookieName string, sessionTTL time.Duration, redirectBase string) *Handlers {
	if cookieName == "" {
		cookieName = session.DefaultCookieName
	}
	return &Handlers{
		resolver:     resolver,
		clicks:       clicks,
		directory:    directory,
		ledger:       ledger,
		cookieName:   cookieName,
		sessionTTL:   sessionTTL,
		redirectBase: redirectBase,
	}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// generateCode mints a random referral code from an unambiguous
// alphabet (no 0/O, 1/I/L).
func generateCode(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
