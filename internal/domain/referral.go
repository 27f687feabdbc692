package domain

import (
	"regexp"
	"strings"
	"time"
)

// AttributionSource identifies which signal supplied the referral code
// that ended up in the ledger.
type AttributionSource string

const (
	SourceExplicit    AttributionSource = "explicit"
	SourceSession     AttributionSource = "session"
	SourceFingerprint AttributionSource = "fallback-fingerprint"
)

// DirectoryStatus is the lifecycle state of a directory entry. Blocked
// entries stay in the directory but can never be credited again.
type DirectoryStatus string

const (
	StatusActive  DirectoryStatus = "active"
	StatusBlocked DirectoryStatus = "blocked"
)

// codePattern is the canonical referral code shape after normalization.
var codePattern = regexp.MustCompile(`^[A-Z0-9]{6,16}$`)

// NormalizeCode trims and uppercases a raw user-entered code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidCode reports whether an already-normalized code is well formed.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// AttributionSession correlates a click-through to a later registration.
// It is keyed by an opaque id the client carries in a cookie (with a
// local-storage backup), and holds salted IP/UA hashes for the
// fingerprint fallback. Raw IP and user agent are never stored.
type AttributionSession struct {
	ID               string
	ReferralCode     string
	LandingPath      string
	ReferrerURL      string
	UTMSource        string
	UTMMedium        string
	UTMCampaign      string
	IPHash           string
	UAHash           string
	AttributedUserID string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}

// Expired reports whether the session's sliding expiry has passed.
func (s *AttributionSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// DirectoryEntry maps a shareable referral code to the account credited
// for signups carrying it. Counters are informational; the ledger is
// authoritative.
type DirectoryEntry struct {
	ID            string
	Code          string
	OwnerUserID   string
	Status        DirectoryStatus
	ReferralCount int64
	ClickCount    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the entry may receive new attributions.
func (e *DirectoryEntry) Active() bool {
	return e.Status == StatusActive
}

// ReferralRecord is one row of the append-only ledger. At most one record
// exists per referred user, enforced by a uniqueness constraint on
// referred_user_id; rows are immutable once written.
type ReferralRecord struct {
	ID             string
	ReferrerID     string
	ReferredUserID string
	Code           string
	Source         AttributionSource
	LandingPath    string
	CreatedAt      time.Time
}

// ClickEvent is a single recorded click-through. Duplicate events for the
// same (session, code) pair inside the debounce window are suppressed
// before insert.
type ClickEvent struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Code        string    `json:"code"`
	LandingPath string    `json:"landing_path,omitempty"`
	ReferrerURL string    `json:"referrer_url,omitempty"`
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMMedium   string    `json:"utm_medium,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`
	IPHash      string    `json:"ip_hash,omitempty"`
	UAHash      string    `json:"ua_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DirectoryStats is the read model behind the per-code stats endpoint.
type DirectoryStats struct {
	Code        string     `json:"code"`
	OwnerUserID string     `json:"owner_user_id"`
	Status      DirectoryStatus `json:"status"`
	Clicks      int64      `json:"clicks"`
	Signups     int64      `json:"signups"`
	LastClickAt *time.Time `json:"last_click_at,omitempty"`
}
