package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/referral-engine/internal/domain"
	"github.com/ignite/referral-engine/internal/pkg/httputil"
	"github.com/ignite/referral-engine/internal/pkg/logger"
	"github.com/ignite/referral-engine/internal/session"
)

// HandleClickThrough serves the shareable referral link /r/{code}. It
// records the click, sets the session cookie, and redirects to the
// landing page. The redirect must happen even when recording fails;
// a broken referral link is worse than a lost click.
func (h *Handlers) HandleClickThrough(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	q := r.URL.Query()
	dest := safeRedirectPath(q.Get("to"))

	res, err := h.clicks.RecordClick(r.Context(), session.RecordClickRequest{
		Code:        code,
		SessionID:   session.SessionIDFromRequest(r, h.cookieName),
		ClientIP:    realIP(r),
		UserAgent:   r.UserAgent(),
		LandingPath: dest,
		ReferrerURL: r.Referer(),
		UTMSource:   q.Get("utm_source"),
		UTMMedium:   q.Get("utm_medium"),
		UTMCampaign: q.Get("utm_campaign"),
	})
	if err != nil {
		logger.Debug("click-through not recorded", "code", code, "error", err)
	} else {
		session.SetSessionCookie(w, r, h.cookieName, res.SessionID, h.sessionTTL)
	}

	target := dest
	if h.redirectBase != "" {
		target = strings.TrimRight(h.redirectBase, "/") + dest
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type clickRequest struct {
	Code        string `json:"code"`
	SessionID   string `json:"session_id,omitempty"`
	LandingPath string `json:"landing_path,omitempty"`
	ReferrerURL string `json:"referrer_url,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
}

// HandleRecordClick is the JSON click beacon used by the SPA when the
// click-through redirect was bypassed (client-side routing).
func (h *Handlers) HandleRecordClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.SessionIDFromRequest(r, h.cookieName)
	}

	res, err := h.clicks.RecordClick(r.Context(), session.RecordClickRequest{
		Code:        req.Code,
		SessionID:   sessionID,
		ClientIP:    realIP(r),
		UserAgent:   r.UserAgent(),
		LandingPath: req.LandingPath,
		ReferrerURL: req.ReferrerURL,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFormat) {
			httputil.BadRequest(w, "invalid referral code")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	session.SetSessionCookie(w, r, h.cookieName, res.SessionID, h.sessionTTL)
	httputil.OK(w, map[string]any{
		"session_id": res.SessionID,
		"minted":     res.Minted,
	})
}

// safeRedirectPath accepts only site-relative paths, defaulting to "/".
// Protocol-relative ("//evil.example") and absolute URLs are rejected to
// keep /r/{code} from becoming an open redirect.
func safeRedirectPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return "/"
	}
	return p
}
