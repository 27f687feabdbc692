package api

import (
	"errors"
	"net/http"

	"github.com/ignite/referral-engine/internal/attribution"
	"github.com/ignite/referral-engine/internal/domain"
	"github.com/ignite/referral-engine/internal/pkg/httputil"
	"github.com/ignite/referral-engine/internal/pkg/logger"
	"github.com/ignite/referral-engine/internal/session"
)

type resolveRequest struct {
	UserID      string `json:"user_id"`
	Code        string `json:"code,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	LandingPath string `json:"landing_path,omitempty"`
	Source      string `json:"source,omitempty"`
	ClientIP    string `json:"client_ip,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
}

type resolveResponse struct {
	Attributed bool                     `json:"attributed"`
	Reason     string                   `json:"reason,omitempty"`
	RecordID   string                   `json:"record_id,omitempty"`
	ReferrerID string                   `json:"referrer_id,omitempty"`
	Code       string                   `json:"code,omitempty"`
	Source     domain.AttributionSource `json:"source,omitempty"`
}

// HandleResolve is called by the registration flow right after a user is
// created. Attribution failures never become caller-visible errors: every
// policy outcome maps to a 200 so the signup can proceed unconditionally;
// only malformed requests and storage failures use error status codes.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httputil.BadRequest(w, "user_id is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.SessionIDFromRequest(r, h.cookieName)
	}
	clientIP := req.ClientIP
	if clientIP == "" {
		clientIP = realIP(r)
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}

	res, err := h.resolver.Resolve(r.Context(), attribution.ResolveRequest{
		NewUserID:    req.UserID,
		ExplicitCode: req.Code,
		SessionID:    sessionID,
		LandingPath:  req.LandingPath,
		SourceHint:   domain.AttributionSource(req.Source),
		ClientIP:     clientIP,
		UserAgent:    userAgent,
	})
	if err == nil {
		httputil.OK(w, resolveResponse{
			Attributed: true,
			RecordID:   res.RecordID,
			ReferrerID: res.ReferrerID,
			Code:       res.Code,
			Source:     res.Source,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNoCode):
		httputil.OK(w, resolveResponse{Attributed: false, Reason: "no_code"})
	case errors.Is(err, domain.ErrAlreadyAttributed):
		httputil.OK(w, resolveResponse{Attributed: false, Reason: "already_attributed"})
	case errors.Is(err, domain.ErrInvalidFormat):
		logger.Debug("attribution rejected", "reason", "invalid_format", "user_id", req.UserID)
		httputil.OK(w, resolveResponse{Attributed: false, Reason: "invalid_code"})
	case errors.Is(err, domain.ErrUnknownCode):
		logger.Debug("attribution rejected", "reason", "unknown_code", "user_id", req.UserID)
		httputil.OK(w, resolveResponse{Attributed: false, Reason: "invalid_code"})
	case errors.Is(err, domain.ErrInactiveReferrer):
		logger.Debug("attribution rejected", "reason", "inactive_referrer", "user_id", req.UserID)
		httputil.OK(w, resolveResponse{Attributed: false, Reason: "invalid_code"})
	case errors.Is(err, domain.ErrSelfReferral):
		// Distinct log line: repeated self-referrals are an abuse signal.
		logger.Warn("self referral rejected", "user_id", req.UserID)
		httputil.OK(w, resolveResponse{Attributed: false, Reason: "self_referral"})
	default:
		httputil.InternalError(w, err)
	}
}
