package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/referral-engine/internal/domain"
	"github.com/ignite/referral-engine/internal/pkg/httputil"
)

// HandleGetReferralForUser returns the ledger record for a referred
// user, if any.
func (h *Handlers) HandleGetReferralForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	rec, err := h.ledger.GetByReferredUser(r.Context(), userID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if rec == nil {
		httputil.NotFound(w, "no referral record")
		return
	}
	httputil.OK(w, recordPayload(*rec))
}

// HandleListReferralsByReferrer lists the signups credited to a
// referrer, newest first.
func (h *Handlers) HandleListReferralsByReferrer(w http.ResponseWriter, r *http.Request) {
	referrerID := chi.URLParam(r, "referrerID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := h.ledger.ListByReferrer(r.Context(), referrerID, limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordPayload(rec))
	}
	httputil.OK(w, map[string]any{"referrals": out, "count": len(out)})
}

func recordPayload(rec domain.ReferralRecord) map[string]any {
	return map[string]any{
		"id":               rec.ID,
		"referrer_id":      rec.ReferrerID,
		"referred_user_id": rec.ReferredUserID,
		"code":             rec.Code,
		"source":           rec.Source,
		"landing_path":     rec.LandingPath,
		"created_at":       rec.CreatedAt,
	}
}
