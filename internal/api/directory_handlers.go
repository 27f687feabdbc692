package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ignite/referral-engine/internal/domain"
	"github.com/ignite/referral-engine/internal/pkg/httputil"
)

type createEntryRequest struct {
	OwnerUserID string `json:"owner_user_id"`
	Code        string `json:"code,omitempty"`
}

// HandleCreateEntry registers a referral/affiliate code. When no code is
// supplied one is generated server-side; generated codes retry on the
// (unlikely) collision.
func (h *Handlers) HandleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.OwnerUserID == "" {
		httputil.BadRequest(w, "owner_user_id is required")
		return
	}

	generated := req.Code == ""
	code := domain.NormalizeCode(req.Code)
	if generated {
		code = generateCode(8)
	} else if !domain.ValidCode(code) {
		httputil.BadRequest(w, "code must be 6-16 alphanumeric characters")
		return
	}

	entry := &domain.DirectoryEntry{
		ID:          uuid.New().String(),
		Code:        code,
		OwnerUserID: req.OwnerUserID,
		Status:      domain.StatusActive,
	}

	for attempt := 0; ; attempt++ {
		err := h.directory.Insert(r.Context(), entry)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrCodeTaken) {
			if generated && attempt < 5 {
				entry.Code = generateCode(8)
				continue
			}
			httputil.Conflict(w, "code already taken")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.Created(w, map[string]any{
		"code":          entry.Code,
		"owner_user_id": entry.OwnerUserID,
		"status":        entry.Status,
	})
}

// HandleGetEntry returns a directory entry by code.
func (h *Handlers) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	code := domain.NormalizeCode(chi.URLParam(r, "code"))
	entry, err := h.directory.FindByCode(r.Context(), code)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entry == nil {
		httputil.NotFound(w, "code not found")
		return
	}
	httputil.OK(w, map[string]any{
		"code":           entry.Code,
		"owner_user_id":  entry.OwnerUserID,
		"status":         entry.Status,
		"referral_count": entry.ReferralCount,
		"click_count":    entry.ClickCount,
		"created_at":     entry.CreatedAt,
	})
}

// HandleBlockEntry disables a code. Blocked referrers keep their history
// but can never be credited again.
func (h *Handlers) HandleBlockEntry(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, domain.StatusBlocked)
}

// HandleActivateEntry re-enables a blocked code.
func (h *Handlers) HandleActivateEntry(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, domain.StatusActive)
}

func (h *Handlers) setStatus(w http.ResponseWriter, r *http.Request, status domain.DirectoryStatus) {
	code := domain.NormalizeCode(chi.URLParam(r, "code"))
	if err := h.directory.SetStatus(r.Context(), code, status); err != nil {
		if errors.Is(err, domain.ErrUnknownCode) {
			httputil.NotFound(w, "code not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"code": code, "status": status})
}

// HandleEntryStats returns clicks/signups for a code, computed from the
// ledger and click tables rather than the informational counters.
func (h *Handlers) HandleEntryStats(w http.ResponseWriter, r *http.Request) {
	code := domain.NormalizeCode(chi.URLParam(r, "code"))
	stats, err := h.directory.Stats(r.Context(), code)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if stats == nil {
		httputil.NotFound(w, "code not found")
		return
	}
	httputil.OK(w, stats)
}
