package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/referral-engine/internal/attribution"
	"github.com/ignite/referral-engine/internal/domain"
	"github.com/ignite/referral-engine/internal/session"
)

type stubResolver struct {
	res  *attribution.Resolution
	err  error
	last attribution.ResolveRequest
}

func (s *stubResolver) Resolve(_ context.Context, req attribution.ResolveRequest) (*attribution.Resolution, error) {
	s.last = req
	return s.res, s.err
}

type stubClicks struct {
	res  *session.RecordClickResult
	err  error
	last session.RecordClickRequest
}

func (s *stubClicks) RecordClick(_ context.Context, req session.RecordClickRequest) (*session.RecordClickResult, error) {
	s.last = req
	return s.res, s.err
}

type stubDirectory struct {
	entries   map[string]*domain.DirectoryEntry
	stats     map[string]*domain.DirectoryStats
	statuses  map[string]domain.DirectoryStatus
	insertErr error
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		entries:  make(map[string]*domain.DirectoryEntry),
		stats:    make(map[string]*domain.DirectoryStats),
		statuses: make(map[string]domain.DirectoryStatus),
	}
}

func (s *stubDirectory) Insert(_ context.Context, e *domain.DirectoryEntry) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.entries[e.Code]; ok {
		return domain.ErrCodeTaken
	}
	s.entries[e.Code] = e
	return nil
}

func (s *stubDirectory) FindByCode(_ context.Context, code string) (*domain.DirectoryEntry, error) {
	return s.entries[code], nil
}

func (s *stubDirectory) SetStatus(_ context.Context, code string, status domain.DirectoryStatus) error {
	if _, ok := s.entries[code]; !ok {
		return domain.ErrUnknownCode
	}
	s.statuses[code] = status
	return nil
}

func (s *stubDirectory) Stats(_ context.Context, code string) (*domain.DirectoryStats, error) {
	return s.stats[code], nil
}

type stubLedger struct {
	byUser     map[string]*domain.ReferralRecord
	byReferrer map[string][]domain.ReferralRecord
}

func (s *stubLedger) GetByReferredUser(_ context.Context, userID string) (*domain.ReferralRecord, error) {
	return s.byUser[userID], nil
}

func (s *stubLedger) ListByReferrer(_ context.Context, referrerID string, limit int) ([]domain.ReferralRecord, error) {
	return s.byReferrer[referrerID], nil
}

func newTestRouter(resolver Resolver, clicks ClickRecorder, dir DirectoryAdmin, ledger LedgerReader) http.Handler {
	h := NewHandlers(resolver, clicks, dir, ledger, "ref_sid", 30*24*time.Hour, "https://app.example.com")
	return SetupRoutes(h)
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleResolveSuccess(t *testing.T) {
	resolver := &stubResolver{res: &attribution.Resolution{
		RecordID:   "rec-1",
		ReferrerID: "referrer-1",
		Code:       "ABCDEF12",
		Source:     domain.SourceExplicit,
	}}
	router := newTestRouter(resolver, &stubClicks{}, newStubDirectory(), &stubLedger{})

	w := postJSON(t, router, "/api/attribution/resolve", map[string]any{
		"user_id": "user-1",
		"code":    "ABCDEF12",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["attributed"])
	assert.Equal(t, "rec-1", body["record_id"])
	assert.Equal(t, "referrer-1", body["referrer_id"])
}

func TestHandleResolveSessionFromCookie(t *testing.T) {
	resolver := &stubResolver{err: domain.ErrNoCode}
	router := newTestRouter(resolver, &stubClicks{}, newStubDirectory(), &stubLedger{})

	data, _ := json.Marshal(map[string]any{"user_id": "user-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/attribution/resolve", bytes.NewReader(data))
	req.AddCookie(&http.Cookie{Name: "ref_sid", Value: "sess-from-cookie"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess-from-cookie", resolver.last.SessionID)
}

func TestHandleResolveOutcomeMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"no code", domain.ErrNoCode, http.StatusOK, "no_code"},
		{"already attributed", domain.ErrAlreadyAttributed, http.StatusOK, "already_attributed"},
		{"invalid format", domain.ErrInvalidFormat, http.StatusOK, "invalid_code"},
		{"unknown code", domain.ErrUnknownCode, http.StatusOK, "invalid_code"},
		{"inactive referrer", domain.ErrInactiveReferrer, http.StatusOK, "invalid_code"},
		{"self referral", domain.ErrSelfReferral, http.StatusOK, "self_referral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubResolver{err: tt.err}, &stubClicks{}, newStubDirectory(), &stubLedger{})
			w := postJSON(t, router, "/api/attribution/resolve", map[string]any{"user_id": "user-1"})
			require.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, false, body["attributed"])
			assert.Equal(t, tt.reason, body["reason"])
		})
	}
}

func TestHandleResolveStorageFailure(t *testing.T) {
	router := newTestRouter(&stubResolver{err: assert.AnError}, &stubClicks{}, newStubDirectory(), &stubLedger{})
	w := postJSON(t, router, "/api/attribution/resolve", map[string]any{"user_id": "user-1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleResolveRequiresUserID(t *testing.T) {
	router := newTestRouter(&stubResolver{}, &stubClicks{}, newStubDirectory(), &stubLedger{})
	w := postJSON(t, router, "/api/attribution/resolve", map[string]any{"code": "ABCDEF12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleClickThrough(t *testing.T) {
	clicks := &stubClicks{res: &session.RecordClickResult{SessionID: "sess-1", Minted: true}}
	router := newTestRouter(&stubResolver{}, clicks, newStubDirectory(), &stubLedger{})

	req := httptest.NewRequest(http.MethodGet, "/r/ABCDEF12?to=/pricing&utm_source=newsletter", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app.example.com/pricing", w.Header().Get("Location"))
	assert.Equal(t, "ABCDEF12", clicks.last.Code)
	assert.Equal(t, "newsletter", clicks.last.UTMSource)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "ref_sid", cookies[0].Name)
	assert.Equal(t, "sess-1", cookies[0].Value)
}

func TestHandleClickThroughRejectsOpenRedirect(t *testing.T) {
	clicks := &stubClicks{res: &session.RecordClickResult{SessionID: "sess-1"}}
	router := newTestRouter(&stubResolver{}, clicks, newStubDirectory(), &stubLedger{})

	for _, to := range []string{"//evil.example", "https://evil.example/", "javascript:alert(1)"} {
		req := httptest.NewRequest(http.MethodGet, "/r/ABCDEF12?to="+to, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://app.example.com/", w.Header().Get("Location"), "to=%s", to)
	}
}

func TestHandleClickThroughRedirectsOnRecordFailure(t *testing.T) {
	clicks := &stubClicks{err: assert.AnError}
	router := newTestRouter(&stubResolver{}, clicks, newStubDirectory(), &stubLedger{})

	req := httptest.NewRequest(http.MethodGet, "/r/ABCDEF12?to=/pricing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestHandleRecordClick(t *testing.T) {
	clicks := &stubClicks{res: &session.RecordClickResult{SessionID: "sess-1", Minted: true}}
	router := newTestRouter(&stubResolver{}, clicks, newStubDirectory(), &stubLedger{})

	w := postJSON(t, router, "/api/clicks", map[string]any{"code": "ABCDEF12", "landing_path": "/pricing"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "sess-1", body["session_id"])
	assert.Equal(t, true, body["minted"])
}

func TestHandleRecordClickBadCode(t *testing.T) {
	clicks := &stubClicks{err: domain.ErrInvalidFormat}
	router := newTestRouter(&stubResolver{}, clicks, newStubDirectory(), &stubLedger{})

	w := postJSON(t, router, "/api/clicks", map[string]any{"code": "ab"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCreateEntry(t *testing.T) {
	dir := newStubDirectory()
	router := newTestRouter(&stubResolver{}, &stubClicks{}, dir, &stubLedger{})

	w := postJSON(t, router, "/api/directory/", map[string]any{
		"owner_user_id": "user-1",
		"code":          "mycode99",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "MYCODE99", body["code"])
	assert.Contains(t, dir.entries, "MYCODE99")
}

func TestHandleCreateEntryGeneratesCode(t *testing.T) {
	dir := newStubDirectory()
	router := newTestRouter(&stubResolver{}, &stubClicks{}, dir, &stubLedger{})

	w := postJSON(t, router, "/api/directory/", map[string]any{"owner_user_id": "user-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	code, _ := body["code"].(string)
	assert.Len(t, code, 8)
	assert.True(t, domain.ValidCode(code))
}

func TestHandleCreateEntryConflict(t *testing.T) {
	dir := newStubDirectory()
	dir.entries["MYCODE99"] = &domain.DirectoryEntry{Code: "MYCODE99"}
	router := newTestRouter(&stubResolver{}, &stubClicks{}, dir, &stubLedger{})

	w := postJSON(t, router, "/api/directory/", map[string]any{
		"owner_user_id": "user-2",
		"code":          "MYCODE99",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleGetEntryNotFound(t *testing.T) {
	router := newTestRouter(&stubResolver{}, &stubClicks{}, newStubDirectory(), &stubLedger{})
	req := httptest.NewRequest(http.MethodGet, "/api/directory/NOSUCH99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleBlockEntry(t *testing.T) {
	dir := newStubDirectory()
	dir.entries["MYCODE99"] = &domain.DirectoryEntry{Code: "MYCODE99", Status: domain.StatusActive}
	router := newTestRouter(&stubResolver{}, &stubClicks{}, dir, &stubLedger{})

	req := httptest.NewRequest(http.MethodPost, "/api/directory/MYCODE99/block", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StatusBlocked, dir.statuses["MYCODE99"])
}

func TestHandleGetReferralForUser(t *testing.T) {
	ledger := &stubLedger{byUser: map[string]*domain.ReferralRecord{
		"user-1": {ID: "rec-1", ReferrerID: "referrer-1", ReferredUserID: "user-1", Code: "ABCDEF12"},
	}}
	router := newTestRouter(&stubResolver{}, &stubClicks{}, newStubDirectory(), ledger)

	req := httptest.NewRequest(http.MethodGet, "/api/referrals/user/user-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/referrals/user/nobody", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := generateCode(8)
		require.True(t, domain.ValidCode(code), "generated %q", code)
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "L")
	}
}
