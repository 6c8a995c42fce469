package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/internal/auth"
	"github.com/region23/sessionboard/internal/config"
	"github.com/region23/sessionboard/internal/scheduler"
	"github.com/region23/sessionboard/internal/service"
	"github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/internal/testutils"
)

type testServer struct {
	handler http.Handler
	svc     *service.Service
	mu      sync.Mutex
	updates []int64
}

func setupServer(t *testing.T, creds *auth.Credentials) *testServer {
	t.Helper()
	repo, _ := testutils.SetupTestRepository(t, time.UTC)
	clock := testutils.NewClock(time.Date(2024, 4, 29, 8, 0, 0, 0, time.UTC))
	engine := scheduler.NewEngine(testutils.TestContext(), repo, scheduler.EngineConfig{
		Location: time.UTC,
		Now:      clock.Now,
		Logger:   testutils.SetupTestLogger(),
	})
	svc := service.New(engine, service.Options{PastLimit: 3, Logger: testutils.SetupTestLogger()})

	ts := &testServer{svc: svc}
	cfg := &config.Config{
		Server:   config.ServerConfig{Port: "0"},
		Telegram: config.TelegramConfig{SecretToken: "s3cret"},
	}
	s := New(Options{
		Config:      cfg,
		Service:     svc,
		Store:       repo,
		Credentials: creds,
		OnUpdate: func(ctx context.Context, update *tgmodels.Update) {
			ts.mu.Lock()
			ts.updates = append(ts.updates, update.ID)
			ts.mu.Unlock()
		},
		Logger:  testutils.SetupTestLogger(),
		Version: "test",
	})
	ts.handler = s.Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	testutils.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), v), "decode response "+rec.Body.String())
}

func TestServer_Week(t *testing.T) {
	ts := setupServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/week", "", nil)
	testutils.AssertEqual(t, http.StatusOK, rec.Code, "status")
	testutils.AssertTrue(t, rec.Header().Get("X-Request-ID") != "", "request id assigned")

	var view service.WeekView
	decode(t, rec, &view)
	testutils.AssertEqual(t, "April 29 - May 5, 2024", view.Label, "label")
	testutils.AssertEqual(t, 3, len(view.Sessions), "sessions")
	testutils.AssertEqual(t, "session-2024-05-02-09-35", view.Sessions[0].ID.String(), "first session")

	rec = ts.do(t, http.MethodPost, "/api/week/next", "", nil)
	decode(t, rec, &view)
	testutils.AssertEqual(t, "May 6 - 12, 2024", view.Label, "next week")

	rec = ts.do(t, http.MethodPost, "/api/week/prev", "", nil)
	decode(t, rec, &view)
	testutils.AssertEqual(t, "April 29 - May 5, 2024", view.Label, "back to current week")

	rec = ts.do(t, http.MethodDelete, "/api/week", "", nil)
	testutils.AssertEqual(t, http.StatusMethodNotAllowed, rec.Code, "wrong method")
}

func TestServer_SignUpEditCancel(t *testing.T) {
	ts := setupServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/sessions/session-2024-05-02-09-35/slots",
		`{"start":"09:35","minutes":10,"attendee":"Ada","topic":"Intro","categories":["go"]}`, nil)
	testutils.AssertEqual(t, http.StatusCreated, rec.Code, "created "+rec.Body.String())

	var slot models.Slot
	decode(t, rec, &slot)
	testutils.AssertEqual(t, "slot-2024-05-02-09-35-09-45", slot.ID.String(), "slot id")

	var view service.WeekView
	decode(t, ts.do(t, http.MethodGet, "/api/week", "", nil), &view)
	testutils.AssertEqual(t, 25, view.Sessions[0].Available, "available minutes")

	rec = ts.do(t, http.MethodPut, "/api/slots/"+slot.ID.String(),
		`{"minutes":15,"attendee":"Ada","topic":"Intro, longer","requester":"ada"}`, nil)
	testutils.AssertEqual(t, http.StatusOK, rec.Code, "edited "+rec.Body.String())
	decode(t, rec, &slot)
	testutils.AssertEqual(t, "slot-2024-05-02-09-35-09-50", slot.ID.String(), "new slot id")

	var list service.SlotList
	decode(t, ts.do(t, http.MethodGet, "/api/slots", "", nil), &list)
	testutils.AssertEqual(t, 1, len(list.Upcoming), "upcoming")

	var mine []models.Slot
	decode(t, ts.do(t, http.MethodGet, "/api/slots?attendee=ADA", "", nil), &mine)
	testutils.AssertEqual(t, 1, len(mine), "slots of attendee")

	rec = ts.do(t, http.MethodDelete, "/api/slots/"+slot.ID.String()+"?attendee=Bob", "", nil)
	testutils.AssertEqual(t, http.StatusForbidden, rec.Code, "not owner")

	rec = ts.do(t, http.MethodDelete, "/api/slots/"+slot.ID.String()+"?attendee=Ada", "", nil)
	testutils.AssertEqual(t, http.StatusNoContent, rec.Code, "canceled")

	rec = ts.do(t, http.MethodDelete, "/api/slots/"+slot.ID.String(), "", nil)
	testutils.AssertEqual(t, http.StatusNotFound, rec.Code, "already canceled")
}

func TestServer_SignUpErrors(t *testing.T) {
	ts := setupServer(t, nil)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad json", "/api/sessions/session-2024-05-02-09-35/slots", `{"start":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown field", "/api/sessions/session-2024-05-02-09-35/slots", `{"nope":1}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad session id", "/api/sessions/bogus/slots", `{"minutes":10,"attendee":"Ada","topic":"x"}`, http.StatusBadRequest, "INVALID_SESSION_ID"},
		{"unknown session", "/api/sessions/session-2024-05-02-12-00/slots", `{"minutes":10,"attendee":"Ada","topic":"x"}`, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"no attendee", "/api/sessions/session-2024-05-02-09-35/slots", `{"minutes":10,"topic":"x"}`, http.StatusBadRequest, "INVALID_ATTENDEE"},
		{"too long", "/api/sessions/session-2024-05-02-09-35/slots", `{"minutes":40,"attendee":"Ada","topic":"x"}`, http.StatusBadRequest, "SLOT_OUTSIDE_SESSION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tt.path, tt.body, nil)
			testutils.AssertEqual(t, tt.status, rec.Code, "status "+rec.Body.String())

			var resp errorResponse
			decode(t, rec, &resp)
			testutils.AssertEqual(t, tt.code, resp.Code, "error code")
			testutils.AssertTrue(t, resp.Message != "", "error message")
		})
	}
}

func TestServer_AdminRequiresAuth(t *testing.T) {
	hash, err := auth.HashPassword("secret")
	testutils.AssertNoError(t, err, "hash")
	ts := setupServer(t, &auth.Credentials{User: "admin", Hash: hash})

	rec := ts.do(t, http.MethodPost, "/api/admin/canceled/2024-05-02", "", nil)
	testutils.AssertEqual(t, http.StatusUnauthorized, rec.Code, "no credentials")
	testutils.AssertTrue(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Basic"), "challenge")

	req := httptest.NewRequest(http.MethodPost, "/api/admin/canceled/2024-05-02", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	testutils.AssertEqual(t, http.StatusUnauthorized, rec.Code, "wrong password")

	req = httptest.NewRequest(http.MethodPost, "/api/admin/canceled/2024-05-02", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	testutils.AssertEqual(t, http.StatusOK, rec.Code, "authorized")

	var resp cancelSessionResponse
	decode(t, rec, &resp)
	testutils.AssertTrue(t, resp.Canceled && resp.Changed, "date canceled")
}

func TestServer_CancelSessionFlow(t *testing.T) {
	ts := setupServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/admin/canceled/2024-05-02", "", nil)
	testutils.AssertEqual(t, http.StatusOK, rec.Code, "cancel")

	var view service.WeekView
	decode(t, ts.do(t, http.MethodGet, "/api/week", "", nil), &view)
	testutils.AssertTrue(t, view.Sessions[0].Canceled, "session shown as canceled")

	rec = ts.do(t, http.MethodPost, "/api/sessions/session-2024-05-02-09-35/slots",
		`{"minutes":10,"attendee":"Ada","topic":"Intro"}`, nil)
	testutils.AssertEqual(t, http.StatusConflict, rec.Code, "sign-up on canceled date")

	var dates []scheduler.SessionDate
	decode(t, ts.do(t, http.MethodGet, "/api/admin/sessions", "", nil), &dates)
	testutils.AssertTrue(t, len(dates) > 0 && dates[0].Canceled, "admin list shows canceled date")

	rec = ts.do(t, http.MethodDelete, "/api/admin/canceled/2024-05-02", "", nil)
	var resp cancelSessionResponse
	decode(t, rec, &resp)
	testutils.AssertTrue(t, resp.Changed && !resp.Canceled, "date restored")

	rec = ts.do(t, http.MethodPost, "/api/admin/canceled/not-a-date", "", nil)
	testutils.AssertEqual(t, http.StatusBadRequest, rec.Code, "invalid date")
}

func TestServer_Calendar(t *testing.T) {
	ts := setupServer(t, nil)
	ts.do(t, http.MethodPost, "/api/sessions/session-2024-05-02-09-35/slots",
		`{"minutes":10,"attendee":"Ada","topic":"Intro"}`, nil)

	rec := ts.do(t, http.MethodGet, "/calendar.ics", "", nil)
	testutils.AssertEqual(t, http.StatusOK, rec.Code, "status")
	testutils.AssertTrue(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"), "content type")
	testutils.AssertTrue(t, strings.Contains(rec.Body.String(), "Ada: Intro"), "booked slot in feed")
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts := setupServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	testutils.AssertEqual(t, http.StatusOK, rec.Code, "health status")
	var health HealthResponse
	decode(t, rec, &health)
	testutils.AssertEqual(t, "healthy", health.Checks["database"], "database check")
	testutils.AssertEqual(t, "test", health.Version, "version")

	rec = ts.do(t, http.MethodGet, "/metrics", "", nil)
	testutils.AssertEqual(t, http.StatusOK, rec.Code, "metrics status")
	testutils.AssertTrue(t, strings.Contains(rec.Body.String(), "sessionboard_http_requests_total"), "http metrics exported")
}

func TestServer_Webhook(t *testing.T) {
	ts := setupServer(t, nil)
	update := `{"update_id":42,"message":{"message_id":1,"date":0,"chat":{"id":7,"type":"private"},"from":{"id":7,"is_bot":false,"first_name":"Ada"},"text":"/week"}}`

	rec := ts.do(t, http.MethodPost, "/webhook", update, nil)
	testutils.AssertEqual(t, http.StatusUnauthorized, rec.Code, "missing secret")

	rec = ts.do(t, http.MethodPost, "/webhook", update, http.Header{"X-Telegram-Bot-Api-Secret-Token": {"s3cret"}})
	testutils.AssertEqual(t, http.StatusOK, rec.Code, "accepted")

	fromBot := `{"update_id":43,"message":{"message_id":2,"date":0,"chat":{"id":8,"type":"private"},"from":{"id":8,"is_bot":true,"first_name":"Bot"},"text":"hi"}}`
	rec = ts.do(t, http.MethodPost, "/webhook", fromBot, http.Header{"X-Telegram-Bot-Api-Secret-Token": {"s3cret"}})
	testutils.AssertEqual(t, http.StatusOK, rec.Code, "bot updates are acknowledged")

	rec = ts.do(t, http.MethodPost, "/webhook", "{", http.Header{"X-Telegram-Bot-Api-Secret-Token": {"s3cret"}})
	testutils.AssertEqual(t, http.StatusBadRequest, rec.Code, "malformed update")

	ts.mu.Lock()
	defer ts.mu.Unlock()
	testutils.AssertEqual(t, []int64{42}, ts.updates, "only the human update is dispatched")
}

func TestStatusFor(t *testing.T) {
	testutils.AssertEqual(t, http.StatusConflict, statusFor("NOT_ENOUGH_CAPACITY"), "capacity")
	testutils.AssertEqual(t, http.StatusNotFound, statusFor("SLOT_NOT_FOUND"), "slot")
	testutils.AssertEqual(t, http.StatusForbidden, statusFor("NOT_SLOT_OWNER"), "owner")
	testutils.AssertEqual(t, http.StatusBadRequest, statusFor("INVALID_TIME"), "time")
	testutils.AssertEqual(t, http.StatusInternalServerError, statusFor("STORAGE"), "storage")
}
