package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
	"github.com/skilltrade-app/SkillTradeBack/internal/services"
)

type stubSessionService struct {
	scheduleResult    *models.Session
	scheduleErr       error
	startResult       *models.Session
	startErr          error
	completeResult    *models.Session
	completeErr       error
	cancelResult      *models.Session
	cancelErr         error
	getResult         *models.Session
	getErr            error
	listResult        []models.Session
	listErr           error
	lastCallerID      int64
	lastScheduleInput services.ScheduleSessionInput
	lastSessionID     uuid.UUID
	lastNotes         *string
	lastReason        string
	lastStatus        string
	lastTimeframe     string
}

func (s *stubSessionService) Schedule(_ context.Context, callerID int64, input services.ScheduleSessionInput) (*models.Session, error) {
	s.lastCallerID = callerID
	s.lastScheduleInput = input
	return s.scheduleResult, s.scheduleErr
}

func (s *stubSessionService) Start(_ context.Context, callerID int64, sessionID uuid.UUID) (*models.Session, error) {
	s.lastCallerID = callerID
	s.lastSessionID = sessionID
	return s.startResult, s.startErr
}

func (s *stubSessionService) Complete(_ context.Context, callerID int64, sessionID uuid.UUID, notes *string) (*models.Session, error) {
	s.lastCallerID = callerID
	s.lastSessionID = sessionID
	s.lastNotes = notes
	return s.completeResult, s.completeErr
}

func (s *stubSessionService) Cancel(_ context.Context, callerID int64, sessionID uuid.UUID, reason string) (*models.Session, error) {
	s.lastCallerID = callerID
	s.lastSessionID = sessionID
	s.lastReason = reason
	return s.cancelResult, s.cancelErr
}

func (s *stubSessionService) Get(_ context.Context, callerID int64, sessionID uuid.UUID) (*models.Session, error) {
	s.lastCallerID = callerID
	s.lastSessionID = sessionID
	return s.getResult, s.getErr
}

func (s *stubSessionService) ListUpcoming(_ context.Context, callerID int64, status string) ([]models.Session, error) {
	s.lastCallerID = callerID
	s.lastStatus = status
	s.lastTimeframe = "upcoming"
	return s.listResult, s.listErr
}

func (s *stubSessionService) ListHistory(_ context.Context, callerID int64, status string) ([]models.Session, error) {
	s.lastCallerID = callerID
	s.lastStatus = status
	s.lastTimeframe = "history"
	return s.listResult, s.listErr
}

func newSessionTestApp(service *stubSessionService) *fiber.App {
	handler := &SessionHandler{service: service}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "42")
		return c.Next()
	})
	app.Post("/api/v1/sessions", handler.ScheduleSession)
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Post("/api/v1/sessions/:id/start", handler.StartSession)
	app.Post("/api/v1/sessions/:id/complete", handler.CompleteSession)
	app.Post("/api/v1/sessions/:id/cancel", handler.CancelSession)
	return app
}

func TestScheduleSessionReturnsCreatedSession(t *testing.T) {
	sessionID := uuid.New()
	service := &stubSessionService{
		scheduleResult: &models.Session{
			ID:        sessionID,
			MatchID:   7,
			TeacherID: 9,
			StudentID: 42,
			Status:    models.SessionStatusScheduled,
		},
	}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"match_id": 7,
		"scheduled_start": "2030-03-15T09:00:00Z",
		"scheduled_end": "2030-03-15T10:00:00Z",
		"credits_amount": 20
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastCallerID != 42 {
		t.Fatalf("expected caller id 42, got %d", service.lastCallerID)
	}
	if service.lastScheduleInput.MatchID != 7 || service.lastScheduleInput.CreditsAmount != 20 {
		t.Fatalf("unexpected schedule input: %+v", service.lastScheduleInput)
	}
	wantStart := time.Date(2030, 3, 15, 9, 0, 0, 0, time.UTC)
	if !service.lastScheduleInput.Start.Equal(wantStart) {
		t.Fatalf("expected start %v, got %v", wantStart, service.lastScheduleInput.Start)
	}

	var body struct {
		Session models.Session `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Session.ID != sessionID {
		t.Fatalf("expected session %s, got %s", sessionID, body.Session.ID)
	}
}

func TestScheduleSessionRejectsBadTimestamp(t *testing.T) {
	service := &stubSessionService{}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"match_id": 7,
		"scheduled_start": "tomorrow at nine",
		"scheduled_end": "2030-03-15T10:00:00Z",
		"credits_amount": 20
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestScheduleSessionMapsBusinessErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"conflict", services.ErrSchedulingConflict, http.StatusConflict},
		{"insufficient credits", services.ErrInsufficientCredits, http.StatusPaymentRequired},
		{"match not accepted", services.ErrMatchNotAccepted, http.StatusUnprocessableEntity},
		{"match not found", services.ErrMatchNotFound, http.StatusNotFound},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"invalid input", services.ErrInvalidInput, http.StatusBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubSessionService{scheduleErr: tc.err}
			app := newSessionTestApp(service)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
				"match_id": 7,
				"scheduled_start": "2030-03-15T09:00:00Z",
				"scheduled_end": "2030-03-15T10:00:00Z",
				"credits_amount": 20
			}`))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestListSessionsDefaultsToUpcoming(t *testing.T) {
	service := &stubSessionService{
		listResult: []models.Session{{ID: uuid.New(), Status: models.SessionStatusScheduled}},
	}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=scheduled", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastTimeframe != "upcoming" {
		t.Fatalf("expected upcoming timeframe, got %q", service.lastTimeframe)
	}
	if service.lastStatus != "scheduled" {
		t.Fatalf("expected scheduled status filter, got %q", service.lastStatus)
	}
}

func TestListSessionsRejectsUnknownTimeframe(t *testing.T) {
	service := &stubSessionService{}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?timeframe=yesterday", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetSessionRejectsMalformedID(t *testing.T) {
	service := &stubSessionService{}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetSessionReturnsNotFound(t *testing.T) {
	service := &stubSessionService{getErr: services.ErrSessionNotFound}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStartSessionMapsInvalidStartTime(t *testing.T) {
	service := &stubSessionService{startErr: services.ErrInvalidStartTime}
	app := newSessionTestApp(service)

	sessionID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/start", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if service.lastSessionID != sessionID {
		t.Fatalf("expected session id forwarded, got %s", service.lastSessionID)
	}
}

func TestCompleteSessionForwardsNotes(t *testing.T) {
	sessionID := uuid.New()
	service := &stubSessionService{
		completeResult: &models.Session{ID: sessionID, Status: models.SessionStatusCompleted},
	}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/complete",
		strings.NewReader(`{"notes":"great progress"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastNotes == nil || *service.lastNotes != "great progress" {
		t.Fatalf("expected notes forwarded, got %v", service.lastNotes)
	}
}

func TestCompleteSessionAcceptsEmptyBody(t *testing.T) {
	sessionID := uuid.New()
	service := &stubSessionService{
		completeResult: &models.Session{ID: sessionID, Status: models.SessionStatusCompleted},
	}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/complete", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastNotes != nil {
		t.Fatalf("expected nil notes, got %v", service.lastNotes)
	}
}

func TestCancelSessionRequiresReason(t *testing.T) {
	service := &stubSessionService{}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/cancel",
		strings.NewReader(`{"reason":"   "}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCancelSessionMapsCannotCancel(t *testing.T) {
	service := &stubSessionService{cancelErr: services.ErrCannotCancelSession}
	app := newSessionTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/cancel",
		strings.NewReader(`{"reason":"schedule clash"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if service.lastReason != "schedule clash" {
		t.Fatalf("expected trimmed reason forwarded, got %q", service.lastReason)
	}
}
