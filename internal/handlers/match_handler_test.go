package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
)

type stubMatchStore struct {
	createResult *models.Match
	createErr    error
	getResult    *models.Match
	getErr       error
	updateResult *models.Match
	updateErr    error
	listResult   []models.Match
	listErr      error
	lastMatchID  int64
	lastCurrent  string
	lastNext     string
}

func (s *stubMatchStore) Create(_ context.Context, teacherID, studentID, skillID int64) (*models.Match, error) {
	return s.createResult, s.createErr
}

func (s *stubMatchStore) GetByID(_ context.Context, matchID int64) (*models.Match, error) {
	s.lastMatchID = matchID
	return s.getResult, s.getErr
}

func (s *stubMatchStore) UpdateStatusIfCurrent(_ context.Context, matchID int64, currentStatus, nextStatus string) (*models.Match, error) {
	s.lastMatchID = matchID
	s.lastCurrent = currentStatus
	s.lastNext = nextStatus
	return s.updateResult, s.updateErr
}

func (s *stubMatchStore) ListByParticipant(_ context.Context, userID int64) ([]models.Match, error) {
	return s.listResult, s.listErr
}

func newMatchTestApp(store *stubMatchStore) *fiber.App {
	handler := &MatchHandler{matchRepo: store}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "42")
		return c.Next()
	})
	app.Post("/api/v1/matches", handler.CreateMatch)
	app.Get("/api/v1/matches", handler.ListMatches)
	app.Post("/api/v1/matches/:id/accept", handler.AcceptMatch)
	app.Post("/api/v1/matches/:id/decline", handler.DeclineMatch)
	return app
}

func TestCreateMatchRejectsSelfMatch(t *testing.T) {
	store := &stubMatchStore{}
	app := newMatchTestApp(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches",
		strings.NewReader(`{"teacher_id": 42, "skill_id": 1}`))
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

func TestAcceptMatchMovesPendingToAccepted(t *testing.T) {
	store := &stubMatchStore{
		getResult:    &models.Match{ID: 7, TeacherID: 42, StudentID: 9, Status: models.MatchStatusPending},
		updateResult: &models.Match{ID: 7, TeacherID: 42, StudentID: 9, Status: models.MatchStatusAccepted},
	}
	app := newMatchTestApp(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/7/accept", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if store.lastCurrent != models.MatchStatusPending || store.lastNext != models.MatchStatusAccepted {
		t.Fatalf("expected pending->accepted transition, got %s->%s", store.lastCurrent, store.lastNext)
	}
}

func TestDeclineMatchMovesPendingToDeclined(t *testing.T) {
	store := &stubMatchStore{
		getResult:    &models.Match{ID: 7, TeacherID: 42, StudentID: 9, Status: models.MatchStatusPending},
		updateResult: &models.Match{ID: 7, TeacherID: 42, StudentID: 9, Status: models.MatchStatusDeclined},
	}
	app := newMatchTestApp(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/7/decline", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if store.lastCurrent != models.MatchStatusPending || store.lastNext != models.MatchStatusDeclined {
		t.Fatalf("expected pending->declined transition, got %s->%s", store.lastCurrent, store.lastNext)
	}

	var body struct {
		Match models.Match `json:"match"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Match.Status != models.MatchStatusDeclined {
		t.Fatalf("expected declined match in response, got %q", body.Match.Status)
	}
}

func TestDeclineMatchForbidsNonTeacher(t *testing.T) {
	store := &stubMatchStore{
		getResult: &models.Match{ID: 7, TeacherID: 9, StudentID: 42, Status: models.MatchStatusPending},
	}
	app := newMatchTestApp(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/7/decline", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestDeclineMatchRejectsSettledMatch(t *testing.T) {
	store := &stubMatchStore{
		getResult: &models.Match{ID: 7, TeacherID: 42, StudentID: 9, Status: models.MatchStatusAccepted},
		updateErr: pgx.ErrNoRows,
	}
	app := newMatchTestApp(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/matches/7/decline", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}
