package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
	"github.com/skilltrade-app/SkillTradeBack/internal/repository"
)

type matchStore interface {
	Create(ctx context.Context, teacherID, studentID, skillID int64) (*models.Match, error)
	GetByID(ctx context.Context, matchID int64) (*models.Match, error)
	UpdateStatusIfCurrent(ctx context.Context, matchID int64, currentStatus, nextStatus string) (*models.Match, error)
	ListByParticipant(ctx context.Context, userID int64) ([]models.Match, error)
}

// MatchHandler is thin glue over the match store. The scheduling core treats
// matches as an external collaborator; this handler exists so the pairing
// lifecycle can be driven through the same API.
type MatchHandler struct {
	matchRepo matchStore
}

func NewMatchHandler(matchRepo *repository.MatchRepository) *MatchHandler {
	return &MatchHandler{matchRepo: matchRepo}
}

type createMatchRequest struct {
	TeacherID int64 `json:"teacher_id" validate:"required,gt=0"`
	SkillID   int64 `json:"skill_id" validate:"required,gt=0"`
}

func (h *MatchHandler) CreateMatch(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.TeacherID == userID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot match with yourself"})
	}

	match, err := h.matchRepo.Create(c.Context(), req.TeacherID, userID, req.SkillID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"match": match})
}

func (h *MatchHandler) AcceptMatch(c *fiber.Ctx) error {
	return h.resolveMatch(c, models.MatchStatusAccepted)
}

func (h *MatchHandler) DeclineMatch(c *fiber.Ctx) error {
	return h.resolveMatch(c, models.MatchStatusDeclined)
}

// resolveMatch settles a pending match one way or the other. Only the teacher
// may answer, and only while the match is still pending.
func (h *MatchHandler) resolveMatch(c *fiber.Ctx, nextStatus string) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	matchID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || matchID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid match id"})
	}

	match, err := h.matchRepo.GetByID(c.Context(), matchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Match not found"})
		}
		return mapServiceError(c, err)
	}
	if match.TeacherID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	resolved, err := h.matchRepo.UpdateStatusIfCurrent(
		c.Context(), matchID, models.MatchStatusPending, nextStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Match is not pending"})
		}
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"match": resolved})
}

func (h *MatchHandler) ListMatches(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	matches, err := h.matchRepo.ListByParticipant(c.Context(), userID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"matches": matches})
}
