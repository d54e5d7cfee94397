package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
	"github.com/skilltrade-app/SkillTradeBack/internal/services"
)

type creditLedgerService interface {
	Balance(ctx context.Context, userID int64) (int, error)
	RecomputeBalance(ctx context.Context, userID int64) (int, error)
	History(ctx context.Context, userID int64, limit int) ([]models.CreditTransaction, error)
	Credit(ctx context.Context, userID int64, amount int, relatedID *string, txType string, description string) (*models.CreditTransaction, error)
}

type CreditHandler struct {
	ledger creditLedgerService
}

func NewCreditHandler(ledger *services.LedgerService) *CreditHandler {
	return &CreditHandler{ledger: ledger}
}

type purchaseCreditsRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

func (h *CreditHandler) GetBalance(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	balance, err := h.ledger.Balance(c.Context(), userID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"balance": balance})
}

func (h *CreditHandler) GetHistory(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	limit := c.QueryInt("limit", 50)
	transactions, err := h.ledger.History(c.Context(), userID, limit)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"transactions": transactions})
}

// PurchaseCredits mints purchased credits for the caller. Real-money payment
// capture happens upstream of this API; this endpoint only records the
// resulting ledger entry.
func (h *CreditHandler) PurchaseCredits(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req purchaseCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be greater than 0"})
	}

	txn, err := h.ledger.Credit(
		c.Context(),
		userID,
		req.Amount,
		nil,
		models.TransactionTypePurchased,
		"Credit purchase",
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction": txn})
}

// RecomputeBalance rebuilds the cached balance from the transaction log.
func (h *CreditHandler) RecomputeBalance(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	balance, err := h.ledger.RecomputeBalance(c.Context(), userID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"balance": balance})
}
