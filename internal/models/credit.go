package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TransactionTypeEarned    = "earned"
	TransactionTypeSpent     = "spent"
	TransactionTypePurchased = "purchased"
	TransactionTypeRefunded  = "refunded"
)

// CreditTransaction is one row of the append-only credit ledger. Amount is
// signed: negative entries are debits. Rows are never updated or deleted;
// corrections are new offsetting entries. A user's balance is the sum of
// their amounts.
type CreditTransaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      int64     `json:"user_id"`
	Amount      int       `json:"amount"`
	Type        string    `json:"type"`
	RelatedID   *string   `json:"related_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
