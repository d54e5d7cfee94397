package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
)

type InsertTransactionInput struct {
	ID          uuid.UUID
	UserID      int64
	Amount      int
	Type        string
	RelatedID   *string
	Description string
}

// CreditRepository is the persistence layer of the ledger. The table is
// append-only: there are no update or delete methods on purpose.
type CreditRepository struct {
	db DBTX
}

func NewCreditRepository(db DBTX) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) Insert(ctx context.Context, input InsertTransactionInput) (*models.CreditTransaction, error) {
	query := `
		INSERT INTO credit_transactions (id, user_id, amount, type, related_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, amount, type, related_id, description, created_at
	`
	var txn models.CreditTransaction
	err := r.db.QueryRow(
		ctx,
		query,
		input.ID,
		input.UserID,
		input.Amount,
		input.Type,
		input.RelatedID,
		input.Description,
	).Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Amount,
		&txn.Type,
		&txn.RelatedID,
		&txn.Description,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// SumBalance derives the user's balance from the transaction log. This is the
// only authoritative balance in the system; any cached value must be
// rebuildable through this query.
func (r *CreditRepository) SumBalance(ctx context.Context, userID int64) (int, error) {
	var balance int
	err := r.db.QueryRow(
		ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1`,
		userID,
	).Scan(&balance)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *CreditRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, type, related_id, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]models.CreditTransaction, 0)
	for rows.Next() {
		var txn models.CreditTransaction
		if err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.Amount,
			&txn.Type,
			&txn.RelatedID,
			&txn.Description,
			&txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

func (r *CreditRepository) ListByRelated(ctx context.Context, relatedID string) ([]models.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, type, related_id, description, created_at
		FROM credit_transactions
		WHERE related_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, relatedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]models.CreditTransaction, 0)
	for rows.Next() {
		var txn models.CreditTransaction
		if err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.Amount,
			&txn.Type,
			&txn.RelatedID,
			&txn.Description,
			&txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}
