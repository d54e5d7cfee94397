package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/skilltrade-app/SkillTradeBack/internal/cache"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
	"github.com/skilltrade-app/SkillTradeBack/internal/repository"
)

const balanceCacheTTL = 5 * time.Minute

func balanceCacheKey(userID int64) string {
	return fmt.Sprintf("credits:balance:%d", userID)
}

// LedgerService owns every credit movement. The transaction log is the source
// of truth; balances are derived by summation inside the same transaction
// that appends, so two concurrent debits can never both pass a stale balance
// check. The redis cache is a read accelerator only and is dropped on every
// write.
type LedgerService struct {
	db     *pgxpool.Pool
	cache  cache.Cache
	logger *logrus.Logger
}

func NewLedgerService(db *pgxpool.Pool, balanceCache cache.Cache, logger *logrus.Logger) *LedgerService {
	return &LedgerService{
		db:     db,
		cache:  balanceCache,
		logger: logger,
	}
}

// DebitTx appends a negative entry inside the caller's transaction, failing
// with ErrInsufficientCredits when the derived balance cannot cover it. The
// per-user ledger lock serializes concurrent debits against the same balance.
func (s *LedgerService) DebitTx(
	ctx context.Context,
	tx repository.DBTX,
	userID int64,
	amount int,
	relatedID *string,
	txType string,
	description string,
) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidInput
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey(lockClassLedger, userID)); err != nil {
		return nil, fmt.Errorf("lock ledger for user %d: %w", userID, err)
	}

	creditRepo := repository.NewCreditRepository(tx)
	balance, err := creditRepo.SumBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientCredits
	}

	return creditRepo.Insert(ctx, repository.InsertTransactionInput{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      -amount,
		Type:        txType,
		RelatedID:   relatedID,
		Description: description,
	})
}

// CreditTx appends a positive entry inside the caller's transaction.
// Crediting never fails on business grounds.
func (s *LedgerService) CreditTx(
	ctx context.Context,
	tx repository.DBTX,
	userID int64,
	amount int,
	relatedID *string,
	txType string,
	description string,
) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidInput
	}

	return repository.NewCreditRepository(tx).Insert(ctx, repository.InsertTransactionInput{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		RelatedID:   relatedID,
		Description: description,
	})
}

func (s *LedgerService) Debit(
	ctx context.Context,
	userID int64,
	amount int,
	relatedID *string,
	txType string,
	description string,
) (*models.CreditTransaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txn, err := s.DebitTx(ctx, tx, userID, amount, relatedID, txType, description)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, userID)
	return txn, nil
}

func (s *LedgerService) Credit(
	ctx context.Context,
	userID int64,
	amount int,
	relatedID *string,
	txType string,
	description string,
) (*models.CreditTransaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txn, err := s.CreditTx(ctx, tx, userID, amount, relatedID, txType, description)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.invalidateBalance(ctx, userID)
	return txn, nil
}

// Transfer moves credits between users as one atomic unit: either both
// entries land or neither does. Ledger locks are taken in ascending user-id
// order so two opposing transfers cannot deadlock.
func (s *LedgerService) Transfer(
	ctx context.Context,
	fromUserID int64,
	toUserID int64,
	amount int,
	relatedID *string,
	debitType string,
	creditType string,
	description string,
) error {
	if amount <= 0 || fromUserID == toUserID {
		return ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	first, second := fromUserID, toUserID
	if second < first {
		first, second = second, first
	}
	for _, id := range []int64{first, second} {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey(lockClassLedger, id)); err != nil {
			return fmt.Errorf("lock ledger for user %d: %w", id, err)
		}
	}

	creditRepo := repository.NewCreditRepository(tx)
	balance, err := creditRepo.SumBalance(ctx, fromUserID)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientCredits
	}

	if _, err := creditRepo.Insert(ctx, repository.InsertTransactionInput{
		ID:          uuid.New(),
		UserID:      fromUserID,
		Amount:      -amount,
		Type:        debitType,
		RelatedID:   relatedID,
		Description: description,
	}); err != nil {
		return err
	}
	if _, err := creditRepo.Insert(ctx, repository.InsertTransactionInput{
		ID:          uuid.New(),
		UserID:      toUserID,
		Amount:      amount,
		Type:        creditType,
		RelatedID:   relatedID,
		Description: description,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.invalidateBalance(ctx, fromUserID)
	s.invalidateBalance(ctx, toUserID)
	return nil
}

// Balance returns the user's derived balance, served from the cache when
// warm. A cache failure falls through to the ledger; the cache is never
// load-bearing.
func (s *LedgerService) Balance(ctx context.Context, userID int64) (int, error) {
	if s.cache != nil {
		var cached int
		hit, err := s.cache.GetJSON(ctx, balanceCacheKey(userID), &cached)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("balance cache read failed")
		} else if hit {
			return cached, nil
		}
	}
	return s.RecomputeBalance(ctx, userID)
}

// RecomputeBalance rebuilds the balance from the transaction log and
// refreshes the cache. Exposed for reconciliation and for callers that
// suspect cache drift.
func (s *LedgerService) RecomputeBalance(ctx context.Context, userID int64) (int, error) {
	balance, err := repository.NewCreditRepository(s.db).SumBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, balanceCacheKey(userID), balance, balanceCacheTTL); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("balance cache write failed")
		}
	}
	return balance, nil
}

func (s *LedgerService) History(ctx context.Context, userID int64, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return repository.NewCreditRepository(s.db).ListByUser(ctx, userID, limit)
}

// InvalidateBalance drops the cached balance after a ledger write performed
// outside this service's own pool-level methods (e.g. the session booking
// transaction).
func (s *LedgerService) InvalidateBalance(ctx context.Context, userIDs ...int64) {
	for _, id := range userIDs {
		s.invalidateBalance(ctx, id)
	}
}

func (s *LedgerService) invalidateBalance(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, balanceCacheKey(userID)); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("balance cache invalidation failed")
	}
}
