package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/skilltrade-app/SkillTradeBack/internal/models"
)

func TestLedgerBalanceIsDerivedFromEntries(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	ledger := NewLedgerService(pool, nil, testLogger())

	userID := createTestUser(t, ctx, pool, "ledger")
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, userID) })

	if _, err := ledger.Credit(ctx, userID, 50, nil, models.TransactionTypePurchased, "initial purchase"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if _, err := ledger.Debit(ctx, userID, 20, nil, models.TransactionTypeSpent, "escrow"); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if _, err := ledger.Credit(ctx, userID, 4, nil, models.TransactionTypeEarned, "bonus"); err != nil {
		t.Fatalf("Credit bonus: %v", err)
	}

	assertBalance(t, ctx, ledger, userID, 34)

	// The balance must equal the sum of the history, with every entry kept.
	history, err := ledger.History(ctx, userID, 50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	var sum int
	for _, entry := range history {
		sum += entry.Amount
	}
	if sum != 34 {
		t.Fatalf("history sums to %d, want 34", sum)
	}

	recomputed, err := ledger.RecomputeBalance(ctx, userID)
	if err != nil {
		t.Fatalf("RecomputeBalance: %v", err)
	}
	if recomputed != 34 {
		t.Fatalf("recomputed balance %d, want 34", recomputed)
	}
}

func TestLedgerConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	ledger := NewLedgerService(pool, nil, testLogger())

	userID := createTestUser(t, ctx, pool, "ledger")
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, userID) })

	if _, err := ledger.Credit(ctx, userID, 50, nil, models.TransactionTypePurchased, "initial purchase"); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	const attempts = 4
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Debit(ctx, userID, 40, nil, models.TransactionTypeSpent, "racing debit")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientCredits):
			rejected++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if succeeded != 1 || rejected != attempts-1 {
		t.Fatalf("expected exactly one debit to land, got %d successes and %d rejections", succeeded, rejected)
	}

	assertBalance(t, ctx, ledger, userID, 10)
}

func TestLedgerTransferIsAtomic(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	ledger := NewLedgerService(pool, nil, testLogger())

	fromID := createTestUser(t, ctx, pool, "ledger-from")
	toID := createTestUser(t, ctx, pool, "ledger-to")
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, fromID, toID) })

	if _, err := ledger.Credit(ctx, fromID, 30, nil, models.TransactionTypePurchased, "initial purchase"); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	// An uncovered transfer must change neither side.
	err := ledger.Transfer(ctx, fromID, toID, 40, nil,
		models.TransactionTypeSpent, models.TransactionTypeEarned, "too large")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	assertBalance(t, ctx, ledger, fromID, 30)
	assertBalance(t, ctx, ledger, toID, 0)

	if err := ledger.Transfer(ctx, fromID, toID, 20, nil,
		models.TransactionTypeSpent, models.TransactionTypeEarned, "settlement"); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	assertBalance(t, ctx, ledger, fromID, 10)
	assertBalance(t, ctx, ledger, toID, 20)
}

func TestLedgerRejectsInvalidMovements(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	ledger := NewLedgerService(pool, nil, testLogger())

	userID := createTestUser(t, ctx, pool, "ledger")
	otherID := createTestUser(t, ctx, pool, "ledger")
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, userID, otherID) })

	if _, err := ledger.Credit(ctx, userID, 0, nil, models.TransactionTypePurchased, "zero"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero credit, got %v", err)
	}
	if _, err := ledger.Debit(ctx, userID, -5, nil, models.TransactionTypeSpent, "negative"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative debit, got %v", err)
	}
	if err := ledger.Transfer(ctx, userID, userID, 10, nil,
		models.TransactionTypeSpent, models.TransactionTypeEarned, "self"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self transfer, got %v", err)
	}

	// Debit against an empty ledger.
	if _, err := ledger.Debit(ctx, otherID, 1, nil, models.TransactionTypeSpent, "empty"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits on empty ledger, got %v", err)
	}
}
