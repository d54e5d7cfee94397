package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
	"github.com/skilltrade-app/SkillTradeBack/internal/repository"
)

// Advisory lock classes keep the per-teacher calendar locks and the per-user
// ledger locks in disjoint key spaces of the single-bigint
// pg_advisory_xact_lock overload.
const (
	lockClassCalendar = 1
	lockClassLedger   = 2
)

// advisoryLockKey packs a lock class and an id into one bigint key. The class
// occupies the top two bits so calendar and ledger locks on the same id never
// collide, whatever query exec mode pgx runs in.
func advisoryLockKey(class, id int64) int64 {
	return int64(uint64(class)<<62 | uint64(id)&(1<<62-1))
}

// ConflictGuard serializes bookings on a teacher's calendar. Reserve must run
// inside the transaction that also inserts the session: the advisory lock is
// transaction-scoped, so the overlap scan and the insert commit as one atomic
// unit with respect to every other caller locking the same teacher.
type ConflictGuard struct{}

func NewConflictGuard() ConflictGuard {
	return ConflictGuard{}
}

// Reserve acquires the teacher's calendar lock for the duration of tx and
// verifies [start, end) does not intersect any non-terminal session. Returns
// ErrSchedulingConflict on overlap. The caller inserts the session in the
// same transaction; rolling back releases the interval implicitly.
func (ConflictGuard) Reserve(
	ctx context.Context,
	tx repository.DBTX,
	teacherID int64,
	start time.Time,
	end time.Time,
) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey(lockClassCalendar, teacherID)); err != nil {
		return fmt.Errorf("lock teacher calendar: %w", err)
	}

	overlaps, err := repository.NewSessionRepository(tx).HasOverlap(ctx, teacherID, start, end)
	if err != nil {
		return err
	}
	if overlaps {
		return ErrSchedulingConflict
	}
	return nil
}

// Release confirms the session has reached a terminal state. The durable
// release is the status flip itself: terminal sessions drop out of the
// overlap scan, freeing the interval. Release runs in the same transaction
// as the flip and guards against a transition path forgetting it.
func (ConflictGuard) Release(
	ctx context.Context,
	tx repository.DBTX,
	teacherID int64,
	sessionID uuid.UUID,
) error {
	var status string
	err := tx.QueryRow(ctx, "SELECT status FROM sessions WHERE id = $1", sessionID).Scan(&status)
	if err != nil {
		return fmt.Errorf("release slot for session %s: %w", sessionID, err)
	}
	if !models.SessionTerminal(status) {
		return fmt.Errorf("release slot for session %s: status %q still occupies teacher %d's calendar",
			sessionID, status, teacherID)
	}
	return nil
}
