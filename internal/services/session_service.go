package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
	"github.com/skilltrade-app/SkillTradeBack/internal/repository"
)

var (
	ErrForbidden            = errors.New("forbidden")
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchNotAccepted     = errors.New("match not accepted")
	ErrSchedulingConflict   = errors.New("scheduling conflict")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrInvalidSessionStatus = errors.New("invalid session status")
	ErrInvalidStartTime     = errors.New("invalid start time")
	ErrCannotCancelSession  = errors.New("cannot cancel session")
	ErrInvalidInput         = errors.New("invalid input")
	ErrSessionNotFound      = errors.New("session not found")
)

const (
	maxNotesLength  = 2000
	maxReasonLength = 500
)

// SessionPolicy holds the tunable business constants of the scheduling core.
// Defaults match the shipped product values; confirm with stakeholders before
// changing them, the refund cutoff in particular is user-visible.
type SessionPolicy struct {
	ParticipationRate float64
	StartGrace        time.Duration
	Refund            RefundPolicy
}

func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		ParticipationRate: 0.20,
		StartGrace:        10 * time.Minute,
		Refund:            NewRefundPolicy(DefaultRefundCutoff),
	}
}

type matchReader interface {
	GetByID(ctx context.Context, matchID int64) (*models.Match, error)
}

type sessionCounterStore interface {
	IncrementSessionCounters(ctx context.Context, teacherID, studentID int64) error
}

// SessionService owns the session lifecycle: scheduled -> in_progress ->
// completed, with scheduled -> cancelled as the alternate terminal path. It
// composes the conflict guard, the ledger and the refund policy, and invokes
// the external collaborators (match store, room provisioning, notifications,
// profile counters) around those transitions.
type SessionService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	matchRepo   matchReader
	counters    sessionCounterStore
	ledger      *LedgerService
	guard       ConflictGuard
	rooms       RoomProvider
	notifier    Notifier
	policy      SessionPolicy
	logger      *logrus.Logger
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	matchRepo matchReader,
	counters sessionCounterStore,
	ledger *LedgerService,
	rooms RoomProvider,
	notifier Notifier,
	policy SessionPolicy,
	logger *logrus.Logger,
) *SessionService {
	return &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		matchRepo:   matchRepo,
		counters:    counters,
		ledger:      ledger,
		guard:       NewConflictGuard(),
		rooms:       rooms,
		notifier:    notifier,
		policy:      policy,
		logger:      logger,
	}
}

type ScheduleSessionInput struct {
	MatchID       int64
	Start         time.Time
	End           time.Time
	CreditsAmount int
}

// Schedule reserves the teacher's slot, escrows the student's credits and
// persists the session, all in one transaction: if any step fails, nothing
// sticks. Notifications go out only after the commit.
func (s *SessionService) Schedule(
	ctx context.Context,
	callerID int64,
	input ScheduleSessionInput,
) (*models.Session, error) {
	now := time.Now().UTC()
	if input.CreditsAmount <= 0 {
		return nil, ErrInvalidInput
	}
	if err := validateScheduleWindow(input.Start, input.End, now); err != nil {
		return nil, err
	}

	match, err := s.matchRepo.GetByID(ctx, input.MatchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if callerID != match.TeacherID && callerID != match.StudentID {
		return nil, ErrForbidden
	}
	if match.Status != models.MatchStatusAccepted {
		return nil, ErrMatchNotAccepted
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.guard.Reserve(ctx, tx, match.TeacherID, input.Start.UTC(), input.End.UTC()); err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	session, err := repository.NewSessionRepository(tx).Create(ctx, repository.CreateSessionInput{
		ID:             sessionID,
		MatchID:        match.ID,
		TeacherID:      match.TeacherID,
		StudentID:      match.StudentID,
		SkillID:        match.SkillID,
		ScheduledStart: input.Start.UTC(),
		ScheduledEnd:   input.End.UTC(),
		CreditsAmount:  input.CreditsAmount,
	})
	if err != nil {
		return nil, err
	}

	relatedID := sessionID.String()
	if _, err := s.ledger.DebitTx(
		ctx,
		tx,
		match.StudentID,
		input.CreditsAmount,
		&relatedID,
		models.TransactionTypeSpent,
		fmt.Sprintf("Escrow for session %s", sessionID),
	); err != nil {
		// Rollback releases the reservation along with the session row.
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.ledger.InvalidateBalance(ctx, match.StudentID)
	s.notifyParticipants(ctx, session, EventSessionScheduled)
	return session, nil
}

// Start moves a scheduled session into in_progress once a room has been
// provisioned. Room failure aborts the transition; the escrow is untouched.
func (s *SessionService) Start(ctx context.Context, callerID int64, sessionID uuid.UUID) (*models.Session, error) {
	session, err := s.getOwned(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusScheduled {
		return nil, ErrInvalidSessionStatus
	}

	now := time.Now().UTC()
	if !withinStartWindow(session.ScheduledStart, session.ScheduledEnd, now, s.policy.StartGrace) {
		return nil, ErrInvalidStartTime
	}

	room, err := s.rooms.CreateRoom(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("provision room: %w", err)
	}

	updated, err := s.sessionRepo.MarkInProgress(ctx, sessionID, now, room.RoomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSessionStatus
		}
		return nil, err
	}

	s.notifyParticipants(ctx, updated, EventSessionStarted)
	return updated, nil
}

// Complete settles the session: the teacher earns the escrowed amount and the
// student receives a freshly minted participation bonus. Settlement and the
// status flip commit together.
func (s *SessionService) Complete(
	ctx context.Context,
	callerID int64,
	sessionID uuid.UUID,
	notes *string,
) (*models.Session, error) {
	session, err := s.getOwned(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusInProgress {
		return nil, ErrInvalidSessionStatus
	}
	if notes != nil && !withinRuneLimit(*notes, maxNotesLength) {
		return nil, ErrInvalidInput
	}

	now := time.Now().UTC()
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	updated, err := repository.NewSessionRepository(tx).MarkCompleted(ctx, sessionID, now, notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSessionStatus
		}
		return nil, err
	}

	relatedID := sessionID.String()
	if _, err := s.ledger.CreditTx(
		ctx,
		tx,
		updated.TeacherID,
		updated.CreditsAmount,
		&relatedID,
		models.TransactionTypeEarned,
		fmt.Sprintf("Payout for session %s", sessionID),
	); err != nil {
		return nil, err
	}

	if bonus := participationBonus(updated.CreditsAmount, s.policy.ParticipationRate); bonus > 0 {
		if _, err := s.ledger.CreditTx(
			ctx,
			tx,
			updated.StudentID,
			bonus,
			&relatedID,
			models.TransactionTypeEarned,
			fmt.Sprintf("Participation bonus for session %s", sessionID),
		); err != nil {
			return nil, err
		}
	}

	if err := s.guard.Release(ctx, tx, updated.TeacherID, sessionID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.ledger.InvalidateBalance(ctx, updated.TeacherID, updated.StudentID)

	if err := s.counters.IncrementSessionCounters(ctx, updated.TeacherID, updated.StudentID); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("session counter update failed")
	}

	s.notifyParticipants(ctx, updated, EventSessionCompleted)
	return updated, nil
}

// Cancel ends a scheduled session before it starts. The refund, if the
// policy grants one, commits atomically with the status flip.
func (s *SessionService) Cancel(
	ctx context.Context,
	callerID int64,
	sessionID uuid.UUID,
	reason string,
) (*models.Session, error) {
	session, err := s.getOwned(ctx, callerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusScheduled {
		return nil, ErrCannotCancelSession
	}
	if reason == "" || !withinRuneLimit(reason, maxReasonLength) {
		return nil, ErrInvalidInput
	}

	now := time.Now().UTC()
	if !session.ScheduledStart.After(now) {
		return nil, ErrCannotCancelSession
	}

	refund := s.policy.Refund.RefundAmount(session.ScheduledStart, now, session.CreditsAmount)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	updated, err := repository.NewSessionRepository(tx).MarkCancelled(ctx, sessionID, reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCannotCancelSession
		}
		return nil, err
	}

	if refund > 0 {
		relatedID := sessionID.String()
		if _, err := s.ledger.CreditTx(
			ctx,
			tx,
			updated.StudentID,
			refund,
			&relatedID,
			models.TransactionTypeRefunded,
			fmt.Sprintf("Refund for cancelled session %s", sessionID),
		); err != nil {
			return nil, err
		}
	}

	if err := s.guard.Release(ctx, tx, updated.TeacherID, sessionID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.ledger.InvalidateBalance(ctx, updated.StudentID)
	s.notifyParticipants(ctx, updated, EventSessionCancelled)
	return updated, nil
}

func (s *SessionService) Get(ctx context.Context, callerID int64, sessionID uuid.UUID) (*models.Session, error) {
	return s.getOwned(ctx, callerID, sessionID)
}

func (s *SessionService) ListUpcoming(ctx context.Context, callerID int64, status string) ([]models.Session, error) {
	return s.sessionRepo.List(ctx, repository.SessionListFilter{
		UserID:    callerID,
		Status:    status,
		Timeframe: "upcoming",
	})
}

func (s *SessionService) ListHistory(ctx context.Context, callerID int64, status string) ([]models.Session, error) {
	return s.sessionRepo.List(ctx, repository.SessionListFilter{
		UserID:    callerID,
		Status:    status,
		Timeframe: "history",
	})
}

// ReconcileOrphanedEscrow repairs scheduled sessions whose escrow debit is
// missing from the ledger. The booking path writes both in one transaction,
// so such rows only appear through out-of-band writes or older data. Each is
// either debited now (if the student can still cover it) or cancelled, which
// frees the reservation.
func (s *SessionService) ReconcileOrphanedEscrow(ctx context.Context, limit int) (repaired, released int, err error) {
	if limit <= 0 {
		limit = 50
	}
	orphans, err := s.sessionRepo.ListScheduledWithoutEscrow(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, session := range orphans {
		if err := s.reconcileOne(ctx, &session); err != nil {
			s.logger.WithError(err).WithField("session_id", session.ID).Error("escrow reconciliation failed")
			continue
		}
		if session.Status == models.SessionStatusScheduled {
			repaired++
		} else {
			released++
		}
	}
	return repaired, released, nil
}

// reconcileOne completes the missing debit or cancels the session. The
// session parameter's Status is updated to reflect the outcome.
func (s *SessionService) reconcileOne(ctx context.Context, session *models.Session) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Re-check under lock: the session may have moved on since the scan.
	current, err := repository.NewSessionRepository(tx).GetByIDForUpdate(ctx, session.ID)
	if err != nil {
		return err
	}
	if current.Status != models.SessionStatusScheduled {
		session.Status = current.Status
		return nil
	}

	relatedID := session.ID.String()
	_, err = s.ledger.DebitTx(
		ctx,
		tx,
		current.StudentID,
		current.CreditsAmount,
		&relatedID,
		models.TransactionTypeSpent,
		fmt.Sprintf("Escrow for session %s (reconciled)", session.ID),
	)
	switch {
	case err == nil:
		// Debit completed; reservation stands.
	case errors.Is(err, ErrInsufficientCredits):
		cancelled, cancelErr := repository.NewSessionRepository(tx).MarkCancelled(
			ctx, session.ID, "escrow could not be secured")
		if cancelErr != nil {
			return cancelErr
		}
		if releaseErr := s.guard.Release(ctx, tx, cancelled.TeacherID, session.ID); releaseErr != nil {
			return releaseErr
		}
		session.Status = models.SessionStatusCancelled
	default:
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.ledger.InvalidateBalance(ctx, current.StudentID)
	return nil
}

func (s *SessionService) getOwned(ctx context.Context, callerID int64, sessionID uuid.UUID) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !isParticipant(session, callerID) {
		return nil, ErrForbidden
	}
	return session, nil
}

func (s *SessionService) notifyParticipants(ctx context.Context, session *models.Session, event string) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.notifier.Notify(notifyCtx, session.TeacherID, event, session)
	s.notifier.Notify(notifyCtx, session.StudentID, event, session)
}

func isParticipant(session *models.Session, userID int64) bool {
	return session.TeacherID == userID || session.StudentID == userID
}

// withinRuneLimit counts characters, not bytes, matching the char_length
// constraints on the sessions table.
func withinRuneLimit(s string, max int) bool {
	return utf8.RuneCountInString(s) <= max
}

func validateScheduleWindow(start, end, now time.Time) error {
	if !end.After(start) {
		return ErrInvalidInput
	}
	if !start.After(now) {
		return ErrInvalidInput
	}
	return nil
}

// withinStartWindow permits starting from StartGrace before the scheduled
// start until the scheduled end.
func withinStartWindow(scheduledStart, scheduledEnd, now time.Time, grace time.Duration) bool {
	if now.Before(scheduledStart.Add(-grace)) {
		return false
	}
	return !now.After(scheduledEnd)
}

// participationBonus is minted by the platform for attending, separate from
// the escrow paid to the teacher.
func participationBonus(creditsAmount int, rate float64) int {
	if creditsAmount <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Round(float64(creditsAmount) * rate))
}
