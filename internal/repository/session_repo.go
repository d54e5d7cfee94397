package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
)

const sessionColumns = `id, match_id, teacher_id, student_id, skill_id,
	scheduled_start, scheduled_end, actual_start, actual_end, status,
	credits_amount, video_room_id, notes, cancellation_reason, created_at, updated_at`

type CreateSessionInput struct {
	ID             uuid.UUID
	MatchID        int64
	TeacherID      int64
	StudentID      int64
	SkillID        int64
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	CreditsAmount  int
}

type SessionListFilter struct {
	UserID    int64
	Status    string
	Timeframe string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.MatchID,
		&session.TeacherID,
		&session.StudentID,
		&session.SkillID,
		&session.ScheduledStart,
		&session.ScheduledEnd,
		&session.ActualStart,
		&session.ActualEnd,
		&session.Status,
		&session.CreditsAmount,
		&session.VideoRoomID,
		&session.Notes,
		&session.CancellationReason,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(ctx context.Context, input CreateSessionInput) (*models.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (id, match_id, teacher_id, student_id, skill_id,
			scheduled_start, scheduled_end, status, credits_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', $8)
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.ID,
		input.MatchID,
		input.TeacherID,
		input.StudentID,
		input.SkillID,
		input.ScheduledStart,
		input.ScheduledEnd,
		input.CreditsAmount,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1 FOR UPDATE`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(ctx context.Context, filter SessionListFilter) ([]models.Session, error) {
	args := []any{filter.UserID}
	whereParts := []string{"(teacher_id = $1 OR student_id = $1)"}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	order := "scheduled_start ASC, id ASC"
	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(whereParts, "status IN ('scheduled', 'in_progress')", "scheduled_end > NOW()")
	case "history":
		whereParts = append(whereParts, "(status IN ('completed', 'cancelled') OR scheduled_end <= NOW())")
		order = "scheduled_start DESC, id DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY %s
	`, sessionColumns, strings.Join(whereParts, " AND "), order)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// HasOverlap reports whether any non-terminal session on the teacher's
// calendar intersects [start, end). Terminal sessions have released their
// slot and are excluded. Callers that need this check to be race-free must
// hold the teacher's calendar lock in the same transaction.
func (r *SessionRepository) HasOverlap(
	ctx context.Context,
	teacherID int64,
	start time.Time,
	end time.Time,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM sessions
			WHERE teacher_id = $1
			  AND status IN ('scheduled', 'in_progress')
			  AND scheduled_start < $3
			  AND scheduled_end > $2
		)
	`
	var overlaps bool
	if err := r.db.QueryRow(ctx, query, teacherID, start, end).Scan(&overlaps); err != nil {
		return false, err
	}
	return overlaps, nil
}

// MarkInProgress flips scheduled -> in_progress, recording the actual start
// and the provisioned room. Returns pgx.ErrNoRows when the session is no
// longer in the expected state.
func (r *SessionRepository) MarkInProgress(
	ctx context.Context,
	sessionID uuid.UUID,
	actualStart time.Time,
	videoRoomID string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'in_progress', actual_start = $2, video_room_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, actualStart, videoRoomID))
}

func (r *SessionRepository) MarkCompleted(
	ctx context.Context,
	sessionID uuid.UUID,
	actualEnd time.Time,
	notes *string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'completed', actual_end = $2, notes = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'in_progress'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, actualEnd, notes))
}

func (r *SessionRepository) MarkCancelled(
	ctx context.Context,
	sessionID uuid.UUID,
	reason string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = 'cancelled', cancellation_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, reason))
}

// ListScheduledWithoutEscrow finds scheduled sessions whose escrow debit never
// landed in the ledger. The booking path writes both in one transaction, so an
// entry here means the row was produced outside that path and needs repair.
func (r *SessionRepository) ListScheduledWithoutEscrow(ctx context.Context, limit int) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions s
		WHERE s.status = 'scheduled'
		  AND NOT EXISTS (
			SELECT 1
			FROM credit_transactions t
			WHERE t.related_id = s.id::text AND t.type = 'spent'
		  )
		ORDER BY s.created_at ASC
		LIMIT $1
	`, sessionColumns)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
