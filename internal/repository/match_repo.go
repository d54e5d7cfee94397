package repository

import (
	"context"

	"github.com/skilltrade-app/SkillTradeBack/internal/models"
)

type MatchRepository struct {
	db DBTX
}

func NewMatchRepository(db DBTX) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Create(ctx context.Context, teacherID, studentID, skillID int64) (*models.Match, error) {
	query := `
		INSERT INTO matches (teacher_id, student_id, skill_id, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id, teacher_id, student_id, skill_id, status, created_at, updated_at
	`
	var match models.Match
	err := r.db.QueryRow(ctx, query, teacherID, studentID, skillID).Scan(
		&match.ID,
		&match.TeacherID,
		&match.StudentID,
		&match.SkillID,
		&match.Status,
		&match.CreatedAt,
		&match.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *MatchRepository) GetByID(ctx context.Context, matchID int64) (*models.Match, error) {
	query := `
		SELECT id, teacher_id, student_id, skill_id, status, created_at, updated_at
		FROM matches
		WHERE id = $1
	`
	var match models.Match
	err := r.db.QueryRow(ctx, query, matchID).Scan(
		&match.ID,
		&match.TeacherID,
		&match.StudentID,
		&match.SkillID,
		&match.Status,
		&match.CreatedAt,
		&match.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *MatchRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	matchID int64,
	currentStatus string,
	nextStatus string,
) (*models.Match, error) {
	query := `
		UPDATE matches
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING id, teacher_id, student_id, skill_id, status, created_at, updated_at
	`
	var match models.Match
	err := r.db.QueryRow(ctx, query, matchID, currentStatus, nextStatus).Scan(
		&match.ID,
		&match.TeacherID,
		&match.StudentID,
		&match.SkillID,
		&match.Status,
		&match.CreatedAt,
		&match.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *MatchRepository) ListByParticipant(ctx context.Context, userID int64) ([]models.Match, error) {
	query := `
		SELECT id, teacher_id, student_id, skill_id, status, created_at, updated_at
		FROM matches
		WHERE teacher_id = $1 OR student_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		var match models.Match
		if err := rows.Scan(
			&match.ID,
			&match.TeacherID,
			&match.StudentID,
			&match.SkillID,
			&match.Status,
			&match.CreatedAt,
			&match.UpdatedAt,
		); err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return matches, nil
}
