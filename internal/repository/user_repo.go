package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/skilltrade-app/SkillTradeBack/internal/models"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so every repository can
// run against the pool or inside a caller-owned transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING id, sessions_taught, sessions_completed, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, user.Email, user.PasswordHash, user.DisplayName).
		Scan(&user.ID, &user.SessionsTaught, &user.SessionsCompleted, &user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, display_name, sessions_taught, sessions_completed, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.SessionsTaught,
		&user.SessionsCompleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, display_name, sessions_taught, sessions_completed, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.SessionsTaught,
		&user.SessionsCompleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IncrementSessionCounters bumps the denormalized per-user session tallies
// after a completed session. Counters are display glue, not the source of
// truth; the session table remains authoritative.
func (r *UserRepository) IncrementSessionCounters(ctx context.Context, teacherID, studentID int64) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE users SET sessions_taught = sessions_taught + 1, updated_at = NOW()
		WHERE id = $1
	`, teacherID); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		UPDATE users SET sessions_completed = sessions_completed + 1, updated_at = NOW()
		WHERE id = $1
	`, studentID)
	return err
}
