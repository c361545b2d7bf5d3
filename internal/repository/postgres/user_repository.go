package postgres

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/errors"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/repository"
	"github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	pkgPostgres "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/postgres"
)

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id              BIGSERIAL PRIMARY KEY,
	username        TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	role            TEXT NOT NULL CHECK (role IN ('premium', 'standard', 'guest')),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type pgUserRepository struct {
	pool *pgxpool.Pool
	l    logger.Logger
}

// NewPostgresUserRepository returns a UserRepository backed by the users table.
// The pool is owned by the caller.
func NewPostgresUserRepository(pool *pgxpool.Pool, l logger.Logger) repository.UserRepository {
	return &pgUserRepository{
		pool: pool,
		l:    l,
	}
}

// EnsureSchema creates the users table when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, usersSchema); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

func (r *pgUserRepository) Create(ctx context.Context, u *models.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (username, hashed_password, role, created_at) VALUES ($1, $2, $3, $4)`,
		u.Username, u.HashedPassword, string(u.Role), createdAt,
	)
	if err != nil {
		if pkgPostgres.IsUniqueViolation(err) {
			return errors.ErrUserAlreadyExists
		}
		r.l.Errorf(ctx, "pgUserRepository.Create: %v", err)
		return err
	}

	return nil
}

func (r *pgUserRepository) Get(ctx context.Context, username string) (*models.User, error) {
	var (
		u    models.User
		role string
	)

	err := r.pool.QueryRow(ctx,
		`SELECT username, hashed_password, role, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.Username, &u.HashedPassword, &role, &u.CreatedAt)
	if err != nil {
		if stdErrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrUserNotFound
		}
		r.l.Errorf(ctx, "pgUserRepository.Get: %v", err)
		return nil, err
	}

	u.Role = models.Role(role)

	return &u, nil
}
