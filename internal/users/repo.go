package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"attendance/internal/apperror"
	"attendance/internal/store"
)

// Repository persists user accounts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByID returns a user by id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := store.WithRetry(ctx, "get user", func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			SELECT id, name, email, password_hash, role, branch
			FROM users WHERE id = $1
		`, id)
		return row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Branch)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email, or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := store.WithRetry(ctx, "get user by email", func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			SELECT id, name, email, password_hash, role, branch
			FROM users WHERE email = $1
		`, email)
		return row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Branch)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListHODs returns all users with the hod role.
func (r *Repository) ListHODs(ctx context.Context) ([]User, error) {
	var hods []User
	err := store.WithRetry(ctx, "list hods", func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, name, email, password_hash, role, branch
			FROM users WHERE role = $1 ORDER BY id
		`, RoleHOD)
		if err != nil {
			return err
		}
		defer rows.Close()
		hods = hods[:0]
		for rows.Next() {
			var u User
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Branch); err != nil {
				return err
			}
			hods = append(hods, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return hods, nil
}

// Create inserts a new account. A duplicate email surfaces as a validation
// error rather than a raw constraint violation.
func (r *Repository) Create(ctx context.Context, u *User) error {
	err := store.WithRetry(ctx, "create user", func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, `
			INSERT INTO users (name, email, password_hash, role, branch)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, u.Name, u.Email, u.PasswordHash, u.Role, u.Branch)
		return row.Scan(&u.ID)
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperror.Validation("email", "email already registered")
	}
	return err
}

// UpdatePasswordHash replaces the stored credential for a user.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return store.WithRetry(ctx, "update credential", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
		return err
	})
}
