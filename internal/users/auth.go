package users

import (
	"context"
	"crypto/subtle"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"attendance/internal/apperror"
)

// CredentialStore is the slice of the repository the authenticator needs.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// Authenticator verifies credentials and registers accounts.
type Authenticator struct {
	store CredentialStore
}

// NewAuthenticator creates an authenticator over a credential store.
func NewAuthenticator(store CredentialStore) *Authenticator {
	return &Authenticator{store: store}
}

// Register creates an account with a bcrypt-hashed credential.
func (a *Authenticator) Register(ctx context.Context, name, email, password, role, branch string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, apperror.Validation("name", "name is required")
	}
	if email == "" {
		return nil, apperror.Validation("email", "email is required")
	}
	if password == "" {
		return nil, apperror.Validation("password", "password is required")
	}
	if !ValidRole(role) {
		return nil, apperror.Validation("role", "role must be organiser, hod or student")
	}
	if role == RoleHOD && strings.TrimSpace(branch) == "" {
		return nil, apperror.Validation("branch", "branch is required for hod accounts")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Branch:       strings.TrimSpace(branch),
	}
	if err := a.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies an email/password pair and returns the account.
//
// Legacy rows store the password in plaintext. A successful plaintext match
// upgrades the stored credential to a bcrypt hash; the upgrade is an explicit
// logged side effect of login, not silent.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.Validation("email", "email and password are required")
	}

	u, err := a.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	if isBcrypt(u.PasswordHash) {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return u, nil
	}

	// Legacy plaintext credential.
	if subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(password)) != 1 {
		return nil, apperror.Unauthorized("invalid credentials")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if err := a.store.UpdatePasswordHash(ctx, u.ID, string(hash)); err != nil {
		// The login itself succeeded; keep the legacy row and try again next time.
		log.Printf("users: legacy credential upgrade failed for user %d: %v", u.ID, err)
		return u, nil
	}
	log.Printf("users: upgraded legacy plaintext credential to bcrypt for user %d", u.ID)
	u.PasswordHash = string(hash)
	return u, nil
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}
