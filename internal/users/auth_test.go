package users

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"attendance/internal/apperror"
)

type fakeCredentialStore struct {
	byEmail  map[string]*User
	upgrades map[int64]string
	nextID   int64
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{
		byEmail:  make(map[string]*User),
		upgrades: make(map[int64]string),
	}
}

func (f *fakeCredentialStore) GetByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := f.byEmail[email]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeCredentialStore) Create(_ context.Context, u *User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return apperror.Validation("email", "email already registered")
	}
	f.nextID++
	u.ID = f.nextID
	stored := *u
	f.byEmail[u.Email] = &stored
	return nil
}

func (f *fakeCredentialStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	f.upgrades[id] = hash
	for _, u := range f.byEmail {
		if u.ID == id {
			u.PasswordHash = hash
		}
	}
	return nil
}

func TestRegisterHashesPassword(t *testing.T) {
	store := newFakeCredentialStore()
	a := NewAuthenticator(store)

	u, err := a.Register(context.Background(), "Asha", "asha@example.com", "secret", RoleOrganiser, "")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"), "credential must be bcrypt, got %q", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret")))
}

func TestRegisterValidation(t *testing.T) {
	store := newFakeCredentialStore()
	a := NewAuthenticator(store)
	ctx := context.Background()

	_, err := a.Register(ctx, "", "a@example.com", "x", RoleOrganiser, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = a.Register(ctx, "A", "a@example.com", "x", "admin", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	// HOD accounts need a branch: it scopes approvals and digests.
	_, err = a.Register(ctx, "A", "a@example.com", "x", RoleHOD, "  ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = a.Register(ctx, "A", "a@example.com", "x", RoleHOD, "CS")
	require.NoError(t, err)

	_, err = a.Register(ctx, "B", "a@example.com", "x", RoleOrganiser, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestLoginBcryptCredential(t *testing.T) {
	store := newFakeCredentialStore()
	a := NewAuthenticator(store)
	_, err := a.Register(context.Background(), "Asha", "asha@example.com", "secret", RoleOrganiser, "")
	require.NoError(t, err)

	u, err := a.Login(context.Background(), "asha@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.Empty(t, store.upgrades, "a bcrypt credential must not be rewritten")

	_, err = a.Login(context.Background(), "asha@example.com", "wrong")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = a.Login(context.Background(), "nobody@example.com", "secret")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = a.Login(context.Background(), "", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestLoginUpgradesLegacyPlaintextCredential(t *testing.T) {
	store := newFakeCredentialStore()
	store.byEmail["hod@example.com"] = &User{ID: 7, Email: "hod@example.com", PasswordHash: "pass", Role: RoleHOD, Branch: "CS"}
	a := NewAuthenticator(store)

	u, err := a.Login(context.Background(), "hod@example.com", "pass")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	hash, ok := store.upgrades[7]
	require.True(t, ok, "legacy credential must be upgraded on successful login")
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pass")))

	// Subsequent logins use the upgraded hash.
	u, err = a.Login(context.Background(), "hod@example.com", "pass")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	_, err = a.Login(context.Background(), "hod@example.com", "wrong")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestLoginLegacyMismatchDoesNotUpgrade(t *testing.T) {
	store := newFakeCredentialStore()
	store.byEmail["hod@example.com"] = &User{ID: 7, Email: "hod@example.com", PasswordHash: "pass", Role: RoleHOD}
	a := NewAuthenticator(store)

	_, err := a.Login(context.Background(), "hod@example.com", "wrong")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Empty(t, store.upgrades)
}
