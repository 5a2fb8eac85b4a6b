package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashfydr/void-CLI/internal/store"
)

type captureMailer struct {
	codes map[string]string
}

func (m *captureMailer) SendVerification(ctx context.Context, email, code string) error {
	m.codes[email] = code
	return nil
}

func newTestService(t *testing.T, domain string) (*Service, *captureMailer) {
	t.Helper()
	mailer := &captureMailer{codes: make(map[string]string)}
	svc := NewService(store.NewMemoryDataStore(), mailer, zerolog.Nop(), Options{
		ConfigDir:     t.TempDir(),
		Secret:        []byte("test-secret"),
		AllowedDomain: domain,
	})
	return svc, mailer
}

func TestSignupVerifyLogin(t *testing.T) {
	svc, mailer := newTestService(t, "")
	ctx := context.Background()

	acct, err := svc.Signup(ctx, "ann@example.com", "hunter22", "ann")
	require.NoError(t, err)
	assert.False(t, acct.Verified)
	code := mailer.codes["ann@example.com"]
	require.Len(t, code, 8)

	_, err = svc.Login(ctx, "ann", "hunter22")
	assert.ErrorIs(t, err, ErrNotVerified)

	assert.ErrorIs(t, svc.Verify(ctx, "ann", "00000000"), ErrInvalidToken)
	require.NoError(t, svc.Verify(ctx, "ann@example.com", code))

	_, err = svc.Login(ctx, "ann", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	p, err := svc.Login(ctx, "ann", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, p.UserID)
	assert.Equal(t, "ann@example.com", p.Email)

	info, err := os.Stat(filepath.Join(svc.configDir, sessionFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	current, err := svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, current)

	profile, err := svc.Profile(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, "ann", profile.DisplayName(p.Email))

	require.NoError(t, svc.Logout(ctx))
	_, err = svc.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrAuthRequired)
	require.NoError(t, svc.Logout(ctx))
}

func TestLoginByEmail(t *testing.T) {
	svc, mailer := newTestService(t, "")
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Bea@Example.com", "secret99", "bea")
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, "bea", mailer.codes["Bea@Example.com"]))

	_, err = svc.Login(ctx, "bea@example.com", "secret99")
	require.NoError(t, err)
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService(t, "thapar.edu")
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ann@gmail.com", "hunter22", "ann")
	assert.ErrorIs(t, err, ErrEmailDomain)
	_, err = svc.Signup(ctx, "not-an-email", "hunter22", "ann")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.Signup(ctx, "ann@thapar.edu", "hunter22", "a b")
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, err = svc.Signup(ctx, "ann@thapar.edu", "123", "ann")
	assert.Error(t, err)

	_, err = svc.Signup(ctx, "ann@THAPAR.edu", "hunter22", "ann")
	require.NoError(t, err)

	ok, err := svc.IsUsernameAvailable(ctx, "ann")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Signup(ctx, "ann2@thapar.edu", "hunter22", "ann")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.Signup(ctx, "ann@thapar.edu", "hunter22", "ann2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCurrentUserRejectsBadTokens(t *testing.T) {
	svc, mailer := newTestService(t, "")
	ctx := context.Background()

	_, err := svc.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrAuthRequired)

	_, err = svc.Signup(ctx, "cat@example.com", "meow1234", "cat")
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, "cat", mailer.codes["cat@example.com"]))
	_, err = svc.Login(ctx, "cat", "meow1234")
	require.NoError(t, err)

	// A different secret cannot read the session.
	other := NewService(svc.store, mailer, zerolog.Nop(), Options{ConfigDir: svc.configDir, Secret: []byte("other")})
	_, err = other.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrAuthRequired)

	// Expired sessions are rejected.
	svc.now = func() time.Time { return time.Now().Add(DefaultTokenTTL + time.Hour) }
	_, err = svc.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrAuthRequired)
}
