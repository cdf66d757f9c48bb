package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

func newProvider() *Provider {
	return NewProvider(config.SessionConfig{TTL: time.Hour, Cookie: "token", MinPasswordLength: 8})
}

func TestAuthRegisterLogin(t *testing.T) {
	auth := newProvider()

	account, err := auth.Register("alice", "secret123", "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.NotEqual(t, "secret123", account.PasswordHash)

	session, err := auth.Login("alice", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, account.ID, session.UserID)

	verified := auth.Verify(session.Token)
	require.NotNil(t, verified)
	assert.Equal(t, "alice", verified.Username)

	user, err := auth.User(session.Token)
	require.NoError(t, err)
	assert.Same(t, account, user)
}

func TestAuthInvalidCredentials(t *testing.T) {
	auth := newProvider()
	_, err := auth.Register("bob", "correct-horse", "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "bob", "wrong-password"},
		{"unknown user", "carol", "whatever123"},
		{"invalid username", "b o b", "correct-horse"},
		{"empty password", "bob", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Login(tt.username, tt.password)
			assert.Equal(t, types.CodeAuth, types.CodeOf(err))
		})
	}
}

func TestAuthRegisterValidation(t *testing.T) {
	auth := newProvider()

	_, err := auth.Register("dave", "short", "")
	assert.Equal(t, types.CodeParams, types.CodeOf(err))

	_, err = auth.Register("dave!", "long-enough", "")
	assert.Equal(t, types.CodeParams, types.CodeOf(err))

	_, err = auth.Register("dave", "long-enough", "")
	require.NoError(t, err)
	_, err = auth.Register("dave", "long-enough", "")
	assert.Equal(t, types.CodeParams, types.CodeOf(err))
}

func TestAuthSessionExpiry(t *testing.T) {
	auth := newProvider()
	now := time.Now()
	auth.now = func() time.Time { return now }

	_, err := auth.Register("erin", "password1", "")
	require.NoError(t, err)
	session, err := auth.Login("erin", "password1")
	require.NoError(t, err)

	auth.now = func() time.Time { return now.Add(2 * time.Hour) }
	assert.Nil(t, auth.Verify(session.Token))
	assert.Equal(t, 0, auth.Sessions())

	_, err = auth.User(session.Token)
	assert.Equal(t, types.CodeAuth, types.CodeOf(err))
}

func TestAuthLogout(t *testing.T) {
	auth := newProvider()
	_, err := auth.Register("frank", "password1", "")
	require.NoError(t, err)
	session, err := auth.Login("frank", "password1")
	require.NoError(t, err)

	assert.True(t, auth.Logout(session.Token))
	assert.False(t, auth.Logout(session.Token))
	assert.False(t, auth.Logout(""))
	assert.Nil(t, auth.Verify(session.Token))
	assert.Equal(t, "token", auth.Cookie())
}
