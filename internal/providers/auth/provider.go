package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/utils"
)

// Provider implements authentication and session management
type Provider struct {
	config   config.SessionConfig
	sessions sync.Map // token -> *Session
	users    sync.Map // username and id -> *Account
	mu       sync.Mutex
	now      func() time.Time
}

// Account represents a registered user
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session represents an active session
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewProvider creates an auth provider from session configuration
func NewProvider(cfg config.SessionConfig) *Provider {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Provider{config: cfg, now: time.Now}
}

// Cookie returns the session cookie name
func (a *Provider) Cookie() string {
	return a.config.Cookie
}

// Register creates an account
func (a *Provider) Register(username, password, email string) (*Account, error) {
	if err := utils.ValidateUsername(username); err != nil {
		return nil, types.NewError(types.CodeParams, "%v", err)
	}
	if err := utils.ValidatePassword(password, a.config.MinPasswordLength); err != nil {
		return nil, types.NewError(types.CodeParams, "%v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("password hashing failed: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.users.Load(username); exists {
		return nil, types.NewError(types.CodeParams, "username already exists")
	}

	account := &Account{
		ID:           generateID(),
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		CreatedAt:    a.now(),
	}
	a.users.Store(username, account)
	a.users.Store(account.ID, account)
	return account, nil
}

// Login checks credentials and opens a session
func (a *Provider) Login(username, password string) (*Session, error) {
	// Validation errors are not revealed
	if utils.ValidateUsername(username) != nil || utils.ValidatePassword(password, 1) != nil {
		return nil, errInvalidCredentials()
	}

	val, exists := a.users.Load(username)
	if !exists {
		return nil, errInvalidCredentials()
	}
	account := val.(*Account)
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials()
	}

	now := a.now()
	session := &Session{
		ID:        id.NewSessionID().String(),
		UserID:    account.ID,
		Username:  account.Username,
		Token:     generateToken(),
		CreatedAt: now,
		ExpiresAt: now.Add(a.config.TTL),
	}
	a.sessions.Store(session.Token, session)
	return session, nil
}

// Logout ends a session and reports whether it existed
func (a *Provider) Logout(token string) bool {
	if utils.ValidateToken(token) != nil {
		return false
	}
	_, existed := a.sessions.LoadAndDelete(token)
	return existed
}

// Verify returns the live session for token, or nil
func (a *Provider) Verify(token string) *Session {
	if utils.ValidateToken(token) != nil {
		return nil
	}
	val, exists := a.sessions.Load(token)
	if !exists {
		return nil
	}
	session := val.(*Session)
	if a.now().After(session.ExpiresAt) {
		a.sessions.Delete(token)
		return nil
	}
	return session
}

// User returns the account behind a live session
func (a *Provider) User(token string) (*Account, error) {
	session := a.Verify(token)
	if session == nil {
		return nil, types.NewError(types.CodeAuth, "invalid or expired token")
	}
	val, exists := a.users.Load(session.UserID)
	if !exists {
		return nil, types.NewError(types.CodeAuth, "user not found")
	}
	return val.(*Account), nil
}

// Sessions returns the number of stored sessions
func (a *Provider) Sessions() int {
	n := 0
	a.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func errInvalidCredentials() error {
	return types.NewError(types.CodeAuth, "invalid credentials")
}

func generateID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure must not fall back to weak randomness
		panic(fmt.Sprintf("crypto/rand failed: %v - cannot generate secure ID", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v - cannot generate secure token", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
