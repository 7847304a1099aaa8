// Package session manages login through the mail API's OAuth flow and the
// durable user id that ties a client to its mailbox on the server.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"maildash/models"
	"maildash/storage"
	"maildash/store"
	"maildash/utils"
)

var (
	// ErrNoSession means the session key has no stored user id
	ErrNoSession = errors.New("no active session")
	// ErrMissingCode means the OAuth callback arrived without a code
	ErrMissingCode = errors.New("authorization code is missing")
	// ErrInvalidToken means a bearer token failed validation
	ErrInvalidToken = errors.New("invalid access token")
)

// Authenticator is the OAuth half of the mail API
type Authenticator interface {
	AuthURL(ctx context.Context) (string, error)
	ExchangeCode(ctx context.Context, code string) error
}

// Manager creates, resolves and ends sessions
type Manager struct {
	auth     Authenticator
	sessions *storage.SessionStorage
	registry *store.Registry
	secret   []byte
	ttl      time.Duration
	log      *utils.Logger

	now   func() time.Time
	newID func() string
}

// NewManager wires a manager. An empty secret disables token issuing.
func NewManager(auth Authenticator, sessions *storage.SessionStorage, registry *store.Registry, secret string, ttl time.Duration, log *utils.Logger) *Manager {
	if log == nil {
		log = utils.Log
	}
	return &Manager{
		auth:     auth,
		sessions: sessions,
		registry: registry,
		secret:   []byte(secret),
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Login returns the provider consent URL to redirect the user to
func (m *Manager) Login(ctx context.Context) (string, error) {
	u, err := m.auth.AuthURL(ctx)
	if err != nil {
		m.log.Error("failed to get auth url: %v", err)
		return "", fmt.Errorf("get auth url: %w", err)
	}
	return u, nil
}

// Callback completes the OAuth flow for sessionKey. The server receives
// the code and a fresh user id is generated and persisted.
func (m *Manager) Callback(ctx context.Context, sessionKey, code string) (models.Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Session{}, ErrMissingCode
	}

	if err := m.auth.ExchangeCode(ctx, code); err != nil {
		m.log.Error("code exchange failed: %v", err)
		return models.Session{}, fmt.Errorf("exchange code: %w", err)
	}

	userID := m.newID()
	if err := m.sessions.SaveUserID(sessionKey, userID); err != nil {
		return models.Session{}, fmt.Errorf("persist session: %w", err)
	}

	m.log.WithField("user_id", userID).Info("session created")
	return models.Session{UserID: userID}, nil
}

// Current resolves the user id stored for sessionKey
func (m *Manager) Current(sessionKey string) (models.Session, error) {
	if sessionKey == "" {
		return models.Session{}, ErrNoSession
	}
	userID, err := m.sessions.LoadUserID(sessionKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, ErrNoSession
		}
		return models.Session{}, fmt.Errorf("load session: %w", err)
	}
	return models.Session{UserID: userID}, nil
}

// Logout clears the persisted id and drops the user's store
func (m *Manager) Logout(sessionKey string) error {
	sess, err := m.Current(sessionKey)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	if err := m.sessions.DeleteUserID(sessionKey); err != nil {
		return err
	}
	if sess.UserID != "" {
		m.registry.Drop(sess.UserID)
		m.log.WithField("user_id", sess.UserID).Info("session ended")
	}
	return nil
}

// Store returns the store of an authenticated session
func (m *Manager) Store(sess models.Session) *store.Store {
	return m.registry.For(sess.UserID)
}

// Claims is the payload of an access token
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Token issues an HS256 access token for sess
func (m *Manager) Token(sess models.Session) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("token signing is disabled: jwt.secret is empty")
	}
	if sess.UserID == "" {
		return "", time.Time{}, ErrNoSession
	}

	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		UserID: sess.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			Issuer:    "maildash",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates a token issued by Token and returns its session
func (m *Manager) ParseToken(raw string) (models.Session, error) {
	if len(m.secret) == 0 {
		return models.Session{}, ErrInvalidToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("maildash"),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return models.Session{}, ErrInvalidToken
	}
	return models.Session{UserID: claims.UserID}, nil
}
