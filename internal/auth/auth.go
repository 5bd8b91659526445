package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/lifecycle"
)

var ErrInvalidCode = errors.New("invalid access code")

const (
	SessionCookie = "session"
	sessionTTL    = 12 * time.Hour
)

// Session is what a resolved cookie maps back to.
type Session struct {
	Role lifecycle.Role
	Code string
}

// Credentials holds the per-deployment role codes. Chefs and couriers are not
// full accounts, just coarse capability codes.
type Credentials struct {
	ChefCodes    map[string]bool
	CourierCodes map[string]bool
	OwnerToken   string
}

func (c Credentials) ValidChef(code string) bool    { return c.ChefCodes[code] }
func (c Credentials) ValidCourier(code string) bool { return c.CourierCodes[code] }

// TokenStore keeps live session tokens. ErrTokenMissing marks an expired or
// unknown token.
type TokenStore interface {
	Set(ctx context.Context, token, value string, ttl time.Duration) error
	Get(ctx context.Context, token string) (string, error)
	Del(ctx context.Context, token string) error
}

var ErrTokenMissing = errors.New("session token missing")

// Manager mints and resolves session tokens.
type Manager struct {
	tokens TokenStore
	creds  Credentials
	logger *logrus.Logger
}

func NewManager(tokens TokenStore, creds Credentials, logger *logrus.Logger) *Manager {
	return &Manager{tokens: tokens, creds: creds, logger: logger}
}

func (m *Manager) Credentials() Credentials { return m.creds }

// Login checks the role code and returns a fresh session token.
func (m *Manager) Login(ctx context.Context, role lifecycle.Role, code string) (string, error) {
	switch role {
	case lifecycle.RoleChef:
		if !m.creds.ValidChef(code) {
			return "", ErrInvalidCode
		}
	case lifecycle.RoleCourier:
		if !m.creds.ValidCourier(code) {
			return "", ErrInvalidCode
		}
	default:
		return "", ErrInvalidCode
	}

	token := uuid.NewString()
	if err := m.tokens.Set(ctx, token, string(role)+":"+code, sessionTTL); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	m.logger.WithFields(logrus.Fields{"role": role, "code": code}).Info("Session opened")
	return token, nil
}

// Resolve maps a session token back to its role and code. A missing or
// expired token returns (nil, nil): the caller answers 401.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	value, err := m.tokens.Get(ctx, token)
	if errors.Is(err, ErrTokenMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	role, code, ok := strings.Cut(value, ":")
	if !ok {
		return nil, nil
	}
	return &Session{Role: lifecycle.Role(role), Code: code}, nil
}

func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.tokens.Del(ctx, token)
}
