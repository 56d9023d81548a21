package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/roomchat/internal/session"
	"github.com/vovakirdan/roomchat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when a token does not resolve to a live session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Identity is an authenticated user bound to one session.
type Identity struct {
	Username  string
	SessionID string
}

// Service provides authentication operations.
type Service struct {
	users     store.UserStore
	sessions  session.Store
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(users store.UserStore, sessions session.Store, jwtConfig *JWTConfig) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		jwtConfig: jwtConfig,
	}
}

// Login validates credentials, opens a session and returns a token for it.
func (s *Service) Login(ctx context.Context, username, password string) (string, Identity, error) {
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", Identity{}, ErrInvalidCredentials
		}
		return "", Identity{}, fmt.Errorf("get user: %w", err)
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", Identity{}, ErrInvalidCredentials
	}

	sessionID, err := s.sessions.Create(ctx, user.Username)
	if err != nil {
		return "", Identity{}, fmt.Errorf("create session: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, sessionID, user.Username)
	if err != nil {
		_ = s.sessions.Invalidate(ctx, sessionID)
		return "", Identity{}, fmt.Errorf("generate token: %w", err)
	}

	return token, Identity{Username: user.Username, SessionID: sessionID}, nil
}

// Resolve maps a token to a live identity. Any failure is ErrUnauthorized so
// callers cannot tell an expired token from a revoked session.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}

	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	username, err := s.sessions.Lookup(ctx, claims.SessionID())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if username != claims.Username() {
		return Identity{}, ErrUnauthorized
	}
	// A deleted account loses its outstanding sessions.
	if _, err := s.users.GetUser(ctx, username); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	return Identity{Username: username, SessionID: claims.SessionID()}, nil
}

// Invalidate ends a session so its token stops resolving.
func (s *Service) Invalidate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Invalidate(ctx, sessionID); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}
