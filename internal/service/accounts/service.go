package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/store"
)

// Common errors for account operations.
var (
	ErrUserExists       = errors.New("user already exists")
	ErrSignupPending    = errors.New("signup already pending")
	ErrNoPendingSignup  = errors.New("no such pending signup")
	ErrUserNotFound     = errors.New("user not found")
	ErrProtectedAccount = errors.New("moderator account cannot be deleted")
)

// PendingSignup is a signup request awaiting moderator review. It lives in
// memory only and is lost on restart.
type PendingSignup struct {
	Username     string
	PasswordHash string
	RequestedAt  time.Time
}

// Service manages accounts and the signup queue.
type Service struct {
	users     store.UserStore
	moderator access.Moderator
	log       *zerolog.Logger

	mu      sync.Mutex
	pending []PendingSignup
}

// New creates an account service.
func New(users store.UserStore, moderator access.Moderator, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		users:     users,
		moderator: moderator,
		log:       logger,
	}
}

// SeedModerator creates the moderator account if no user with that name exists yet.
func (s *Service) SeedModerator(ctx context.Context, password string) error {
	name := s.moderator.Name()
	if name == "" {
		return nil
	}

	exists, err := s.users.UserExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check moderator: %w", err)
	}
	if exists {
		return nil
	}
	if password == "" {
		s.log.Warn().Str("user", name).Msg("moderator account missing and no password configured")
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.users.CreateUser(ctx, name, hash); err != nil {
		return fmt.Errorf("create moderator: %w", err)
	}

	s.log.Info().Str("user", name).Msg("moderator account created")
	return nil
}

// Signup queues a request for moderator approval. Names are checked against
// existing users and queued requests, ignoring case.
func (s *Service) Signup(ctx context.Context, username, password string) error {
	if err := auth.ValidateCredentials(username, password); err != nil {
		return err
	}

	exists, err := s.users.UserExists(ctx, username)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if exists {
		return ErrUserExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		if strings.EqualFold(p.Username, username) {
			return ErrSignupPending
		}
	}
	s.pending = append(s.pending, PendingSignup{
		Username:     username,
		PasswordHash: hash,
		RequestedAt:  time.Now(),
	})

	s.log.Info().Str("user", username).Msg("signup queued")
	return nil
}

// Pending returns the queued usernames in request order.
func (s *Service) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.pending))
	for _, p := range s.pending {
		names = append(names, p.Username)
	}
	return names
}

// Approve turns a pending request into an account.
func (s *Service) Approve(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findPendingLocked(username)
	if idx < 0 {
		return ErrNoPendingSignup
	}

	p := s.pending[idx]
	if _, err := s.users.CreateUser(ctx, p.Username, p.PasswordHash); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Someone took the name after the request was queued.
			s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)

	s.log.Info().Str("user", username).Msg("signup approved")
	return nil
}

// Reject drops a pending request.
func (s *Service) Reject(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findPendingLocked(username)
	if idx < 0 {
		return ErrNoPendingSignup
	}
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)

	s.log.Info().Str("user", username).Msg("signup rejected")
	return nil
}

// findPendingLocked matches the exact username. Caller holds mu.
func (s *Service) findPendingLocked(username string) int {
	for i, p := range s.pending {
		if p.Username == username {
			return i
		}
	}
	return -1
}

// AddUser creates an account directly, bypassing the queue.
func (s *Service) AddUser(ctx context.Context, username, password string) error {
	if err := auth.ValidateCredentials(username, password); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.users.CreateUser(ctx, username, hash); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("user", username).Msg("user added by moderator")
	return nil
}

// DeleteUser removes an account, matching the name case-insensitively. The
// moderator account is never deleted.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	if username == "" || s.moderator.Is(username) {
		return ErrProtectedAccount
	}
	if err := s.users.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.log.Info().Str("user", username).Msg("user deleted")
	return nil
}

// ListUsers returns every username except the moderator's.
func (s *Service) ListUsers(ctx context.Context) ([]string, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	names := make([]string, 0, len(users))
	for _, u := range users {
		if s.moderator.Is(u.Username) {
			continue
		}
		names = append(names, u.Username)
	}
	return names, nil
}
