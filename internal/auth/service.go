package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Logger is the logging interface used by Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service implements registration and login on top of a UserRepository,
// a PasswordHasher and a TokenService.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens *TokenService
	logger Logger

	// dummyDigest is verified against when the username is unknown so that
	// both failure paths cost one hash verification.
	dummyOnce   sync.Once
	dummyDigest string
}

// NewService wires the auth collaborators together.
func NewService(users UserRepository, hasher PasswordHasher, tokens *TokenService) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Tokens returns the token service used to sign logins.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Register creates a user. Returns ErrInvalidInput for a malformed
// username or password and ErrUsernameExists when the username is taken.
func (s *Service) Register(ctx context.Context, username, password string) (*Identity, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}

	user := &User{Username: username, PasswordHash: digest}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return &Identity{ID: user.ID, Username: user.Username}, nil
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token  string
	UserID string
}

// Login checks the credentials and issues a token. Unknown usernames,
// including ones that fail the registration format, and wrong passwords
// all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if err := ValidateLoginInput(username, password); err != nil {
		return nil, err
	}
	if !IsValidUsername(username) {
		s.burnVerification(password)
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.burnVerification(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored credential unreadable", "user_id", user.ID, "error", err)
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &LoginResult{Token: token, UserID: user.ID}, nil
}

// rehash upgrades a stored digest to the current algorithm. Failure only
// costs the upgrade, never the login.
func (s *Service) rehash(ctx context.Context, userID, password string) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("password rehash failed", "user_id", userID, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, userID, digest); err != nil {
		s.logger.Warn("password rehash not stored", "user_id", userID, "error", err)
		return
	}
	s.logger.Info("password digest upgraded", "user_id", userID)
}

func (s *Service) burnVerification(password string) {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("not-a-real-password")
		if err == nil {
			s.dummyDigest = digest
		}
	})
	if s.dummyDigest != "" {
		_, _ = s.hasher.Verify(password, s.dummyDigest) //nolint:errcheck // result is discarded
	}
}
