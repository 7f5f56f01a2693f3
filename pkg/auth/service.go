package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subkit/subkit/pkg/logger"
)

// Service drives the OAuth sign-in flow against a single provider.
type Service struct {
	provider Provider
	users    UserStore
	states   StateStore
	stateTTL time.Duration
	log      *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a custom logger. Logging is discarded when none is provided.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.With(logger.Component("auth"))
		}
	}
}

// NewService creates the OAuth service.
func NewService(provider Provider, users UserStore, states StateStore, stateTTL time.Duration, opts ...Option) *Service {
	if provider == nil {
		panic("auth: provider is required")
	}
	if users == nil {
		panic("auth: user store is required")
	}
	if states == nil {
		panic("auth: state store is required")
	}
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}

	s := &Service{
		provider: provider,
		users:    users,
		states:   states,
		stateTTL: stateTTL,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginAuth generates a one-time state token and returns the provider
// authorization URL to redirect the user to.
func (s *Service) BeginAuth(ctx context.Context) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	if err := s.states.Store(ctx, state, s.stateTTL); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return s.provider.AuthURL(state), nil
}

// CompleteAuth handles the provider callback. It validates the state,
// exchanges the code and resolves the application user: an existing linked
// user, an existing user matched by email, or a freshly provisioned one.
func (s *Service) CompleteAuth(ctx context.Context, code, state string) (*User, error) {
	if err := s.states.Consume(ctx, state); err != nil {
		return nil, err
	}

	profile, err := s.provider.ResolveProfile(ctx, code)
	if err != nil {
		return nil, err
	}
	if !profile.EmailVerified {
		return nil, ErrUnverifiedEmail
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))

	user, err := s.users.GetByGoogleID(ctx, profile.ProviderUserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("lookup by google id: %w", err)
	}

	// Verified provider email, so matching an existing account by email and
	// linking it is safe.
	user, err = s.users.GetByEmail(ctx, profile.Email)
	if err == nil {
		if err := s.users.LinkGoogleID(ctx, user.ID, profile.ProviderUserID, profile.Name, profile.AvatarURL); err != nil {
			return nil, fmt.Errorf("link google account: %w", err)
		}
		user.GoogleID = profile.ProviderUserID
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("lookup by email: %w", err)
	}

	now := time.Now().UTC()
	user = &User{
		ID:        uuid.New(),
		Email:     profile.Email,
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
		GoogleID:  profile.ProviderUserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.InfoContext(ctx, "New user provisioned",
		logger.UserID(user.ID.String()),
		slog.String("email", user.Email),
	)
	return user, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
