// Package auth provides Google OAuth sign-in. The callback either resolves
// an existing user or provisions a new one; new users start with their trial
// still available.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const ProviderGoogle = "google"

var (
	// ErrInvalidState indicates the OAuth state is unknown, expired or reused.
	ErrInvalidState = errors.New("oauth: invalid or expired state")

	// ErrInvalidCode indicates the authorization code exchange failed.
	ErrInvalidCode = errors.New("oauth: invalid authorization code")

	// ErrUnverifiedEmail indicates the provider account email is not verified.
	ErrUnverifiedEmail = errors.New("oauth: account email is not verified")

	// ErrUserNotFound indicates no user matched the lookup.
	ErrUserNotFound = errors.New("oauth: user not found")
)

// User is an application account.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	AvatarURL string
	GoogleID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the identity a provider reports after code exchange.
type Profile struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
}

// Provider exchanges OAuth authorization codes for user profiles.
type Provider interface {
	// AuthURL builds the provider authorization URL carrying the state token.
	AuthURL(state string) string

	// ResolveProfile exchanges the code and fetches the provider profile.
	ResolveProfile(ctx context.Context, code string) (Profile, error)
}

// UserStore persists application users.
type UserStore interface {
	// GetByGoogleID returns the user linked to the Google account.
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)

	// GetByEmail returns the user with the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create inserts a new user.
	Create(ctx context.Context, user *User) error

	// LinkGoogleID attaches a Google account to an existing user and
	// refreshes the profile fields.
	LinkGoogleID(ctx context.Context, userID uuid.UUID, googleID, name, avatarURL string) error
}

// StateStore persists one-time OAuth state tokens for CSRF protection.
type StateStore interface {
	// Store saves a state token with a TTL.
	Store(ctx context.Context, state string, ttl time.Duration) error

	// Consume atomically removes a state token. Returns ErrInvalidState if
	// the token is unknown, expired or already consumed.
	Consume(ctx context.Context, state string) error
}
