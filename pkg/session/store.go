package session

import "context"

// Store persists sessions keyed by token.
type Store interface {
	// Create stores a new session until its expiry.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by token. Returns ErrSessionNotFound when the
	// token is unknown or the session has been evicted.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes a session by token. Deleting an unknown token is not
	// an error.
	Delete(ctx context.Context, token string) error
}
