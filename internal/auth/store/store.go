package store

import (
	"context"
	"errors"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so transactional code can only reach the repos of
// the transaction it runs in.
type Store interface {
	Users() Users
	Sessions() Sessions
	Clients() Clients
	ClientKeys() ClientKeys
	AuthorizationCodes() AuthorizationCodes
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. A nil return commits, anything
	// else rolls back. Inside fn only the repos of tx may be used.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is an exact, case-sensitive match.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user. A taken username or email yields
	// ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	UpdateProfile(ctx context.Context, userID, displayName, avatarURL string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, userID, hash string, at time.Time) error

	// SetMFASecret stores a pending (not yet enabled) sealed TOTP secret.
	SetMFASecret(ctx context.Context, userID, sealed string, at time.Time) error
	EnableMFA(ctx context.Context, userID string, at time.Time) error
	DisableMFA(ctx context.Context, userID string, at time.Time) error

	// DeleteUser cascades to sessions, codes and refresh tokens.
	DeleteUser(ctx context.Context, userID string) error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession looks a session up by token fingerprint.
	GetSession(ctx context.Context, idHash string) (domain.Session, error)

	// ExtendSession moves expires_at forward to newExpiry only if the stored
	// value is older. It reports whether a row changed.
	ExtendSession(ctx context.Context, idHash string, newExpiry time.Time) (bool, error)

	// DeleteSession is idempotent.
	DeleteSession(ctx context.Context, idHash string) error

	// DeleteUserSessions removes every session of userID except keepHash.
	DeleteUserSessions(ctx context.Context, userID, keepHash string) error

	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type Clients interface {
	// GetClientByID returns the client with its registered keys.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all clients ordered by id.
	ListClients(ctx context.Context) ([]domain.Client, error)

	CreateClient(ctx context.Context, c domain.Client) error

	// UpsertClient creates or replaces the client row. Keys are untouched.
	UpsertClient(ctx context.Context, c domain.Client) error

	DeleteClient(ctx context.Context, clientID string) error
}

type ClientKeys interface {
	// AddClientKey registers a key; a duplicate kid for the same client
	// yields ErrAlreadyExists.
	AddClientKey(ctx context.Context, k domain.ClientKey) error

	ListClientKeys(ctx context.Context, clientID string) ([]domain.ClientKey, error)
	RevokeClientKey(ctx context.Context, clientID, kid string, at time.Time) error
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a freshly minted authorization code.
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error

	// ConsumeAuthorizationCode deletes and returns the code issued to
	// clientID. A second call for the same code yields ErrNotFound.
	ConsumeAuthorizationCode(ctx context.Context, hash, clientID string) (domain.AuthorizationCode, error)

	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked on an active token and reports
	// whether it did. Rotation relies on only one caller winning.
	RevokeRefreshToken(ctx context.Context, hash string, at time.Time) (bool, error)

	RevokeUserRefreshTokens(ctx context.Context, userID string, at time.Time) error

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
