package businessflow

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/humanflow/models"
	"github.com/amirphl/humanflow/utils"
	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthSource names the store that accepted a login
type AuthSource string

const (
	AuthSourceDedicated AuthSource = "auth_store"
	AuthSourcePrimary   AuthSource = "session_store"
	AuthSourceDegraded  AuthSource = "degraded"
)

// AuthResult is the outcome of a successful authentication
type AuthResult struct {
	User     *models.User
	Degraded bool
	Source   AuthSource
}

// CredentialStore verifies an email/password pair. Every failure reason is
// reported as ErrInvalidCredentials except store outages.
type CredentialStore interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// AuthProvider authenticates against the dedicated auth store, then the
// primary store, and finally, when explicitly allowed, in degraded mode.
type AuthProvider interface {
	Authenticate(ctx context.Context, email, password string) (*AuthResult, error)
	Degraded() bool
}

// AuthProviderImpl implements AuthProvider
type AuthProviderImpl struct {
	dedicated     CredentialStore
	primary       CredentialStore
	allowDegraded bool
	validate      *validator.Validate
	logger        *zap.Logger
}

// NewAuthProvider creates an auth provider. Either store may be nil.
func NewAuthProvider(dedicated, primary CredentialStore, allowDegraded bool, logger *zap.Logger) AuthProvider {
	return &AuthProviderImpl{
		dedicated:     dedicated,
		primary:       primary,
		allowDegraded: allowDegraded,
		validate:      validator.New(),
		logger:        logger,
	}
}

// Degraded reports whether logins are accepted without any credential store
func (p *AuthProviderImpl) Degraded() bool {
	return p.dedicated == nil && p.primary == nil && p.allowDegraded
}

// Authenticate verifies the credentials with the highest-precedence store available
func (p *AuthProviderImpl) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	email = utils.NormalizeEmail(email)

	var (
		store  CredentialStore
		source AuthSource
	)
	switch {
	case p.dedicated != nil:
		store, source = p.dedicated, AuthSourceDedicated
	case p.primary != nil:
		store, source = p.primary, AuthSourcePrimary
	case p.allowDegraded:
		if err := p.validate.Var(email, "required,email"); err != nil {
			return nil, ErrInvalidCredentials
		}
		p.logger.Warn("Accepting login in degraded mode", zap.String("email", email))
		return &AuthResult{
			User:     degradedUser(email),
			Degraded: true,
			Source:   AuthSourceDegraded,
		}, nil
	default:
		return nil, ErrAuthUnavailable
	}

	user, err := store.Authenticate(ctx, email, password)
	if err != nil {
		if !IsInvalidCredentials(err) {
			p.logger.Error("Credential store failed", zap.String("source", string(source)), zap.Error(err))
		}
		return nil, err
	}
	return &AuthResult{User: user, Source: source}, nil
}

// verifyPassword checks password against a stored hash. Hashes that are not
// bcrypt are legacy plain values; a match on one asks for an upgrade.
func verifyPassword(stored, password string) (ok, upgrade bool) {
	if stored == "" || password == "" {
		return false, false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false
	}
	match := subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
	return match, match
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// SQLAuthStore verifies credentials against a dedicated PostgreSQL table
// holding at least email and password_hash columns.
type SQLAuthStore struct {
	db         *sql.DB
	table      string
	bcryptCost int
	timeout    time.Duration
	logger     *zap.Logger
}

// OpenSQLAuthStore connects to the auth database and checks it is reachable
func OpenSQLAuthStore(ctx context.Context, dsn, table string, bcryptCost int, timeout time.Duration, logger *zap.Logger) (*SQLAuthStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping auth store: %w", err)
	}

	return NewSQLAuthStore(db, table, bcryptCost, timeout, logger), nil
}

// NewSQLAuthStore wraps an open database handle
func NewSQLAuthStore(db *sql.DB, table string, bcryptCost int, timeout time.Duration, logger *zap.Logger) *SQLAuthStore {
	if table == "" {
		table = "users"
	}
	return &SQLAuthStore{db: db, table: table, bcryptCost: bcryptCost, timeout: timeout, logger: logger}
}

// Close releases the database handle
func (s *SQLAuthStore) Close() error {
	return s.db.Close()
}

// Authenticate implements CredentialStore
func (s *SQLAuthStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	table := pq.QuoteIdentifier(s.table)
	var stored string
	err := s.db.QueryRowContext(ctx,
		"SELECT password_hash FROM "+table+" WHERE lower(email) = $1", email,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}

	ok, upgrade := verifyPassword(stored, password)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if upgrade {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err == nil {
			_, err = s.db.ExecContext(ctx, "UPDATE "+table+" SET password_hash = $1 WHERE lower(email) = $2", string(hash), email)
		}
		if err != nil {
			s.logger.Warn("Failed to upgrade legacy password hash", zap.String("email", email), zap.Error(err))
		}
	}

	return &models.User{Email: email, Plan: models.UserPlanFree, Role: models.UserRoleMember}, nil
}
