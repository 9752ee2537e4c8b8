package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"docuchat/internal/models"
	"docuchat/internal/redis"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors returned by the session authority. Handlers map these to
// the wire-level reason codes.
var (
	ErrMissingField       = errors.New("missing required field")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// RevocationStore records invalidated token IDs until their natural expiry.
// *redis.Client satisfies it; tests substitute an in-memory map.
type RevocationStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// Service issues, validates, and revokes user authentication tokens and owns
// the user registry. A verified token resolves to exactly one username; that
// username is the only tenant key the pipelines accept.
type Service struct {
	db             *sql.DB
	revocations    RevocationStore
	secret         []byte
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

// NewService constructs an auth service with the supplied signing secret and
// token lifetime.
func NewService(db *sql.DB, revocations RevocationStore, secret []byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		db:             db,
		revocations:    revocations,
		secret:         secret,
		tokenTTL:       ttl,
		cookieName:     "auth_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

type claims struct {
	jwt.RegisteredClaims
}

// Register creates a user with the supplied credentials, storing a bcrypt
// hash of the password.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingField
	}
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, string(hash), now,
	)
	if err != nil {
		// A concurrent registration may win the race past the EXISTS check;
		// the unique constraint on username is the authority.
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	return &models.User{ID: id, Username: username, Email: email, PasswordHash: string(hash), CreatedAt: now}, nil
}

// Authenticate validates credentials and mints a signed token bound to the
// username. A missing user and a wrong password are indistinguishable.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	var storedHash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`, username,
	).Scan(&storedHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("query user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify resolves a token to the username it was issued for. Malformed,
// tampered, expired, and revoked tokens all resolve to ErrUnauthenticated.
func (s *Service) Verify(ctx context.Context, tokenString string) (string, error) {
	cl, err := s.parse(tokenString)
	if err != nil || cl.Subject == "" {
		return "", ErrUnauthenticated
	}
	revoked, err := s.isRevoked(ctx, cl.ID)
	if err != nil {
		// Fail closed: an unreachable revocation store must not admit
		// possibly-revoked tokens.
		return "", fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return "", ErrUnauthenticated
	}
	return cl.Subject, nil
}

// Invalidate marks the token unusable before its natural expiry. Invalidating
// a token that is already invalid, expired, or revoked is an ack, not an
// error. Tenant data is untouched: losing a session never deletes documents.
func (s *Service) Invalidate(ctx context.Context, tokenString string) error {
	cl, err := s.parse(tokenString)
	if err != nil || cl.ID == "" {
		return nil
	}
	remaining := time.Until(cl.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	if err := s.revocations.Set(ctx, revocationKey(cl.ID), "1", remaining); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) parse(tokenString string) (*claims, error) {
	cl := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, cl, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || cl.ExpiresAt == nil {
		return nil, ErrUnauthenticated
	}
	return cl, nil
}

func (s *Service) isRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return true, nil
	}
	_, err := s.revocations.Get(ctx, revocationKey(jti))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func revocationKey(jti string) string {
	return "auth:revoked:" + jti
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// AuthCookieName returns the cookie name storing auth tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return uuid.NewString(), nil
}
