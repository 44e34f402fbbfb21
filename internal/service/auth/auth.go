package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/bookspot/bookspot_backend/internal/schema"
	pasetotoken "github.com/bookspot/bookspot_backend/pkg/paseto"
	"github.com/bookspot/bookspot_backend/pkg/util/password"
)

const (
	maxLoginAttempts = 5
	accountLockMins  = 15
)

// redisKeySession returns the Redis key for a session.
func redisKeySession(sessionID string) string { return "session:" + sessionID }

// redisKeyLoginFailures counts failed logins per email.
func redisKeyLoginFailures(email string) string { return "login:failures:" + email }

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type LoginRequest struct {
	Email    string
	Password string
}

type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds until access token expires
}

// Session is an authenticated request's identity.
type Session struct {
	User   *schema.User
	Claims *pasetotoken.Claims
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
	// Authenticate verifies an access token, checks that its session is still
	// live and loads the account behind it.
	Authenticate(ctx context.Context, accessToken string) (*Session, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type authService struct {
	db         *gorm.DB
	rdb        redis.Cmdable
	paseto     *pasetotoken.Manager
	params     *password.Params
	sessionTTL time.Duration
}

// New builds the login service. Stored hashes made with settings other than
// params are upgraded on the next successful login; params nil means the
// package default.
func New(db *gorm.DB, rdb redis.Cmdable, paseto *pasetotoken.Manager, params *password.Params, cfg *config.Config) Service {
	ttl := time.Duration(cfg.Authentication.SessionTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if params == nil {
		params = password.DefaultParams()
	}
	return &authService{db: db, rdb: rdb, paseto: paseto, params: params, sessionTTL: ttl}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthTokens, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	failures, err := s.rdb.Get(ctx, redisKeyLoginFailures(email)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get login failures: %w", err)
	}
	if failures >= maxLoginAttempts {
		return nil, ErrAccountLocked
	}

	var u schema.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.recordFailedLogin(ctx, email)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := password.Verify(u.PasswordHash, req.Password); err != nil {
		s.recordFailedLogin(ctx, email)
		return nil, ErrInvalidCredentials
	}
	s.rdb.Del(ctx, redisKeyLoginFailures(email))
	s.upgradeHash(ctx, &u, req.Password)

	return s.createSession(ctx, &u)
}

// upgradeHash rewrites the stored hash under the current params. A failure
// only costs another attempt at the next login.
func (s *authService) upgradeHash(ctx context.Context, u *schema.User, plain string) {
	if !password.NeedsRehash(u.PasswordHash, s.params) {
		return
	}
	hash, err := password.Hash(plain, s.params)
	if err != nil {
		slog.WarnContext(ctx, "rehash password", "user_id", u.ID, "error", err)
		return
	}
	err = s.db.WithContext(ctx).Model(&schema.User{}).
		Where("id = ? AND password_hash = ?", u.ID, u.PasswordHash).
		Update("password_hash", hash).Error
	if err != nil {
		slog.WarnContext(ctx, "store rehashed password", "user_id", u.ID, "error", err)
		return
	}
	u.PasswordHash = hash
}

// ---------------------------------------------------------------------------
// RefreshTokens
// ---------------------------------------------------------------------------

func (s *authService) RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.paseto.Verify(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != pasetotoken.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	if err := s.checkSession(ctx, claims.SessionID, claims.UserID); err != nil {
		return nil, err
	}
	s.rdb.Expire(ctx, redisKeySession(claims.SessionID.String()), s.sessionTTL)

	access, err := s.paseto.IssueAccess(claims.UserID, claims.Role, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &AuthTokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.paseto.AccessTTL().Seconds()),
	}, nil
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func (s *authService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	deleted, err := s.rdb.Del(ctx, redisKeySession(sessionID.String())).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if deleted == 0 {
		slog.DebugContext(ctx, "logout: session already expired", "session_id", sessionID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Authenticate
// ---------------------------------------------------------------------------

func (s *authService) Authenticate(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := s.paseto.Verify(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != pasetotoken.TokenTypeAccess {
		return nil, ErrInvalidToken
	}
	if err := s.checkSession(ctx, claims.SessionID, claims.UserID); err != nil {
		return nil, err
	}

	var u schema.User
	if err := s.db.WithContext(ctx).Where("id = ?", claims.UserID).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Account deleted while the session was live.
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if string(u.Role) != claims.Role {
		return nil, ErrInvalidToken
	}
	return &Session{User: &u, Claims: claims}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *authService) checkSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	owner, err := s.rdb.Get(ctx, redisKeySession(sessionID.String())).Result()
	if errors.Is(err, redis.Nil) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get session: %w", err)
	}
	if owner != userID.String() {
		return ErrInvalidToken
	}
	return nil
}

func (s *authService) createSession(ctx context.Context, u *schema.User) (*AuthTokens, error) {
	sessionID := uuid.Must(uuid.NewV7())

	if err := s.rdb.Set(ctx, redisKeySession(sessionID.String()), u.ID.String(), s.sessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	access, err := s.paseto.IssueAccess(u.ID, string(u.Role), sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.paseto.IssueRefresh(u.ID, string(u.Role), sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	slog.InfoContext(ctx, "session created", "user_id", u.ID, "session_id", sessionID)
	return &AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.paseto.AccessTTL().Seconds()),
	}, nil
}

func (s *authService) recordFailedLogin(ctx context.Context, email string) {
	key := redisKeyLoginFailures(email)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		slog.WarnContext(ctx, "record failed login", "err", err)
		return
	}
	if n == 1 || n >= maxLoginAttempts {
		s.rdb.Expire(ctx, key, accountLockMins*time.Minute)
	}
}
