// Package service contains application services for accounts and notes.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/notekeeper/internal/crypto"
	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/limiter"
	"github.com/and161185/notekeeper/internal/metrics"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/and161185/notekeeper/internal/repository"
)

// MaxUsernameLen bounds usernames, in characters.
const MaxUsernameLen = 80

// AuthService defines account and session operations.
type AuthService interface {
	// CreateUser registers an account; a taken username yields errs.ErrAlreadyExists.
	CreateUser(ctx context.Context, username, password string) (model.User, error)
	// VerifyPassword reports whether password matches the account. Unknown users yield false.
	VerifyPassword(ctx context.Context, username, password string) (bool, error)
	// Login applies rate limiting, verifies credentials and issues an access token.
	Login(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error)
	// Authenticate validates an access token and returns its user id.
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	log       *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim, log: log, now: time.Now}
}

// CreateUser stores a new user with a fresh per-user salt.
func (s *AuthServiceImpl) CreateUser(ctx context.Context, username, password string) (model.User, error) {
	var v errs.ValidationError
	switch {
	case strings.TrimSpace(username) == "":
		v.Add("username", "must not be empty")
	case !utf8.ValidString(username):
		v.Add("username", "must be valid UTF-8")
	case strings.ContainsRune(username, 0):
		v.Add("username", "must not contain NUL")
	case utf8.RuneCountInString(username) > MaxUsernameLen:
		v.Add("username", "too long")
	}
	if password == "" {
		v.Add("password", "must not be empty")
	}
	if err := v.OrNil(); err != nil {
		return model.User{}, err
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return model.User{}, err
	}
	salt, err := pkgcrypto.NewSalt()
	if err != nil {
		return model.User{}, err
	}
	u := &model.User{
		ID:           uid,
		Username:     username,
		PasswordHash: pkgcrypto.HashPassword([]byte(password), salt),
		PasswordSalt: salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", zap.String("user_id", uid.String()))
	return *u, nil
}

// VerifyPassword costs the same for unknown users as for known ones.
func (s *AuthServiceImpl) VerifyPassword(ctx context.Context, username, password string) (bool, error) {
	_, ok, err := s.verify(ctx, username, password)
	return ok, err
}

func (s *AuthServiceImpl) verify(ctx context.Context, username, password string) (*model.User, bool, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, pkgcrypto.BurnPassword([]byte(password)), nil
	}
	if err != nil {
		return nil, false, err
	}
	return u, pkgcrypto.VerifyPassword([]byte(password), u.PasswordSalt, u.PasswordHash), nil
}

// Login authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		metrics.LoginAttempts.WithLabelValues("blocked").Inc()
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, ok, err := s.verify(ctx, username, password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return model.Tokens{}, model.User{}, err
	}
	if !ok {
		blocked, _, ferr := s.lim.Failure(ctx, username, ipHash)
		if ferr != nil {
			s.log.Warn("record login failure", zap.Error(ferr))
		}
		if blocked {
			metrics.LoginAttempts.WithLabelValues("blocked").Inc()
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown user and wrong password look the same
		metrics.LoginAttempts.WithLabelValues("bad_credentials").Inc()
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, username, ipHash); err != nil {
		s.log.Warn("reset login counters", zap.Error(err))
	}

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return model.Tokens{}, model.User{}, err
	}
	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// Authenticate verifies an HS256 token and returns its subject. Every failure is errs.ErrUnauthorized.
func (s *AuthServiceImpl) Authenticate(_ context.Context, token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	},
		jwt.WithLeeway(30*time.Second),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}
