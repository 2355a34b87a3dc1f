package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lawchat/internal/backend"
	"lawchat/internal/model"
	"lawchat/internal/store"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrTokenExpired      = errors.New("admin token expired")
	ErrInvalidToken      = errors.New("invalid admin token")
)

type LoginAPI interface {
	Login(ctx context.Context, username, password string) (*model.Login, error)
}

// TokenClaims is what can be read from a backend-issued admin token.
// Verified is true only when the signature was checked against a secret.
type TokenClaims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
	Verified  bool
}

// AuthService manages the admin login of one client context. The backend
// issues tokens; this side only stores and inspects them.
type AuthService struct {
	api       LoginAPI
	prefs     *store.Prefs
	jwtSecret string
	now       func() time.Time
}

func NewAuthService(api LoginAPI, prefs *store.Prefs, jwtSecret string) *AuthService {
	return &AuthService{
		api:       api,
		prefs:     prefs,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*model.Login, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	login, err := s.api.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}

	// Opaque tokens are fine; claims only fill in what the body left out.
	if claims, err := s.Inspect(login.Token); err == nil {
		if login.Role == "" {
			login.Role = claims.Role
		}
		login.ExpiresAt = claims.ExpiresAt
	}

	if err := s.prefs.SaveLogin(ctx, *login); err != nil {
		return nil, err
	}
	return login, nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.prefs.ClearLogin(ctx)
}

// Current returns the stored login. An expired token is cleared and
// reported as ErrTokenExpired.
func (s *AuthService) Current(ctx context.Context) (*model.Login, error) {
	login, ok, err := s.prefs.Login(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotLoggedIn
	}

	claims, err := s.Inspect(login.Token)
	switch {
	case errors.Is(err, ErrTokenExpired):
		if clearErr := s.prefs.ClearLogin(ctx); clearErr != nil {
			return nil, clearErr
		}
		return nil, ErrTokenExpired
	case err != nil && s.jwtSecret != "":
		return nil, err
	case err == nil:
		login.ExpiresAt = claims.ExpiresAt
		if login.Role == "" {
			login.Role = claims.Role
		}
	}
	return &login, nil
}

// Inspect reads role, subject and expiry from a JWT. With a secret
// configured the HMAC signature is verified too.
func (s *AuthService) Inspect(token string) (*TokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	verified := false
	if s.jwtSecret != "" {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(s.jwtSecret), nil
		}, jwt.WithTimeFunc(s.now))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrTokenExpired
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		verified = true
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	out := &TokenClaims{Verified: verified}
	out.Subject, _ = claims.GetSubject()
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
		if !verified && !s.now().Before(exp.Time) {
			return nil, ErrTokenExpired
		}
	}
	return out, nil
}
