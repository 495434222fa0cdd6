package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose names the lifecycle action a token authorizes.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify-email"
	PurposeResetPassword Purpose = "reset-password"
	PurposeSession       Purpose = "session"
)

var (
	// ErrTokenMalformed covers bad structure, bad signature, unexpected
	// algorithm and a purpose other than the one requested.
	ErrTokenMalformed = errors.New("token is malformed")
	// ErrTokenExpired is returned for a correctly signed token past its exp claim.
	ErrTokenExpired = errors.New("token is expired")
	// ErrTokenUnknown is returned when the token subject cannot be resolved.
	ErrTokenUnknown = errors.New("token subject is unknown")
)

const (
	DefaultVerifyTTL  = 2 * time.Hour
	DefaultResetTTL   = 2 * time.Hour
	DefaultSessionTTL = 30 * 24 * time.Hour
)

// Claims is the payload embedded in every token.
type Claims struct {
	Email   string  `json:"email"`
	UID     string  `json:"uid,omitempty"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// UserID parses the uid claim carried by session tokens.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.UID, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrTokenUnknown
	}
	return id, nil
}

// Subject identifies the user a token is minted for.
type Subject struct {
	UserID int64
	Email  string
}

type TokenConfig struct {
	Secret     []byte
	Issuer     string
	VerifyTTL  time.Duration
	ResetTTL   time.Duration
	SessionTTL time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// TokenService issues and validates HMAC signed tokens for all purposes.
// It holds no per-user state.
type TokenService struct {
	secret []byte
	issuer string
	ttls   map[Purpose]time.Duration
	now    func() time.Time
}

func NewTokenService(cfg TokenConfig) *TokenService {
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = DefaultVerifyTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenService{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttls: map[Purpose]time.Duration{
			PurposeVerifyEmail:   cfg.VerifyTTL,
			PurposeResetPassword: cfg.ResetTTL,
			PurposeSession:       cfg.SessionTTL,
		},
		now: cfg.Now,
	}
}

// Now returns the service clock. Callers comparing stored expiries use it so
// that stored and signature-level expiry agree.
func (s *TokenService) Now() time.Time {
	return s.now()
}

// TTL returns the lifetime configured for purpose.
func (s *TokenService) TTL(purpose Purpose) time.Duration {
	return s.ttls[purpose]
}

// Issue signs a token for purpose and returns it with its expiry.
// Session tokens also carry the user id.
func (s *TokenService) Issue(purpose Purpose, subject Subject) (string, time.Time, error) {
	ttl, ok := s.ttls[purpose]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token purpose %q", purpose)
	}
	if subject.Email == "" {
		return "", time.Time{}, errors.New("token subject email is required")
	}
	if purpose == PurposeSession && subject.UserID <= 0 {
		return "", time.Time{}, errors.New("session token requires a user id")
	}

	now := s.now()
	expires := now.Add(ttl)
	claims := &Claims{
		Email:   subject.Email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if purpose == PurposeSession {
		claims.UID = strconv.FormatInt(subject.UserID, 10)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate checks signature, expiry and purpose and returns the claims.
func (s *TokenService) Validate(tokenString string, purpose Purpose) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose %q", ErrTokenMalformed, claims.Purpose)
	}
	if claims.Email == "" {
		return nil, ErrTokenUnknown
	}
	if purpose == PurposeSession {
		if _, err := claims.UserID(); err != nil {
			return nil, err
		}
	}
	return claims, nil
}
