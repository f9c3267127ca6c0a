package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "syra-platform"

// ErrInvalidToken indicates the token failed verification for any reason:
// bad signature, expiry, malformed structure or missing subject. Callers get
// no finer detail than this.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenPayload is the claim set carried by a login token. SessionID is empty
// only for pre-login tokens; every post-login token carries one.
type TokenPayload struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	SessionID string `json:"sessionId,omitempty"`
}

type tokenClaims struct {
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies login tokens with an HS256 shared secret. It is
// pure: no store or network access, safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec creates a codec. The secret is injected, never read from the
// environment here, so tests can supply their own.
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &Codec{secret: secret, ttl: ttl}, nil
}

// Sign produces a signed token for the payload. A payload without a userId
// is rejected.
func (c *Codec) Sign(payload TokenPayload) (string, error) {
	if strings.TrimSpace(payload.UserID) == "" {
		return "", errors.New("auth: token payload requires userId")
	}

	now := time.Now().UTC()
	claims := tokenClaims{
		Email:     payload.Email,
		Role:      payload.Role,
		SessionID: payload.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   payload.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify checks the signature and claims. Every failure mode maps to
// ErrInvalidToken; a token is never decoded without verification.
func (c *Codec) Verify(token string) (*TokenPayload, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}

	return &TokenPayload{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}
