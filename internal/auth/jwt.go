// Package auth provides the session token codec, the OAuth provider adapters
// and the bearer-token middleware for the Category Note API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client visits /auth/login/{provider} → redirected to GitHub or Google
//  2. The provider calls back /auth/callback/{provider} with a code
//  3. Server exchanges the code for a normalized Identity, upserts the user
//  4. Server issues a signed JWT and redirects to the frontend with ?token=
//  5. The frontend sends "Authorization: Bearer <token>" on every API call;
//     RequireAuth verifies it and loads the user into the request context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"42","user_id":42,"email":"a@b.c","exp":1234567890,...}
//	- Signature: HMAC(header+"."+payload, secret)
//
// The server verifies the signature with the secret alone, no DB lookup.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "category-note"

// ErrInvalidToken is returned by Verify for every rejected token: malformed,
// bad signature, wrong algorithm, wrong issuer, expired or missing subject.
// The cause is attached for logging but callers only check this sentinel.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenCodec issues and verifies HMAC-signed session tokens.
type TokenCodec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a codec. algorithm is one of HS256, HS384, HS512;
// asymmetric algorithms are refused because the codec only holds a shared
// secret.
func NewTokenCodec(secret, algorithm string, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", algorithm)
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}
	return &TokenCodec{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock replaces the codec's time source. Issue and Verify both use it,
// which lets tests check expiry at exact instants.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// Claims is what a verified token asserts.
type Claims struct {
	SubjectID int64
	Email     string
	ExpiresAt time.Time
}

// tokenClaims is the JWT payload. user_id duplicates sub as a number for
// clients that read it directly.
type tokenClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Issue signs a token for the subject using the codec's default lifetime.
func (c *TokenCodec) Issue(subjectID int64, email string) (string, error) {
	return c.IssueWithTTL(subjectID, email, c.ttl)
}

// IssueWithTTL signs a token with a custom lifetime. Expiry has one-second
// precision: the token is valid while now < exp.
func (c *TokenCodec) IssueWithTTL(subjectID int64, email string, ttl time.Duration) (string, error) {
	now := c.now()

	tc := tokenClaims{
		UserID: subjectID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(c.method, tc).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and checks a token string.
//
// ALGORITHM CONFUSION ATTACK:
// Without pinning the algorithm, a token with "alg":"none" (or an asymmetric
// alg whose public key is our secret) might be accepted. WithValidMethods
// restricts parsing to the one configured HMAC variant.
func (c *TokenCodec) Verify(tokenStr string) (Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return Claims{}, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	if tc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	id, err := strconv.ParseInt(tc.Subject, 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, tc.Subject)
	}

	out := Claims{SubjectID: id, Email: tc.Email}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}
