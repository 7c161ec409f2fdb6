package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/slotbooking/internal/application"
)

// Claims is the bearer token payload. Identity is the email claim.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// JWTVerifier validates HS256 bearer tokens issued by the identity provider
// sharing the secret.
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTVerifier returns a verifier for secret. When issuer is non-empty the
// iss claim must match it.
func NewJWTVerifier(secret, issuer string, now func() time.Time) *JWTVerifier {
	if now == nil {
		now = time.Now
	}
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, now: now}
}

// Verify parses token and returns the principal it names.
func (v *JWTVerifier) Verify(token string) (application.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return application.Principal{}, fmt.Errorf("verify bearer token: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return application.Principal{}, errors.New("verify bearer token: email claim is missing")
	}
	return application.Principal{Email: email, DisplayName: strings.TrimSpace(claims.Name)}, nil
}

// Issue signs a token for principal valid for ttl. The service itself only
// verifies tokens; Issue exists for local tooling and tests.
func (v *JWTVerifier) Issue(principal application.Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   principal.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: principal.Email,
		Name:  principal.DisplayName,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func bearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	// Browsers cannot set headers on EventSource or WebSocket requests.
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
