package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IdentityResolver maps an authenticated request to an owner ID. The trading
// core never sees credentials, only the resolved owner.
type IdentityResolver interface {
	Resolve(r *http.Request) (uuid.UUID, error)
}

// JWTResolver resolves the owner from a bearer JWT whose subject claim holds
// the owner UUID. Tokens are issued by the out-of-scope identity service;
// this side only verifies the HMAC signature.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver creates a resolver verifying tokens with the given secret
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// Resolve validates the Authorization header and extracts the owner UUID.
func (j *JWTResolver) Resolve(r *http.Request) (uuid.UUID, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return uuid.Nil, errors.New("missing authorization header")
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return uuid.Nil, errors.New("authorization header must be a bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, fmt.Errorf("missing subject claim: %w", err)
	}

	ownerID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject is not a valid owner ID: %w", err)
	}

	return ownerID, nil
}

type ownerContextKey struct{}

// authMiddleware resolves the request identity and stores the owner ID on the
// context. Unresolvable requests are rejected with 401 before reaching any
// handler.
func authMiddleware(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, err := resolver.Resolve(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerContextKey{}, ownerID)))
		})
	}
}

// ownerFromContext returns the owner ID stored by authMiddleware.
func ownerFromContext(ctx context.Context) (uuid.UUID, bool) {
	ownerID, ok := ctx.Value(ownerContextKey{}).(uuid.UUID)
	return ownerID, ok
}
