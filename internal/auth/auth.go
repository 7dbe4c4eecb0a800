// Package auth issues and verifies the bearer tokens that identify the user
// behind an HTTP MCP connection.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alanpac24/Vibebusiness/internal/errinfo"
)

type contextKey int

const userContextKey contextKey = 0

// Issuer is the iss claim on every token.
const Issuer = "vibebusiness"

// Service signs and validates HS256 tokens.
type Service struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// New creates a Service. The secret must be non-empty.
func New(secret string, expiry time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errinfo.ConfigurationInvalid("jwt secret is empty")
	}
	if expiry <= 0 {
		return nil, errinfo.ConfigurationInvalid(fmt.Sprintf("token expiry must be positive, got %s", expiry))
	}
	return &Service{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

// GenerateToken creates a signed token for userID.
func (s *Service) GenerateToken(userID string) (string, error) {
	if userID == "" {
		return "", errinfo.ValidationFailed(errinfo.PhaseAuth, "user id is required")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": Issuer,
		"iat": now.Unix(),
		"exp": now.Add(s.expiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and validates a token, returning its subject.
func (s *Service) ValidateToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", errinfo.Unauthenticated("invalid token: " + err.Error())
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errinfo.Unauthenticated("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errinfo.Unauthenticated("missing sub claim")
	}
	return sub, nil
}

// Middleware requires a valid bearer token and stores its subject in the
// request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSONError(w, http.StatusUnauthorized, errinfo.Unauthenticated("missing or invalid Authorization header"))
			return
		}
		userID, err := s.ValidateToken(tokenStr)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeJSONError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
	})
}

// WithUser stores userID in ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserFromContext returns the authenticated user id, or "".
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userContextKey).(string)
	return id
}

// extractBearerToken pulls the token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// writeJSONError writes err as an ErrorInfo body.
func writeJSONError(w http.ResponseWriter, status int, err error) {
	info := errinfo.From(err, errinfo.PhaseAuth)
	var e *errinfo.Error
	if !errors.As(err, &e) {
		info.ErrorCode = errinfo.CodeUnauthenticated
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(info)
}
