package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alanpac24/Vibebusiness/internal/errinfo"
)

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := New("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New("", time.Hour); !errinfo.HasCode(err, errinfo.CodeConfigurationInvalid) {
		t.Errorf("empty secret: got %v", err)
	}
	if _, err := New("s", 0); !errinfo.HasCode(err, errinfo.CodeConfigurationInvalid) {
		t.Errorf("zero expiry: got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := newService(t)
	tok, err := s.GenerateToken("alice")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	sub, err := s.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if sub != "alice" {
		t.Errorf("sub = %q, want %q", sub, "alice")
	}
}

func TestValidateTokenRejects(t *testing.T) {
	s := newService(t)

	other, _ := New("other-secret", time.Hour)
	forged, _ := other.GenerateToken("alice")

	expired := newService(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := expired.GenerateToken("alice")

	noneTok, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice", "iss": Issuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	wrongIss, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice", "iss": "someone-else", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": Issuer, "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))

	cases := map[string]string{
		"garbage":    "not-a-token",
		"forged":     forged,
		"expired":    stale,
		"alg none":   noneTok,
		"wrong iss":  wrongIss,
		"no subject": noSub,
	}
	for name, tok := range cases {
		if _, err := s.ValidateToken(tok); !errinfo.HasCode(err, errinfo.CodeUnauthenticated) {
			t.Errorf("%s: got %v", name, err)
		}
	}
}

func TestMiddleware(t *testing.T) {
	s := newService(t)
	var seen string
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tok, _ := s.GenerateToken("bob")
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || seen != "bob" {
		t.Errorf("status = %d, user = %q", rec.Code, seen)
	}

	for name, header := range map[string]string{
		"missing": "",
		"basic":   "Basic Ym9iOnB3",
		"invalid": "Bearer nope",
	} {
		seen = ""
		req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rec.Code)
		}
		if seen != "" {
			t.Errorf("%s: handler ran", name)
		}
		var info errinfo.ErrorInfo
		if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil || info.ErrorCode != errinfo.CodeUnauthenticated {
			t.Errorf("%s: body = %s", name, rec.Body.String())
		}
		if rec.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("%s: no WWW-Authenticate header", name)
		}
	}
}
