package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthRoundTrip(t *testing.T) {
	auth := NewAuth("s3cret")
	tok, err := auth.SignToken("u1", "N1", "obs@ngo.org", time.Hour)
	if err != nil {
		t.Fatalf("SignToken returned error: %v", err)
	}
	var ngoID, actor string
	h := auth.WithAuth(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ngoID, _ = NGOIDFromContext(r.Context())
		actor = ActorFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || ngoID != "N1" || actor != "obs@ngo.org" {
		t.Fatalf("got %d ngo=%q actor=%q", rec.Code, ngoID, actor)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	other, _ := NewAuth("other").SignToken("u1", "N1", "", time.Hour)
	expired, _ := NewAuth("s3cret").SignToken("u1", "N1", "", -time.Minute)
	cases := map[string]string{
		"missing":      "",
		"wrong secret": "Bearer " + other,
		"expired":      "Bearer " + expired,
		"not bearer":   "Basic dTpw",
	}
	auth := NewAuth("s3cret")
	h := auth.WithAuth(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler reached")
	})))
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}

func TestActorFallsBackToUID(t *testing.T) {
	auth := NewAuth("")
	tok, _ := auth.SignToken("u9", "N1", "", time.Hour)
	var actor string
	h := auth.WithAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = ActorFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if actor != "u9" {
		t.Fatalf("actor = %q, want u9", actor)
	}
}

func TestLocaleMiddleware(t *testing.T) {
	var got string
	h := LocaleMiddleware([]string{"EN", "RO"}, "EN")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept-Language", "ro-RO,ro;q=0.9,en;q=0.5")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "RO" || rec.Header().Get("Content-Language") != "RO" {
		t.Fatalf("locale = %q, header = %q", got, rec.Header().Get("Content-Language"))
	}

	req = httptest.NewRequest(http.MethodGet, "/health?lang=en", nil)
	req.Header.Set("Accept-Language", "ro")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "EN" {
		t.Fatalf("query locale = %q, want EN", got)
	}
}

func TestSecureHeadersAndRequestID(t *testing.T) {
	var seen string
	h := RequestID(SecureHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Cache-Control") == "" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing security headers: %v", rec.Header())
	}
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("request id = %q, header = %q", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Fatalf("request id = %q, want abc", seen)
	}
}
