package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestClientMiddleware_WithValidCookie(t *testing.T) {
	m := NewClientMiddleware("test-secret")
	clientID := uuid.NewString()

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := ClientIDFromContext(r.Context())
		if !ok {
			t.Fatalf("client id not in context")
		}
		if id != clientID {
			t.Fatalf("client id from context = %s, want %s", id, clientID)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)

	m.SetClientCookie(w, clientID)
	resCookies := w.Result().Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetClientCookie")
	}

	r.AddCookie(resCookies[0])

	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("valid cookie must not be reissued")
	}
}

func TestClientMiddleware_IssuesCookie(t *testing.T) {
	m := NewClientMiddleware("test-secret")

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClientIDFromContext(r.Context())
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)

	m.Middleware(next).ServeHTTP(w, r)

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("client id %q is not a uuid: %v", seen, err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != clientCookieName {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatalf("client cookie must be HttpOnly")
	}

	id, ok := m.parseCookie(cookies[0].Value)
	if !ok || id != seen {
		t.Fatalf("issued cookie parses to %q, %v; want %q", id, ok, seen)
	}
}

func TestClientMiddleware_RejectsForgedCookie(t *testing.T) {
	m := NewClientMiddleware("test-secret")
	other := NewClientMiddleware("other-secret")
	victim := uuid.NewString()

	tests := []struct {
		name  string
		value string
	}{
		{name: "foreign signature", value: victim + "." + other.sign(victim)},
		{name: "no signature", value: victim},
		{name: "not a uuid", value: "admin." + m.sign("admin")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = ClientIDFromContext(r.Context())
			})

			r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
			r.AddCookie(&http.Cookie{Name: clientCookieName, Value: tt.value})

			m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

			if seen == "" || seen == victim || seen == "admin" {
				t.Fatalf("forged client id accepted: %q", seen)
			}
		})
	}
}
