package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skigaudi/skibot/internal/auth"
	"github.com/skigaudi/skibot/internal/log"
)

func TestIdentityMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		uid, provider  string
		wantPrivileged bool
	}{
		{"password provider is privileged", "admin-1", "password", true},
		{"federated provider is not", "user-1", "google.com", false},
		{"missing headers yield zero identity", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got auth.Identity
			next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = auth.IdentityFromContext(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.uid != "" {
				req.Header.Set(HeaderAuthUID, tt.uid)
				req.Header.Set(HeaderAuthProvider, tt.provider)
			}
			identityMiddleware(next).ServeHTTP(httptest.NewRecorder(), req)

			if got.UID != tt.uid {
				t.Errorf("uid = %q, want %q", got.UID, tt.uid)
			}
			if got.Privileged() != tt.wantPrivileged {
				t.Errorf("privileged = %v, want %v", got.Privileged(), tt.wantPrivileged)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	recoveryMiddleware(log.NewNop())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
		mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("order = %v", order)
	}
}
