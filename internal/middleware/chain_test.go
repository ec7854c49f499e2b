package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/nakama/internal/model"
)

// newChainRouter は本番と同じ順序でミドルウェアを組み立てたルーターを返す。
// Recovery -> SecurityHeaders -> Logging -> CORS -> CSRF -> Session -> RateLimit -> Handler
func newChainRouter(t *testing.T, logBuf io.Writer) *chi.Mux {
	t.Helper()
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session" {
				return &model.Session{ID: id, UserID: "user-chain", ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			return nil, nil
		},
	}
	rl := NewRateLimiter(testRateLimiterConfig())
	t.Cleanup(rl.Stop)

	csrfCfg := CSRFConfig{}
	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Use(NewSecurityHeadersMiddleware(false))
	r.Use(NewLoggingMiddleware(slog.New(slog.NewJSONHandler(logBuf, nil)), nil))
	r.Use(NewCORSMiddleware("http://localhost:3000"))
	r.Use(NewCSRFMiddleware(csrfCfg))

	r.Get("/api/csrf-token", NewCSRFTokenHandler(csrfCfg).ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(finder))
		r.Use(rl.GeneralMiddleware())
		r.Get("/api/profile", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"id": userID})
		})
		r.Post("/api/communities", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		r.Get("/api/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
	})
	return r
}

func TestMiddlewareChain_AuthenticatedGET(t *testing.T) {
	var logBuf bytes.Buffer
	router := newChainRouter(t, &logBuf)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body["id"] != "user-chain" {
		t.Errorf("id = %q, want %q", body["id"], "user-chain")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be applied")
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("CORS headers should be applied")
	}

	var entry map[string]any
	if err := json.Unmarshal(logBuf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["user_id"] != "user-chain" {
		t.Errorf("logged user_id = %v, want user-chain", entry["user_id"])
	}
}

func TestMiddlewareChain_NoSession_Returns401(t *testing.T) {
	router := newChainRouter(t, io.Discard)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	assertErrorBody(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

func TestMiddlewareChain_POSTRequiresCSRFToken(t *testing.T) {
	router := newChainRouter(t, io.Discard)

	// トークン取得
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	var tok map[string]string
	if err := json.NewDecoder(w.Body).Decode(&tok); err != nil || tok["token"] == "" {
		t.Fatalf("failed to get CSRF token: %v", err)
	}

	// トークンなしは403
	req := httptest.NewRequest(http.MethodPost, "/api/communities", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assertErrorBody(t, w, http.StatusForbidden, model.ErrCodeCSRFInvalid)

	// トークンありは通る
	req = httptest.NewRequest(http.MethodPost, "/api/communities", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tok["token"]})
	req.Header.Set(CSRFHeaderName, tok["token"])
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestMiddlewareChain_PanicRecovered(t *testing.T) {
	router := newChainRouter(t, io.Discard)

	req := httptest.NewRequest(http.MethodGet, "/api/panic", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assertErrorBody(t, w, http.StatusInternalServerError, model.ErrCodeInternal)
}

func TestSecurityHeadersMiddleware_HSTS(t *testing.T) {
	for _, hsts := range []bool{true, false} {
		w := httptest.NewRecorder()
		NewSecurityHeadersMiddleware(hsts)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		got := w.Header().Get("Strict-Transport-Security") != ""
		if got != hsts {
			t.Errorf("hsts=%v: Strict-Transport-Security present = %v", hsts, got)
		}
		if w.Header().Get("Content-Security-Policy") == "" {
			t.Error("Content-Security-Policy should be set")
		}
	}
}
