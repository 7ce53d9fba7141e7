package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segue/internal/shared"
	"golang.org/x/oauth2"
)

type mockExchanger struct {
	token *oauth2.Token
	err   error
	codes []string
}

func (m *mockExchanger) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	m.codes = append(m.codes, code)
	return m.token, m.err
}

func TestBasicRouter(t *testing.T) {
	t.Run("applies middleware in order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("outer"), mark("inner"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if strings.Join(order, ",") != "outer,inner,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("logging middleware records status", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)
		shared.SetLogLevel(logger, log.DebugLevel)

		router := NewBasicRouter()
		router.Use(Logging(logger))
		router.Handle(http.MethodGet, "/missing", http.NotFoundHandler())
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing?code=secret", nil))

		out := buf.String()
		if !strings.Contains(out, "404") || !strings.Contains(out, "/missing") {
			t.Errorf("expected request log line, got %q", out)
		}
		if strings.Contains(out, "secret") {
			t.Error("query string should not be logged")
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	t.Run("exchanges code", func(t *testing.T) {
		ex := &mockExchanger{token: &oauth2.Token{AccessToken: "abc"}}
		h := NewOAuthHandler(ex, "state-1")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=xyz", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := <-h.Result()
		if result.Error() != nil || result.Token.AccessToken != "abc" {
			t.Errorf("unexpected result %+v", result)
		}
		if len(ex.codes) != 1 || ex.codes[0] != "xyz" {
			t.Errorf("expected code xyz to be exchanged, got %v", ex.codes)
		}
	})

	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"invalid state", "state=wrong&code=xyz", nil, http.StatusBadRequest},
		{"denied", "state=state-1&error=access_denied", nil, http.StatusBadRequest},
		{"exchange fails", "state=state-1&code=xyz", errors.New("bad code"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOAuthHandler(&mockExchanger{err: tt.err}, "state-1")

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+tt.query, nil))

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			result := <-h.Result()
			if !errors.Is(result.Error(), shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", result.Error())
			}
		})
	}

	t.Run("second callback is rejected", func(t *testing.T) {
		h := NewOAuthHandler(&mockExchanger{token: &oauth2.Token{AccessToken: "abc"}}, "s")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&code=1", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=2", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	t.Run("delivers token", func(t *testing.T) {
		h := NewOAuthHandler(&mockExchanger{token: &oauth2.Token{AccessToken: "abc"}}, "s")
		srv, err := NewCallbackServer("127.0.0.1:0", h, nil)
		if err != nil {
			t.Fatalf("NewCallbackServer failed: %v", err)
		}

		go func() {
			resp, err := http.Get("http://" + srv.Addr() + "/callback?state=s&code=1")
			if err == nil {
				resp.Body.Close()
			}
		}()

		token, err := srv.Wait(context.Background(), 5*time.Second)
		if err != nil {
			t.Fatalf("expected token, got %v", err)
		}
		if token.AccessToken != "abc" {
			t.Errorf("unexpected token %+v", token)
		}
	})

	t.Run("times out", func(t *testing.T) {
		srv, err := NewCallbackServer("127.0.0.1:0", NewOAuthHandler(&mockExchanger{}, "s"), nil)
		if err != nil {
			t.Fatalf("NewCallbackServer failed: %v", err)
		}

		_, err = srv.Wait(context.Background(), 10*time.Millisecond)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		srv, err := NewCallbackServer("127.0.0.1:0", NewOAuthHandler(&mockExchanger{}, "s"), nil)
		if err != nil {
			t.Fatalf("NewCallbackServer failed: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := srv.Wait(ctx, time.Minute); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("address in use", func(t *testing.T) {
		first, err := NewCallbackServer("127.0.0.1:0", NewOAuthHandler(&mockExchanger{}, "s"), nil)
		if err != nil {
			t.Fatalf("NewCallbackServer failed: %v", err)
		}
		defer first.Shutdown()

		if _, err := NewCallbackServer(first.Addr(), NewOAuthHandler(&mockExchanger{}, "s"), nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
