package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestBearerToken(t *testing.T) {
	h := BearerToken("s3cret")(okHandler)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer s3cret", "", http.StatusOK},
		{"query", "", "?access_token=s3cret", http.StatusOK},
		{"basic", "Basic s3cret", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/session"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestBearerTokenDisabled(t *testing.T) {
	w := httptest.NewRecorder()
	BearerToken("")(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(0.001, 2)
	defer l.Stop()
	h := l.Handler(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Expected burst of 2 to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected third request to be limited, got %d", codes[2])
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("Expected other client to pass, got %d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded", "1.1.1.1, 2.2.2.2", "", "3.3.3.3:80", "1.1.1.1"},
		{"real ip", "", "4.4.4.4", "3.3.3.3:80", "4.4.4.4"},
		{"remote", "", "", "3.3.3.3:80", "3.3.3.3"},
		{"no port", "", "", "3.3.3.3", "3.3.3.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	h := BodyLimit(8)(okHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/draft", strings.NewReader(`{"serviceName":"web"}`)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/draft", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := chi.NewRouter()
	r.Use(RequestLogger(log, false))
	r.Get("/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	})
	r.Get("/health", okHandler)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Errorf("Expected health checks to be skipped, got %s", buf.String())
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records/abc", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("Expected WARN for a 404, got %v", entry["level"])
	}
	if entry["route"] != "/records/{id}" {
		t.Errorf("Expected route pattern, got %v", entry["route"])
	}
	if entry["status"] != float64(404) || entry["bytes"] != float64(7) {
		t.Errorf("Expected status 404 and 7 bytes, got %v and %v", entry["status"], entry["bytes"])
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		status  int
		verbose bool
		want    slog.Level
	}{
		{200, false, slog.LevelInfo},
		{200, true, slog.LevelDebug},
		{101, false, slog.LevelInfo},
		{409, false, slog.LevelWarn},
		{502, true, slog.LevelError},
	}

	for _, tt := range tests {
		if got := levelFor(tt.status, tt.verbose); got != tt.want {
			t.Errorf("levelFor(%d, %v) = %v, want %v", tt.status, tt.verbose, got, tt.want)
		}
	}
}
