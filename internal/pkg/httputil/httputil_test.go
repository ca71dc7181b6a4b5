package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		leaked string
	}{
		{"postgres dsn", "dial postgres://app:hunter2@db:5432/records failed", "hunter2"},
		{"mysql dsn", "app:hunter2@tcp(db:3306)/records", "hunter2"},
		{"redis url", "redis://:hunter2@cache:6379/0", "hunter2"},
		{"bearer", "Authorization: Bearer abc.def.ghi", "abc.def.ghi"},
		{"query token", "wss://worker/ws?token=abc123&x=1", "abc123"},
		{"json token", `{"type":"deploy","payload":{"token":"abc123"}}`, "abc123"},
		{"client secret", "client_secret=s3cr3t", "s3cr3t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeString(tt.input)
			if strings.Contains(got, tt.leaked) {
				t.Errorf("Expected %q to be masked, got %q", tt.leaked, got)
			}
			if !strings.Contains(got, maskedValue) {
				t.Errorf("Expected masked marker in %q", got)
			}
		})
	}

	if got := SanitizeString("nothing to hide"); got != "nothing to hide" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
	if SanitizeError(nil) != "" {
		t.Error("Expected empty string for nil error")
	}
}

func TestWriteError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/records/x", nil)
	w := httptest.NewRecorder()

	BadGateway(w, r, "Worker unreachable", errors.New("dial redis://:pw@cache:6379 failed"))

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Code != CodeBadGateway {
		t.Errorf("Expected code %s, got %s", CodeBadGateway, resp.Code)
	}
	if strings.Contains(resp.Details, ":pw@") {
		t.Errorf("Expected details to be sanitized, got %q", resp.Details)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		limit    int64
		wantOK   bool
		wantCode int
	}{
		{"valid", `{"serviceName":"web"}`, 1024, true, http.StatusOK},
		{"empty", ``, 1024, false, http.StatusBadRequest},
		{"syntax", `{"serviceName":`, 1024, false, http.StatusBadRequest},
		{"too large", `{"serviceName":"web"}     `, 20, false, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/api/v1/draft", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			var v map[string]any

			ok := DecodeJSONWithLimit(w, r, &v, tt.limit)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestDescribeJSONError(t *testing.T) {
	var target struct {
		Port int `json:"port"`
	}
	typeErr := json.Unmarshal([]byte(`{"port":"x"}`), &target)
	syntaxErr := json.Unmarshal([]byte(`{"port":}`), &target)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"empty", io.EOF, "Request body is empty"},
		{"truncated", io.ErrUnexpectedEOF, "Incomplete JSON body"},
		{"syntax", syntaxErr, "Syntax error at offset 9"},
		{"type", typeErr, "Field 'port' has wrong type, expected int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeJSONError(tt.err); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRequestTooLarge(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/draft", nil)
	w := httptest.NewRecorder()

	RequestTooLarge(w, r, MaxJSONBodySize)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Details != "Maximum allowed size: 4.0 MiB" {
		t.Errorf("Unexpected details %q", resp.Details)
	}
}
