package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerSecretMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"no secret configured", "", "", http.StatusOK},
		{"matching token", "s3cret", "Bearer s3cret", http.StatusOK},
		{"case-insensitive scheme", "s3cret", "bearer s3cret", http.StatusOK},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"not a bearer header", "s3cret", "Basic s3cret", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := BearerSecretMiddleware(tt.secret)(ok)
			req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status = %d; want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestExtractBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer  abc ")
	if got := ExtractBearer(req); got != "abc" {
		t.Fatalf("ExtractBearer = %q; want abc", got)
	}
}
