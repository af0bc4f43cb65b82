package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{name: "valid token", token: "staff", header: "Bearer staff", want: http.StatusOK},
		{name: "wrong token", token: "staff", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "no scheme", token: "staff", header: "staff", want: http.StatusUnauthorized},
		{name: "no header", token: "staff", want: http.StatusUnauthorized},
		{name: "not configured", token: "", header: "Bearer ", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			r := httptest.NewRequest(http.MethodPost, "/api/orders/1/ready", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			NewAdminAuth(tt.token).Middleware(next).ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
