package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// echoHandler возвращает тело запроса с тем же Content-Type.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
	w.Header().Set("Content-Length", "1")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func compress(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(res.Body)
		if err != nil {
			t.Fatalf("new gzip reader: %v", err)
		}
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestGzipMiddleware(t *testing.T) {
	const search = `{"width":205,"height":55,"diameter":16,"inStock":true}`
	const twiml = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

	tests := []struct {
		name         string
		body         string
		contentType  string
		gzipRequest  bool
		acceptGzip   bool
		wantEncoding string
		wantVary     string
	}{
		{name: "compressed search request, compressed response", body: search, contentType: "application/json", gzipRequest: true, acceptGzip: true, wantEncoding: "gzip", wantVary: "Accept-Encoding"},
		{name: "compressed search request, plain response", body: search, contentType: "application/json", gzipRequest: true},
		{name: "plain webhook reply compressed", body: twiml, contentType: "text/xml", acceptGzip: true, wantEncoding: "gzip", wantVary: "Accept-Encoding"},
		{name: "plain in plain out", body: "From=whatsapp%3A%2B33612345678&Body=menu", contentType: "application/x-www-form-urlencoded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tt.body)
			if tt.gzipRequest {
				body = compress(t, tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/search-tyres", body)
			req.Header.Set("Content-Type", tt.contentType)
			if tt.gzipRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip, deflate")
			}
			w := httptest.NewRecorder()

			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusOK)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.wantEncoding)
			}
			if v := res.Header.Get("Vary"); v != tt.wantVary {
				t.Fatalf("vary: got %q want %q", v, tt.wantVary)
			}
			if ct := res.Header.Get("Content-Type"); ct != tt.contentType {
				t.Fatalf("content-type: got %q want %q", ct, tt.contentType)
			}
			if tt.wantEncoding == "gzip" && res.Header.Get("Content-Length") != "" {
				t.Fatalf("content-length must be dropped for compressed responses")
			}
			if got := readBody(t, res); got != tt.body {
				t.Fatalf("body: got %q want %q", got, tt.body)
			}
		})
	}
}

func TestGzipMiddleware_BadRequestBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/search-tyres", strings.NewReader(`{"width":205}`))
	req.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	GzipMiddleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Fatalf("next handler must not run on a malformed body")
	}
}
