package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:    url,
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+590690000001",
		Timeout:    time.Second,
		RetryMax:   1,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestSendText_PostsForm(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+590690000001", r.PostForm.Get("From"))
		assert.Equal(t, "whatsapp:+590690000002", r.PostForm.Get("To"))
		assert.Equal(t, "Bonjour", r.PostForm.Get("Body"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer ts.Close()

	err := newTestClient(t, ts.URL).SendText(context.Background(), "+590690000002", "Bonjour")
	require.NoError(t, err)
}

func TestSendMedia_KeepsPrefixedAddress(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+590690000002", r.PostForm.Get("To"))
		assert.Equal(t, "https://qr.example/x.png", r.PostForm.Get("MediaUrl"))
		assert.Empty(t, r.PostForm.Get("Body"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	err := newTestClient(t, ts.URL).SendMedia(context.Background(), "whatsapp:+590690000002", "https://qr.example/x.png")
	require.NoError(t, err)
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	require.NoError(t, newTestClient(t, ts.URL).SendText(context.Background(), "+1", "hi"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSend_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer ts.Close()

	err := newTestClient(t, ts.URL).SendText(context.Background(), "bad", "hi")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 21211, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{AccountSID: "AC"}, nil)
	assert.Error(t, err)
}

func TestAddressHelpers(t *testing.T) {
	assert.Equal(t, "whatsapp:+33600000000", Address("+33600000000"))
	assert.Equal(t, "whatsapp:+33600000000", Address("whatsapp:+33600000000"))
	assert.Equal(t, "+33600000000", Counterparty("whatsapp:+33600000000"))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", maxBodyRunes+10)
	assert.Len(t, []rune(truncate(long, maxBodyRunes)), maxBodyRunes)
	assert.Equal(t, "court", truncate("court", maxBodyRunes))
}
