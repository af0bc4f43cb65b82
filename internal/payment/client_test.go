package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

func TestCreatePaymentIntent_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/payment_intents" {
			t.Fatalf("path = %s, want /v1/payment_intents", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Fatalf("authorization = %q", got)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "order-1" {
			t.Fatalf("idempotency key = %q, want order-1", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("amount") != "15600" || r.PostForm.Get("currency") != "eur" {
			t.Fatalf("unexpected form: %v", r.PostForm)
		}
		if r.PostForm.Get("metadata[orderNumber]") != "GC-2026-0001" {
			t.Fatalf("order number metadata = %q", r.PostForm.Get("metadata[orderNumber]"))
		}
		if r.PostForm.Get("automatic_payment_methods[enabled]") != "true" {
			t.Fatalf("automatic payment methods not enabled: %v", r.PostForm)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","status":"requires_payment_method","amount":15600,"currency":"eur","client_secret":"pi_1_secret"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test", time.Second, nil)

	intent, err := client.CreatePaymentIntent(context.Background(), IntentRequest{
		AmountCents:    15600,
		OrderID:        "order-1",
		OrderNumber:    "GC-2026-0001",
		IdempotencyKey: "order-1",
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent error: %v", err)
	}
	if intent.ID != "pi_1" || intent.Amount != 15600 || intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestCreatePaymentIntent_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","message":"card declined"}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test", time.Second, nil)

	_, err := client.CreatePaymentIntent(context.Background(), IntentRequest{AmountCents: 100})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired || apiErr.Message != "card declined" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestCreatePaymentIntent_RejectsBadInput(t *testing.T) {
	client := NewClient("http://localhost", "sk_test", time.Second, nil)
	if _, err := client.CreatePaymentIntent(context.Background(), IntentRequest{AmountCents: 0}); err == nil {
		t.Fatalf("expected error for zero amount")
	}

	unconfigured := NewClient("http://localhost", "", time.Second, nil)
	if _, err := unconfigured.CreatePaymentIntent(context.Background(), IntentRequest{AmountCents: 1}); err == nil {
		t.Fatalf("expected error without secret key")
	}
}

func TestGetPaymentIntent_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test", 50*time.Millisecond, nil)

	if _, err := client.GetPaymentIntent(context.Background(), "pi_1"); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestGetPaymentIntent_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/payment_intents/pi_9" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_9","object":"payment_intent","status":"succeeded","metadata":{"orderId":"o-9"}}`))
	}))
	defer ts.Close()

	intent, err := NewClient(ts.URL, "sk_test", time.Second, nil).GetPaymentIntent(context.Background(), "pi_9")
	if err != nil {
		t.Fatalf("GetPaymentIntent error: %v", err)
	}
	if intent.Status != StatusSucceeded || intent.Metadata["orderId"] != "o-9" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func signedHeader(secret string, body []byte, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now()

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "valid", header: signedHeader("whsec", body, now)},
		{name: "missing", header: "", wantErr: ErrMissingSignature},
		{name: "wrong secret", header: signedHeader("other", body, now), wantErr: ErrInvalidSignature},
		{name: "bad timestamp", header: "t=abc,v1=00", wantErr: ErrInvalidSignature},
		{name: "stale", header: signedHeader("whsec", body, now.Add(-6*time.Minute)), wantErr: ErrStaleTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature("whsec", tt.header, body)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("VerifySignature error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("VerifySignature error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	header := signedHeader("whsec", body, time.Now())

	err := VerifySignature("whsec", header, []byte(`{"id":"evt_2","type":"payment_intent.succeeded"}`))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("VerifySignature error = %v, want %v", err, ErrInvalidSignature)
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","status":"succeeded","metadata":{"orderId":"o-1"}}}}`))
	if err != nil {
		t.Fatalf("ParseEvent error: %v", err)
	}
	if ev.Type != EventPaymentSucceeded || ev.Intent.ID != "pi_1" || ev.Intent.Metadata["orderId"] != "o-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	other, err := ParseEvent([]byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`))
	if err != nil {
		t.Fatalf("ParseEvent error: %v", err)
	}
	if other.Intent.ID != "" {
		t.Fatalf("non-intent event must not carry an intent: %+v", other)
	}

	if _, err := ParseEvent([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for event without type")
	}
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
