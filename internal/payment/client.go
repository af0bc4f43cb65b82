// Package payment предоставляет клиент платёжного шлюза Stripe.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"go.uber.org/zap"
)

// Статусы платёжного намерения, которые интересуют сервис.
const (
	StatusSucceeded = string(stripe.PaymentIntentStatusSucceeded)
	StatusCanceled  = string(stripe.PaymentIntentStatusCanceled)
)

// Client создаёт и читает платёжные намерения через stripe-go.
type Client struct {
	secretKey string
	intents   *paymentintent.Client
}

// IntentRequest описывает запрос на создание платёжного намерения.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	OrderID        string
	OrderNumber    string
	IdempotencyKey string
}

// Intent описывает платёжное намерение.
type Intent struct {
	ID           string
	Status       string
	Amount       int64
	Currency     string
	ClientSecret string
	Metadata     map[string]string
}

// APIError описывает ответ шлюза с кодом, отличным от 2xx.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment: status %d: %s", e.StatusCode, e.Message)
}

// NewClient создаёт клиента шлюза. Пустой baseURL означает боевой адрес Stripe.
// Повторы на уровне SDK отключены: повтор оформления решает вызывающий.
func NewClient(baseURL, secretKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Sugar(),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(strings.TrimRight(baseURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)

	return &Client{
		secretKey: secretKey,
		intents:   &paymentintent.Client{B: backend, Key: secretKey},
	}
}

// CreatePaymentIntent создаёт платёжное намерение на сумму в центах.
func (c *Client) CreatePaymentIntent(ctx context.Context, r IntentRequest) (*Intent, error) {
	if c == nil || c.secretKey == "" {
		return nil, fmt.Errorf("payment client not configured")
	}
	if r.AmountCents <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %d", r.AmountCents)
	}

	currency := r.Currency
	if currency == "" {
		currency = string(stripe.CurrencyEUR)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(r.AmountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("orderId", r.OrderID)
	params.AddMetadata("orderNumber", r.OrderNumber)
	if r.IdempotencyKey != "" {
		params.SetIdempotencyKey(r.IdempotencyKey)
	}

	pi, err := c.intents.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return fromStripe(pi)
}

// GetPaymentIntent запрашивает текущее состояние платёжного намерения.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	if c == nil || c.secretKey == "" {
		return nil, fmt.Errorf("payment client not configured")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.intents.Get(id, params)
	if err != nil {
		return nil, mapError(err)
	}
	return fromStripe(pi)
}

func fromStripe(pi *stripe.PaymentIntent) (*Intent, error) {
	if pi == nil || pi.ID == "" {
		return nil, fmt.Errorf("payment intent without id")
	}
	return &Intent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
		Metadata:     pi.Metadata,
	}, nil
}

func mapError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = http.StatusText(se.HTTPStatusCode)
		}
		return &APIError{StatusCode: se.HTTPStatusCode, Message: msg}
	}
	return fmt.Errorf("payment request: %w", err)
}
