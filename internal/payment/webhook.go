package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// EventPaymentSucceeded обозначает событие об успешной оплате.
const EventPaymentSucceeded = string(stripe.EventTypePaymentIntentSucceeded)

const signatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing payment signature")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrStaleTimestamp   = errors.New("stale payment signature timestamp")
)

// Event описывает уведомление платёжного шлюза. Intent заполняется для событий
// платёжного намерения.
type Event struct {
	ID     string
	Type   string
	Intent Intent
}

// VerifySignature проверяет заголовок Stripe-Signature вида "t=<unix>,v1=<hex>"
// с допуском по времени в пять минут.
func VerifySignature(secret, header string, body []byte) error {
	err := webhook.ValidatePayloadWithTolerance(body, header, secret, signatureTolerance)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, webhook.ErrNotSigned):
		return ErrMissingSignature
	case errors.Is(err, webhook.ErrTooOld):
		return ErrStaleTimestamp
	default:
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
}

// ParseEvent разбирает тело уведомления.
func ParseEvent(body []byte) (*Event, error) {
	var sev stripe.Event
	if err := json.Unmarshal(body, &sev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if sev.Type == "" {
		return nil, errors.New("event without type")
	}

	ev := &Event{ID: sev.ID, Type: string(sev.Type)}
	if sev.Data == nil || len(sev.Data.Raw) == 0 || !isIntentEvent(ev.Type) {
		return ev, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(sev.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	ev.Intent = Intent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
		Metadata: pi.Metadata,
	}
	return ev, nil
}

func isIntentEvent(t string) bool {
	return strings.HasPrefix(t, "payment_intent.")
}
