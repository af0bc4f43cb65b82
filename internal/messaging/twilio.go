// Package messaging отправляет исходящие сообщения собеседнику через WhatsApp API Twilio.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://api.twilio.com"
	whatsappPrefix  = "whatsapp:"
	maxBodyRunes    = 1600
	defaultRetryMax = 3
)

// Sender доставляет ответы бота собеседнику.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to, mediaURL string) error
}

// Config содержит параметры учётной записи Twilio.
type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	Timeout    time.Duration
	RetryMax   int
}

// Client отправляет сообщения через REST API Twilio.
type Client struct {
	cfg  Config
	http *retryablehttp.Client
}

// APIError описывает ответ Twilio с кодом, отличным от 2xx.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// NewClient создаёт клиента. Повторы выполняются на сетевых ошибках и ответах 5xx/429.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("twilio account sid, auth token and sender are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMax
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if logger != nil {
		rc.Logger = leveledLogger{logger.Sugar()}
	} else {
		rc.Logger = nil
	}

	return &Client{cfg: cfg, http: rc}, nil
}

// SendText отправляет текстовое сообщение.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("Body", truncate(body, maxBodyRunes))
	return c.send(ctx, to, form)
}

// SendMedia отправляет медиавложение по ссылке.
func (c *Client) SendMedia(ctx context.Context, to, mediaURL string) error {
	form := url.Values{}
	form.Set("MediaUrl", mediaURL)
	return c.send(ctx, to, form)
}

func (c *Client) send(ctx context.Context, to string, form url.Values) error {
	form.Set("From", Address(c.cfg.From))
	form.Set("To", Address(to))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, url.PathEscape(c.cfg.AccountSID))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, []byte(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Address приводит номер к виду "whatsapp:+...".
func Address(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, whatsappPrefix) {
		return id
	}
	return whatsappPrefix + id
}

// Counterparty возвращает номер собеседника без префикса канала.
func Counterparty(address string) string {
	return strings.TrimPrefix(strings.TrimSpace(address), whatsappPrefix)
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		e.Code = payload.Code
		e.Message = payload.Message
	}
	return e
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
