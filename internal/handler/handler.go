// Package handler содержит HTTP-обработчики вебхуков мессенджера и платёжного шлюза
// и API заказов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/checkout"
	"github.com/mmeshcher/tirebot/internal/messaging"
	"github.com/mmeshcher/tirebot/internal/middleware"
	"github.com/mmeshcher/tirebot/internal/model"
	"github.com/mmeshcher/tirebot/internal/payment"
	"github.com/mmeshcher/tirebot/internal/service"
	"github.com/mmeshcher/tirebot/internal/validation"
)

const maxWebhookBody = 1 << 20

// Bot обрабатывает входящие сообщения собеседников.
type Bot interface {
	ReceiveMessage(ctx context.Context, counterpartyID, text string) error
}

// Orders определяет контракт бизнес-логики заказов, используемой обработчиками.
type Orders interface {
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	CreateOrder(ctx context.Context, phone, email string, items []model.CartItem) (*checkout.Result, error)
	HandlePaymentSucceeded(ctx context.Context, orderID, intentID string) error
	MarkReady(ctx context.Context, orderID string) error
	MarkCompleted(ctx context.Context, orderID string) error
}

// Inbound отмечает обработанные входящие сообщения. false означает повторную доставку.
type Inbound interface {
	MarkInboundMessage(ctx context.Context, sid string) (bool, error)
}

// Pinger проверяет доступность базы данных.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps содержит зависимости обработчиков.
type Deps struct {
	Bot     Bot
	Orders  Orders
	Inbound Inbound
	Catalog catalog.Catalog
	Pinger  Pinger
}

// Config содержит секреты вебхуков и часы для проверки подписи.
type Config struct {
	StripeWebhookSecret string
}

// Handler реализует HTTP API сервиса.
type Handler struct {
	bot       Bot
	orders    Orders
	inbound   Inbound
	catalog   catalog.Catalog
	pinger    Pinger
	cfg       Config
	logger    *zap.Logger
	signature *middleware.TwilioSignature
	admin     *middleware.AdminAuth
}

// NewHandler создаёт обработчики HTTP-запросов.
func NewHandler(d Deps, cfg Config, logger *zap.Logger, signature *middleware.TwilioSignature, admin *middleware.AdminAuth) *Handler {
	return &Handler{
		bot:       d.Bot,
		orders:    d.Orders,
		inbound:   d.Inbound,
		catalog:   d.Catalog,
		pinger:    d.Pinger,
		cfg:       cfg,
		logger:    logger,
		signature: signature,
		admin:     admin,
	}
}

// WhatsAppWebhook принимает входящее сообщение мессенджера и выполняет ход диалога.
// Ответы собеседнику уходят через REST API, поэтому в ответе пустой TwiML.
func (h *Handler) WhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	sid := r.PostFormValue("MessageSid")
	if from == "" || body == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if sid != "" && h.inbound != nil {
		fresh, err := h.inbound.MarkInboundMessage(r.Context(), sid)
		if err != nil {
			h.logger.Error("mark inbound message error", zap.Error(err), zap.String("sid", sid))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if !fresh {
			h.logger.Debug("duplicate inbound message", zap.String("sid", sid))
			writeTwiML(w)
			return
		}
	}

	counterparty := messaging.Counterparty(from)
	if err := h.bot.ReceiveMessage(r.Context(), counterparty, body); err != nil {
		h.logger.Error("receive message error", zap.Error(err), zap.String("counterparty", counterparty))
	}

	writeTwiML(w)
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "<Response></Response>")
}

// StripeWebhook принимает уведомления платёжного шлюза.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := payment.VerifySignature(h.cfg.StripeWebhookSecret, r.Header.Get("Stripe-Signature"), body); err != nil {
		h.logger.Warn("payment webhook signature rejected", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if ev.Type == payment.EventPaymentSucceeded {
		intent := ev.Intent
		orderID := intent.Metadata["orderId"]
		if orderID == "" {
			h.logger.Warn("payment intent without order", zap.String("intent", intent.ID))
		} else if err := h.orders.HandlePaymentSucceeded(r.Context(), orderID, intent.ID); err != nil {
			switch {
			case service.IsNotFound(err), errors.Is(err, service.ErrIntentMismatch):
				h.logger.Warn("payment event ignored", zap.Error(err), zap.String("order_id", orderID))
			default:
				h.logger.Error("handle payment error", zap.Error(err), zap.String("order_id", orderID))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	OrderNumber string              `json:"orderNumber"`
	Status      string              `json:"status"`
	TotalAmount string              `json:"totalAmount"`
	TotalTTC    string              `json:"totalTTC"`
	Items       []orderItemResponse `json:"items"`
	CreatedAt   string              `json:"createdAt,omitempty"`
}

func newOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount.StringFixed(2),
		TotalTTC:    model.WithVAT(o.TotalAmount).StringFixed(2),
		Items:       make([]orderItemResponse, 0, len(o.Items)),
	}
	if !o.CreatedAt.IsZero() {
		resp.CreatedAt = o.CreatedAt.Format(time.RFC3339)
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: it.ProductID,
			Brand:     it.Brand,
			Model:     it.Model,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Subtotal:  it.Subtotal.StringFixed(2),
		})
	}
	return resp
}

// GetOrder возвращает заказ с текущим статусом.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		if service.IsNotFound(err) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.String("order_id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

type createOrderRequest struct {
	PhoneNumber string           `json:"phoneNumber"`
	Email       string           `json:"email"`
	Items       []model.CartItem `json:"items"`
}

type createOrderResponse struct {
	Order       orderResponse `json:"order"`
	AmountCents int64         `json:"amountCents"`
	PaymentLink string        `json:"paymentLink"`
}

// CreateOrder оформляет заказ вне диалога, например с сайта.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.PhoneNumber == "" || len(req.Items) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Email != "" && !validation.IsEmail(req.Email) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity < 1 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	res, err := h.orders.CreateOrder(r.Context(), req.PhoneNumber, req.Email, req.Items)
	if err != nil {
		var missing *checkout.MissingProductError
		switch {
		case errors.As(err, &missing):
			http.Error(w, missing.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, checkout.ErrEmptyCart):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, checkout.ErrPaymentUnavailable):
			h.logger.Warn("create order payment error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		default:
			h.logger.Error("create order error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		Order:       newOrderResponse(res.Order),
		AmountCents: res.AmountCents,
		PaymentLink: res.PaymentLink,
	})
}

// MarkReady отмечает заказ собранным.
func (h *Handler) MarkReady(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.MarkReady)
}

// MarkCompleted отмечает заказ выданным.
func (h *Handler) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.MarkCompleted)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID string) error) {
	id := chi.URLParam(r, "id")

	if err := fn(r.Context(), id); err != nil {
		switch {
		case service.IsNotFound(err):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidTransition):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("order transition error", zap.Error(err), zap.String("order_id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Width    *int             `json:"width"`
	Height   *int             `json:"height"`
	Diameter *int             `json:"diameter"`
	Brand    string           `json:"brand"`
	MinPrice *decimal.Decimal `json:"minPrice"`
	MaxPrice *decimal.Decimal `json:"maxPrice"`
	InStock  bool             `json:"inStock"`
}

type productResponse struct {
	ID              string `json:"id"`
	SKU             string `json:"sku"`
	Brand           string `json:"brand"`
	Model           string `json:"model"`
	Dimension       string `json:"dimension"`
	PriceRetail     string `json:"priceRetail"`
	StockQuantity   int    `json:"stockQuantity"`
	IsOverstock     bool   `json:"isOverstock"`
	DiscountPercent *int   `json:"discountPercent,omitempty"`
}

type searchResponse struct {
	Products []productResponse `json:"products"`
	Count    int               `json:"count"`
}

// SearchTyres ищет шины по фильтрам.
func (h *Handler) SearchTyres(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	products, err := h.catalog.Search(r.Context(), catalog.Criteria{
		Width:    req.Width,
		Height:   req.Height,
		Diameter: req.Diameter,
		Brand:    req.Brand,
		MinPrice: req.MinPrice,
		MaxPrice: req.MaxPrice,
		InStock:  req.InStock,
	})
	if err != nil {
		h.logger.Error("search products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := searchResponse{Products: make([]productResponse, 0, len(products)), Count: len(products)}
	for _, p := range products {
		resp.Products = append(resp.Products, productResponse{
			ID:              p.ID,
			SKU:             p.SKU,
			Brand:           p.Brand,
			Model:           p.Model,
			Dimension:       p.Dimension(),
			PriceRetail:     p.PriceRetail.StringFixed(2),
			StockQuantity:   p.StockQuantity,
			IsOverstock:     p.IsOverstock,
			DiscountPercent: p.DiscountPercent,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health проверяет доступность базы данных.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
