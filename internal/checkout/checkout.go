// Package checkout оформляет заказ из корзины: фиксирует цены, выделяет номер
// заказа и запрашивает платёжное намерение.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/tirebot/internal/cart"
	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/model"
	"github.com/mmeshcher/tirebot/internal/payment"
	"github.com/mmeshcher/tirebot/internal/repository"
)

var (
	// ErrEmptyCart возвращается, если оформлять нечего.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentUnavailable возвращается, если платёжный шлюз не создал намерение.
	// Заказ в этом случае отменяется, корзина остаётся нетронутой.
	ErrPaymentUnavailable = errors.New("payment provider unavailable")
)

// MissingProductError сообщает о товаре корзины, которого больше нет в каталоге.
type MissingProductError struct {
	ProductID string
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("product %s is no longer in the catalog", e.ProductID)
}

// MissingPolicy определяет поведение при исчезнувших из каталога товарах.
type MissingPolicy int

const (
	// Strict прерывает оформление с MissingProductError.
	Strict MissingPolicy = iota
	// SkipMissing молча пропускает такие строки.
	SkipMissing
)

// Repository описывает хранилище заказов, используемое оформлением.
type Repository interface {
	LastOrderSequence(ctx context.Context) (int, error)
	CreateOrder(ctx context.Context, o *model.Order) error
	SetPaymentIntent(ctx context.Context, orderID, intentID string) error
	CancelOrder(ctx context.Context, orderID string) error
}

// Payments создаёт платёжные намерения.
type Payments interface {
	CreatePaymentIntent(ctx context.Context, r payment.IntentRequest) (*payment.Intent, error)
}

// Config содержит параметры оформления.
type Config struct {
	AppURL         string
	PaymentTimeout time.Duration
	Policy         MissingPolicy
	MaxAttempts    uint64
	Now            func() time.Time
}

// Request описывает запрос на оформление корзины пользователя.
type Request struct {
	UserID string
	Items  []model.CartItem
}

// Result содержит оформленный заказ и данные для ответа собеседнику.
type Result struct {
	Order       *model.Order
	AmountCents int64
	PaymentLink string
	Skipped     []string
}

// Service оформляет заказы.
type Service struct {
	products cart.PriceLookup
	repo     Repository
	payments Payments
	cfg      Config
	logger   *zap.Logger
}

// NewService создаёт сервис оформления.
func NewService(products cart.PriceLookup, repo Repository, payments Payments, cfg Config, logger *zap.Logger) *Service {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{products: products, repo: repo, payments: payments, cfg: cfg, logger: logger}
}

// FormatOrderNumber возвращает номер заказа вида GC-<год>-<last+1, четыре цифры>.
// Два вызова с одинаковым last дают одинаковый номер, уникальность обеспечивает хранилище.
func FormatOrderNumber(year, last int) string {
	return fmt.Sprintf("GC-%d-%04d", year, last+1)
}

// PaymentLink возвращает ссылку на страницу оплаты заказа.
func (s *Service) PaymentLink(orderID string) string {
	return s.cfg.AppURL + "/order/" + orderID
}

// Checkout оформляет заказ. При ошибке платёжного шлюза заказ отменяется
// и возвращается ErrPaymentUnavailable. Номер отменённого заказа повторно не выдаётся.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items, skipped, err := s.snapshot(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}

	order := &model.Order{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Status:      model.OrderStatusPending,
		TotalAmount: total,
		Items:       items,
	}

	if err := s.persist(ctx, order); err != nil {
		return nil, err
	}

	amount := model.Cents(model.WithVAT(total))
	intentID, err := s.requestPayment(ctx, order, amount)
	if err != nil {
		s.logger.Warn("payment intent failed, cancelling order",
			zap.String("order_id", order.ID),
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		if cerr := s.repo.CancelOrder(context.WithoutCancel(ctx), order.ID); cerr != nil {
			s.logger.Error("cancel unpaid order", zap.String("order_id", order.ID), zap.Error(cerr))
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}
	order.PaymentIntentID = &intentID

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("amount_cents", amount),
		zap.Int("skipped", len(skipped)),
	)

	return &Result{
		Order:       order,
		AmountCents: amount,
		PaymentLink: s.PaymentLink(order.ID),
		Skipped:     skipped,
	}, nil
}

func (s *Service) snapshot(ctx context.Context, lines []model.CartItem) ([]model.OrderItem, []string, error) {
	var (
		items   []model.OrderItem
		skipped []string
	)
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		p, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				if s.cfg.Policy == Strict {
					return nil, nil, &MissingProductError{ProductID: line.ProductID}
				}
				skipped = append(skipped, line.ProductID)
				continue
			}
			return nil, nil, fmt.Errorf("lookup product %s: %w", line.ProductID, err)
		}
		items = append(items, model.OrderItem{
			ProductID: p.ID,
			Brand:     p.Brand,
			Model:     p.Model,
			Quantity:  line.Quantity,
			UnitPrice: p.PriceRetail,
			Subtotal:  p.PriceRetail.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}
	return items, skipped, nil
}

// persist сохраняет заказ под следующим номером после последнего выданного.
// При коллизии с параллельным оформлением последний номер перечитывается.
func (s *Service) persist(ctx context.Context, order *model.Order) error {
	b := retry.NewExponential(10 * time.Millisecond)
	b = retry.WithCappedDuration(200*time.Millisecond, b)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxRetries(s.cfg.MaxAttempts-1, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		last, err := s.repo.LastOrderSequence(ctx)
		if err != nil {
			return fmt.Errorf("last order sequence: %w", err)
		}
		order.OrderNumber = FormatOrderNumber(s.cfg.Now().Year(), last)

		if err := s.repo.CreateOrder(ctx, order); err != nil {
			if errors.Is(err, repository.ErrDuplicateOrderNumber) {
				s.logger.Debug("order number collision", zap.String("order_number", order.OrderNumber))
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *Service) requestPayment(ctx context.Context, order *model.Order, amount int64) (string, error) {
	pctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	intent, err := s.payments.CreatePaymentIntent(pctx, payment.IntentRequest{
		AmountCents:    amount,
		Currency:       "eur",
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		IdempotencyKey: order.ID,
	})
	if err != nil {
		return "", err
	}

	if err := s.repo.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return "", fmt.Errorf("store payment intent: %w", err)
	}
	return intent.ID, nil
}
