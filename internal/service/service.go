// Package service реализует жизненный цикл заказа после оформления: оплату,
// уведомления собеседника и фоновые проверки.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/tirebot/internal/checkout"
	"github.com/mmeshcher/tirebot/internal/messaging"
	"github.com/mmeshcher/tirebot/internal/model"
	"github.com/mmeshcher/tirebot/internal/payment"
	"github.com/mmeshcher/tirebot/internal/pickup"
	"github.com/mmeshcher/tirebot/internal/repository"
)

var (
	// ErrInvalidTransition возвращается при недопустимой смене статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrIntentMismatch возвращается, если уведомление об оплате относится к другому платёжному намерению.
	ErrIntentMismatch = errors.New("payment intent does not match order")
)

var allowedTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending: {model.OrderStatusPaid},
	model.OrderStatusPaid:    {model.OrderStatusReady},
	model.OrderStatusReady:   {model.OrderStatusCompleted},
}

// CanTransition сообщает, допустим ли переход между статусами.
func CanTransition(from, to model.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error)
	ListPendingWithIntent(ctx context.Context, since time.Time, limit int) ([]model.Order, error)
	UpsertUserByPhone(ctx context.Context, phone string) (*model.User, error)
	SetUserEmail(ctx context.Context, userID, email string) error
}

// SessionPurger удаляет истёкшие сессии.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// PaymentIntents возвращает состояние платёжного намерения.
type PaymentIntents interface {
	GetPaymentIntent(ctx context.Context, id string) (*payment.Intent, error)
}

// Checkout оформляет заказы.
type Checkout interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// Config содержит интервалы фоновых задач.
type Config struct {
	ReconcileInterval time.Duration
	CleanupInterval   time.Duration
	ReconcileBatch    int
	// ReconcileWindow ограничивает сверку заказами, созданными не раньше указанного срока.
	ReconcileWindow time.Duration
	Now             func() time.Time
}

// Service содержит бизнес-логику заказов.
type Service struct {
	repo     Repository
	intents  PaymentIntents
	checkout Checkout
	sender   messaging.Sender
	codes    pickup.Codes
	purger   SessionPurger
	cfg      Config
	logger   *zap.Logger
}

// NewService создаёт сервис. intents и purger могут быть nil, тогда соответствующие фоновые задачи не запускаются.
func NewService(repo Repository, intents PaymentIntents, co Checkout, sender messaging.Sender, codes pickup.Codes, purger SessionPurger, cfg Config, logger *zap.Logger) *Service {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = 100
	}
	if cfg.ReconcileWindow <= 0 {
		cfg.ReconcileWindow = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		intents:  intents,
		checkout: co,
		sender:   sender,
		codes:    codes,
		purger:   purger,
		cfg:      cfg,
		logger:   logger,
	}
}

// GetOrder возвращает заказ со строками.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// CreateOrder оформляет заказ по номеру телефона вне диалога.
func (s *Service) CreateOrder(ctx context.Context, phone, email string, items []model.CartItem) (*checkout.Result, error) {
	u, err := s.repo.UpsertUserByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if email != "" {
		if err := s.repo.SetUserEmail(ctx, u.ID, email); err != nil {
			return nil, err
		}
	}
	return s.checkout.Checkout(ctx, checkout.Request{UserID: u.ID, Items: items})
}

// HandlePaymentSucceeded переводит заказ в статус paid и уведомляет собеседника.
// Повторное уведомление для уже оплаченного заказа ничего не меняет.
func (s *Service) HandlePaymentSucceeded(ctx context.Context, orderID, intentID string) error {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if intentID != "" && o.PaymentIntentID != nil && *o.PaymentIntentID != intentID {
		return fmt.Errorf("%w: order %s", ErrIntentMismatch, orderID)
	}
	if o.Status != model.OrderStatusPending {
		s.logger.Debug("payment already applied", zap.String("order_id", orderID), zap.String("status", string(o.Status)))
		return nil
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, model.OrderStatusPending, model.OrderStatusPaid)
	if err != nil {
		return err
	}
	if !updated {
		return nil
	}
	o.Status = model.OrderStatusPaid

	s.logger.Info("order paid", zap.String("order_id", o.ID), zap.String("order_number", o.OrderNumber))
	s.notifyPaid(ctx, o)
	return nil
}

// MarkReady отмечает, что заказ собран и ждёт получения.
func (s *Service) MarkReady(ctx context.Context, orderID string) error {
	o, err := s.transition(ctx, orderID, model.OrderStatusReady)
	if err != nil {
		return err
	}
	s.send(ctx, o.PhoneNumber, readyMessage(o))
	return nil
}

// MarkCompleted отмечает выдачу заказа.
func (s *Service) MarkCompleted(ctx context.Context, orderID string) error {
	_, err := s.transition(ctx, orderID, model.OrderStatusCompleted)
	return err
}

func (s *Service) transition(ctx context.Context, orderID string, to model.OrderStatus) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, o.Status, to)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, orderID)
	}
	o.Status = to
	return o, nil
}

// notifyPaid отправляет подтверждение оплаты, QR-код и инструкции по получению.
// Ошибки доставки только журналируются: статус заказа уже изменён.
func (s *Service) notifyPaid(ctx context.Context, o *model.Order) {
	if s.sender == nil || o.PhoneNumber == "" {
		return
	}
	s.send(ctx, o.PhoneNumber, paymentConfirmedMessage(o))
	if err := s.sender.SendMedia(ctx, o.PhoneNumber, s.codes.URL(o.OrderNumber, o.ID)); err != nil {
		s.logger.Warn("send pickup code", zap.String("order_id", o.ID), zap.Error(err))
	}
	s.send(ctx, o.PhoneNumber, pickupInstructionsMessage)
}

func (s *Service) send(ctx context.Context, to, body string) {
	if s.sender == nil || to == "" {
		return
	}
	if err := s.sender.SendText(ctx, to, body); err != nil {
		s.logger.Warn("send notification", zap.String("to", to), zap.Error(err))
	}
}

// StartPaymentReconciliation запускает фоновую сверку неоплаченных заказов с платёжным шлюзом.
// Она подхватывает оплату, уведомление о которой не дошло.
func (s *Service) StartPaymentReconciliation(ctx context.Context) {
	if s.intents == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(s.cfg.ReconcileInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reconcileBatch(ctx)
			}
		}
	}()
}

func (s *Service) reconcileBatch(ctx context.Context) {
	since := s.cfg.Now().Add(-s.cfg.ReconcileWindow)
	orders, err := s.repo.ListPendingWithIntent(ctx, since, s.cfg.ReconcileBatch)
	if err != nil {
		s.logger.Warn("list pending orders", zap.Error(err))
		return
	}

	for _, o := range orders {
		if ctx.Err() != nil {
			return
		}
		if o.PaymentIntentID == nil {
			continue
		}

		intent, err := s.intents.GetPaymentIntent(ctx, *o.PaymentIntentID)
		if err != nil {
			s.logger.Debug("get payment intent", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		if intent.Status != payment.StatusSucceeded {
			continue
		}

		if err := s.HandlePaymentSucceeded(ctx, o.ID, intent.ID); err != nil {
			s.logger.Warn("reconcile payment", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
}

// StartSessionCleanup запускает периодическое удаление истёкших сессий.
func (s *Service) StartSessionCleanup(ctx context.Context) {
	if s.purger == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.purgeSessions(ctx)
			}
		}
	}()
}

func (s *Service) purgeSessions(ctx context.Context) {
	n, err := s.purger.PurgeExpiredSessions(ctx)
	if err != nil {
		s.logger.Warn("purge sessions", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions purged", zap.Int64("count", n))
	}
}

// IsNotFound сообщает, что заказ не найден.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrOrderNotFound)
}
