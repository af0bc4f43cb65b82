// Package bot реализует конечный автомат диалога WhatsApp: подбор шин,
// корзину, оформление заказа и историю заказов.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/checkout"
	"github.com/mmeshcher/tirebot/internal/messaging"
	"github.com/mmeshcher/tirebot/internal/model"
	"github.com/mmeshcher/tirebot/internal/pickup"
	"github.com/mmeshcher/tirebot/internal/session"
)

// ErrStoreUnavailable возвращается, если хранилище сессий не ответило. Ход не выполняется.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Users хранит учётные записи собеседников.
type Users interface {
	UpsertUserByPhone(ctx context.Context, phone string) (*model.User, error)
	SetUserEmail(ctx context.Context, userID, email string) error
}

// Orders читает заказы для истории.
type Orders interface {
	ListOrdersByUser(ctx context.Context, userID string, limit int) ([]model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
}

// Checkout оформляет корзину в заказ.
type Checkout interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// Deps содержит внешние зависимости бота.
type Deps struct {
	Catalog  catalog.Catalog
	Sessions session.Store
	Users    Users
	Orders   Orders
	Checkout Checkout
	Sender   messaging.Sender
	Codes    pickup.Codes
}

// Config содержит параметры бота.
type Config struct {
	SessionTTL   time.Duration
	StoreTimeout time.Duration
	// InStockOnly ограничивает списки размеров и поиск товарами в наличии или стоком.
	InStockOnly bool
	OrdersLimit int
	Now         func() time.Time
}

// Reply описывает исходящее сообщение с текстом и/или ссылкой на изображение.
type Reply struct {
	Text     string
	MediaURL string
}

// Bot обрабатывает входящие сообщения. Ходы одного собеседника выполняются строго по очереди.
type Bot struct {
	catalog  catalog.Catalog
	sessions session.Store
	users    Users
	orders   Orders
	checkout Checkout
	sender   messaging.Sender
	codes    pickup.Codes
	cfg      Config
	logger   *zap.Logger
	locks    *keyedMutex
}

// New создаёт бота.
func New(d Deps, cfg Config, logger *zap.Logger) *Bot {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	if cfg.OrdersLimit <= 0 {
		cfg.OrdersLimit = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		catalog:  d.Catalog,
		sessions: d.Sessions,
		users:    d.Users,
		orders:   d.Orders,
		checkout: d.Checkout,
		sender:   d.Sender,
		codes:    d.Codes,
		cfg:      cfg,
		logger:   logger,
		locks:    newKeyedMutex(),
	}
}

// turn хранит состояние одного хода.
type turn struct {
	ctx     context.Context
	id      string
	sess    *session.Session
	ev      Event
	replies []Reply
	// committed выставляется, когда ход создал заказ: ответ отправляется даже при сбое сохранения сессии.
	committed bool
}

func (t *turn) reply(text string) {
	t.replies = append(t.replies, Reply{Text: text})
}

func (t *turn) media(url string) {
	t.replies = append(t.replies, Reply{MediaURL: url})
}

// HandleMessage выполняет один ход диалога и возвращает ответы.
// При недоступном хранилище возвращается просьба повторить и ErrStoreUnavailable.
func (b *Bot) HandleMessage(ctx context.Context, counterpartyID, text string) ([]Reply, error) {
	unlock := b.locks.Lock(counterpartyID)
	defer unlock()

	log := b.logger.With(zap.String("counterparty", counterpartyID))
	key := session.Key(counterpartyID)

	sess, err := b.load(ctx, key)
	if err != nil {
		log.Error("failed to load session", zap.Error(err))
		return []Reply{{Text: msgRetry}}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	t := &turn{ctx: ctx, id: counterpartyID, sess: sess, ev: classify(text)}
	from := sess.Step

	if err := route(from, t.ev)(b, t); err != nil {
		log.Error("turn failed",
			zap.Stringer("step", from),
			zap.Stringer("event", t.ev.Kind),
			zap.Error(err))
		if !t.committed {
			return []Reply{{Text: msgRetry}}, nil
		}
	}

	sess.UpdatedAt = b.cfg.Now()
	if err := b.save(ctx, key, sess); err != nil {
		log.Error("failed to save session", zap.Error(err))
		if !t.committed {
			return []Reply{{Text: msgRetry}}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		// Заказ уже создан: без очищенной корзины следующий ответ оформит его повторно.
		if err := b.save(context.WithoutCancel(ctx), key, sess); err != nil {
			log.Error("order committed but session still holds the cart", zap.Error(err))
		}
	}

	log.Debug("turn handled",
		zap.Stringer("from", from),
		zap.Stringer("to", sess.Step),
		zap.Stringer("event", t.ev.Kind))

	return t.replies, nil
}

// ReceiveMessage выполняет ход и отправляет ответы. Ошибки отправки только логируются:
// состояние уже сохранено и не откатывается.
func (b *Bot) ReceiveMessage(ctx context.Context, counterpartyID, text string) error {
	replies, err := b.HandleMessage(ctx, counterpartyID, text)
	for _, r := range replies {
		b.dispatch(ctx, counterpartyID, r)
	}
	return err
}

func (b *Bot) dispatch(ctx context.Context, to string, r Reply) {
	if r.Text != "" {
		if err := b.sender.SendText(ctx, to, r.Text); err != nil {
			b.logger.Warn("failed to send text", zap.String("counterparty", to), zap.Error(err))
		}
	}
	if r.MediaURL != "" {
		if err := b.sender.SendMedia(ctx, to, r.MediaURL); err != nil {
			b.logger.Warn("failed to send media", zap.String("counterparty", to), zap.Error(err))
		}
	}
}

func (b *Bot) load(ctx context.Context, key string) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.StoreTimeout)
	defer cancel()

	sess, err := b.sessions.Get(ctx, key)
	if errors.Is(err, session.ErrNotFound) {
		return session.New(), nil
	}
	if errors.Is(err, session.ErrCorrupt) {
		b.logger.Warn("discarding corrupt session", zap.String("key", key), zap.Error(err))
		return session.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (b *Bot) save(ctx context.Context, key string, sess *session.Session) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.StoreTimeout)
	defer cancel()

	return b.sessions.Set(ctx, key, sess, b.cfg.SessionTTL)
}

func (b *Bot) filter() catalog.Filter {
	return catalog.Filter{InStockOnly: b.cfg.InStockOnly}
}
