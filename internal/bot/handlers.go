package bot

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/tirebot/internal/cart"
	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/checkout"
	"github.com/mmeshcher/tirebot/internal/model"
	"github.com/mmeshcher/tirebot/internal/repository"
	"github.com/mmeshcher/tirebot/internal/session"
	"github.com/mmeshcher/tirebot/internal/validation"
)

func (b *Bot) showMenu(t *turn) error {
	t.sess.Step = session.StepWelcome
	t.reply(msgMenu)
	return nil
}

func (b *Bot) showWelcome(t *turn) error {
	t.sess.Step = session.StepWelcome
	t.reply(msgWelcome)
	return nil
}

// welcomeChoice обрабатывает пункты главного меню.
func (b *Bot) welcomeChoice(t *turn) error {
	switch t.ev.Text {
	case "1":
		return b.startSearch(t)
	case "2":
		return b.showCart(t)
	case "3":
		return b.showOrders(t)
	}
	return b.showWelcome(t)
}

func (b *Bot) startSearch(t *turn) error {
	opts, err := b.catalog.DistinctWidths(t.ctx, b.filter())
	if err != nil {
		return fmt.Errorf("distinct widths: %w", err)
	}

	t.sess.ResetSearch()
	if len(opts) == 0 {
		t.sess.Step = session.StepWelcome
		t.reply(msgNoStock)
		return nil
	}

	t.sess.Options = &session.OptionSnapshot{Step: session.StepSelectWidth, Options: opts}
	t.sess.Step = session.StepSelectWidth
	t.reply(widthsMessage(opts))
	return nil
}

// selectOption разбирает номер из показанного списка размеров и показывает следующий список.
func (b *Bot) selectOption(t *turn) error {
	step := t.sess.Step
	opts, ok := t.sess.OptionsFor(step)
	if !ok {
		return b.startSearch(t)
	}

	idx, err := validation.ParseIndex(t.ev.Text, len(opts))
	if err != nil {
		t.reply(invalidChoice(len(opts)))
		return nil
	}
	value := opts[idx].Value
	c := &t.sess.Criteria

	switch step {
	case session.StepSelectWidth:
		c.Width = &value
		heights, err := b.catalog.DistinctHeights(t.ctx, value, b.filter())
		if err != nil {
			return fmt.Errorf("distinct heights: %w", err)
		}
		if len(heights) == 0 {
			b.noResults(t, fmt.Sprintf("%dmm", value))
			return nil
		}
		t.sess.Options = &session.OptionSnapshot{Step: session.StepSelectHeight, Options: heights}
		t.sess.Step = session.StepSelectHeight
		t.reply(heightsMessage(value, heights))

	case session.StepSelectHeight:
		c.Height = &value
		diameters, err := b.catalog.DistinctDiameters(t.ctx, *c.Width, value, b.filter())
		if err != nil {
			return fmt.Errorf("distinct diameters: %w", err)
		}
		if len(diameters) == 0 {
			b.noResults(t, fmt.Sprintf("%d/%d", *c.Width, value))
			return nil
		}
		t.sess.Options = &session.OptionSnapshot{Step: session.StepSelectDiameter, Options: diameters}
		t.sess.Step = session.StepSelectDiameter
		t.reply(diametersMessage(*c.Width, value, diameters))

	case session.StepSelectDiameter:
		c.Diameter = &value
		return b.showResults(t)
	}
	return nil
}

func (b *Bot) showResults(t *turn) error {
	c := t.sess.Criteria
	products, err := b.catalog.Search(t.ctx, catalog.Criteria{
		Width:    c.Width,
		Height:   c.Height,
		Diameter: c.Diameter,
		InStock:  b.cfg.InStockOnly,
	})
	if err != nil {
		return fmt.Errorf("search products: %w", err)
	}

	t.sess.Options = nil
	if len(products) == 0 {
		b.noResults(t, model.FormatDimension(deref(c.Width), deref(c.Height), deref(c.Diameter)))
		return nil
	}

	views := make([]session.ProductView, len(products))
	for i, p := range products {
		views[i] = session.ProductView{
			ID:              p.ID,
			Brand:           p.Brand,
			Model:           p.Model,
			Price:           p.PriceRetail,
			StockQuantity:   p.StockQuantity,
			IsOverstock:     p.IsOverstock,
			DiscountPercent: p.DiscountPercent,
		}
	}
	t.sess.Results = &session.ProductSnapshot{Step: session.StepViewingResults, Products: views}
	t.sess.Step = session.StepViewingResults
	t.reply(resultsMessage(c, views))
	return nil
}

func (b *Bot) noResults(t *turn, dimension string) {
	t.sess.Options = nil
	t.sess.Results = nil
	t.sess.Step = session.StepWelcome
	t.reply(noResultsMessage(dimension))
}

// addToCart добавляет товар из показанных результатов: "<номер> [количество]".
func (b *Bot) addToCart(t *turn) error {
	results, ok := t.sess.ResultsFor(session.StepViewingResults)
	if !ok {
		return b.showMenu(t)
	}

	idx, qty, err := validation.ParseSelection(t.ev.Text, len(results))
	if errors.Is(err, validation.ErrBadQuantity) {
		t.reply(badQuantity())
		return nil
	}
	if err != nil {
		t.reply(invalidProduct(len(results)))
		return nil
	}

	p := results[idx]
	c := cart.New(t.sess.Cart)
	c.Add(p.ID, qty)

	total, err := c.Total(t.ctx, b.catalog)
	if err != nil {
		return fmt.Errorf("cart total: %w", err)
	}
	t.sess.Cart = c.Items()
	t.reply(addedMessage(p, qty, total))
	return nil
}

func (b *Bot) invalidResult(t *turn) error {
	results, ok := t.sess.ResultsFor(session.StepViewingResults)
	if !ok {
		return b.showMenu(t)
	}
	t.reply(invalidProduct(len(results)))
	return nil
}

func (b *Bot) showCart(t *turn) error {
	c := cart.New(t.sess.Cart)
	if c.IsEmpty() {
		t.reply(msgEmptyCart)
		return nil
	}

	lines, err := c.Lines(t.ctx, b.catalog)
	if err != nil {
		return fmt.Errorf("cart lines: %w", err)
	}
	if len(lines) == 0 {
		t.reply(msgEmptyCart)
		return nil
	}

	t.sess.Step = session.StepCart
	t.reply(cartMessage(lines))
	return nil
}

func (b *Bot) cartHint(t *turn) error {
	t.reply(msgCartHint)
	return nil
}

func (b *Bot) clearCart(t *turn) error {
	t.sess.Cart = nil
	t.sess.Step = session.StepWelcome
	t.reply(msgCartCleared)
	return nil
}

func (b *Bot) beginCheckout(t *turn) error {
	if cart.New(t.sess.Cart).IsEmpty() {
		t.reply(msgEmptyCartGuard)
		return nil
	}
	t.sess.Step = session.StepCheckout
	t.reply(msgCheckoutPrompt)
	return nil
}

// finishCheckout оформляет заказ. Адрес сохраняется, если ответ является email,
// любой другой ответ ("non", "oui", ...) оформляет заказ без адреса.
// Корзина очищается только после успешного создания платёжного намерения.
func (b *Bot) finishCheckout(t *turn) error {
	c := cart.New(t.sess.Cart)
	if c.IsEmpty() {
		t.sess.Step = session.StepWelcome
		t.reply(msgEmptyCart)
		return nil
	}

	var email string
	if validation.IsEmail(t.ev.Text) {
		email = t.ev.Text
	}

	user, err := b.users.UpsertUserByPhone(t.ctx, t.id)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	if email != "" {
		if err := b.users.SetUserEmail(t.ctx, user.ID, email); err != nil {
			return fmt.Errorf("set user email: %w", err)
		}
	}

	res, err := b.checkout.Checkout(t.ctx, checkout.Request{UserID: user.ID, Items: c.Items()})
	var missing *checkout.MissingProductError
	switch {
	case errors.As(err, &missing):
		c.Remove(missing.ProductID)
		t.sess.Cart = c.Items()
		if c.IsEmpty() {
			t.sess.Step = session.StepWelcome
		} else {
			t.sess.Step = session.StepCart
		}
		t.reply(missingProductMessage(missing.ProductID, c.IsEmpty()))
		return nil

	case errors.Is(err, checkout.ErrEmptyCart):
		t.sess.Cart = nil
		t.sess.Step = session.StepWelcome
		t.reply(msgEmptyCart)
		return nil

	case errors.Is(err, checkout.ErrPaymentUnavailable):
		b.logger.Warn("checkout payment failed", zap.String("counterparty", t.id), zap.Error(err))
		t.reply(msgPaymentFailed)
		return nil

	case err != nil:
		return fmt.Errorf("checkout: %w", err)
	}

	t.committed = true
	if len(res.Skipped) > 0 {
		b.logger.Warn("checkout skipped missing products",
			zap.String("order", res.Order.OrderNumber),
			zap.Strings("products", res.Skipped))
	}

	t.sess.Cart = nil
	t.sess.Step = session.StepWelcome
	t.reply(orderCreatedMessage(res.Order, res.PaymentLink))
	return nil
}

func (b *Bot) showOrders(t *turn) error {
	user, err := b.users.UpsertUserByPhone(t.ctx, t.id)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	orders, err := b.orders.ListOrdersByUser(t.ctx, user.ID, b.cfg.OrdersLimit)
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	t.sess.ViewedOrderID = ""
	if len(orders) == 0 {
		t.sess.Orders = nil
		t.sess.Step = session.StepWelcome
		t.reply(msgNoOrders)
		return nil
	}

	views := make([]session.OrderView, len(orders))
	for i, o := range orders {
		views[i] = session.OrderView{
			ID:          o.ID,
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			TotalAmount: o.TotalAmount,
			CreatedAt:   o.CreatedAt,
		}
	}
	t.sess.Orders = &session.OrderSnapshot{Step: session.StepViewOrders, Orders: views}
	t.sess.Step = session.StepViewOrders
	t.reply(ordersMessage(views))
	return nil
}

// orderDetail показывает заказ из истории с актуальным статусом.
func (b *Bot) orderDetail(t *turn) error {
	views, ok := t.sess.OrdersFor(session.StepViewOrders)
	if !ok {
		return b.showOrders(t)
	}

	idx, err := validation.ParseIndex(t.ev.Text, len(views))
	if err != nil {
		t.reply(invalidOrder(len(views)))
		return nil
	}

	o, err := b.orders.GetOrder(t.ctx, views[idx].ID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		t.reply(msgOrderMissing)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}

	t.sess.ViewedOrderID = o.ID
	t.reply(orderDetailMessage(o))
	return nil
}

// sendPickupCode отправляет QR-код последнего просмотренного заказа, если он оплачен.
func (b *Bot) sendPickupCode(t *turn) error {
	if t.sess.ViewedOrderID == "" {
		t.reply(msgPickOrder)
		return nil
	}

	o, err := b.orders.GetOrder(t.ctx, t.sess.ViewedOrderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		t.sess.ViewedOrderID = ""
		t.reply(msgOrderMissing)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if !o.Status.PickupAllowed() {
		t.reply(msgQRNotReady)
		return nil
	}

	t.reply(pickupCodeMessage(o))
	t.media(b.codes.URL(o.OrderNumber, o.ID))
	return nil
}

func (b *Bot) ordersHint(t *turn) error {
	t.reply(msgOrdersHint)
	return nil
}
