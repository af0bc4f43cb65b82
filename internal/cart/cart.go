// Package cart реализует корзину сессии с объединением строк по товару.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/model"
)

// PriceLookup возвращает актуальный товар каталога по идентификатору.
type PriceLookup interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
}

// Line описывает строку корзины вместе с актуальными данными товара.
type Line struct {
	Item     model.CartItem
	Product  model.Product
	Subtotal decimal.Decimal
}

// Cart хранит упорядоченный список строк, идентификаторы товаров в нём уникальны.
type Cart struct {
	items []model.CartItem
}

// New создаёт корзину из строк сессии.
func New(items []model.CartItem) *Cart {
	c := &Cart{}
	for _, it := range items {
		c.Add(it.ProductID, it.Quantity)
	}
	return c
}

// Add добавляет товар. Если товар уже есть, количество увеличивается без верхнего ограничения.
func (c *Cart) Add(productID string, quantity int) {
	if quantity <= 0 {
		return
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity += quantity
			return
		}
	}
	c.items = append(c.items, model.CartItem{ProductID: productID, Quantity: quantity})
}

// Remove удаляет товар из корзины.
func (c *Cart) Remove(productID string) {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// SetQuantity задаёт количество; значение меньше или равное нулю удаляет строку.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = quantity
			return
		}
	}
	c.items = append(c.items, model.CartItem{ProductID: productID, Quantity: quantity})
}

// Clear очищает корзину.
func (c *Cart) Clear() {
	c.items = nil
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// ItemCount возвращает суммарное количество шин.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Items возвращает копию строк корзины.
func (c *Cart) Items() []model.CartItem {
	if len(c.items) == 0 {
		return nil
	}
	out := make([]model.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Lines разрешает строки по актуальным ценам каталога. Исчезнувшие товары пропускаются.
func (c *Cart) Lines(ctx context.Context, lookup PriceLookup) ([]Line, error) {
	lines := make([]Line, 0, len(c.items))
	for _, it := range c.items {
		p, err := lookup.FindByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				continue
			}
			return nil, fmt.Errorf("lookup product %s: %w", it.ProductID, err)
		}
		lines = append(lines, Line{
			Item:     it,
			Product:  *p,
			Subtotal: p.PriceRetail.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	return lines, nil
}

// Total возвращает сумму без НДС по актуальным ценам каталога.
func (c *Cart) Total(ctx context.Context, lookup PriceLookup) (decimal.Decimal, error) {
	lines, err := c.Lines(ctx, lookup)
	if err != nil {
		return decimal.Zero, err
	}
	return Sum(lines), nil
}

// Sum складывает подытоги строк.
func Sum(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}
