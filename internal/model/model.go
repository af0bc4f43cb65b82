// Package model содержит доменные сущности сервиса подбора и продажи шин.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает шину из каталога.
type Product struct {
	ID              string
	SKU             string
	Brand           string
	Model           string
	Width           int
	Height          int
	Diameter        int
	PriceRetail     decimal.Decimal
	StockQuantity   int
	IsOverstock     bool
	DiscountPercent *int
}

// Dimension возвращает размер шины в привычном виде, например 195/65R15.
func (p Product) Dimension() string {
	return FormatDimension(p.Width, p.Height, p.Diameter)
}

// User представляет собеседника, идентифицируемого номером телефона.
type User struct {
	ID          string
	PhoneNumber string
	Email       *string
	CreatedAt   time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled ставится заказу, для которого не удалось создать платёжное намерение.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PickupAllowed сообщает, можно ли выдать QR-код для получения заказа.
func (s OrderStatus) PickupAllowed() bool {
	return s == OrderStatusPaid || s == OrderStatusReady
}

// OrderItem описывает позицию заказа. Цена копируется из каталога в момент оформления.
type OrderItem struct {
	ProductID string
	Brand     string
	Model     string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Order описывает оформленный заказ. TotalAmount указан без НДС.
type Order struct {
	ID              string
	UserID          string
	PhoneNumber     string
	OrderNumber     string
	Status          OrderStatus
	TotalAmount     decimal.Decimal
	PaymentIntentID *string
	Email           *string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CartItem описывает строку корзины в сессии.
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}
