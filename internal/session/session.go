// Package session описывает состояние диалога с собеседником и контракт его хранения.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/model"
)

// Step описывает шаг диалога.
type Step int

const (
	StepWelcome Step = iota
	StepSelectWidth
	StepSelectHeight
	StepSelectDiameter
	StepViewingResults
	StepCart
	StepCheckout
	StepViewOrders

	// NumSteps равно числу шагов и используется для таблиц, индексируемых шагом.
	NumSteps
)

var stepNames = [NumSteps]string{
	StepWelcome:        "welcome",
	StepSelectWidth:    "select_width",
	StepSelectHeight:   "select_height",
	StepSelectDiameter: "select_diameter",
	StepViewingResults: "viewing_results",
	StepCart:           "cart",
	StepCheckout:       "checkout",
	StepViewOrders:     "view_orders",
}

func (s Step) String() string {
	if s < 0 || s >= NumSteps {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// InSelection сообщает, идёт ли пошаговый выбор, в котором числа относятся к показанному списку.
func (s Step) InSelection() bool {
	switch s {
	case StepSelectWidth, StepSelectHeight, StepSelectDiameter, StepViewingResults:
		return true
	}
	return false
}

// MarshalText сохраняет шаг по имени, чтобы порядок констант не влиял на сохранённые сессии.
func (s Step) MarshalText() ([]byte, error) {
	if s < 0 || s >= NumSteps {
		return nil, fmt.Errorf("unknown step %d", int(s))
	}
	return []byte(stepNames[s]), nil
}

// UnmarshalText восстанавливает шаг по имени.
func (s *Step) UnmarshalText(b []byte) error {
	for i, name := range stepNames {
		if name == string(b) {
			*s = Step(i)
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", string(b))
}

// Criteria описывает частично заполненный размер шины.
type Criteria struct {
	Width    *int `json:"width,omitempty"`
	Height   *int `json:"height,omitempty"`
	Diameter *int `json:"diameter,omitempty"`
}

// OptionSnapshot хранит список значений размера в том виде, в каком он был отправлен.
type OptionSnapshot struct {
	Step    Step             `json:"step"`
	Options []catalog.Option `json:"options"`
}

// ProductView хранит неизменяемую копию товара из показанного списка.
type ProductView struct {
	ID              string          `json:"id"`
	Brand           string          `json:"brand"`
	Model           string          `json:"model"`
	Price           decimal.Decimal `json:"price"`
	StockQuantity   int             `json:"stockQuantity"`
	IsOverstock     bool            `json:"isOverstock"`
	DiscountPercent *int            `json:"discountPercent,omitempty"`
}

// ProductSnapshot хранит последние показанные результаты поиска.
type ProductSnapshot struct {
	Step     Step          `json:"step"`
	Products []ProductView `json:"products"`
}

// OrderView хранит неизменяемую копию заказа из показанной истории.
type OrderView struct {
	ID          string            `json:"id"`
	OrderNumber string            `json:"orderNumber"`
	Status      model.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// OrderSnapshot хранит последнюю показанную историю заказов.
type OrderSnapshot struct {
	Step   Step        `json:"step"`
	Orders []OrderView `json:"orders"`
}

// Session описывает состояние диалога одного собеседника.
type Session struct {
	Step          Step             `json:"step"`
	Criteria      Criteria         `json:"searchCriteria"`
	Options       *OptionSnapshot  `json:"availableOptions,omitempty"`
	Results       *ProductSnapshot `json:"lastResults,omitempty"`
	Orders        *OrderSnapshot   `json:"lastOrders,omitempty"`
	ViewedOrderID string           `json:"viewedOrderId,omitempty"`
	Cart          []model.CartItem `json:"cart"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// New возвращает начальное состояние диалога.
func New() *Session {
	return &Session{Step: StepWelcome}
}

// OptionsFor возвращает снимок опций, только если он был создан для шага step.
func (s *Session) OptionsFor(step Step) ([]catalog.Option, bool) {
	if s.Options == nil || s.Options.Step != step {
		return nil, false
	}
	return s.Options.Options, true
}

// ResultsFor возвращает снимок результатов поиска, созданный для шага step.
func (s *Session) ResultsFor(step Step) ([]ProductView, bool) {
	if s.Results == nil || s.Results.Step != step {
		return nil, false
	}
	return s.Results.Products, true
}

// OrdersFor возвращает снимок истории заказов, созданный для шага step.
func (s *Session) OrdersFor(step Step) ([]OrderView, bool) {
	if s.Orders == nil || s.Orders.Step != step {
		return nil, false
	}
	return s.Orders.Orders, true
}

// ResetSearch начинает новый поиск.
func (s *Session) ResetSearch() {
	s.Criteria = Criteria{}
	s.Options = nil
	s.Results = nil
}

// Encode сериализует сессию для хранилища.
func Encode(s *Session) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return b, nil
}

// Decode восстанавливает сессию из хранилища. Ошибка разбора оборачивает ErrCorrupt.
func Decode(b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w: %w", ErrCorrupt, err)
	}
	return &s, nil
}
