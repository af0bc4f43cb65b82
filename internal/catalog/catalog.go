// Package catalog описывает контракт запросов к каталогу шин, на который опирается бот.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/tirebot/internal/model"
)

// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
var ErrProductNotFound = errors.New("product not found")

// Filter ограничивает выборку значений размеров.
// При InStockOnly учитываются товары с остатком либо помеченные как сток,
// одинаково на всех шагах, чтобы выбранная ширина всегда давала хотя бы одну высоту.
type Filter struct {
	InStockOnly bool
}

// Option описывает значение размера и число различных моделей с ним.
type Option struct {
	Value  int `json:"value"`
	Models int `json:"models"`
}

// Criteria задаёт параметры поиска. Пустые поля не ограничивают выборку.
type Criteria struct {
	Width    *int
	Height   *int
	Diameter *int
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Brand    string
	InStock  bool
}

// Catalog предоставляет доступ к каталогу только для чтения.
// Search упорядочивает результаты: сначала сток, затем по возрастанию цены.
type Catalog interface {
	DistinctWidths(ctx context.Context, f Filter) ([]Option, error)
	DistinctHeights(ctx context.Context, width int, f Filter) ([]Option, error)
	DistinctDiameters(ctx context.Context, width, height int, f Filter) ([]Option, error)
	Search(ctx context.Context, c Criteria) ([]model.Product, error)
	FindByID(ctx context.Context, id string) (*model.Product, error)
	Count(ctx context.Context) (int, error)
}

// Values возвращает значения опций в исходном порядке.
func Values(opts []Option) []int {
	out := make([]int, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}
