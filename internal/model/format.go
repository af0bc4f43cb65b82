package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// VATRate задаёт ставку НДС, применяемая только при отображении сумм.
var VATRate = decimal.RequireFromString("0.20")

// FormatDimension форматирует размер шины: 195/65R15.
func FormatDimension(width, height, diameter int) string {
	return fmt.Sprintf("%d/%dR%d", width, height, diameter)
}

// WithVAT возвращает сумму с НДС.
func WithVAT(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(VAT(amount))
}

// VAT возвращает сумму НДС.
func VAT(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(VATRate)
}

// Cents переводит сумму в центы с округлением.
func Cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FormatEuro форматирует сумму с двумя знаками после запятой и знаком евро.
func FormatEuro(amount decimal.Decimal) string {
	return amount.StringFixed(2) + "€"
}
