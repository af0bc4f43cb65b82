// Package validation содержит разбор и проверку ответов собеседника.
package validation

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"
)

const (
	// DefaultQuantity задаёт количество шин, если в ответе указан только номер товара.
	DefaultQuantity = 4
	MinQuantity     = 1
	MaxQuantity     = 20
)

var (
	// ErrNotANumber возвращается, если ответ не является целым числом.
	ErrNotANumber = errors.New("not a number")
	// ErrOutOfRange возвращается, если номер выходит за границы показанного списка.
	ErrOutOfRange = errors.New("index out of range")
	// ErrBadQuantity возвращается, если количество не является целым числом.
	ErrBadQuantity = errors.New("malformed quantity")
)

// ParseIndex разбирает номер позиции (с единицы) в списке длины n и возвращает индекс с нуля.
func ParseIndex(text string, n int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, ErrNotANumber
	}
	if v < 1 || v > n {
		return 0, ErrOutOfRange
	}
	return v - 1, nil
}

// IsNumber сообщает, состоит ли ответ из целого числа, возможно с количеством: "2" или "2 4".
func IsNumber(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 2 {
		return false
	}
	_, err := strconv.Atoi(fields[0])
	return err == nil
}

// ParseSelection разбирает ответ вида "<номер> [количество]" для списка длины n.
// Количество по умолчанию DefaultQuantity и ограничивается отрезком [MinQuantity, MaxQuantity].
func ParseSelection(text string, n int) (index, quantity int, err error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, 0, ErrNotANumber
	}

	index, err = ParseIndex(fields[0], n)
	if err != nil {
		return 0, 0, err
	}

	quantity = DefaultQuantity
	if len(fields) == 2 {
		quantity, err = strconv.Atoi(fields[1])
		if err != nil {
			return 0, 0, ErrBadQuantity
		}
	}

	return index, ClampQuantity(quantity), nil
}

// ClampQuantity ограничивает количество отрезком [MinQuantity, MaxQuantity].
func ClampQuantity(q int) int {
	if q < MinQuantity {
		return MinQuantity
	}
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}

// IsEmail проверяет, что ответ содержит только адрес электронной почты.
func IsEmail(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(text)
	if err != nil {
		return false
	}
	return addr.Address == text && strings.Contains(text[strings.LastIndex(text, "@"):], ".")
}
