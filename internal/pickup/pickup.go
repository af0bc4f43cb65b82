// Package pickup строит QR-код для получения оплаченного заказа на складе.
package pickup

import (
	"net/url"
	"strings"
)

const defaultQRService = "https://api.qrserver.com/v1/create-qr-code/"

// Codes формирует ссылки на изображения QR-кодов.
type Codes struct {
	ServiceURL string
}

// Payload возвращает содержимое QR-кода, которое сканирует сотрудник склада.
func Payload(orderNumber, orderID string) string {
	return "GARAGECONNECT|" + orderNumber + "|" + orderID
}

// URL возвращает ссылку на PNG с QR-кодом заказа.
func (c Codes) URL(orderNumber, orderID string) string {
	base := c.ServiceURL
	if base == "" {
		base = defaultQRService
	}
	q := url.Values{}
	q.Set("size", "400x400")
	q.Set("format", "png")
	q.Set("data", Payload(orderNumber, orderID))

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
