package bot

import (
	"strings"

	"github.com/mmeshcher/tirebot/internal/validation"
)

// EventKind описывает класс входящего сообщения.
type EventKind int

const (
	EventText EventKind = iota
	EventNumber
	EventMenu
	EventHelp
	EventCart
	EventSearch
	EventOrders
	EventCheckout
	EventClear
	EventQR
)

var eventNames = map[EventKind]string{
	EventText:     "text",
	EventNumber:   "number",
	EventMenu:     "menu",
	EventHelp:     "help",
	EventCart:     "cart",
	EventSearch:   "search",
	EventOrders:   "orders",
	EventCheckout: "checkout",
	EventClear:    "clear",
	EventQR:       "qr",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

var keywords = map[string]EventKind{
	"menu":       EventMenu,
	"aide":       EventHelp,
	"help":       EventHelp,
	"panier":     EventCart,
	"cart":       EventCart,
	"recherche":  EventSearch,
	"search":     EventSearch,
	"commandes":  EventOrders,
	"historique": EventOrders,
	"commander":  EventCheckout,
	"vider":      EventClear,
	"qr":         EventQR,
}

// Event описывает классифицированное входящее сообщение.
type Event struct {
	Kind EventKind
	// Text содержит сообщение без крайних пробелов.
	Text string
}

func classify(raw string) Event {
	text := strings.TrimSpace(raw)
	if k, ok := keywords[strings.ToLower(text)]; ok {
		return Event{Kind: k, Text: text}
	}
	if validation.IsNumber(text) {
		return Event{Kind: EventNumber, Text: text}
	}
	return Event{Kind: EventText, Text: text}
}
