package bot

import "github.com/mmeshcher/tirebot/internal/session"

// action обрабатывает ход. Ошибка означает сбой зависимости: сессия не сохраняется.
type action func(b *Bot, t *turn) error

// globals работают на любом шаге, кроме пошагового выбора.
var globals = map[EventKind]action{
	EventMenu:   (*Bot).showMenu,
	EventHelp:   (*Bot).showMenu,
	EventCart:   (*Bot).showCart,
	EventSearch: (*Bot).startSearch,
	EventOrders: (*Bot).showOrders,
}

// selectionGlobals остаются доступны во время выбора, чтобы числа всегда
// относились к показанному списку.
var selectionGlobals = map[EventKind]bool{
	EventMenu: true,
	EventHelp: true,
	EventCart: true,
}

var rules = map[session.Step]map[EventKind]action{
	session.StepWelcome: {
		EventNumber: (*Bot).welcomeChoice,
	},
	session.StepViewingResults: {
		EventNumber:   (*Bot).addToCart,
		EventCheckout: (*Bot).beginCheckout,
	},
	session.StepCart: {
		EventCheckout: (*Bot).beginCheckout,
		EventClear:    (*Bot).clearCart,
	},
	session.StepViewOrders: {
		EventNumber: (*Bot).orderDetail,
		EventQR:     (*Bot).sendPickupCode,
	},
}

// fallbacks задают реакцию шага на всё, что не покрыто правилами.
var fallbacks = [session.NumSteps]action{
	session.StepWelcome:        (*Bot).showWelcome,
	session.StepSelectWidth:    (*Bot).selectOption,
	session.StepSelectHeight:   (*Bot).selectOption,
	session.StepSelectDiameter: (*Bot).selectOption,
	session.StepViewingResults: (*Bot).invalidResult,
	session.StepCart:           (*Bot).cartHint,
	session.StepCheckout:       (*Bot).finishCheckout,
	session.StepViewOrders:     (*Bot).ordersHint,
}

// route выбирает действие для события на шаге step.
func route(step session.Step, ev Event) action {
	if g, ok := globals[ev.Kind]; ok && (!step.InSelection() || selectionGlobals[ev.Kind]) {
		return g
	}
	if a, ok := rules[step][ev.Kind]; ok {
		return a
	}
	if step < 0 || step >= session.NumSteps {
		return (*Bot).showMenu
	}
	return fallbacks[step]
}
