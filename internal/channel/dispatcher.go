package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/UnknownOlympus/selene/internal/appmessage"
)

// dispatcher keeps the handler registry shared by every channel implementation.
type dispatcher struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[appmessage.EventType][]Handler
}

func newDispatcher(log *slog.Logger) *dispatcher {
	return &dispatcher{
		log:      log,
		handlers: make(map[appmessage.EventType][]Handler),
	}
}

// On registers handler for event. Handlers run in registration order.
func (d *dispatcher) On(event appmessage.EventType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[event] = append(d.handlers[event], handler)
}

// dispatch runs every handler registered for evt.Type and returns how many ran.
func (d *dispatcher) dispatch(ctx context.Context, evt appmessage.Event) int {
	d.mu.RLock()
	handlers := d.handlers[evt.Type]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.log.DebugContext(ctx, "No handler registered for event, dropping", "event", evt.Type, "session", evt.Session)
		return 0
	}

	for _, handler := range handlers {
		handler(ctx, evt)
	}

	return len(handlers)
}
