package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/logging"
)

// DefaultHistoryLimit is the number of events retained when history is not
// configured explicitly.
const DefaultHistoryLimit = 100

// Handler processes one emitted event. Handlers run concurrently with each
// other; a returned error is recorded and isolated, never propagated to the
// emitter or to sibling handlers.
type Handler func(ev core.Event) error

// Subscription identifies one registered handler so it can be removed later.
// Handlers are funcs and cannot be compared, so On returns this token.
type Subscription struct {
	eventType core.EventType
	id        uint64
}

// HandlerError records one isolated handler failure.
type HandlerError struct {
	EventType core.EventType
	EventID   string
	Err       error
	Timestamp time.Time
}

// Options configures a Bus instance using the functional options pattern.
type Options struct {
	// HistoryLimit bounds the in-memory event history ring. Events past the
	// limit drop oldest-first. Zero or negative disables history entirely.
	// Defaults to DefaultHistoryLimit.
	HistoryLimit int

	// Logger receives a warning for every isolated handler failure.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger
}

type subscriber struct {
	id uint64
	fn Handler
}

// Bus fans events out to subscribed handlers. The registry keeps exact-type
// subscriptions and wildcard subscriptions in separate tiers, mirroring the
// two-tier lookup performed on every emit. All methods are safe for
// concurrent use.
type Bus struct {
	mu       sync.RWMutex
	exact    map[core.EventType][]subscriber
	wildcard []subscriber
	nextID   uint64

	history      []core.Event
	historyLimit int

	errsMu sync.Mutex
	errs   []HandlerError

	logger logging.Logger
}

// New creates a bus with bounded history and optional configuration.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		HistoryLimit: DefaultHistoryLimit,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Bus{
		exact:        make(map[core.EventType][]subscriber),
		historyLimit: opts.HistoryLimit,
		logger:       core.EnsureLogger(opts.Logger),
	}
}

// On registers a handler for the given event type. Registering under
// core.EventAny subscribes the handler to every emission. The returned
// Subscription removes exactly this registration when passed to Off.
func (b *Bus) On(eventType core.EventType, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscriber{id: b.nextID, fn: h}
	if eventType == core.EventAny {
		b.wildcard = append(b.wildcard, sub)
	} else {
		b.exact[eventType] = append(b.exact[eventType], sub)
	}
	return Subscription{eventType: eventType, id: b.nextID}
}

// Off removes a previously registered handler. It reports whether the
// subscription was found; removing twice is harmless.
func (b *Bus) Off(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.eventType == core.EventAny {
		for i, s := range b.wildcard {
			if s.id == sub.id {
				b.wildcard = append(b.wildcard[:i], b.wildcard[i+1:]...)
				return true
			}
		}
		return false
	}

	subs := b.exact[sub.eventType]
	for i, s := range subs {
		if s.id == sub.id {
			b.exact[sub.eventType] = append(subs[:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// EmitOptions carries optional provenance for one emission.
type EmitOptions struct {
	// Source names the component that produced the event.
	Source string

	// CorrelationID links the event to a run, turn or external request.
	CorrelationID string
}

// Emit builds an immutable event, appends it to history when enabled, and
// runs every handler registered for the exact type plus every wildcard
// handler, each in its own goroutine. Emit blocks until all of them return:
// it is the synchronization barrier the turn loop relies on for ordering.
// Handler errors and panics are recorded and isolated. The built event is
// returned so emitters can reference its ID and timestamp.
func (b *Bus) Emit(eventType core.EventType, data map[string]any, optFns ...func(o *EmitOptions)) core.Event {
	opts := EmitOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	ev := core.NewEvent(eventType, data)
	ev.Source = opts.Source
	ev.CorrelationID = opts.CorrelationID

	// Appending to history and snapshotting handlers under one lock keeps
	// history ordering consistent with handler observation order.
	b.mu.Lock()
	if b.historyLimit > 0 {
		b.history = append(b.history, ev)
		if len(b.history) > b.historyLimit {
			b.history = append(b.history[:0], b.history[1:]...)
		}
	}
	handlers := make([]subscriber, 0, len(b.exact[eventType])+len(b.wildcard))
	handlers = append(handlers, b.exact[eventType]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.Unlock()

	if len(handlers) == 0 {
		return ev
	}

	var wg sync.WaitGroup
	wg.Add(len(handlers))
	for _, s := range handlers {
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.recordError(ev, fmt.Errorf("handler panic: %v", r))
				}
			}()
			if err := h(ev); err != nil {
				b.recordError(ev, err)
			}
		}(s.fn)
	}
	wg.Wait()

	return ev
}

func (b *Bus) recordError(ev core.Event, err error) {
	b.errsMu.Lock()
	b.errs = append(b.errs, HandlerError{
		EventType: ev.Type,
		EventID:   ev.ID,
		Err:       err,
		Timestamp: time.Now().UTC(),
	})
	b.errsMu.Unlock()

	b.logger.Warn("event handler failed", "event_type", ev.Type.String(), "event_id", ev.ID, "error", err)
}

// Errors returns a copy of all recorded handler failures in occurrence order.
func (b *Bus) Errors() []HandlerError {
	b.errsMu.Lock()
	defer b.errsMu.Unlock()

	errs := make([]HandlerError, len(b.errs))
	copy(errs, b.errs)
	return errs
}

// ClearErrors discards all recorded handler failures.
func (b *Bus) ClearErrors() {
	b.errsMu.Lock()
	defer b.errsMu.Unlock()
	b.errs = nil
}

// ClearHandlers removes registrations for the given types, or every
// registration (including wildcards) when called without arguments.
func (b *Bus) ClearHandlers(types ...core.EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(types) == 0 {
		b.exact = make(map[core.EventType][]subscriber)
		b.wildcard = nil
		return
	}
	for _, t := range types {
		if t == core.EventAny {
			b.wildcard = nil
			continue
		}
		delete(b.exact, t)
	}
}

// History returns retained events, oldest first, filtered to the given types
// when any are passed. It is empty when history is disabled.
func (b *Bus) History(types ...core.EventType) []core.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(types) == 0 {
		events := make([]core.Event, len(b.history))
		copy(events, b.history)
		return events
	}

	wanted := make(map[core.EventType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	var events []core.Event
	for _, ev := range b.history {
		if wanted[ev.Type] {
			events = append(events, ev)
		}
	}
	return events
}

// HandlerCount reports how many handlers are registered for a type
// (wildcards count only under core.EventAny).
func (b *Bus) HandlerCount(eventType core.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if eventType == core.EventAny {
		return len(b.wildcard)
	}
	return len(b.exact[eventType])
}
