package event

import "sync"

const (
	SweepTaskUpdate  = "sweep:task:update"
	SweepObservation = "sweep:observation"
	AppExit          = "app:exit"
)

type EventDetail struct {
	ID      int64  `json:"id"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Bus delivers events synchronously, on the emitting goroutine, to every
// listener registered for the event name.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[string]map[int]func(EventDetail)
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[string]map[int]func(EventDetail))}
}

// On registers fn for name and returns a function removing it.
func (b *Bus) On(name string, fn func(EventDetail)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.listeners[name] == nil {
		b.listeners[name] = make(map[int]func(EventDetail))
	}
	b.listeners[name][id] = fn
	return func() {
		b.mu.Lock()
		delete(b.listeners[name], id)
		b.mu.Unlock()
	}
}

func (b *Bus) EmitV2(name string, detail EventDetail) {
	if b == nil {
		return
	}
	b.mu.RLock()
	fns := make([]func(EventDetail), 0, len(b.listeners[name]))
	for _, fn := range b.listeners[name] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(detail)
	}
}
