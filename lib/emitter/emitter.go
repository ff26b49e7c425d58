// Package emitter implements a small observer registry. Pollers, the price provider and the profiler each own one
// and forward payloads to whoever registered on a channel.
package emitter

import "sync"

// Handler receives the payload emitted on a channel.
type Handler func(payload interface{})

type entry struct {
	id uint64
	h  Handler
}

// Emitter keeps the handlers registered per channel. The zero value is ready to use.
type Emitter struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[string][]entry
}

// Register adds h to channel and returns the function that removes it. Calling the returned function more than
// once is harmless.
func (e *Emitter) Register(channel string, h Handler) (unregister func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[string][]entry)
	}

	e.next++
	id := e.next
	e.handlers[channel] = append(e.handlers[channel], entry{id: id, h: h})

	var once sync.Once

	return func() {
		once.Do(func() { e.remove(channel, id) })
	}
}

func (e *Emitter) remove(channel string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hs := e.handlers[channel]
	for i := range hs {
		if hs[i].id == id {
			// copy so a concurrent Emit iterating the old slice is not affected
			n := make([]entry, 0, len(hs)-1)
			n = append(n, hs[:i]...)
			e.handlers[channel] = append(n, hs[i+1:]...)

			break
		}
	}

	if len(e.handlers[channel]) == 0 {
		delete(e.handlers, channel)
	}
}

// Emit calls synchronously, in registration order, every handler registered on channel. It returns the number of
// handlers called.
func (e *Emitter) Emit(channel string, payload interface{}) int {
	e.mu.RLock()
	hs := e.handlers[channel]
	e.mu.RUnlock()

	for _, x := range hs {
		x.h(payload)
	}

	return len(hs)
}

// count returns the number of handlers registered on channel.
func (e *Emitter) count(channel string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.handlers[channel])
}
