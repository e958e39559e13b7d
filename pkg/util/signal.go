package util

import "sync"

type SigHandler func(sender any, params ...any)

// Signals is an in-process event bus. Handlers run synchronously in Emit;
// slow handlers should start their own goroutine.
type Signals struct {
	mu       sync.RWMutex
	handlers map[string][]SigHandler
}

var (
	sigOnce sync.Once
	sig     *Signals
)

// Sig returns the process-wide bus.
func Sig() *Signals {
	sigOnce.Do(func() { sig = NewSignals() })
	return sig
}

func NewSignals() *Signals {
	return &Signals{handlers: make(map[string][]SigHandler)}
}

func (s *Signals) Connect(event string, h SigHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

// Emit calls every handler connected to event.
func (s *Signals) Emit(event string, sender any, params ...any) {
	s.mu.RLock()
	hs := append([]SigHandler(nil), s.handlers[event]...)
	s.mu.RUnlock()
	for _, h := range hs {
		h(sender, params...)
	}
}

// Disconnect drops every handler of event.
func (s *Signals) Disconnect(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}
