package decoder

import (
	"context"
	"io"
	"sync"

	"github.com/aluiziolira/go-barcode-lookup/models"
)

// Static emits one preset payload per capture. Once the payloads are
// exhausted Start reports io.EOF.
type Static struct {
	mu       sync.Mutex
	payloads []string
	next     int
	active   bool
	onSymbol func(models.SymbolEvent)
}

// NewStatic returns a decoder replaying payloads in order.
func NewStatic(payloads ...string) *Static {
	return &Static{payloads: payloads}
}

// Subscribe registers the symbol handler. Static never reports errors.
func (s *Static) Subscribe(onSymbol func(models.SymbolEvent), _ func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSymbol = onSymbol
}

// Start activates capture and emits the next payload asynchronously.
func (s *Static) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrBusy
	}
	if s.next >= len(s.payloads) {
		return io.EOF
	}

	payload, symbology := ParseSymbol(s.payloads[s.next])
	s.next++
	s.active = true

	handler := s.onSymbol
	if handler != nil {
		go func() {
			if s.isActive() {
				handler(models.SymbolEvent{Payload: payload, Symbology: symbology})
			}
		}()
	}
	return nil
}

// Stop deactivates capture.
func (s *Static) Stop() error {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	return nil
}

func (s *Static) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
