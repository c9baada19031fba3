// Package decoder provides capture adapters that emit scanned symbols.
package decoder

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aluiziolira/go-barcode-lookup/models"
)

var (
	// ErrBusy is returned by Start while a capture is already active.
	ErrBusy = errors.New("decoder: capture already active")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("decoder: closed")
)

// Option configures a Line decoder.
type Option func(*Line)

// WithSymbologies restricts emitted events to the given symbologies. An
// empty list accepts everything.
func WithSymbologies(symbologies []models.Symbology) Option {
	return func(l *Line) {
		if len(symbologies) == 0 {
			l.allowed = nil
			return
		}
		l.allowed = make(map[models.Symbology]struct{}, len(symbologies))
		for _, s := range symbologies {
			l.allowed[s] = struct{}{}
		}
	}
}

// WithDebounce drops a payload seen again within window. At most size
// payloads are tracked.
func WithDebounce(window time.Duration, size int) Option {
	return func(l *Line) {
		if window <= 0 || size <= 0 {
			l.seen = nil
			return
		}
		l.seen = expirable.NewLRU[string, struct{}](size, nil, window)
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Line) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// Line reads newline-terminated payloads, the way keyboard-wedge scanners
// type them. Input is consumed only while a capture is active.
type Line struct {
	open    func() (io.Reader, error)
	allowed map[models.Symbology]struct{}
	seen    *expirable.LRU[string, struct{}]
	logger  *slog.Logger

	mu       sync.Mutex
	reader   io.Reader
	onSymbol func(models.SymbolEvent)
	onError  func(error)
	active   bool
	closed   bool
	readErr  error

	wake chan struct{}
	done chan struct{}
}

// NewLine returns a decoder over r.
func NewLine(r io.Reader, opts ...Option) *Line {
	return newLine(func() (io.Reader, error) { return r, nil }, opts...)
}

// Open returns a decoder reading from path, or stdin for "-". The path is
// opened on the first Start.
func Open(path string, opts ...Option) *Line {
	return newLine(func() (io.Reader, error) {
		if path == "-" {
			return os.Stdin, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open scanner input")
		}
		return f, nil
	}, opts...)
}

func newLine(open func() (io.Reader, error), opts ...Option) *Line {
	l := &Line{
		open:   open,
		logger: slog.Default(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe registers the event handlers. Handlers are invoked from the
// reader goroutine and never while the decoder's lock is held.
func (l *Line) Subscribe(onSymbol func(models.SymbolEvent), onError func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSymbol = onSymbol
	l.onError = onError
}

// Start activates capture, opening the input on first use.
func (l *Line) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.closed:
		return ErrClosed
	case l.active:
		return ErrBusy
	case l.readErr != nil:
		return l.readErr
	}

	if l.reader == nil {
		r, err := l.open()
		if err != nil {
			return err
		}
		l.reader = r
		go l.read(r)
	}

	l.active = true
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stop deactivates capture. It is safe to call when inactive.
func (l *Line) Stop() error {
	l.mu.Lock()
	l.active = false
	l.mu.Unlock()
	return nil
}

// Close stops the reader and closes file inputs.
func (l *Line) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.active = false
	close(l.done)

	if l.reader == os.Stdin {
		return nil
	}
	if c, ok := l.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *Line) read(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for {
		select {
		case <-l.wake:
		case <-l.done:
			return
		}

		for l.isActive() {
			if !scanner.Scan() {
				err := scanner.Err()
				if err == nil {
					err = io.EOF
				}
				l.fail(err)
				return
			}
			l.deliver(scanner.Text())
		}
	}
}

func (l *Line) isActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Line) deliver(line string) {
	l.mu.Lock()
	active, handler := l.active, l.onSymbol
	l.mu.Unlock()
	if !active || handler == nil {
		return
	}

	payload, symbology, identified := parseSymbol(line)
	if payload == "" {
		return
	}
	if !l.accepts(symbology, identified) {
		l.logger.Debug("symbology not accepted",
			slog.String("symbology", string(symbology)),
			slog.String("payload", payload),
		)
		return
	}
	if l.seen != nil {
		if l.seen.Contains(payload) {
			l.logger.Debug("duplicate scan suppressed", slog.String("payload", payload))
			return
		}
		l.seen.Add(payload, struct{}{})
	}

	handler(models.SymbolEvent{Payload: payload, Symbology: symbology})
}

// accepts applies the symbology filter. Without an AIM identifier, text that
// is not a retail code cannot be told apart from QR or Code 128 content, so
// it passes whenever a free-text symbology is allowed.
func (l *Line) accepts(symbology models.Symbology, identified bool) bool {
	if l.allowed == nil {
		return true
	}
	if _, ok := l.allowed[symbology]; ok {
		return true
	}
	if identified || symbology != models.SymbologyUnknown {
		return false
	}
	for _, s := range freeText {
		if _, ok := l.allowed[s]; ok {
			return true
		}
	}
	return false
}

func (l *Line) fail(err error) {
	l.mu.Lock()
	l.readErr = err
	active, handler := l.active, l.onError
	l.mu.Unlock()

	if active && handler != nil {
		handler(err)
	}
}
