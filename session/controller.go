// Package session drives one-shot scan → lookup → publish cycles.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/aluiziolira/go-barcode-lookup/metrics"
	"github.com/aluiziolira/go-barcode-lookup/models"
	"github.com/aluiziolira/go-barcode-lookup/projection"
)

var (
	// ErrSessionActive is returned by Begin when a cycle is already running.
	ErrSessionActive = errors.New("session: capture already in progress")
	// ErrDecoderUnavailable wraps every capture-side failure.
	ErrDecoderUnavailable = errors.New("session: decoder unavailable")
	// ErrUnknownSession is returned by Wait for a session that is no longer tracked.
	ErrUnknownSession = errors.New("session: unknown session")
)

// UnavailableError is a capture-side failure. It matches
// ErrDecoderUnavailable and unwraps to the decoder's error.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return ErrDecoderUnavailable.Error() + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecoderUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrDecoderUnavailable
}

// Decoder is the capture capability the controller drives. Implementations
// must not invoke handlers synchronously from Start.
type Decoder interface {
	Subscribe(onSymbol func(models.SymbolEvent), onError func(error))
	Start(ctx context.Context) error
	Stop() error
}

// Looker resolves a symbol to a product. A nil record with a nil error means
// no match.
type Looker interface {
	Lookup(ctx context.Context, symbol string) (*models.ProductRecord, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics records session outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(lg *slog.Logger) Option {
	return func(c *Controller) {
		if lg != nil {
			c.logger = lg
		}
	}
}

// WithLookupTimeout bounds each lookup. Zero disables the bound.
func WithLookupTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithDetectHook calls fn once per cycle when the first symbol is accepted,
// before the lookup starts. fn runs on the decoder's goroutine and must not
// block.
func WithDetectHook(fn func(models.SymbolEvent)) Option {
	return func(c *Controller) {
		c.onDetect = fn
	}
}

// Controller owns the capture resource and the current display snapshot.
type Controller struct {
	decoder  Decoder
	looker   Looker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeout  time.Duration
	onDetect func(models.SymbolEvent)

	mu      sync.Mutex
	state   State
	current *cycle
	latest  Snapshot
	changed chan struct{}
	updates chan Snapshot
}

// cycle is one Idle → Capturing → Resolving → Idle pass.
type cycle struct {
	id           string
	ctx          context.Context
	cancel       context.CancelFunc
	stopOnParent func() bool

	started  chan struct{}
	startErr error
	release  sync.Once

	symbol  models.SymbolEvent
	closing bool
	done    bool
}

// NewController wires a controller to its collaborators and subscribes to
// the decoder's events.
func NewController(dec Decoder, looker Looker, opts ...Option) *Controller {
	c := &Controller{
		decoder: dec,
		looker:  looker,
		logger:  slog.Default(),
		changed: make(chan struct{}),
		updates: make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	dec.Subscribe(c.handleSymbol, c.handleError)
	return c
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the most recently published snapshot.
func (c *Controller) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Updates delivers published snapshots. Only the latest undelivered snapshot
// is kept.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Begin starts a capture cycle and returns its session ID. Cancelling ctx
// cancels the cycle.
func (c *Controller) Begin(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return "", ErrSessionActive
	}

	cy := &cycle{
		id:      uuid.NewString(),
		started: make(chan struct{}),
	}
	cy.ctx, cy.cancel = context.WithCancel(ctx)
	cy.stopOnParent = context.AfterFunc(ctx, func() {
		c.cancelCycle(cy)
	})
	c.current = cy
	c.state = Capturing
	c.publishLocked(Snapshot{Session: cy.id, State: Capturing, Capturing: true})
	c.mu.Unlock()

	c.logger.Debug("capture started", slog.String("session", cy.id))

	cy.startErr = c.decoder.Start(cy.ctx)
	close(cy.started)
	if cy.startErr == nil {
		return cy.id, nil
	}

	err := &UnavailableError{Err: cy.startErr}
	c.mu.Lock()
	if c.current == cy && !cy.closing {
		c.finishLocked(cy, Snapshot{Outcome: Unavailable, Err: err})
	}
	c.mu.Unlock()
	return cy.id, err
}

// Cancel aborts the running cycle, if any. A capture is released; an
// in-flight lookup is cancelled and its late result discarded.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cy := c.current
	c.mu.Unlock()
	if cy != nil {
		c.cancelCycle(cy)
	}
}

// Wait blocks until session reaches its terminal snapshot.
func (c *Controller) Wait(ctx context.Context, session string) (Snapshot, error) {
	for {
		c.mu.Lock()
		snap := c.latest
		changed := c.changed
		tracked := c.current != nil && c.current.id == session
		c.mu.Unlock()

		if snap.Session == session && snap.Terminal() {
			return snap, nil
		}
		if !tracked {
			return Snapshot{}, ErrUnknownSession
		}

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-changed:
		}
	}
}

func (c *Controller) cancelCycle(cy *cycle) {
	c.mu.Lock()
	if c.current != cy || cy.closing {
		c.mu.Unlock()
		return
	}

	switch c.state {
	case Capturing:
		cy.closing = true
		c.mu.Unlock()

		c.release(cy)

		c.mu.Lock()
		c.finishLocked(cy, Snapshot{Outcome: Cancelled})
		c.mu.Unlock()
	case Resolving:
		cy.cancel()
		c.finishLocked(cy, Snapshot{Outcome: Cancelled})
		c.mu.Unlock()
	default:
		c.mu.Unlock()
	}
}

func (c *Controller) handleSymbol(ev models.SymbolEvent) {
	c.mu.Lock()
	cy := c.current
	if c.state != Capturing || cy == nil || cy.closing {
		c.mu.Unlock()
		c.metrics.IncDiscarded()
		c.logger.Debug("symbol discarded", slog.String("payload", ev.Payload))
		return
	}

	cy.symbol = ev
	c.state = Resolving
	c.publishLocked(Snapshot{
		Session:   cy.id,
		State:     Resolving,
		Symbol:    ev.Payload,
		Symbology: ev.Symbology,
	})
	c.mu.Unlock()

	c.logger.Info("symbol detected",
		slog.String("session", cy.id),
		slog.String("payload", ev.Payload),
		slog.String("symbology", string(ev.Symbology)),
	)

	if c.onDetect != nil {
		c.onDetect(ev)
	}
	c.release(cy)
	go c.resolve(cy)
}

func (c *Controller) handleError(err error) {
	c.mu.Lock()
	cy := c.current
	if c.state != Capturing || cy == nil || cy.closing {
		c.mu.Unlock()
		c.logger.Debug("decoder error outside capture", slog.Any("error", err))
		return
	}
	cy.closing = true
	c.mu.Unlock()

	c.release(cy)

	c.mu.Lock()
	c.finishLocked(cy, Snapshot{
		Outcome: Unavailable,
		Err:     &UnavailableError{Err: err},
	})
	c.mu.Unlock()
}

func (c *Controller) resolve(cy *cycle) {
	ctx := cy.ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	record, err := c.looker.Lookup(ctx, cy.symbol.Payload)

	snap := Snapshot{}
	switch {
	case err != nil:
		snap.Outcome = Failed
		snap.Err = err
	case record == nil:
		snap.Outcome = NoMatch
	default:
		display := projection.Project(*record)
		snap.Outcome = Match
		snap.Display = &display
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != cy || c.state != Resolving || cy.closing {
		c.logger.Debug("stale lookup result dropped", slog.String("session", cy.id))
		return
	}
	c.finishLocked(cy, snap)
}

// release stops the decoder at most once per cycle, after Start returned.
func (c *Controller) release(cy *cycle) {
	cy.release.Do(func() {
		<-cy.started
		if cy.startErr != nil {
			return
		}
		if err := c.decoder.Stop(); err != nil {
			c.logger.Error("decoder stop failed", slog.String("session", cy.id), slog.Any("error", err))
		}
	})
}

func (c *Controller) finishLocked(cy *cycle, snap Snapshot) {
	if cy.done {
		return
	}
	cy.done = true
	cy.closing = true
	cy.stopOnParent()
	cy.cancel()

	snap.Session = cy.id
	snap.State = Idle
	snap.Symbol = cy.symbol.Payload
	snap.Symbology = cy.symbol.Symbology
	c.state = Idle
	c.publishLocked(snap)
	c.metrics.IncSession(snap.Outcome.String())

	c.logger.Info("session finished",
		slog.String("session", cy.id),
		slog.String("outcome", snap.Outcome.String()),
		slog.String("symbol", snap.Symbol),
	)
}

func (c *Controller) publishLocked(snap Snapshot) {
	snap.Capturing = snap.State == Capturing
	snap.At = time.Now()
	c.latest = snap

	close(c.changed)
	c.changed = make(chan struct{})

	select {
	case <-c.updates:
	default:
	}
	c.updates <- snap
}
