// Package eventtime turns an event identifier typed into a form into a time window:
// a debounced, cancelable lookup resolves the event's origin time and the derived
// starttime/endtime fields follow it and the before/after offsets.
package eventtime

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bep/debounce"

	"evtimesel/internal/fdsnevent"
	"evtimesel/internal/observability"
)

// Default configuration values.
const (
	DefaultDelay     = 800 * time.Millisecond
	DefaultMinLength = 3
)

// Status messages shown while a lookup is not resolved.
const (
	MsgIncomplete = "Enter complete Event ID..."
	MsgFetching   = "Fetching event..."
)

var (
	// ErrCanceled marks a lookup whose result was discarded because a newer input,
	// a clear or Close superseded it. It is never shown in the status display.
	ErrCanceled = errors.New("lookup superseded")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("controller closed")
)

// Resolver resolves an event identifier to its origin time.
type Resolver interface {
	OriginTime(ctx context.Context, eventID string) (time.Time, error)
}

// Recorder receives lookup metrics. *observability.Metrics implements it.
type Recorder interface {
	RecordInput()
	RecordLookup(outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordInput() {}
func (nopRecorder) RecordLookup(string, time.Duration) {}

// State is the lookup state of a Controller.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateInFlight
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateInFlight:
		return "in_flight"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Controller owns the lookup state of one form: the reference timestamp, the
// active request and the request generation. Only the lookup started by the most
// recent input may change the reference timestamp or the status.
type Controller struct {
	form      Form
	deriver   *Deriver
	resolver  Resolver
	logger    *slog.Logger
	recorder  Recorder
	delay     time.Duration
	minLength int

	debounced func(func())

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	state    State
	ref      time.Time
	gen      uint64 // bumped whenever the current lookup is superseded
	inputSeq uint64 // bumped on every input, submit and clear
	cancel   context.CancelFunc
	closed   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithDelay sets the debounce quiet window.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.delay = d
	}
}

// WithMinLength sets how many characters an identifier needs before it is looked up.
func WithMinLength(n int) Option {
	return func(c *Controller) {
		c.minLength = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// NewController creates a controller driving form and resolving identifiers with r.
func NewController(form Form, r Resolver, opts ...Option) *Controller {
	c := &Controller{
		form:      form,
		deriver:   NewDeriver(form),
		resolver:  r,
		logger:    slog.Default(),
		recorder:  nopRecorder{},
		delay:     DefaultDelay,
		minLength: DefaultMinLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.delay < 0 {
		c.delay = 0
	}
	c.logger = c.logger.With("component", "eventtime")
	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())
	c.debounced = debounce.New(c.delay)
	return c
}

// Input handles a keystroke in the identifier field. Only the last input within
// the debounce window is submitted.
func (c *Controller) Input(id string) {
	c.recorder.RecordInput()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inputSeq++
	seq := c.inputSeq
	c.state = StateDebouncing
	c.mu.Unlock()

	c.debounced(func() {
		_ = c.submit(id, seq)
	})
}

// Submit looks up id immediately, superseding any pending input and any lookup in
// flight. It blocks until the lookup is resolved and returns nil on success,
// ErrCanceled if a newer input superseded it, or the lookup error.
func (c *Controller) Submit(id string) error {
	c.mu.Lock()
	c.inputSeq++
	seq := c.inputSeq
	c.mu.Unlock()
	return c.submit(id, seq)
}

func (c *Controller) submit(id string, seq uint64) error {
	c.mu.Lock()
	run, err := c.beginLocked(id, seq)
	c.mu.Unlock()
	if run == nil {
		return err
	}
	defer c.wg.Done()
	return run()
}

// beginLocked applies the synchronous part of a submission. When a network lookup
// is needed it returns the function performing it.
func (c *Controller) beginLocked(id string, seq uint64) (func() error, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if seq != c.inputSeq {
		// A later input or a clear arrived while this one was waiting.
		return nil, ErrCanceled
	}

	c.supersedeLocked()
	id = strings.TrimSpace(id)

	if id == "" {
		c.ref = time.Time{}
		c.state = StateIdle
		c.form.SetStatus(Status{})
		return nil, nil
	}

	if utf8.RuneCountInString(id) < c.minLength {
		c.state = StateIdle
		c.form.SetStatus(Status{Kind: StatusPending, Message: MsgIncomplete})
		return nil, nil
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel
	gen := c.gen
	c.state = StateInFlight
	c.form.SetStatus(Status{Kind: StatusPending, Message: MsgFetching})
	c.wg.Add(1)
	c.logger.Debug("looking up event", "eventid", id, "generation", gen)

	return func() error {
		start := time.Now()
		origin, err := c.resolver.OriginTime(ctx, id)
		cancel()
		return c.finish(gen, id, origin, err, time.Since(start))
	}, nil
}

// supersedeLocked cancels the active request and invalidates its generation.
func (c *Controller) supersedeLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}

func (c *Controller) finish(gen uint64, id string, origin time.Time, err error, elapsed time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.recorder.RecordLookup(observability.OutcomeCanceled, elapsed)
		c.logger.Debug("discarding superseded lookup", "eventid", id, "generation", gen)
		return ErrCanceled
	}
	c.cancel = nil

	if err != nil {
		c.ref = time.Time{}
		c.state = StateFailed
		c.form.SetStatus(Status{Kind: StatusError, Message: StatusMessage(err)})
		c.recorder.RecordLookup(outcome(err), elapsed)
		c.logger.Info("event lookup failed", "eventid", id, "error", err)
		return err
	}

	c.ref = origin
	c.state = StateResolved
	c.form.SetStatus(Status{Kind: StatusSuccess, Message: "Origin Time: " + FormatTimestamp(origin)})
	c.recorder.RecordLookup(observability.OutcomeSuccess, elapsed)
	c.logger.Info("event resolved", "eventid", id, "origin", origin, "elapsed", elapsed)
	c.deriver.Update(origin)
	return nil
}

// Recompute rewrites the derived fields from the current offsets. It reports
// false and changes nothing when no reference timestamp is set.
func (c *Controller) Recompute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.deriver.Update(c.ref)
	return ok
}

// HandleEdit records a user edit of field and routes it: identifier edits go
// through the debounced lookup, offset edits recompute the derived fields.
func (c *Controller) HandleEdit(field Field, value string) {
	c.form.SetValue(field, value)
	c.form.NotifyChange()

	switch field {
	case FieldEventID:
		c.Input(value)
	case FieldBefore, FieldAfter:
		c.Recompute()
	}
}

// Clear cancels pending and in-flight lookups and resets the identifier, both
// offsets, both derived fields, the status and the reference timestamp.
func (c *Controller) Clear() {
	c.debounced(func() {})

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inputSeq++
	c.supersedeLocked()
	c.ref = time.Time{}
	c.state = StateIdle
	for _, f := range ResetFields {
		c.form.SetValue(f, "")
	}
	c.form.SetStatus(Status{})
	c.form.NotifyChange()
}

// State returns the current lookup state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reference returns the resolved reference timestamp, if any.
func (c *Controller) Reference() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ref, !c.ref.IsZero()
}

// Close drops pending input, cancels the active lookup and waits for running
// lookups to return. The form keeps its last state.
func (c *Controller) Close() {
	c.debounced(func() {})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.inputSeq++
	c.supersedeLocked()
	c.mu.Unlock()

	c.baseCancel()
	c.wg.Wait()
}

// StatusMessage turns a lookup error into the text shown in the status display.
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if msg == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(r)) + msg[size:]
}

func outcome(err error) string {
	switch {
	case errors.Is(err, fdsnevent.ErrNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, fdsnevent.ErrMalformedResponse):
		return observability.OutcomeMalformed
	default:
		return observability.OutcomeService
	}
}
