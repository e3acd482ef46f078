package eventtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evtimesel/internal/fdsnevent"
)

type reply struct {
	t   time.Time
	err error
}

// fakeResolver records calls. Without a scripted reply for an identifier it blocks
// until release is called, ignoring cancellation like a request already on the wire.
type fakeResolver struct {
	mu       sync.Mutex
	calls    []string
	replies  map[string]reply
	pending  map[string]chan reply
	canceled map[string]bool
	started  chan string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		replies:  make(map[string]reply),
		pending:  make(map[string]chan reply),
		canceled: make(map[string]bool),
		started:  make(chan string, 16),
	}
}

func (f *fakeResolver) script(id string, t time.Time, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[id] = reply{t: t, err: err}
}

func (f *fakeResolver) hold(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[id] = make(chan reply, 1)
}

func (f *fakeResolver) release(id string, t time.Time, err error) {
	f.mu.Lock()
	ch := f.pending[id]
	f.mu.Unlock()
	ch <- reply{t: t, err: err}
}

func (f *fakeResolver) OriginTime(ctx context.Context, id string) (time.Time, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	r, scripted := f.replies[id]
	ch := f.pending[id]
	f.mu.Unlock()

	f.started <- id

	if ch == nil {
		if !scripted {
			return time.Time{}, fdsnevent.ErrNotFound
		}
		return r.t, r.err
	}

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		f.canceled[id] = true
		f.mu.Unlock()
	}()
	r = <-ch
	return r.t, r.err
}

func (f *fakeResolver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeResolver) wasCanceled(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled[id]
}

func (f *fakeResolver) waitStarted(t *testing.T, id string) {
	t.Helper()
	select {
	case got := <-f.started:
		require.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("lookup for %q never started", id)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T, r Resolver, opts ...Option) (*Controller, *MemoryForm) {
	t.Helper()
	form := NewMemoryForm()
	opts = append([]Option{WithLogger(discardLogger()), WithDelay(20 * time.Millisecond)}, opts...)
	c := NewController(form, r, opts...)
	t.Cleanup(c.Close)
	return c, form
}

var origin = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSubmit_ShortIdentifierMakesNoCall(t *testing.T) {
	res := newFakeResolver()
	c, form := newTestController(t, res)

	for _, id := range []string{"a", "ab", "  ab  ", "\tx\n"} {
		require.NoError(t, c.Submit(id))
		assert.Equal(t, Status{Kind: StatusPending, Message: MsgIncomplete}, form.Status())
	}
	assert.Empty(t, res.Calls())
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmit_SuccessDerivesFields(t *testing.T) {
	res := newFakeResolver()
	res.script("gfz2024abcd", origin, nil)
	c, form := newTestController(t, res)
	form.SetValue(FieldBefore, "5")
	form.SetValue(FieldAfter, "10")

	var changes []Snapshot
	form.OnChange(func(s Snapshot) { changes = append(changes, s) })

	require.NoError(t, c.Submit("  gfz2024abcd "))

	assert.Equal(t, []string{"gfz2024abcd"}, res.Calls())
	ref, ok := c.Reference()
	assert.True(t, ok)
	assert.Equal(t, origin, ref)
	assert.Equal(t, StateResolved, c.State())
	assert.Equal(t, Status{Kind: StatusSuccess, Message: "Origin Time: 2024-01-01T00:00:00"}, form.Status())
	assert.Equal(t, "2023-12-31T23:55:00", form.Value(FieldStartTime))
	assert.Equal(t, "2024-01-01T00:10:00", form.Value(FieldEndTime))
	assert.Len(t, changes, 1)
}

func TestInput_OnlyLastEditIsLookedUp(t *testing.T) {
	res := newFakeResolver()
	res.script("abcd", origin, nil)
	c, form := newTestController(t, res, WithDelay(50*time.Millisecond))

	for _, id := range []string{"a", "ab", "abc", "abcd"} {
		c.Input(id)
	}
	assert.Equal(t, StateDebouncing, c.State())

	assert.Eventually(t, func() bool {
		_, ok := c.Reference()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"abcd"}, res.Calls())
	assert.Equal(t, StatusSuccess, form.Status().Kind)
}

func TestSubmit_SupersededSuccessIsIgnored(t *testing.T) {
	res := newFakeResolver()
	res.hold("first")
	res.hold("second")
	c, form := newTestController(t, res)

	later := origin.Add(time.Hour)
	firstErr := make(chan error, 1)
	go func() { firstErr <- c.Submit("first") }()
	res.waitStarted(t, "first")

	secondErr := make(chan error, 1)
	go func() { secondErr <- c.Submit("second") }()
	res.waitStarted(t, "second")

	assert.Eventually(t, func() bool { return res.wasCanceled("first") }, time.Second, 5*time.Millisecond)

	// B resolves first, then A's stale response arrives.
	res.release("second", later, nil)
	require.NoError(t, <-secondErr)
	res.release("first", origin, nil)
	assert.ErrorIs(t, <-firstErr, ErrCanceled)

	ref, ok := c.Reference()
	assert.True(t, ok)
	assert.Equal(t, later, ref)
	assert.Equal(t, "Origin Time: 2024-01-01T01:00:00", form.Status().Message)
	assert.Equal(t, "2024-01-01T01:00:00", form.Value(FieldStartTime))
}

func TestSubmit_SupersededFailureIsIgnored(t *testing.T) {
	res := newFakeResolver()
	res.hold("first")
	res.script("second", origin, nil)
	c, form := newTestController(t, res)

	firstErr := make(chan error, 1)
	go func() { firstErr <- c.Submit("first") }()
	res.waitStarted(t, "first")

	require.NoError(t, c.Submit("second"))
	res.waitStarted(t, "second")

	res.release("first", time.Time{}, fdsnevent.ErrService)
	assert.ErrorIs(t, <-firstErr, ErrCanceled)

	assert.Equal(t, StatusSuccess, form.Status().Kind)
	assert.Equal(t, StateResolved, c.State())
	_, ok := c.Reference()
	assert.True(t, ok)
}

func TestSubmit_FailureClearsReference(t *testing.T) {
	res := newFakeResolver()
	res.script("good1", origin, nil)
	res.script("broken", time.Time{}, fdsnevent.ErrMalformedResponse)
	c, form := newTestController(t, res)

	require.NoError(t, c.Submit("good1"))
	err := c.Submit("missing")
	assert.ErrorIs(t, err, fdsnevent.ErrNotFound)

	_, ok := c.Reference()
	assert.False(t, ok)
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, Status{Kind: StatusError, Message: "Event not found"}, form.Status())
	// Derived fields keep the last computed window.
	assert.Equal(t, "2024-01-01T00:00:00", form.Value(FieldStartTime))

	assert.ErrorIs(t, c.Submit("broken"), fdsnevent.ErrMalformedResponse)
	assert.Equal(t, "Invalid response", form.Status().Message)
}

func TestSubmit_EmptyIdentifierClearsReference(t *testing.T) {
	res := newFakeResolver()
	res.script("good1", origin, nil)
	c, form := newTestController(t, res)

	require.NoError(t, c.Submit("good1"))
	require.NoError(t, c.Submit("   "))

	_, ok := c.Reference()
	assert.False(t, ok)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, Status{}, form.Status())
	assert.Equal(t, []string{"good1"}, res.Calls())
	assert.False(t, c.Recompute())
}

func TestClear_MidFlight(t *testing.T) {
	res := newFakeResolver()
	res.hold("slow1")
	c, form := newTestController(t, res)

	form.SetValue(FieldEventID, "slow1")
	form.SetValue(FieldBefore, "1")
	form.SetValue(FieldAfter, "2")
	form.SetValue(FieldStartTime, "2020-01-01T00:00:00")
	form.SetValue(FieldEndTime, "2020-01-01T00:01:00")

	errCh := make(chan error, 1)
	go func() { errCh <- c.Submit("slow1") }()
	res.waitStarted(t, "slow1")

	notified := 0
	form.OnChange(func(Snapshot) { notified++ })
	c.Clear()

	for _, f := range ResetFields {
		assert.Equal(t, "", form.Value(f), "field %s", f)
	}
	assert.Equal(t, Status{}, form.Status())
	assert.Equal(t, 1, notified)
	assert.Eventually(t, func() bool { return res.wasCanceled("slow1") }, time.Second, 5*time.Millisecond)

	res.release("slow1", origin, nil)
	assert.ErrorIs(t, <-errCh, ErrCanceled)

	_, ok := c.Reference()
	assert.False(t, ok)
	assert.Equal(t, "", form.Value(FieldStartTime))
	assert.Equal(t, Status{}, form.Status())
}

func TestClear_DropsPendingInput(t *testing.T) {
	res := newFakeResolver()
	res.script("abcd", origin, nil)
	c, _ := newTestController(t, res, WithDelay(40*time.Millisecond))

	c.Input("abcd")
	c.Clear()

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, res.Calls())
	assert.Equal(t, StateIdle, c.State())
}

func TestInput_LatestEventWins(t *testing.T) {
	res := newFakeResolver()
	res.script("abcd", origin, nil)
	c, form := newTestController(t, res, WithDelay(40*time.Millisecond))

	c.Input("")
	c.Input("abcd")

	assert.Eventually(t, func() bool { return form.Status().Kind == StatusSuccess }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"abcd"}, res.Calls())
}

func TestHandleEdit_RoutesOffsets(t *testing.T) {
	res := newFakeResolver()
	res.script("good1", origin, nil)
	c, form := newTestController(t, res)

	// Without a reference an offset edit changes nothing derived.
	c.HandleEdit(FieldBefore, "5")
	assert.Equal(t, "", form.Value(FieldStartTime))

	require.NoError(t, c.Submit("good1"))
	assert.Equal(t, "2023-12-31T23:55:00", form.Value(FieldStartTime))
	assert.Equal(t, "2024-01-01T00:00:00", form.Value(FieldEndTime))

	c.HandleEdit(FieldAfter, "90")
	assert.Equal(t, "2024-01-01T01:30:00", form.Value(FieldEndTime))

	c.HandleEdit(FieldBefore, "not a number")
	assert.Equal(t, "2024-01-01T00:00:00", form.Value(FieldStartTime))
}

func TestHandleEdit_IdentifierIsDebounced(t *testing.T) {
	res := newFakeResolver()
	res.script("good1", origin, nil)
	c, form := newTestController(t, res)

	var (
		mu   sync.Mutex
		seen []string
	)
	form.OnChange(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Get(FieldEventID))
	})

	c.HandleEdit(FieldEventID, "goo")
	c.HandleEdit(FieldEventID, "good1")
	assert.Equal(t, "good1", form.Value(FieldEventID))

	assert.Eventually(t, func() bool { return c.State() == StateResolved }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"good1"}, res.Calls())
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, "goo")
}

func TestClose(t *testing.T) {
	res := newFakeResolver()
	res.hold("slow1")
	form := NewMemoryForm()
	c := NewController(form, res, WithLogger(discardLogger()))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Submit("slow1") }()
	res.waitStarted(t, "slow1")

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	assert.Eventually(t, func() bool { return res.wasCanceled("slow1") }, time.Second, 5*time.Millisecond)
	res.release("slow1", origin, nil)
	<-done

	assert.ErrorIs(t, <-errCh, ErrCanceled)
	assert.ErrorIs(t, c.Submit("other"), ErrClosed)
	c.Close()
}

func TestController_WithHTTPService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("eventid") {
		case "known":
			_, _ = w.Write([]byte("#EventID|Time|Latitude\nknown|2024-01-01T00:00:00|1.0\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c, form := newTestController(t, fdsnevent.NewClient(server.URL))

	require.NoError(t, c.Submit("known"))
	ref, ok := c.Reference()
	require.True(t, ok)
	assert.Equal(t, origin, ref)

	assert.ErrorIs(t, c.Submit("unknown"), fdsnevent.ErrNotFound)
	_, ok = c.Reference()
	assert.False(t, ok)
	assert.Equal(t, "Event not found", form.Status().Message)
}

type countingRecorder struct {
	mu       sync.Mutex
	inputs   int
	outcomes []string
}

func (r *countingRecorder) RecordInput() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs++
}

func (r *countingRecorder) RecordLookup(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestController_RecordsOutcomes(t *testing.T) {
	res := newFakeResolver()
	res.script("good1", origin, nil)
	rec := &countingRecorder{}
	c, _ := newTestController(t, res, WithRecorder(rec))

	c.Input("x")
	require.NoError(t, c.Submit("good1"))
	_ = c.Submit("missing")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.inputs)
	assert.Equal(t, []string{"success", "not_found"}, rec.outcomes)
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "", StatusMessage(nil))
	assert.Equal(t, "Event not found", StatusMessage(fdsnevent.ErrNotFound))
	assert.Equal(t, "Failed to fetch event", StatusMessage(fdsnevent.ErrService))
}
