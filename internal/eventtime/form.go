package eventtime

import (
	"sync"
)

// Field names a form input the controller reads or writes.
type Field string

const (
	FieldEventID   Field = "eventid"
	FieldBefore    Field = "before"
	FieldAfter     Field = "after"
	FieldStartTime Field = "starttime"
	FieldEndTime   Field = "endtime"
)

// ResetFields are the inputs an explicit clear empties.
var ResetFields = []Field{FieldEventID, FieldBefore, FieldAfter, FieldStartTime, FieldEndTime}

// StatusKind classifies the status display.
type StatusKind int

const (
	StatusNone StatusKind = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusPending:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return ""
	}
}

// Status is what the status display shows.
type Status struct {
	Kind    StatusKind
	Message string
}

// Form is the set of collaborators the controller drives: field values, a status
// display and a change notification for downstream observers.
//
// The controller calls these methods while holding its own lock, so implementations
// must not call back into the controller synchronously.
type Form interface {
	Value(f Field) string
	SetValue(f Field, v string)
	SetStatus(s Status)
	NotifyChange()
}

// Snapshot is a copy of a form's state.
type Snapshot struct {
	Values map[Field]string
	Status Status
}

// Get returns the value of f, or "" if unset.
func (s Snapshot) Get(f Field) string {
	return s.Values[f]
}

// MemoryForm is an in-process Form. Values may include fields the controller does
// not know about (network, station, ...), so downstream observers see the full form.
type MemoryForm struct {
	mu       sync.Mutex
	values   map[Field]string
	status   Status
	onChange []func(Snapshot)
	onStatus []func(Status)
}

// NewMemoryForm creates an empty form.
func NewMemoryForm() *MemoryForm {
	return &MemoryForm{values: make(map[Field]string)}
}

// Value implements Form.
func (m *MemoryForm) Value(f Field) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[f]
}

// SetValue implements Form.
func (m *MemoryForm) SetValue(f Field, v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[f] = v
}

// SetStatus implements Form and informs status observers.
func (m *MemoryForm) SetStatus(s Status) {
	m.mu.Lock()
	m.status = s
	observers := append([]func(Status){}, m.onStatus...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// Status returns the current status.
func (m *MemoryForm) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// NotifyChange implements Form by passing a snapshot to every change observer.
func (m *MemoryForm) NotifyChange() {
	snap := m.Snapshot()

	m.mu.Lock()
	observers := append([]func(Snapshot){}, m.onChange...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// OnChange registers fn to run on every change notification.
func (m *MemoryForm) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// OnStatus registers fn to run whenever the status changes.
func (m *MemoryForm) OnStatus(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = append(m.onStatus, fn)
}

// Snapshot returns a copy of the current values and status.
func (m *MemoryForm) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := make(map[Field]string, len(m.values))
	for k, v := range m.values {
		values[k] = v
	}
	return Snapshot{Values: values, Status: m.status}
}
