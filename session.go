package main

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"evtimesel/internal/config"
	"evtimesel/internal/dataselect"
	"evtimesel/internal/eventtime"
	"evtimesel/internal/observability"
)

// Stream and option fields of the builder form. The controller does not touch them;
// they only feed the dataselect URL preview.
const (
	fieldNetwork       eventtime.Field = "net"
	fieldStation       eventtime.Field = "sta"
	fieldLocation      eventtime.Field = "loc"
	fieldChannel       eventtime.Field = "cha"
	fieldQuality       eventtime.Field = "quality"
	fieldMinimumLength eventtime.Field = "minimumlength"
	fieldLongestOnly   eventtime.Field = "longestonly"
	fieldNoData        eventtime.Field = "nodata"
)

var formFields = []eventtime.Field{
	fieldNetwork, fieldStation, fieldLocation, fieldChannel,
	eventtime.FieldEventID, eventtime.FieldBefore, eventtime.FieldAfter,
	eventtime.FieldStartTime, eventtime.FieldEndTime,
	fieldQuality, fieldMinimumLength, fieldLongestOnly, fieldNoData,
}

func knownField(name string) (eventtime.Field, bool) {
	for _, f := range formFields {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

// session is one builder form with its own controller.
type session struct {
	id             string
	form           *eventtime.MemoryForm
	ctrl           *eventtime.Controller
	dataselectBase string
	logger         *slog.Logger
}

func newSession(cfg config.Config, resolver eventtime.Resolver, logger *slog.Logger, metrics *observability.Metrics) *session {
	id := uuid.NewString()
	logger = logger.With("session", id)

	opts := []eventtime.Option{
		eventtime.WithDelay(cfg.Debounce),
		eventtime.WithMinLength(cfg.MinIDLength),
		eventtime.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, eventtime.WithRecorder(metrics))
	}

	form := eventtime.NewMemoryForm()
	return &session{
		id:             id,
		form:           form,
		ctrl:           eventtime.NewController(form, resolver, opts...),
		dataselectBase: cfg.DataselectURL,
		logger:         logger,
	}
}

func (s *session) close() {
	s.ctrl.Close()
}

// LookupResult is what the CLI prints and the page renders.
type LookupResult struct {
	EventID       string
	OriginTime    string
	Before        string
	After         string
	StartTime     string
	EndTime       string
	Status        string
	StatusClass   string
	DataselectURL string
}

func (s *session) result() LookupResult {
	return buildResult(s.form.Snapshot(), s.ctrl, s.dataselectBase)
}

func buildResult(snap eventtime.Snapshot, ctrl *eventtime.Controller, dataselectBase string) LookupResult {
	res := LookupResult{
		EventID:       strings.TrimSpace(snap.Get(eventtime.FieldEventID)),
		Before:        snap.Get(eventtime.FieldBefore),
		After:         snap.Get(eventtime.FieldAfter),
		StartTime:     snap.Get(eventtime.FieldStartTime),
		EndTime:       snap.Get(eventtime.FieldEndTime),
		Status:        snap.Status.Message,
		StatusClass:   statusClass(snap.Status),
		DataselectURL: previewURL(snap, dataselectBase),
	}
	if ref, ok := ctrl.Reference(); ok {
		res.OriginTime = eventtime.FormatTimestamp(ref)
	}
	return res
}

func previewURL(snap eventtime.Snapshot, base string) string {
	p := dataselect.FromValues(func(k string) string {
		return snap.Get(eventtime.Field(k))
	})
	return p.QueryURL(base)
}

func statusClass(s eventtime.Status) string {
	if s.Kind == eventtime.StatusNone {
		return ""
	}
	return "status " + s.Kind.String()
}
