package eventtime

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is how derived times and the resolved origin are shown:
// UTC, whole seconds, no zone suffix.
const TimestampLayout = "2006-01-02T15:04:05"

// Interval is the derived time window around a reference timestamp.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Deriver computes starttime/endtime from a reference timestamp and the offsets
// currently in the form.
type Deriver struct {
	form Form
}

// NewDeriver creates a Deriver that reads from and writes to form.
func NewDeriver(form Form) *Deriver {
	return &Deriver{form: form}
}

// Update writes the derived interval for ref into the form and notifies observers.
// A zero ref leaves the form untouched and reports false.
func (d *Deriver) Update(ref time.Time) (Interval, bool) {
	if ref.IsZero() {
		return Interval{}, false
	}

	before := ParseOffset(d.form.Value(FieldBefore))
	after := ParseOffset(d.form.Value(FieldAfter))
	iv := Derive(ref, before, after)

	d.form.SetValue(FieldStartTime, FormatTimestamp(iv.Start))
	d.form.SetValue(FieldEndTime, FormatTimestamp(iv.End))
	d.form.NotifyChange()
	return iv, true
}

// maxEpochMilli bounds derived times to ±100,000,000 days around the Unix epoch.
const maxEpochMilli = 8.64e15

// Derive returns [ref - before minutes, ref + after minutes]. The offset is added to
// the reference in epoch milliseconds and the sum is truncated to a whole
// millisecond. Results outside ±maxEpochMilli are clamped to that bound.
func Derive(ref time.Time, before, after float64) Interval {
	return Interval{
		Start: shiftMinutes(ref, -before),
		End:   shiftMinutes(ref, after),
	}
}

func shiftMinutes(ref time.Time, m float64) time.Time {
	ms := math.Trunc(float64(ref.UnixMilli()) + m*60000)
	ms = math.Max(-maxEpochMilli, math.Min(maxEpochMilli, ms))
	subMilli := time.Duration(ref.Nanosecond() % int(time.Millisecond))
	return time.UnixMilli(int64(ms)).Add(subMilli).In(ref.Location())
}

// ParseOffset parses a minute offset from a form value. Empty, unparsable,
// non-finite and negative values yield 0. A decimal comma is accepted.
func ParseOffset(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// FormatTimestamp renders t in UTC truncated to whole seconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
