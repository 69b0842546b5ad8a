// Package clock computes countdown and elapsed-time breakdowns between a fixed
// reference instant and the current time.
//
// A Spec is immutable configuration; Tick is a pure function of the instant it
// is given, so every refresh is an independent computation from wall-clock
// time and skew between ticks heals itself on the next one.
package clock

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode selects what a Spec measures.
type Mode int

const (
	// CountdownToFuture counts down to the reference instant and flips to
	// elapsed-time semantics once it has passed.
	CountdownToFuture Mode = iota
	// ElapsedSinceStart counts forward from the reference instant.
	ElapsedSinceStart
)

func (m Mode) String() string {
	switch m {
	case CountdownToFuture:
		return "countdown"
	case ElapsedSinceStart:
		return "elapsed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Algorithm selects how elapsed time is split into years and months.
type Algorithm int

const (
	// Approximate uses a fixed 365-day year and 30.44-day month, each field
	// taken independently from the total elapsed time.
	Approximate Algorithm = iota
	// Calendar walks real year and month boundaries in the reference's location.
	Calendar
)

func (a Algorithm) String() string {
	switch a {
	case Approximate:
		return "approximate"
	case Calendar:
		return "calendar"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// ParseAlgorithm parses "approximate" or "calendar" (case-insensitive).
// An empty string yields Approximate.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "approximate":
		return Approximate, nil
	case "calendar":
		return Calendar, nil
	default:
		return Approximate, fmt.Errorf("unknown elapsed algorithm %q (use approximate or calendar)", s)
	}
}

// ErrInvalidReference is returned when a reference instant cannot be parsed.
var ErrInvalidReference = errors.New("invalid reference instant")

const (
	msPerSecond int64 = 1000
	msPerMinute       = 60 * msPerSecond
	msPerHour         = 60 * msPerMinute
	msPerDay          = 24 * msPerHour
	msPerYear         = 365 * msPerDay

	daysPerMonth = 30.44
)

// Spec is the immutable configuration of a clock.
type Spec struct {
	Reference time.Time
	Mode      Mode
	Algorithm Algorithm
}

// NewSpec parses an RFC 3339 instant with an explicit offset, for example
// "2025-07-01T00:00:00+09:00".
func NewSpec(reference string, mode Mode) (Spec, error) {
	ref, err := time.Parse(time.RFC3339, strings.TrimSpace(reference))
	if err != nil {
		return Spec{}, fmt.Errorf("%w %q: %v", ErrInvalidReference, reference, err)
	}
	return Spec{Reference: ref, Mode: mode}, nil
}

// WithAlgorithm returns a copy of s using the given elapsed algorithm.
func (s Spec) WithAlgorithm(a Algorithm) Spec {
	s.Algorithm = a
	return s
}

// Breakdown is one computed reading. Mode reports the semantics actually used,
// which differs from the Spec's mode after a countdown has flipped.
type Breakdown struct {
	Years   int
	Months  int
	Days    int
	Hours   int
	Minutes int
	Seconds int
	Mode    Mode
}

// Tick computes the breakdown for now.
func (s Spec) Tick(now time.Time) Breakdown {
	if s.Mode == CountdownToFuture {
		delta := s.Reference.Sub(now).Milliseconds()
		if delta > 0 {
			return countdown(delta)
		}
	}
	return s.elapsed(now)
}

func countdown(ms int64) Breakdown {
	return Breakdown{
		Days:    int(ms / msPerDay),
		Hours:   int((ms / msPerHour) % 24),
		Minutes: int((ms / msPerMinute) % 60),
		Seconds: int((ms / msPerSecond) % 60),
		Mode:    CountdownToFuture,
	}
}

func (s Spec) elapsed(now time.Time) Breakdown {
	if s.Algorithm == Calendar {
		return calendarElapsed(s.Reference, now)
	}

	ms := now.Sub(s.Reference).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	total := float64(ms)
	return Breakdown{
		Years:   int(ms / msPerYear),
		Months:  int(math.Floor(math.Mod(total/(daysPerMonth*float64(msPerDay)), 12))),
		Days:    int(math.Floor(math.Mod(total/float64(msPerDay), daysPerMonth))),
		Hours:   int((ms / msPerHour) % 24),
		Minutes: int((ms / msPerMinute) % 60),
		Seconds: int((ms / msPerSecond) % 60),
		Mode:    ElapsedSinceStart,
	}
}

// calendarElapsed counts whole calendar months from start, then splits the
// remainder into 24-hour days and clock units.
func calendarElapsed(start, now time.Time) Breakdown {
	if !now.After(start) {
		return Breakdown{Mode: ElapsedSinceStart}
	}
	now = now.In(start.Location())

	months := (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())
	for months > 0 && start.AddDate(0, months, 0).After(now) {
		months--
	}
	rest := now.Sub(start.AddDate(0, months, 0)).Milliseconds()

	return Breakdown{
		Years:   months / 12,
		Months:  months % 12,
		Days:    int(rest / msPerDay),
		Hours:   int((rest / msPerHour) % 24),
		Minutes: int((rest / msPerMinute) % 60),
		Seconds: int((rest / msPerSecond) % 60),
		Mode:    ElapsedSinceStart,
	}
}

// Remaining returns the countdown reading as a duration truncated to the second.
// It is zero for elapsed readings.
func (b Breakdown) Remaining() time.Duration {
	if b.Mode != CountdownToFuture {
		return 0
	}
	return time.Duration(b.Days)*24*time.Hour +
		time.Duration(b.Hours)*time.Hour +
		time.Duration(b.Minutes)*time.Minute +
		time.Duration(b.Seconds)*time.Second
}

// Field is one labelled block of a breakdown display.
type Field struct {
	Label string
	Value int
}

// Padded renders the value with at least two digits.
func (f Field) Padded() string {
	return fmt.Sprintf("%02d", f.Value)
}

// Fields returns the blocks to display: days through seconds while counting
// down, all six units otherwise.
func (b Breakdown) Fields() []Field {
	tail := []Field{
		{Label: "Days", Value: b.Days},
		{Label: "Hours", Value: b.Hours},
		{Label: "Minutes", Value: b.Minutes},
		{Label: "Seconds", Value: b.Seconds},
	}
	if b.Mode == CountdownToFuture {
		return tail
	}
	return append([]Field{
		{Label: "Years", Value: b.Years},
		{Label: "Months", Value: b.Months},
	}, tail...)
}

// String renders a compact single-line form such as "12d 03h 04m 05s".
func (b Breakdown) String() string {
	parts := make([]string, 0, 6)
	for _, f := range b.Fields() {
		parts = append(parts, f.Padded()+strings.ToLower(f.Label[:1]))
	}
	// Months and Minutes share an initial.
	if b.Mode != CountdownToFuture {
		parts[1] = fmt.Sprintf("%02dmo", b.Months)
	}
	return strings.Join(parts, " ")
}
