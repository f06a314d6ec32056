package request

import (
	"fmt"
	"time"

	"kalarmd/internal/recurrence"
)

// RecurrenceSpec is §6.3's "serialised RFC-5545 RRULE string or a tuple
// (period_kind, interval, count_or_end)": set RRule directly, or leave it
// empty and fill Period/Interval plus exactly one of Count/Until.
type RecurrenceSpec struct {
	RRule string

	Period   PeriodKind
	Interval int
	Count    int
	Until    time.Time
}

func (s RecurrenceSpec) empty() bool {
	return s.RRule == "" && s.Period == 0
}

// buildRecurrence parses s against start, reusing recurrence.ParseRRule for
// both forms: the tuple form is rendered to an RRULE string first rather
// than constructing a recurrence.Recurrence by hand, so there is exactly
// one RRULE-interpreting code path in the program.
func buildRecurrence(s RecurrenceSpec, start time.Time) (recurrence.Recurrence, error) {
	if s.empty() {
		return recurrence.NoRecurrence{Start: start}, nil
	}
	rrule := s.RRule
	if rrule == "" {
		freq, ok := s.Period.rruleFreq()
		if !ok {
			return nil, fmt.Errorf("%w: unknown recurrence period %d", ErrInvalidArguments, s.Period)
		}
		interval := s.Interval
		if interval <= 0 {
			interval = 1
		}
		rrule = fmt.Sprintf("FREQ=%s;INTERVAL=%d", freq, interval)
		switch {
		case s.Count > 0:
			rrule += fmt.Sprintf(";COUNT=%d", s.Count)
		case !s.Until.IsZero():
			rrule += ";UNTIL=" + s.Until.UTC().Format("20060102T150405Z")
		}
	}
	rec, err := recurrence.ParseRRule(rrule, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return rec, nil
}
