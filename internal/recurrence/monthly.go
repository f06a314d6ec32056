package recurrence

import (
	"fmt"
	"time"
)

// MonthlyByDayRecurrence occurs on each day-of-month in ByMonthDay (negative
// values count from the end of the month, as RFC 5545 BYMONTHDAY does),
// every Interval months from the month containing Start.
type MonthlyByDayRecurrence struct {
	Start      time.Time
	Interval   int
	ByMonthDay []int
	Term       Terminator
}

func NewMonthlyByDayRecurrence(start time.Time, interval int, byMonthDay []int, term Terminator) *MonthlyByDayRecurrence {
	if interval <= 0 {
		interval = 1
	}
	if len(byMonthDay) == 0 {
		byMonthDay = []int{start.Day()}
	}
	return &MonthlyByDayRecurrence{Start: start, Interval: interval, ByMonthDay: byMonthDay, Term: term}
}

func (r MonthlyByDayRecurrence) occurrencesInMonth(monthStart time.Time) []time.Time {
	var out []time.Time
	for _, day := range r.ByMonthDay {
		actual := resolveMonthDay(monthStart.Year(), monthStart.Month(), day)
		if actual < 1 {
			continue
		}
		occ := atClock(time.Date(monthStart.Year(), monthStart.Month(), actual, 0, 0, 0, 0, r.Start.Location()), r.Start)
		if !occ.Before(r.Start) {
			out = append(out, occ)
		}
	}
	return out
}

func (r MonthlyByDayRecurrence) monthIndex(d time.Time) int {
	return getMonthsDiff(r.Start, d)
}

func (r MonthlyByDayRecurrence) countBefore(d time.Time) int {
	mi := r.monthIndex(d)
	n := 0
	for m := 0; m <= mi; m += r.Interval {
		monthStart := r.Start.AddDate(0, m, 0)
		for _, occ := range r.occurrencesInMonth(monthStart) {
			if !occ.After(d) {
				n++
			}
		}
	}
	return n
}

func (r MonthlyByDayRecurrence) NextAfter(t time.Time) (time.Time, bool) {
	m := 0
	if t.After(r.Start) {
		mi := r.monthIndex(t)
		m = mi - (mi % r.Interval)
		if m < 0 {
			m = 0
		}
	}
	for count := 0; count < maxSafetyIterations; count, m = count+1, m+r.Interval {
		monthStart := r.Start.AddDate(0, m, 0)
		for _, occ := range r.occurrencesInMonth(monthStart) {
			if !occ.After(t) {
				continue
			}
			n := r.countBefore(occ)
			if !r.Term.withinCount(n) {
				return time.Time{}, false
			}
			if !r.Term.withinUntil(occ) {
				return time.Time{}, false
			}
			return occ, true
		}
	}
	return time.Time{}, false
}

func (r MonthlyByDayRecurrence) PrevBefore(t time.Time) (time.Time, bool) {
	if !t.After(r.Start) {
		return time.Time{}, false
	}
	mi := r.monthIndex(t)
	m := mi - (mi % r.Interval)
	for count := 0; m >= 0 && count < maxSafetyIterations; count, m = count+1, m-r.Interval {
		monthStart := r.Start.AddDate(0, m, 0)
		occs := r.occurrencesInMonth(monthStart)
		for i := len(occs) - 1; i >= 0; i-- {
			occ := occs[i]
			if !occ.Before(t) {
				continue
			}
			n := r.countBefore(occ)
			if !r.Term.withinCount(n) {
				continue
			}
			if !r.Term.withinUntil(occ) {
				continue
			}
			return occ, true
		}
	}
	return time.Time{}, false
}

func (r MonthlyByDayRecurrence) OccursOn(d time.Time) bool {
	if d.Before(r.Start) {
		return false
	}
	mi := r.monthIndex(d)
	if mi%r.Interval != 0 {
		return false
	}
	monthStart := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	for _, occ := range r.occurrencesInMonth(monthStart) {
		if sameDate(occ, d) {
			n := r.countBefore(d)
			return r.Term.withinCount(n) && r.Term.withinUntil(d)
		}
	}
	return false
}

func (r MonthlyByDayRecurrence) LongestInterval() time.Duration {
	return time.Duration(r.Interval) * 31 * 24 * time.Hour
}

func (r MonthlyByDayRecurrence) String() string {
	return fmt.Sprintf("FREQ=MONTHLY;INTERVAL=%d;BYMONTHDAY=%v", r.Interval, r.ByMonthDay)
}

// MonthlyByPosRecurrence occurs on the Pos-th weekday matching one of
// ByDay within the month (negative Pos counts from the end, e.g. -1 means
// "last"), every Interval months. Not present in the teacher package at
// all: KAlarm's MonthlyByPos has no analogue in the source recurrence
// kinds, so this is built directly against §3.2/§4.2 and the MonthPos
// struct in alarmevent.h.
type MonthlyByPosRecurrence struct {
	Start    time.Time
	Interval int
	Pos      int
	ByDay    uint8
	Term     Terminator
}

func (r MonthlyByPosRecurrence) occurrenceInMonth(monthStart time.Time) (time.Time, bool) {
	days := getDaysInMonth(monthStart.Year(), monthStart.Month())
	var matches []int
	for d := 1; d <= days; d++ {
		wd := time.Date(monthStart.Year(), monthStart.Month(), d, 0, 0, 0, 0, monthStart.Location()).Weekday()
		if weekdayMaskHasBit(r.ByDay, wd) {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return time.Time{}, false
	}
	idx := r.Pos
	if idx < 0 {
		idx = len(matches) + idx
	} else {
		idx--
	}
	if idx < 0 || idx >= len(matches) {
		return time.Time{}, false
	}
	occ := atClock(time.Date(monthStart.Year(), monthStart.Month(), matches[idx], 0, 0, 0, 0, r.Start.Location()), r.Start)
	if occ.Before(r.Start) {
		return time.Time{}, false
	}
	return occ, true
}

func (r MonthlyByPosRecurrence) monthIndex(d time.Time) int { return getMonthsDiff(r.Start, d) }

func (r MonthlyByPosRecurrence) countBefore(d time.Time) int {
	mi := r.monthIndex(d)
	n := 0
	for m := 0; m <= mi; m += r.Interval {
		if occ, ok := r.occurrenceInMonth(r.Start.AddDate(0, m, 0)); ok && !occ.After(d) {
			n++
		}
	}
	return n
}

func (r MonthlyByPosRecurrence) NextAfter(t time.Time) (time.Time, bool) {
	m := 0
	if t.After(r.Start) {
		mi := r.monthIndex(t)
		m = mi - (mi % r.Interval)
		if m < 0 {
			m = 0
		}
	}
	for count := 0; count < maxSafetyIterations; count, m = count+1, m+r.Interval {
		occ, ok := r.occurrenceInMonth(time.Date(r.Start.Year(), r.Start.Month()+time.Month(m), 1, 0, 0, 0, 0, r.Start.Location()))
		if !ok || !occ.After(t) {
			continue
		}
		n := r.countBefore(occ)
		if !r.Term.withinCount(n) {
			return time.Time{}, false
		}
		if !r.Term.withinUntil(occ) {
			return time.Time{}, false
		}
		return occ, true
	}
	return time.Time{}, false
}

func (r MonthlyByPosRecurrence) PrevBefore(t time.Time) (time.Time, bool) {
	if !t.After(r.Start) {
		return time.Time{}, false
	}
	mi := r.monthIndex(t)
	m := mi - (mi % r.Interval)
	for count := 0; m >= 0 && count < maxSafetyIterations; count, m = count+1, m-r.Interval {
		occ, ok := r.occurrenceInMonth(r.Start.AddDate(0, m, 0))
		if !ok || !occ.Before(t) {
			continue
		}
		n := r.countBefore(occ)
		if !r.Term.withinCount(n) || !r.Term.withinUntil(occ) {
			continue
		}
		return occ, true
	}
	return time.Time{}, false
}

func (r MonthlyByPosRecurrence) OccursOn(d time.Time) bool {
	if d.Before(r.Start) {
		return false
	}
	mi := r.monthIndex(d)
	if mi%r.Interval != 0 {
		return false
	}
	monthStart := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	occ, ok := r.occurrenceInMonth(monthStart)
	if !ok || !sameDate(occ, d) {
		return false
	}
	n := r.countBefore(d)
	return r.Term.withinCount(n) && r.Term.withinUntil(d)
}

func (r MonthlyByPosRecurrence) LongestInterval() time.Duration {
	return time.Duration(r.Interval) * 31 * 24 * time.Hour
}

func (r MonthlyByPosRecurrence) String() string {
	return fmt.Sprintf("FREQ=MONTHLY;INTERVAL=%d;BYSETPOS=%d", r.Interval, r.Pos)
}
