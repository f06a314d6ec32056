package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// DailyRecurrence occurs every Interval days from Start, optionally
// restricted to a ByDay weekday mask (0 means unrestricted, matching the
// teacher's plain Daily rule with no BYDAY at all).
type DailyRecurrence struct {
	Start    time.Time
	Interval int
	ByDay    uint8
	Term     Terminator
}

func NewDailyRecurrence(start time.Time, interval int, byDay uint8, term Terminator) *DailyRecurrence {
	if interval <= 0 {
		interval = 1
	}
	return &DailyRecurrence{Start: start, Interval: interval, ByDay: byDay, Term: term}
}

func (r DailyRecurrence) matches(d time.Time) bool {
	if r.ByDay == 0 {
		return true
	}
	return weekdayMaskHasBit(r.ByDay, d.Weekday())
}

func (r DailyRecurrence) candidateDate(n int) time.Time {
	return r.Start.AddDate(0, 0, n*r.Interval)
}

// NextAfter walks candidate multiples of Interval days forward, filtering
// by ByDay, up to maxSafetyIterations the way the teacher's loop was
// capped against a degenerate rule.
func (r DailyRecurrence) NextAfter(t time.Time) (time.Time, bool) {
	if r.Interval <= 0 {
		return time.Time{}, false
	}
	n := 0
	if t.After(r.Start) || t.Equal(r.Start) {
		days := int(t.Sub(r.Start).Hours() / 24)
		n = days/r.Interval + 1
	}
	for count := 0; count < maxSafetyIterations; count, n = count+1, n+1 {
		when := r.candidateDate(n)
		if !when.After(t) {
			continue
		}
		if !r.Term.withinCount(n + 1) {
			return time.Time{}, false
		}
		if !r.matches(when) {
			continue
		}
		if !r.Term.withinUntil(when) {
			return time.Time{}, false
		}
		return when, true
	}
	return time.Time{}, false
}

func (r DailyRecurrence) PrevBefore(t time.Time) (time.Time, bool) {
	if r.Interval <= 0 || !t.After(r.Start) {
		return time.Time{}, false
	}
	days := int(t.Sub(r.Start).Hours() / 24)
	n := days / r.Interval
	for count := 0; n >= 0 && count < maxSafetyIterations; count, n = count+1, n-1 {
		when := r.candidateDate(n)
		if !when.Before(t) {
			continue
		}
		if !r.matches(when) {
			continue
		}
		if !r.Term.withinCount(n + 1) {
			continue
		}
		if !r.Term.withinUntil(when) {
			continue
		}
		return when, true
	}
	return time.Time{}, false
}

func (r DailyRecurrence) OccursOn(d time.Time) bool {
	if !r.matches(d) {
		return false
	}
	if sameDate(r.Start, d) {
		return r.Term.withinCount(1) && r.Term.withinUntil(d)
	}
	if d.Before(r.Start) {
		return false
	}
	days := int(d.Sub(r.Start).Hours() / 24)
	if days%r.Interval != 0 {
		return false
	}
	n := days / r.Interval
	if !r.Term.withinCount(n + 1) {
		return false
	}
	return r.Term.withinUntil(r.candidateDate(n))
}

func (r DailyRecurrence) LongestInterval() time.Duration {
	if r.ByDay == 0 {
		return time.Duration(r.Interval) * 24 * time.Hour
	}
	bits := weekdayMaskBits(r.ByDay)
	if len(bits) == 0 {
		return time.Duration(r.Interval) * 24 * time.Hour
	}
	maxGap := 0
	for i := 0; i < 7; i++ {
		w := time.Weekday(i)
		for gap := 1; gap <= 7; gap++ {
			if weekdayMaskHasBit(r.ByDay, time.Weekday((int(w)+gap)%7)) {
				if gap > maxGap {
					maxGap = gap
				}
				break
			}
		}
	}
	return time.Duration(maxGap) * 24 * time.Hour
}

func (r DailyRecurrence) String() string {
	s := fmt.Sprintf("FREQ=DAILY;INTERVAL=%d", r.Interval)
	if r.ByDay != 0 {
		names := map[time.Weekday]string{
			time.Sunday: "SU", time.Monday: "MO", time.Tuesday: "TU",
			time.Wednesday: "WE", time.Thursday: "TH", time.Friday: "FR", time.Saturday: "SA",
		}
		var days []string
		for _, w := range weekdayMaskBits(r.ByDay) {
			days = append(days, names[w])
		}
		s += ";BYDAY=" + strings.Join(days, ",")
	}
	return s
}
