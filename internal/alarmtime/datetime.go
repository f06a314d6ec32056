// Package alarmtime implements the DateTime value used throughout the
// scheduler: a moment that is either a plain date or a date with a
// time-of-day, plus the start-of-day convention used to compare the two.
package alarmtime

import "time"

// StartOfDay is the configured time-of-day a date-only DateTime is treated
// as having, for comparison against a date-time DateTime. It defaults to
// midnight.
var StartOfDay = 0 * time.Second

// DateTime is a date, or a date with a time-of-day in a named zone.
// The zero value is the null DateTime: IsValid reports false for it.
type DateTime struct {
	t        time.Time
	dateOnly bool
	valid    bool
}

// New builds a date-time DateTime.
func New(t time.Time) DateTime {
	return DateTime{t: t, valid: true}
}

// NewDate builds a date-only DateTime; the time-of-day is normalised to
// midnight in t's location.
func NewDate(t time.Time) DateTime {
	y, m, d := t.Date()
	return DateTime{t: time.Date(y, m, d, 0, 0, 0, 0, t.Location()), dateOnly: true, valid: true}
}

// NewDateOnly reports dateOnly explicitly; when true the time component is
// discarded as NewDate does.
func NewDateOnly(t time.Time, dateOnly bool) DateTime {
	if dateOnly {
		return NewDate(t)
	}
	return New(t)
}

// Null is the invalid/zero DateTime.
func Null() DateTime { return DateTime{} }

func (d DateTime) IsNull() bool  { return !d.valid }
func (d DateTime) IsValid() bool { return d.valid }
func (d DateTime) IsDateOnly() bool { return d.dateOnly }

// Time returns the underlying instant. For a date-only value this is
// midnight on that date.
func (d DateTime) Time() time.Time { return d.t }

// EffectiveTime returns the instant used for comparison against a
// date-time value: midnight plus StartOfDay when date-only.
func (d DateTime) EffectiveTime() time.Time {
	if !d.dateOnly {
		return d.t
	}
	return d.t.Add(StartOfDay)
}

func (d DateTime) SetDateOnly(dateOnly bool) DateTime {
	if dateOnly == d.dateOnly {
		return d
	}
	if dateOnly {
		return NewDate(d.t)
	}
	return DateTime{t: d.t, valid: d.valid}
}

// AddSecs adds n seconds. For a date-only value this rounds down to whole
// days (n / 86400), matching the source's whole-day arithmetic for
// date-only values.
func (d DateTime) AddSecs(n int) DateTime {
	if !d.valid {
		return d
	}
	if d.dateOnly {
		return NewDate(d.t.AddDate(0, 0, floorDiv(n, 86400)))
	}
	return New(d.t.Add(time.Duration(n) * time.Second))
}

// AddMins adds n minutes, with the same date-only whole-day rounding as
// AddSecs.
func (d DateTime) AddMins(n int) DateTime {
	if !d.valid {
		return d
	}
	if d.dateOnly {
		return NewDate(d.t.AddDate(0, 0, floorDiv(n, 24*60)))
	}
	return New(d.t.Add(time.Duration(n) * time.Minute))
}

func (d DateTime) AddDays(n int) DateTime {
	if !d.valid {
		return d
	}
	return DateTime{t: d.t.AddDate(0, 0, n), dateOnly: d.dateOnly, valid: true}
}

func (d DateTime) AddMonths(n int) DateTime {
	if !d.valid {
		return d
	}
	return DateTime{t: d.t.AddDate(0, n, 0), dateOnly: d.dateOnly, valid: true}
}

func (d DateTime) AddYears(n int) DateTime {
	if !d.valid {
		return d
	}
	return DateTime{t: d.t.AddDate(n, 0, 0), dateOnly: d.dateOnly, valid: true}
}

// mixedDays returns true when either side is date-only, in which case
// differences are computed in whole days per §3.1.
func mixedDays(a, b DateTime) bool { return a.dateOnly || b.dateOnly }

func wholeDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, a.Location())
	db := time.Date(by, bm, bd, 0, 0, 0, 0, b.Location())
	return int(db.Sub(da).Hours() / 24)
}

func (d DateTime) DaysTo(o DateTime) int {
	if mixedDays(d, o) {
		return wholeDays(d.t, o.t)
	}
	return int(o.t.Sub(d.t).Hours() / 24)
}

func (d DateTime) MinsTo(o DateTime) int {
	if mixedDays(d, o) {
		return wholeDays(d.t, o.t) * 24 * 60
	}
	return int(o.t.Sub(d.t).Minutes())
}

func (d DateTime) SecsTo(o DateTime) int {
	if mixedDays(d, o) {
		return wholeDays(d.t, o.t) * 24 * 3600
	}
	return int(o.t.Sub(d.t).Seconds())
}

// Equal compares per §3.1: both date-only compares dates, both date-time
// compares instants, mixed uses EffectiveTime on the date-only side.
func (d DateTime) Equal(o DateTime) bool {
	if !d.valid || !o.valid {
		return d.valid == o.valid
	}
	if d.dateOnly && o.dateOnly {
		return d.t.Equal(o.t)
	}
	return d.EffectiveTime().Equal(o.EffectiveTime())
}

// Before compares per the same rule as Equal.
func (d DateTime) Before(o DateTime) bool {
	if d.dateOnly && o.dateOnly {
		return d.t.Before(o.t)
	}
	return d.EffectiveTime().Before(o.EffectiveTime())
}

func (d DateTime) After(o DateTime) bool { return o.Before(d) }

func (d DateTime) String() string {
	if !d.valid {
		return ""
	}
	if d.dateOnly {
		return d.t.Format("2006-01-02")
	}
	return d.t.Format(time.RFC3339)
}

// FormatLocale formats for display; short drops the time-of-day for
// date-only values, matching the source's formatLocale(shortFormat).
func (d DateTime) FormatLocale(short bool) string {
	if !d.valid {
		return ""
	}
	if d.dateOnly {
		return d.t.Format("Jan 2 2006")
	}
	if short {
		return d.t.Format("Jan 2 15:04")
	}
	return d.t.Format("Jan 2 2006 15:04:05")
}

func floorDiv(n, d int) int {
	q := n / d
	if (n%d != 0) && ((n < 0) != (d < 0)) {
		q--
	}
	return q
}
