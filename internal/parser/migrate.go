package parser

import (
	"kalarmd/internal/event"
	"kalarmd/internal/recurrence"
)

// MigrateFormat rewrites rec in place to current-format semantics when it
// was read from a file whose stored format version was below
// CurrentFormatVersion (§6.1, §4.10): surplus yearly/monthly BYMONTHDAY
// values beyond the first are dropped (karecurrence.cpp's
// KARecurrence::fix() keeping only rrule->byMonthDays().first()), and any
// recurrence already folded by RecognizeFeb29Pair is left as-is since the
// fold itself is the Feb-29 collapsing step. The hourly-to-minutely fold
// the source also performs there has no separate branch here:
// eventToRecord reads a FREQ=HOURLY rule as a MinutelyRecurrence of
// Interval*60 minutes (recurrence.ParseRRule itself rejects HOURLY), so
// by the time a Record reaches
// MigrateFormat no hourly form remains to convert. old is the format
// version rec was read at; every step below is idempotent so it is not
// branched on further.
func MigrateFormat(old int, rec *event.Record) {
	if old >= CurrentFormatVersion {
		return
	}
	switch r := rec.Recurrence.(type) {
	case *recurrence.MonthlyByDayRecurrence:
		if len(r.ByMonthDay) > 1 {
			r.ByMonthDay = r.ByMonthDay[:1]
		}
	case *recurrence.AnnualByDateRecurrence:
		if len(r.ByMonthDay) > 1 {
			r.ByMonthDay = r.ByMonthDay[:1]
		}
	}
}
