package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"kalarmd/internal/recurrence"
)

// RawRRule is one RRULE property's parameter set, as found in an event's raw
// text (possibly more than one per VEVENT, for the Feb-29 compound form —
// a shape gocal's single RecurrenceRule map cannot carry).
type RawRRule struct {
	Raw string

	Freq       string
	Interval   int
	ByMonth    []int
	ByMonthDay []int
	ByYearDay  []int
	Count      int
	Until      time.Time
}

// rruleLines extracts every RRULE property out of a VEVENT block.
func rruleLines(block string) []RawRRule {
	var rules []RawRRule
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "RRULE:"); ok {
			rules = append(rules, parseRawRRule(v))
		}
	}
	return rules
}

func parseRawRRule(raw string) RawRRule {
	r := RawRRule{Raw: raw, Interval: 1}
	for _, part := range strings.Split(raw, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := kv[0], kv[1]
		switch key {
		case "FREQ":
			r.Freq = val
		case "INTERVAL":
			if n, err := strconv.Atoi(val); err == nil {
				r.Interval = n
			}
		case "BYMONTH":
			r.ByMonth = parseIntList(val)
		case "BYMONTHDAY":
			r.ByMonthDay = parseIntList(val)
		case "BYYEARDAY":
			r.ByYearDay = parseIntList(val)
		case "COUNT":
			if n, err := strconv.Atoi(val); err == nil {
				r.Count = n
			}
		case "UNTIL":
			if t, err := time.Parse("20060102T150405Z", val); err == nil {
				r.Until = t
			}
		}
	}
	return r
}

func parseIntList(s string) []int {
	var out []int
	for _, p := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func (r RawRRule) term() recurrence.Terminator {
	if r.Count > 0 {
		return recurrence.Terminator{Count: r.Count}
	}
	if !r.Until.IsZero() {
		return recurrence.Terminator{Until: r.Until}
	}
	return recurrence.Terminator{}
}

// RecognizeFeb29Pair detects the on-disk 29th-of-February YEARLY rule paired
// with either a 60th-day-of-year (Mar-1 fallback) or last-day-of-February
// (Feb-28 fallback) YEARLY rule, and folds the pair into one
// AnnualByDateRecurrence carrying the matching Feb29Policy (§6.1, §9).
// Returns ok=false when rules does not describe such a pair, leaving the
// caller to fall back to parsing rules[0] alone via recurrence.ParseRRule.
func RecognizeFeb29Pair(rules []RawRRule, start time.Time) (recurrence.Recurrence, bool) {
	if len(rules) != 2 {
		return nil, false
	}
	first, second := rules[0], rules[1]
	if first.Freq != "YEARLY" || second.Freq != "YEARLY" {
		return nil, false
	}
	if first.Interval != second.Interval {
		return nil, false
	}
	if !isFeb29Rule(first) {
		first, second = second, first
		if !isFeb29Rule(first) {
			return nil, false
		}
	}

	var policy recurrence.Feb29Policy
	switch {
	case containsInt(second.ByYearDay, 60):
		policy = recurrence.Feb29OnMar1
	case containsInt(second.ByMonth, 2) && (containsInt(second.ByMonthDay, 28) || containsInt(second.ByMonthDay, -1)):
		policy = recurrence.Feb29OnFeb28
	default:
		return nil, false
	}

	rec := recurrence.NewAnnualByDateRecurrence(start, first.Interval, []time.Month{time.February}, []int{29}, policy, first.term())
	return rec, true
}

func isFeb29Rule(r RawRRule) bool {
	return containsInt(r.ByMonth, 2) && containsInt(r.ByMonthDay, 29)
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// emitFeb29Pair is the write-side inverse of RecognizeFeb29Pair: it renders
// an AnnualByDateRecurrence with a Feb29Policy as the on-disk two-RRULE
// compound form instead of a single (invalid in non-leap years) BYMONTHDAY=29
// rule.
func emitFeb29Pair(rec *recurrence.AnnualByDateRecurrence) []string {
	if rec.Feb29Policy == recurrence.Feb29None {
		return []string{recurrence.FormatRRule(rec)}
	}
	first := fmt.Sprintf("FREQ=YEARLY;INTERVAL=%d;BYMONTH=2;BYMONTHDAY=29", rec.Interval)
	var second string
	switch rec.Feb29Policy {
	case recurrence.Feb29OnMar1:
		second = fmt.Sprintf("FREQ=YEARLY;INTERVAL=%d;BYYEARDAY=60", rec.Interval)
	case recurrence.Feb29OnFeb28:
		second = fmt.Sprintf("FREQ=YEARLY;INTERVAL=%d;BYMONTH=2;BYMONTHDAY=28", rec.Interval)
	default:
		return []string{recurrence.FormatRRule(rec)}
	}
	return []string{first, second}
}
