package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdayCodes = map[string]time.Weekday{
	"SU": time.Sunday, "MO": time.Monday, "TU": time.Tuesday, "WE": time.Wednesday,
	"TH": time.Thursday, "FR": time.Friday, "SA": time.Saturday,
}

var weekdayNames = map[time.Weekday]string{
	time.Sunday: "SU", time.Monday: "MO", time.Tuesday: "TU", time.Wednesday: "WE",
	time.Thursday: "TH", time.Friday: "FR", time.Saturday: "SA",
}

// ParseRRule parses a single RFC 5545 RRULE string into a Recurrence
// anchored at start. Unlike the teacher's parser, which rejected
// FREQ=HOURLY/MINUTELY outright and ignored BYDAY ordinal prefixes,
// MINUTELY is supported (per §3.2) and an ordinal BYDAY (or BYSETPOS)
// selects the *ByPos kinds.
func ParseRRule(rrule string, start time.Time) (Recurrence, error) {
	if rrule == "" {
		return NoRecurrence{Start: start}, nil
	}

	parts := make(map[string]string)
	for _, part := range strings.Split(rrule, ";") {
		if kv := strings.SplitN(part, "=", 2); len(kv) == 2 {
			parts[strings.ToUpper(kv[0])] = strings.ToUpper(kv[1])
		}
	}

	freq, exists := parts["FREQ"]
	if !exists {
		return nil, fmt.Errorf("recurrence: FREQ is required in RRULE")
	}

	interval := 1
	if intervalStr, exists := parts["INTERVAL"]; exists {
		if i, err := strconv.Atoi(intervalStr); err == nil && i > 0 {
			interval = i
		}
	}

	term, err := parseTerminator(parts)
	if err != nil {
		return nil, err
	}

	byDayMask, pos, hasPos, err := parseByDay(parts["BYDAY"])
	if err != nil {
		return nil, err
	}
	if posStr, exists := parts["BYSETPOS"]; exists {
		p, err := strconv.Atoi(posStr)
		if err != nil {
			return nil, fmt.Errorf("recurrence: invalid BYSETPOS %q: %w", posStr, err)
		}
		pos, hasPos = p, true
	}

	switch freq {
	case "MINUTELY":
		return &MinutelyRecurrence{Start: start, Interval: interval, Term: term}, nil

	case "DAILY":
		return NewDailyRecurrence(start, interval, byDayMask, term), nil

	case "WEEKLY":
		return NewWeeklyRecurrence(start, interval, byDayMask, term), nil

	case "MONTHLY":
		if hasPos {
			if byDayMask == 0 {
				return nil, fmt.Errorf("recurrence: MONTHLY BYSETPOS requires BYDAY")
			}
			return &MonthlyByPosRecurrence{Start: start, Interval: interval, Pos: pos, ByDay: byDayMask, Term: term}, nil
		}
		byMonthDay, err := parseByMonthDay(parts["BYMONTHDAY"])
		if err != nil {
			return nil, err
		}
		return NewMonthlyByDayRecurrence(start, interval, byMonthDay, term), nil

	case "YEARLY":
		byMonth, err := parseByMonth(parts["BYMONTH"])
		if err != nil {
			return nil, err
		}
		if hasPos {
			if byDayMask == 0 {
				return nil, fmt.Errorf("recurrence: YEARLY BYSETPOS requires BYDAY")
			}
			if len(byMonth) == 0 {
				byMonth = []time.Month{start.Month()}
			}
			return &AnnualByPosRecurrence{Start: start, Interval: interval, ByMonth: byMonth, Pos: pos, ByDay: byDayMask, Term: term}, nil
		}
		byMonthDay, err := parseByMonthDay(parts["BYMONTHDAY"])
		if err != nil {
			return nil, err
		}
		return NewAnnualByDateRecurrence(start, interval, byMonth, byMonthDay, Feb29None, term), nil

	default:
		return nil, fmt.Errorf("recurrence: unsupported FREQ %q", freq)
	}
}

func parseTerminator(parts map[string]string) (Terminator, error) {
	if untilStr, exists := parts["UNTIL"]; exists {
		t, err := parseRRuleTime(untilStr)
		if err != nil {
			return Terminator{}, fmt.Errorf("recurrence: invalid UNTIL: %w", err)
		}
		return Terminator{Until: t}, nil
	}
	if countStr, exists := parts["COUNT"]; exists {
		c, err := strconv.Atoi(countStr)
		if err != nil || c <= 0 {
			return Terminator{}, fmt.Errorf("recurrence: invalid COUNT %q", countStr)
		}
		return Terminator{Count: c}, nil
	}
	return Terminator{}, nil
}

func parseRRuleTime(timeStr string) (time.Time, error) {
	timeStr = strings.TrimSuffix(timeStr, "Z")
	if len(timeStr) == 8 {
		return time.Parse("20060102", timeStr)
	}
	if len(timeStr) == 15 {
		return time.Parse("20060102T150405", timeStr)
	}
	return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
}

// parseByDay parses BYDAY into a weekday bitmask, additionally recovering
// a single leading ordinal (e.g. "-1FR", "2TU") as a BYSETPOS-equivalent
// position. A mixture of ordinals across entries is rejected: RFC 5545
// BYDAY ordinals apply per-entry, but KAlarm's MonthlyByPos/AnnualByPos
// kinds use exactly one position shared across the whole weekday set.
func parseByDay(byDayStr string) (mask uint8, pos int, hasPos bool, err error) {
	if byDayStr == "" {
		return 0, 0, false, nil
	}
	for _, day := range strings.Split(byDayStr, ",") {
		day = strings.TrimSpace(day)
		if len(day) < 2 {
			continue
		}
		code := day[len(day)-2:]
		wd, ok := weekdayCodes[code]
		if !ok {
			return 0, 0, false, fmt.Errorf("recurrence: invalid BYDAY weekday %q", day)
		}
		mask |= 1 << uint(wd)
		if ordStr := day[:len(day)-2]; ordStr != "" {
			ord, err := strconv.Atoi(ordStr)
			if err != nil {
				return 0, 0, false, fmt.Errorf("recurrence: invalid BYDAY ordinal %q: %w", day, err)
			}
			if hasPos && ord != pos {
				return 0, 0, false, fmt.Errorf("recurrence: BYDAY mixes ordinals in %q", byDayStr)
			}
			pos, hasPos = ord, true
		}
	}
	return mask, pos, hasPos, nil
}

func parseByMonthDay(byMonthDayStr string) ([]int, error) {
	if byMonthDayStr == "" {
		return nil, nil
	}
	var days []int
	for _, dayStr := range strings.Split(byMonthDayStr, ",") {
		dayStr = strings.TrimSpace(dayStr)
		day, err := strconv.Atoi(dayStr)
		if err != nil || day == 0 || day < -31 || day > 31 {
			return nil, fmt.Errorf("recurrence: invalid BYMONTHDAY %q", dayStr)
		}
		days = append(days, day)
	}
	return days, nil
}

func parseByMonth(byMonthStr string) ([]time.Month, error) {
	if byMonthStr == "" {
		return nil, nil
	}
	var months []time.Month
	for _, monthStr := range strings.Split(byMonthStr, ",") {
		monthStr = strings.TrimSpace(monthStr)
		month, err := strconv.Atoi(monthStr)
		if err != nil || month < 1 || month > 12 {
			return nil, fmt.Errorf("recurrence: invalid BYMONTH %q", monthStr)
		}
		months = append(months, time.Month(month))
	}
	return months, nil
}

func formatTerminator(term Terminator) string {
	if term.Count > 0 {
		return fmt.Sprintf(";COUNT=%d", term.Count)
	}
	if !term.Until.IsZero() {
		return fmt.Sprintf(";UNTIL=%s", term.Until.Format("20060102T150405Z"))
	}
	return ""
}

func formatByDayMask(mask uint8) string {
	var days []string
	for _, w := range weekdayMaskBits(mask) {
		days = append(days, weekdayNames[w])
	}
	return strings.Join(days, ",")
}

// FormatRRule converts a Recurrence back to an RRULE string.
func FormatRRule(rec Recurrence) string {
	list := func(xs any) string { return strings.Trim(strings.Join(strings.Fields(fmt.Sprintf("%d", xs)), ","), "[]") }
	switch r := rec.(type) {
	case NoRecurrence:
		return ""
	case *MinutelyRecurrence:
		return r.String() + formatTerminator(r.Term)
	case *DailyRecurrence:
		return r.String() + formatTerminator(r.Term)
	case *WeeklyRecurrence:
		return r.String() + formatTerminator(r.Term)
	case *MonthlyByDayRecurrence:
		return fmt.Sprintf("FREQ=MONTHLY;INTERVAL=%d;BYMONTHDAY=%s", r.Interval, list(r.ByMonthDay)) + formatTerminator(r.Term)
	case *MonthlyByPosRecurrence:
		s := r.String()
		if r.ByDay != 0 {
			s += ";BYDAY=" + formatByDayMask(r.ByDay)
		}
		return s + formatTerminator(r.Term)
	case *AnnualByDateRecurrence:
		return fmt.Sprintf("FREQ=YEARLY;INTERVAL=%d;BYMONTH=%s;BYMONTHDAY=%s", r.Interval, list(r.ByMonth), list(r.ByMonthDay)) + formatTerminator(r.Term)
	case *AnnualByPosRecurrence:
		s := fmt.Sprintf("FREQ=YEARLY;INTERVAL=%d;BYMONTH=%s;BYSETPOS=%d", r.Interval, list(r.ByMonth), r.Pos)
		if r.ByDay != 0 {
			s += ";BYDAY=" + formatByDayMask(r.ByDay)
		}
		return s + formatTerminator(r.Term)
	default:
		return ""
	}
}
