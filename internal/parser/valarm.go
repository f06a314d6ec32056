package parser

import (
	"strconv"
	"strings"
	"time"

	duration "github.com/ChannelMeter/iso8601duration"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/event"
)

// rawValarm is one VALARM block's properties, collected by a line walk in
// the same spirit as the teacher's extractVALARMsFromEventBlock: gocal does
// not expose VALARM components at all, so sub-alarms are recovered directly
// from the raw text instead.
type rawValarm struct {
	category string // CATEGORIES: the per-sub-alarm type marker (§6.1)
	trigger  string
	action   string
	desc     string
	attach   string
	repeat   int
	dur      string
	x        map[string]string
}

// eventBlock isolates the raw VEVENT text for uid out of the full ICS
// document, mirroring the teacher's parseVALARMs's BEGIN:VEVENT/END:VEVENT
// walk keyed on the UID line.
func eventBlock(icsData, uid string) string {
	lines := strings.Split(icsData, "\n")
	var cur strings.Builder
	var inEvent, isTarget bool
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(trimmed, "BEGIN:VEVENT"):
			inEvent, isTarget = true, false
			cur.Reset()
			cur.WriteString(trimmed + "\n")
		case strings.HasPrefix(trimmed, "END:VEVENT"):
			if inEvent {
				cur.WriteString(trimmed + "\n")
				if isTarget {
					return cur.String()
				}
			}
			inEvent = false
		case inEvent:
			cur.WriteString(trimmed + "\n")
			if u, ok := strings.CutPrefix(trimmed, "UID:"); ok && u == uid {
				isTarget = true
			}
		}
	}
	return ""
}

// valarmBlocks walks a VEVENT block's raw text and returns every VALARM
// component it contains.
func valarmBlocks(block string) []rawValarm {
	var alarms []rawValarm
	var cur rawValarm
	var inAlarm bool
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "BEGIN:VALARM":
			inAlarm = true
			cur = rawValarm{x: map[string]string{}}
		case line == "END:VALARM":
			if inAlarm {
				alarms = append(alarms, cur)
			}
			inAlarm = false
		case inAlarm:
			parseValarmLine(&cur, line)
		}
	}
	return alarms
}

func parseValarmLine(v *rawValarm, line string) {
	switch {
	case strings.HasPrefix(line, "CATEGORIES:"):
		v.category = strings.TrimPrefix(line, "CATEGORIES:")
	case strings.HasPrefix(line, "TRIGGER"):
		if i := strings.IndexByte(line, ':'); i >= 0 {
			v.trigger = line[i+1:]
		}
	case strings.HasPrefix(line, "ACTION:"):
		v.action = strings.TrimPrefix(line, "ACTION:")
	case strings.HasPrefix(line, "DESCRIPTION:"):
		v.desc = strings.TrimPrefix(line, "DESCRIPTION:")
	case strings.HasPrefix(line, "ATTACH"):
		if i := strings.IndexByte(line, ':'); i >= 0 {
			v.attach = line[i+1:]
		}
	case strings.HasPrefix(line, "REPEAT:"):
		n, err := strconv.Atoi(strings.TrimPrefix(line, "REPEAT:"))
		if err == nil {
			v.repeat = n
		}
	case strings.HasPrefix(line, "DURATION:"):
		v.dur = strings.TrimPrefix(line, "DURATION:")
	case strings.HasPrefix(line, "X-"):
		if i := strings.IndexByte(line, ':'); i >= 0 {
			v.x[line[:i]] = line[i+1:]
		}
	}
}

// parseTrigger parses a VALARM TRIGGER value into a signed offset from the
// main trigger (negative meaning before), using iso8601duration for the
// ISO-8601 duration grammar instead of the teacher's hand-rolled regexes.
func parseTrigger(trigger string) (time.Duration, error) {
	trigger = strings.TrimSpace(trigger)
	neg := strings.HasPrefix(trigger, "-")
	trigger = strings.TrimPrefix(trigger, "-")
	trigger = strings.TrimPrefix(trigger, "+")

	d, err := duration.FromString(trigger)
	if err != nil {
		return 0, err
	}
	dur := d.ToDuration()
	if neg {
		dur = -dur
	}
	return dur, nil
}

// formatTrigger renders a signed duration as an ISO-8601 TRIGGER value.
func formatTrigger(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	totalSeconds := int(d.Seconds())
	days := totalSeconds / 86400
	rem := totalSeconds % 86400
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60

	var b strings.Builder
	b.WriteString(sign)
	b.WriteByte('P')
	if days > 0 {
		b.WriteString(strconv.Itoa(days))
		b.WriteByte('D')
	}
	if hours > 0 || minutes > 0 || seconds > 0 {
		b.WriteByte('T')
		if hours > 0 {
			b.WriteString(strconv.Itoa(hours))
			b.WriteByte('H')
		}
		if minutes > 0 {
			b.WriteString(strconv.Itoa(minutes))
			b.WriteByte('M')
		}
		if seconds > 0 {
			b.WriteString(strconv.Itoa(seconds))
			b.WriteByte('S')
		}
	} else if days == 0 {
		b.WriteString("T0S")
	}
	return b.String()
}

// applySubAlarm folds one parsed VALARM into rec, populating whichever
// Record fields §4.3's FromStore derives a sub-alarm from.
func applySubAlarm(rec *event.Record, v rawValarm, mainStart alarmtime.DateTime) {
	switch v.category {
	case "MAIN":
		if v.repeat > 0 && v.dur != "" {
			if d, err := duration.FromString(v.dur); err == nil {
				rec.SubRepeatInterval = d.ToDuration()
				rec.SubRepeatCount = v.repeat
			}
		}
		if n, ok := v.x["X-KALARMD-NEXT-REPEAT"]; ok {
			if i, err := strconv.Atoi(n); err == nil {
				rec.NextRepeatIndex = i
			}
		}
	case "REMINDER":
		off, err := parseTrigger(v.trigger)
		if err == nil && off < 0 {
			rec.ReminderMinutes = int(-off / time.Minute)
		}
		rec.ReminderOnceOnly = v.x["X-KALARMD-REMINDER-ONCE"] == "TRUE"
	case "AT_LOGIN":
		rec.AtLogin = true
	case "PRE_ACTION":
		rec.PreActionText = unescapeText(v.desc)
		rec.PreActionCancelOnErr = v.x["X-KALARMD-CANCEL-ON-ERROR"] == "TRUE"
	case "POST_ACTION":
		rec.PostActionText = unescapeText(v.desc)
	case "AUDIO":
		rec.Action.AudioFile = v.attach
		if vol, ok := v.x["X-KALARMD-VOLUME"]; ok {
			rec.Action.AudioVolume = parseFloatOr(vol, 0)
		}
		if fs, ok := v.x["X-KALARMD-FADE-SECONDS"]; ok {
			if n, err := strconv.Atoi(fs); err == nil {
				rec.Action.FadeSeconds = n
			}
		}
		if fv, ok := v.x["X-KALARMD-FADE-VOLUME"]; ok {
			rec.Action.FadeVolume = parseFloatOr(fv, 0)
		}
		rec.Action.RepeatSound = v.x["X-KALARMD-REPEAT-SOUND"] == "TRUE"
	case "DEFERRED", "DEFERRED_REMINDER":
		if t, err := time.Parse("20060102T150405Z", strings.TrimSpace(v.trigger)); err == nil {
			rec.DeferredTo = alarmtime.New(t)
			rec.DeferredReminder = v.category == "DEFERRED_REMINDER"
		}
	}
}

func parseFloatOr(s string, fallback float64) float64 {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return n
}

func unescapeText(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\,`, ",")
	s = strings.ReplaceAll(s, `\;`, ";")
	return strings.ReplaceAll(s, `\\`, `\`)
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, ";", `\;`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
