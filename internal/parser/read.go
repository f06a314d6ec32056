package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apognu/gocal"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/event"
	"kalarmd/internal/recurrence"
)

// eventToRecord converts one gocal.Event plus the raw ICS text it came from
// (needed for VALARM/RRULE detail gocal itself does not expose) into a
// Record that event.FromStore can build an Event out of.
func eventToRecord(ge gocal.Event, icsData string) (event.Record, error) {
	if ge.Uid == "" {
		return event.Record{}, fmt.Errorf("parser: event missing UID")
	}
	if ge.Start == nil {
		return event.Record{}, fmt.Errorf("parser: event %s missing DTSTART", ge.Uid)
	}

	block := eventBlock(icsData, ge.Uid)
	dateOnly := strings.Contains(block, "DTSTART;VALUE=DATE:")

	rec := event.Record{
		UID:     ge.Uid,
		Start:   alarmtime.NewDateOnly(*ge.Start, dateOnly),
		Enabled: true,
	}
	rec.NextMain = rec.Start

	rules := rruleLines(block)
	switch {
	case len(rules) == 0:
		rec.Recurrence = &recurrence.NoRecurrence{Start: *ge.Start}
	default:
		if rec2, ok := RecognizeFeb29Pair(rules, *ge.Start); ok {
			rec.Recurrence = rec2
		} else if strings.EqualFold(rules[0].Freq, "HOURLY") {
			rec.Recurrence = &recurrence.MinutelyRecurrence{Start: *ge.Start, Interval: rules[0].Interval * 60, Term: rules[0].term()}
		} else {
			r, err := recurrence.ParseRRule(rules[0].Raw, *ge.Start)
			if err != nil {
				return event.Record{}, fmt.Errorf("parser: event %s: %w", ge.Uid, err)
			}
			rec.Recurrence = r
		}
	}

	action, err := parseAction(block)
	if err != nil {
		return event.Record{}, fmt.Errorf("parser: event %s: %w", ge.Uid, err)
	}
	rec.Action = action

	for k, v := range parseXProperties(block) {
		applyEventProperty(&rec, k, v)
	}

	for _, va := range valarmBlocks(block) {
		applySubAlarm(&rec, va, rec.Start)
	}

	return rec, nil
}

// parseXProperties collects every custom X-property on the VEVENT itself
// (not inside a VALARM), the carrier for everything §6.1 calls "structured
// text in existing fields" beyond what a plain VEVENT models.
func parseXProperties(block string) map[string]string {
	props := map[string]string{}
	var inAlarm bool
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "BEGIN:VALARM":
			inAlarm = true
		case line == "END:VALARM":
			inAlarm = false
		case !inAlarm && strings.HasPrefix(line, "X-"):
			if i := strings.IndexByte(line, ':'); i >= 0 {
				props[line[:i]] = line[i+1:]
			}
		}
	}
	return props
}

func applyEventProperty(rec *event.Record, key, val string) {
	b := val == "TRUE"
	switch key {
	case "X-KALARMD-BEEP":
		rec.Beep = b
	case "X-KALARMD-SPEAK":
		rec.Speak = b
	case "X-KALARMD-REPEAT-SOUND":
		rec.RepeatSound = b
	case "X-KALARMD-CONFIRM-ACK":
		rec.ConfirmAck = b
	case "X-KALARMD-AUTO-CLOSE":
		rec.AutoClose = b
	case "X-KALARMD-DISPLAY-COMMAND-OUTPUT":
		rec.DisplayCommandOutput = b
	case "X-KALARMD-EXEC-IN-TERM":
		rec.ExecInTerm = b
	case "X-KALARMD-ARCHIVE":
		rec.Archive = b
	case "X-KALARMD-COPY-TO-KORGANIZER":
		rec.CopyToKOrganizer = b
	case "X-KALARMD-EXCLUDE-HOLIDAYS":
		rec.ExcludeHolidays = b
	case "X-KALARMD-WORK-TIME-ONLY":
		rec.WorkTimeOnly = b
	case "X-KALARMD-ENABLED":
		rec.Enabled = b
	case "X-KALARMD-LATE-CANCEL":
		if n, err := strconv.Atoi(val); err == nil {
			rec.LateCancelMinutes = n
		}
	case "X-KALARMD-BGCOLOUR":
		rec.BgColour = val
	case "X-KALARMD-FGCOLOUR":
		rec.FgColour = val
	case "X-KALARMD-FONT":
		rec.Font = val
	case "X-KALARMD-DEFAULT-FONT":
		rec.DefaultFont = b
	case "X-KALARMD-COMMAND-ERROR":
		if n, err := strconv.Atoi(val); err == nil {
			rec.CommandError = event.CmdErrType(n)
		}
	}
}

// parseAction recovers the event's main action from SUMMARY/DESCRIPTION/
// LOCATION and an X-KALARMD-ACTION-KIND marker, since plain iCalendar has no
// field for "this is a command to run" versus "this is a message to show".
func parseAction(block string) (event.Action, error) {
	var summary, description, location string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SUMMARY:"):
			summary = unescapeText(strings.TrimPrefix(line, "SUMMARY:"))
		case strings.HasPrefix(line, "DESCRIPTION:"):
			description = unescapeText(strings.TrimPrefix(line, "DESCRIPTION:"))
		case strings.HasPrefix(line, "LOCATION:"):
			location = unescapeText(strings.TrimPrefix(line, "LOCATION:"))
		}
	}

	props := parseXProperties(block)
	kind := event.MessageAction
	switch props["X-KALARMD-ACTION-KIND"] {
	case "FILE":
		kind = event.FileAction
	case "COMMAND":
		kind = event.CommandAction
	case "EMAIL":
		kind = event.EmailAction
	case "AUDIO":
		kind = event.AudioAction
	}

	a := event.Action{Kind: kind}
	switch kind {
	case event.EmailAction:
		a.EmailFromIdentity = props["X-KALARMD-EMAIL-FROM"]
		a.EmailSubject = summary
		a.EmailBody = description
		if to := props["X-KALARMD-EMAIL-TO"]; to != "" {
			a.EmailTo = strings.Split(to, ",")
		}
		if bcc := props["X-KALARMD-EMAIL-BCC"]; bcc != "" {
			a.EmailBcc = strings.Split(bcc, ",")
		}
		if att := props["X-KALARMD-EMAIL-ATTACH"]; att != "" {
			a.EmailAttachments = strings.Split(att, ",")
		}
	case event.FileAction:
		a.Text = location
	default:
		a.Text = description
		if summary != "" && description == "" {
			a.Text = summary
		}
	}
	a.CommandScript = props["X-KALARMD-COMMAND-SCRIPT"] == "TRUE"
	a.ExecInTerm = props["X-KALARMD-EXEC-IN-TERM"] == "TRUE"
	return a, nil
}
