package parser

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"kalarmd/internal/event"
	"kalarmd/internal/recurrence"
)

// CurrentFormatVersion is the schema version WriteResource stamps on every
// file it writes, mirrored from internal/resource.CurrentFormatVersion so
// this package does not need to import resource just for the constant.
const CurrentFormatVersion = 3

// WriteResource serialises records as one VCALENDAR (one VEVENT per record,
// one VALARM per populated sub-alarm) via golang-ical, the inverse of Load.
func WriteResource(path string, records []event.Record) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//kalarmd//kalarmd 1.0//EN")
	cal.SetProperty(ics.ComponentProperty(versionProperty), strconv.Itoa(CurrentFormatVersion))

	byUID := make(map[string]event.Record, len(records))
	for _, r := range records {
		byUID[r.UID] = r
	}
	for _, uid := range sortedUIDs(byUID) {
		writeRecord(cal, byUID[uid])
	}

	data := cal.Serialize()
	if err := os.MkdirAll(parentDir(path), 0o755); err != nil {
		return fmt.Errorf("parser: mkdir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("parser: write %s: %w", path, err)
	}
	return nil
}

func parentDir(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}

func writeRecord(cal *ics.Calendar, r event.Record) {
	ev := cal.AddEvent(r.UID)
	ev.SetCreatedTime(r.CreatedAt)
	ev.SetDtStampTime(r.SavedAt)
	ev.SetModifiedAt(r.SavedAt)
	if r.Start.IsDateOnly() {
		ev.SetAllDayStartAt(r.Start.Time())
	} else {
		ev.SetStartAt(r.Start.Time())
	}

	switch r.Action.Kind {
	case event.EmailAction:
		ev.SetSummary(escapeText(r.Action.EmailSubject))
		ev.SetDescription(escapeText(r.Action.EmailBody))
		ev.SetProperty(ics.ComponentProperty("X-KALARMD-ACTION-KIND"), "EMAIL")
		ev.SetProperty(ics.ComponentProperty("X-KALARMD-EMAIL-FROM"), r.Action.EmailFromIdentity)
		ev.SetProperty(ics.ComponentProperty("X-KALARMD-EMAIL-TO"), strings.Join(r.Action.EmailTo, ","))
		if len(r.Action.EmailBcc) > 0 {
			ev.SetProperty(ics.ComponentProperty("X-KALARMD-EMAIL-BCC"), strings.Join(r.Action.EmailBcc, ","))
		}
		if len(r.Action.EmailAttachments) > 0 {
			ev.SetProperty(ics.ComponentProperty("X-KALARMD-EMAIL-ATTACH"), strings.Join(r.Action.EmailAttachments, ","))
		}
	case event.FileAction:
		ev.SetLocation(escapeText(r.Action.Text))
		ev.SetProperty(ics.ComponentProperty("X-KALARMD-ACTION-KIND"), "FILE")
	case event.CommandAction:
		ev.SetDescription(escapeText(r.Action.Text))
		ev.SetProperty(ics.ComponentProperty("X-KALARMD-ACTION-KIND"), "COMMAND")
		ev.SetProperty(ics.ComponentProperty("X-KALARMD-COMMAND-SCRIPT"), boolStr(r.Action.CommandScript))
	default:
		ev.SetDescription(escapeText(r.Action.Text))
	}
	if r.Action.ExecInTerm {
		ev.SetProperty(ics.ComponentProperty("X-KALARMD-EXEC-IN-TERM"), "TRUE")
	}

	writeRecurrence(ev, r.Recurrence)
	writeXProperties(ev, r)
	writeSubAlarms(ev, r)
}

func writeRecurrence(ev *ics.VEvent, rec recurrence.Recurrence) {
	annual, ok := rec.(*recurrence.AnnualByDateRecurrence)
	if ok && annual.Feb29Policy != recurrence.Feb29None {
		for _, rule := range emitFeb29Pair(annual) {
			ev.AddRrule(rule)
		}
		return
	}
	if _, isNone := rec.(*recurrence.NoRecurrence); isNone || rec == nil {
		return
	}
	ev.AddRrule(recurrence.FormatRRule(rec))
}

func writeXProperties(ev *ics.VEvent, r event.Record) {
	set := func(key string, val string) {
		if val != "" {
			ev.SetProperty(ics.ComponentProperty(key), val)
		}
	}
	setBool := func(key string, val bool) {
		if val {
			ev.SetProperty(ics.ComponentProperty(key), "TRUE")
		}
	}
	setBool("X-KALARMD-BEEP", r.Beep)
	setBool("X-KALARMD-SPEAK", r.Speak)
	setBool("X-KALARMD-REPEAT-SOUND", r.RepeatSound)
	setBool("X-KALARMD-CONFIRM-ACK", r.ConfirmAck)
	setBool("X-KALARMD-AUTO-CLOSE", r.AutoClose)
	setBool("X-KALARMD-DISPLAY-COMMAND-OUTPUT", r.DisplayCommandOutput)
	setBool("X-KALARMD-ARCHIVE", r.Archive)
	setBool("X-KALARMD-COPY-TO-KORGANIZER", r.CopyToKOrganizer)
	setBool("X-KALARMD-EXCLUDE-HOLIDAYS", r.ExcludeHolidays)
	setBool("X-KALARMD-WORK-TIME-ONLY", r.WorkTimeOnly)
	ev.SetProperty(ics.ComponentProperty("X-KALARMD-ENABLED"), boolStr(r.Enabled))
	if r.LateCancelMinutes > 0 {
		ev.SetProperty(ics.ComponentProperty("X-KALARMD-LATE-CANCEL"), strconv.Itoa(r.LateCancelMinutes))
	}
	set("X-KALARMD-BGCOLOUR", r.BgColour)
	set("X-KALARMD-FGCOLOUR", r.FgColour)
	set("X-KALARMD-FONT", r.Font)
	setBool("X-KALARMD-DEFAULT-FONT", r.DefaultFont)
	if r.CommandError != event.CmdNoError {
		ev.SetProperty(ics.ComponentProperty("X-KALARMD-COMMAND-ERROR"), strconv.Itoa(int(r.CommandError)))
	}
}

func writeSubAlarms(ev *ics.VEvent, r event.Record) {
	main := ev.AddAlarm()
	main.SetAction(ics.ActionDisplay)
	main.SetTrigger("PT0S")
	main.SetProperty(ics.ComponentProperty("CATEGORIES"), "MAIN")
	if r.SubRepeatCount > 0 {
		main.SetProperty(ics.ComponentProperty("REPEAT"), strconv.Itoa(r.SubRepeatCount))
		main.SetProperty(ics.ComponentProperty("DURATION"), formatTrigger(r.SubRepeatInterval))
		if r.NextRepeatIndex > 0 {
			main.SetProperty(ics.ComponentProperty("X-KALARMD-NEXT-REPEAT"), strconv.Itoa(r.NextRepeatIndex))
		}
	}

	if r.ReminderMinutes > 0 {
		a := ev.AddAlarm()
		a.SetAction(ics.ActionDisplay)
		a.SetTrigger(formatTrigger(-time.Duration(r.ReminderMinutes) * time.Minute))
		a.SetProperty(ics.ComponentProperty("CATEGORIES"), "REMINDER")
		if r.ReminderOnceOnly {
			a.SetProperty(ics.ComponentProperty("X-KALARMD-REMINDER-ONCE"), "TRUE")
		}
	}
	if r.AtLogin {
		a := ev.AddAlarm()
		a.SetAction(ics.ActionDisplay)
		a.SetTrigger("PT0S")
		a.SetProperty(ics.ComponentProperty("CATEGORIES"), "AT_LOGIN")
	}
	if r.PreActionText != "" {
		a := ev.AddAlarm()
		a.SetAction(ics.ActionDisplay)
		a.SetTrigger("PT0S")
		a.SetProperty(ics.ComponentProperty("CATEGORIES"), "PRE_ACTION")
		a.SetProperty(ics.ComponentProperty("DESCRIPTION"), escapeText(r.PreActionText))
		if r.PreActionCancelOnErr {
			a.SetProperty(ics.ComponentProperty("X-KALARMD-CANCEL-ON-ERROR"), "TRUE")
		}
	}
	if r.PostActionText != "" {
		a := ev.AddAlarm()
		a.SetAction(ics.ActionDisplay)
		a.SetTrigger("PT0S")
		a.SetProperty(ics.ComponentProperty("CATEGORIES"), "POST_ACTION")
		a.SetProperty(ics.ComponentProperty("DESCRIPTION"), escapeText(r.PostActionText))
	}
	if r.Action.AudioFile != "" || r.Action.Kind == event.AudioAction {
		a := ev.AddAlarm()
		a.SetAction(ics.ActionAudio)
		a.SetTrigger("PT0S")
		a.SetProperty(ics.ComponentProperty("CATEGORIES"), "AUDIO")
		if r.Action.AudioFile != "" {
			a.SetProperty(ics.ComponentProperty("ATTACH"), r.Action.AudioFile)
		}
		if r.Action.AudioVolume > 0 {
			a.SetProperty(ics.ComponentProperty("X-KALARMD-VOLUME"), strconv.FormatFloat(r.Action.AudioVolume, 'f', -1, 64))
		}
		if r.Action.FadeSeconds > 0 {
			a.SetProperty(ics.ComponentProperty("X-KALARMD-FADE-SECONDS"), strconv.Itoa(r.Action.FadeSeconds))
		}
		if r.Action.FadeVolume > 0 {
			a.SetProperty(ics.ComponentProperty("X-KALARMD-FADE-VOLUME"), strconv.FormatFloat(r.Action.FadeVolume, 'f', -1, 64))
		}
		if r.Action.RepeatSound {
			a.SetProperty(ics.ComponentProperty("X-KALARMD-REPEAT-SOUND"), "TRUE")
		}
	}
	if r.DeferredTo.IsValid() {
		a := ev.AddAlarm()
		a.SetAction(ics.ActionDisplay)
		a.SetTrigger(r.DeferredTo.Time().UTC().Format("20060102T150405Z"))
		category := "DEFERRED"
		if r.DeferredReminder {
			category = "DEFERRED_REMINDER"
		}
		a.SetProperty(ics.ComponentProperty("CATEGORIES"), category)
	}
}

func boolStr(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
