package event

import (
	"fmt"
	"time"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/recurrence"
)

// Record is the canonical, backend-agnostic stored form of an Event
// (§4.3's "record" parameter/return of from_store/to_store). internal/
// parser is responsible for mapping this to and from the iCalendar VEVENT/
// VALARM representation described in §6.1; Record itself knows nothing
// about iCalendar.
type Record struct {
	UID        string
	ResourceID int64
	Category   Category
	Revision   int
	CreatedAt  time.Time
	SavedAt    time.Time

	Start       alarmtime.DateTime
	NextMain    alarmtime.DateTime
	MainExpired bool
	Recurrence  recurrence.Recurrence

	SubRepeatInterval time.Duration
	SubRepeatCount    int
	NextRepeatIndex   int

	Action Action

	BgColour, FgColour string
	Font                string
	DefaultFont         bool

	Beep, Speak, RepeatSound, ConfirmAck, AutoClose bool
	DisplayCommandOutput, ExecInTerm                bool

	ReminderMinutes  int
	ReminderOnceOnly bool

	LateCancelMinutes int
	AtLogin           bool

	PreActionText        string
	PreActionCancelOnErr bool
	PostActionText       string

	Enabled          bool
	Archive          bool
	CopyToKOrganizer bool
	ExcludeHolidays  bool
	WorkTimeOnly     bool

	CommandError CmdErrType

	// Deferral, carried as its own fields since it is optional and the
	// stored form has no other place to hang it off of.
	DeferredTo      alarmtime.DateTime
	DeferredReminder bool
}

// FromStore parses a Record into an Event. Fails with ErrInvalidEvent if
// start or action is missing (§4.3).
func FromStore(r Record) (*Event, error) {
	if r.UID == "" || !r.Start.IsValid() {
		return nil, fmt.Errorf("%w: missing uid or start", ErrInvalidEvent)
	}
	if r.Action.Kind != MessageAction && r.Action.Kind != FileAction &&
		r.Action.Kind != CommandAction && r.Action.Kind != EmailAction &&
		r.Action.Kind != AudioAction {
		return nil, fmt.Errorf("%w: unrecognised action kind", ErrInvalidEvent)
	}

	e := &Event{
		UID:                  r.UID,
		ResourceID:           r.ResourceID,
		Category:             categoryFromUID(r.UID),
		Revision:             r.Revision,
		CreatedAt:            r.CreatedAt,
		SavedAt:              r.SavedAt,
		Start:                r.Start,
		NextMain:             r.NextMain,
		MainExpired:          r.MainExpired,
		Recurrence:           r.Recurrence,
		SubRepeatInterval:    r.SubRepeatInterval,
		SubRepeatCount:       r.SubRepeatCount,
		NextRepeatIndex:      r.NextRepeatIndex,
		Action:               r.Action,
		BgColour:             r.BgColour,
		FgColour:             r.FgColour,
		Font:                 r.Font,
		DefaultFont:          r.DefaultFont,
		Beep:                 r.Beep,
		Speak:                r.Speak,
		RepeatSound:          r.RepeatSound,
		ConfirmAck:           r.ConfirmAck,
		AutoClose:            r.AutoClose,
		DisplayCommandOutput: r.DisplayCommandOutput,
		ExecInTerm:           r.ExecInTerm,
		ReminderMinutes:      r.ReminderMinutes,
		ReminderOnceOnly:     r.ReminderOnceOnly,
		LateCancelMinutes:    r.LateCancelMinutes,
		AtLogin:              r.AtLogin,
		PreActionText:        r.PreActionText,
		PreActionCancelOnErr: r.PreActionCancelOnErr,
		PostActionText:       r.PostActionText,
		Enabled:              r.Enabled,
		Archive:              r.Archive,
		CopyToKOrganizer:     r.CopyToKOrganizer,
		ExcludeHolidays:      r.ExcludeHolidays,
		WorkTimeOnly:         r.WorkTimeOnly,
		CommandError:         r.CommandError,
		subAlarms:            make(map[SubAlarmType]SubAlarm),
	}
	if !r.NextMain.IsValid() {
		e.NextMain = e.Start
	}

	e.setAlarm(SubAlarm{Type: MainAlarm})
	if r.ReminderMinutes > 0 {
		e.setAlarm(SubAlarm{Type: ReminderAlarm})
	}
	if r.PreActionText != "" {
		e.setAlarm(SubAlarm{Type: PreActionAlarm, ActionText: r.PreActionText, CancelOnPreError: r.PreActionCancelOnErr})
	}
	if r.PostActionText != "" {
		e.setAlarm(SubAlarm{Type: PostActionAlarm, ActionText: r.PostActionText})
	}
	if r.AtLogin {
		e.setAlarm(SubAlarm{Type: AtLoginAlarm})
	}
	if r.Action.isAudio() || r.Action.AudioFile != "" {
		e.setAlarm(SubAlarm{
			Type:        AudioAlarm,
			AudioFile:   r.Action.AudioFile,
			AudioVolume: r.Action.AudioVolume,
			FadeSeconds: r.Action.FadeSeconds,
			FadeVolume:  r.Action.FadeVolume,
			RepeatSound: r.Action.RepeatSound,
		})
	}
	if r.DeferredTo.IsValid() {
		t := DeferredAlarm
		if r.DeferredReminder {
			t = DeferredReminder
		}
		e.setAlarm(SubAlarm{Type: t, DeferredTo: r.DeferredTo, DeferralIsTimed: true})
	}

	if !e.Valid() {
		return nil, fmt.Errorf("%w: no enabled sub-alarms", ErrInvalidEvent)
	}
	return e, nil
}

// ToStore emits the canonical stored form of e. Round-trips FromStore for
// valid events (§8 P1).
func (e *Event) ToStore() Record {
	r := Record{
		UID:                  e.UID,
		ResourceID:           e.ResourceID,
		Category:             e.Category,
		Revision:             e.Revision,
		CreatedAt:            e.CreatedAt,
		SavedAt:              e.SavedAt,
		Start:                e.Start,
		NextMain:             e.NextMain,
		MainExpired:          e.MainExpired,
		Recurrence:           e.Recurrence,
		SubRepeatInterval:    e.SubRepeatInterval,
		SubRepeatCount:       e.SubRepeatCount,
		NextRepeatIndex:      e.NextRepeatIndex,
		Action:               e.Action,
		BgColour:             e.BgColour,
		FgColour:             e.FgColour,
		Font:                 e.Font,
		DefaultFont:          e.DefaultFont,
		Beep:                 e.Beep,
		Speak:                e.Speak,
		RepeatSound:          e.RepeatSound,
		ConfirmAck:           e.ConfirmAck,
		AutoClose:            e.AutoClose,
		DisplayCommandOutput: e.DisplayCommandOutput,
		ExecInTerm:           e.ExecInTerm,
		ReminderMinutes:      e.ReminderMinutes,
		ReminderOnceOnly:     e.ReminderOnceOnly,
		LateCancelMinutes:    e.LateCancelMinutes,
		AtLogin:              e.AtLogin,
		PreActionText:        e.PreActionText,
		PreActionCancelOnErr: e.PreActionCancelOnErr,
		PostActionText:       e.PostActionText,
		Enabled:              e.Enabled,
		Archive:              e.Archive,
		CopyToKOrganizer:     e.CopyToKOrganizer,
		ExcludeHolidays:      e.ExcludeHolidays,
		WorkTimeOnly:         e.WorkTimeOnly,
		CommandError:         e.CommandError,
	}
	if a, ok := e.Alarm(DeferredAlarm); ok {
		r.DeferredTo = a.DeferredTo
	} else if a, ok := e.Alarm(DeferredReminder); ok {
		r.DeferredTo = a.DeferredTo
		r.DeferredReminder = true
	}
	return r
}
