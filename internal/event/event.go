package event

import (
	"time"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/recurrence"
)

// CmdErrType records which of an event's commands (main action, pre-action,
// post-action) last exited non-zero, per alarmevent.h's CmdErrType bitmask
// and §4.3's command-error recording. Persisted separately from the event
// itself (§6.2's command-error key-value group) so it survives even when
// the event's own save is skipped.
type CmdErrType int

const (
	CmdNoError   CmdErrType = 0
	CmdError     CmdErrType = 0x01
	CmdErrorPre  CmdErrType = 0x02
	CmdErrorPost CmdErrType = 0x04
	CmdErrorPrePost CmdErrType = CmdErrorPre | CmdErrorPost
)

// DeferLimitType identifies which constraint produced a deferral_limit()
// result (§4.3), mirroring alarmevent.h's DeferLimitType enum.
type DeferLimitType int

const (
	LimitNone DeferLimitType = iota
	LimitMain
	LimitRecurrence
	LimitRepetition
	LimitReminder
)

// TriggerType selects which view of "next trigger" next_trigger() computes
// (§4.3): All considers every enabled sub-alarm, Main only the main/
// recurrence trigger, DisplayOnly excludes Audio/PreAction/PostAction, Work
// and AllWork additionally mask against working hours/holidays.
type TriggerType int

const (
	AllTrigger TriggerType = iota
	MainTrigger
	DisplayTrigger
	WorkTrigger
	AllWorkTrigger
)

// OccurType is the result of set_next_occurrence/next_occurrence (§4.3),
// an OR-able bitmask: the low bits name which kind of occurrence was
// selected, and Repeat is ORed in when a sub-repetition point was chosen
// instead of the base occurrence.
type OccurType int

const (
	NoOccurrence        OccurType = 0
	FirstOrOnlyOccur    OccurType = 0x01
	RecurrenceDate       OccurType = 0x02
	RecurrenceDateTime   OccurType = 0x03
	LastRecurrence       OccurType = 0x04
	OccurRepeat          OccurType = 0x10
)

// WorkTimeChecker answers whether an instant falls within configured
// working hours and is not a holiday, for WorkTrigger/AllWorkTrigger and
// the exclude_holidays/work_time_only flags (§3.3, §4.3). Supplied by the
// config collaborator (out of scope per spec §1). Events without those
// flags never consult the checker; for an event with either flag set, a
// nil checker means "not within working time", so the alarm is excluded.
type WorkTimeChecker interface {
	IsWorkTime(t time.Time) bool
}

// Event is the compound alarm entity of §3.3: a single main trigger
// (recurring or not) plus the sub-alarms layered on top of it.
type Event struct {
	UID        string
	ResourceID int64
	Category   Category
	Revision   int
	CreatedAt  time.Time
	SavedAt    time.Time

	Start      alarmtime.DateTime
	NextMain   alarmtime.DateTime
	Recurrence recurrence.Recurrence // nil means no recurrence (single-shot)
	MainExpired bool

	SubRepeatInterval time.Duration
	SubRepeatCount    int
	NextRepeatIndex   int

	Action Action

	BgColour, FgColour string
	Font               string
	DefaultFont        bool

	Beep, Speak, RepeatSound, ConfirmAck, AutoClose bool
	DisplayCommandOutput                            bool
	ExecInTerm                                       bool

	ReminderMinutes   int
	ReminderOnceOnly  bool
	ReminderArchived  bool

	LateCancelMinutes int

	AtLogin bool // repeat_at_login

	PreActionText        string
	PreActionCancelOnErr bool
	PreActionExecOnDefer bool
	PostActionText       string

	Enabled          bool
	Archive          bool // archive-when-done
	CopyToKOrganizer bool
	ExcludeHolidays  bool
	WorkTimeOnly     bool

	CommandError CmdErrType

	subAlarms map[SubAlarmType]SubAlarm
}

// New builds an Event in the Active category, with Main enabled and every
// other sub-alarm absent, matching KAEvent's default construction.
func New(uid string, start alarmtime.DateTime, action Action) *Event {
	e := &Event{
		UID:       uidForCategory(uid, Active),
		Category:  Active,
		Start:     start,
		NextMain:  start,
		Action:    action,
		Enabled:   true,
		subAlarms: make(map[SubAlarmType]SubAlarm),
	}
	e.subAlarms[MainAlarm] = SubAlarm{Type: MainAlarm, Enabled: true}
	return e
}

// Recurs reports whether the event has a recurrence rule beyond its single
// base occurrence.
func (e *Event) Recurs() bool {
	if e.Recurrence == nil {
		return false
	}
	_, isNone := e.Recurrence.(recurrence.NoRecurrence)
	return !isNone
}

// SetRecurrence installs r, replacing any prior rule. Passing nil is
// equivalent to SetNoRecur.
func (e *Event) SetRecurrence(r recurrence.Recurrence) { e.Recurrence = r }

// SetNoRecur clears any recurrence rule (single-shot event).
func (e *Event) SetNoRecur() { e.Recurrence = recurrence.NoRecurrence{Start: e.Start.Time()} }

// SetRepetition installs a sub-repetition of count additional firings at
// interval after each main occurrence. count=0 disables sub-repetition
// even if interval>0 (§8 boundary behaviour). Fails (returns false) when
// interval<=0 and count>0, an inconsistent request.
func (e *Event) SetRepetition(interval time.Duration, count int) bool {
	if count > 0 && interval <= 0 {
		return false
	}
	e.SubRepeatInterval = interval
	e.SubRepeatCount = count
	e.NextRepeatIndex = 0
	return true
}

// Valid mirrors KAEvent::valid(): an event needs at least one sub-alarm,
// and a lone repeat-at-login sub-alarm does not count (there must be a
// genuine main trigger too).
func (e *Event) Valid() bool {
	n := 0
	for _, a := range e.subAlarms {
		if a.Enabled {
			n++
		}
	}
	if n == 0 {
		return false
	}
	if n == 1 {
		if a, ok := e.subAlarms[AtLoginAlarm]; ok && a.Enabled {
			return false
		}
	}
	return true
}

// Alarm fetches one sub-alarm by type (§4.3's alarm(type)). ok is false
// when that sub-alarm is absent or disabled.
func (e *Event) Alarm(t SubAlarmType) (SubAlarm, bool) {
	a, ok := e.subAlarms[t]
	if !ok || !a.Enabled {
		return SubAlarm{}, false
	}
	return a, true
}

func (e *Event) setAlarm(a SubAlarm) {
	a.Enabled = true
	e.subAlarms[a.Type] = a
}

func (e *Event) clearAlarm(t SubAlarmType) {
	delete(e.subAlarms, t)
}

// FirstAlarm returns the earliest sub-alarm in iteration order (§4.3).
func (e *Event) FirstAlarm() (SubAlarm, bool) {
	for _, t := range iterationOrder {
		if a, ok := e.Alarm(t); ok {
			return a, true
		}
	}
	return SubAlarm{}, false
}

// NextAlarm returns the sub-alarm after prev in iteration order.
func (e *Event) NextAlarm(prev SubAlarmType) (SubAlarm, bool) {
	found := false
	for _, t := range iterationOrder {
		if found {
			if a, ok := e.Alarm(t); ok {
				return a, true
			}
			continue
		}
		if t == prev {
			found = true
		}
	}
	return SubAlarm{}, false
}

// MainDateTime returns the trigger of the main sub-alarm, accounting for
// sub-repetition when withRepeats is true: next_main + interval*next_index.
func (e *Event) MainDateTime(withRepeats bool) alarmtime.DateTime {
	if !withRepeats || e.NextRepeatIndex == 0 || e.SubRepeatInterval <= 0 {
		return e.NextMain
	}
	offset := time.Duration(e.NextRepeatIndex) * e.SubRepeatInterval
	return alarmtime.New(e.NextMain.EffectiveTime().Add(offset))
}

// MainEndRepeatTime returns the trigger of the final sub-repetition point
// for the current main occurrence.
func (e *Event) MainEndRepeatTime() alarmtime.DateTime {
	if e.SubRepeatCount <= 0 || e.SubRepeatInterval <= 0 {
		return e.NextMain
	}
	offset := time.Duration(e.SubRepeatCount) * e.SubRepeatInterval
	return alarmtime.New(e.NextMain.EffectiveTime().Add(offset))
}

// Expired mirrors KAEvent::expired(): either the display copy of an
// already-main-expired event, or an Archived event.
func (e *Event) Expired() bool {
	if e.Category == Displaying && e.MainExpired {
		return true
	}
	return e.Category == Archived
}

// SetCategory moves the event between categories, rewriting its UID per
// §3.3/§6.1/P8.
func (e *Event) SetCategory(c Category) {
	e.UID = uidForCategory(e.UID, c)
	e.Category = c
}

// Clone returns a deep-enough copy of e: a distinct subAlarms map so the
// copy's sub-alarm mutations (notably SetDisplaying) never affect the
// original. Used by internal/calendar's DisplayCalendar to make the
// "copy shown while the display is open" required by §3.6/§4.7 without
// aliasing the resource's own stored event.
func (e *Event) Clone() *Event {
	clone := *e
	clone.subAlarms = make(map[SubAlarmType]SubAlarm, len(e.subAlarms))
	for t, a := range e.subAlarms {
		clone.subAlarms[t] = a
	}
	return &clone
}

// workTimeOK reports whether t passes the event's exclude_holidays/
// work_time_only filters, per §9's "preserve the safer behaviour" decision:
// when the checker cannot determine work-time status (nil checker and the
// flag is set), the alarm is treated as excluded, not fired.
func (e *Event) workTimeOK(t time.Time, wtc WorkTimeChecker) bool {
	if !e.WorkTimeOnly && !e.ExcludeHolidays {
		return true
	}
	if wtc == nil {
		return false
	}
	return wtc.IsWorkTime(t)
}
