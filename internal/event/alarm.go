package event

import "kalarmd/internal/alarmtime"

// SubAlarmType mirrors KAAlarm::Type's bitmask exactly (alarmevent.h):
// DeferredReminder is the OR of Reminder|Deferred, and the ordering these
// constants impose is the iteration order first_alarm()/next_alarm()
// returns (§4.3, §9's tagged-union note).
type SubAlarmType int

const (
	NoSubAlarm       SubAlarmType = 0
	MainAlarm        SubAlarmType = 0x01
	ReminderAlarm    SubAlarmType = 0x02
	DeferredAlarm    SubAlarmType = 0x04
	DeferredReminder SubAlarmType = ReminderAlarm | DeferredAlarm // 0x06
	AtLoginAlarm     SubAlarmType = 0x10
	DisplayingAlarm  SubAlarmType = 0x20
	AudioAlarm       SubAlarmType = 0x30
	PreActionAlarm   SubAlarmType = 0x40
	PostActionAlarm  SubAlarmType = 0x50
)

func (t SubAlarmType) String() string {
	switch t {
	case MainAlarm:
		return "MAIN"
	case ReminderAlarm:
		return "REMINDER"
	case DeferredAlarm:
		return "DEFERRED"
	case DeferredReminder:
		return "DEFERRED_REMINDER"
	case AtLoginAlarm:
		return "AT_LOGIN"
	case DisplayingAlarm:
		return "DISPLAYING"
	case AudioAlarm:
		return "AUDIO"
	case PreActionAlarm:
		return "PRE_ACTION"
	case PostActionAlarm:
		return "POST_ACTION"
	default:
		return "NONE"
	}
}

// iterationOrder lists every sub-alarm type in the order first_alarm/
// next_alarm must walk them (§4.3): Main < Reminder|Deferred|DeferredReminder
// < AtLogin < Displaying < Audio < PreAction < PostAction.
var iterationOrder = []SubAlarmType{
	MainAlarm,
	ReminderAlarm,
	DeferredAlarm,
	DeferredReminder,
	AtLoginAlarm,
	DisplayingAlarm,
	AudioAlarm,
	PreActionAlarm,
	PostActionAlarm,
}

// SubAlarm is one trigger carried by an Event — the `SubAlarm` variant from
// §9 (Main | Reminder | Deferred{..} | AtLogin | Displaying | Audio |
// PreAction | PostAction). Not every Event carries every type; Enabled
// marks which ones currently exist.
type SubAlarm struct {
	Type    SubAlarmType
	Enabled bool

	// When set (Deferred/DeferredReminder only), the trigger carried here
	// overrides the event's recurrence-derived trigger.
	DeferredTo       alarmtime.DateTime
	DeferralIsTimed  bool // TIMED_DEFERRAL_FLAG: a time, not merely a date, was requested

	// DisplayingAlarm only: which original sub-alarm type is being shown,
	// and the resource the event originally belonged to (§4.3 set_displaying).
	DisplayingOriginalType SubAlarmType
	DisplayingResourceID   int64
	DisplayingShowEdit     bool
	DisplayingShowDefer    bool

	// PreAction/PostAction only.
	ActionText         string
	CancelOnPreError   bool
	ExecOnDeferral     bool

	// AudioAlarm only, shared shape with Action's audio fields.
	AudioFile   string
	AudioVolume float64
	FadeSeconds int
	FadeVolume  float64
	RepeatSound bool
}

// DateTime returns the instant at which this sub-alarm would fire, given
// the event's own resolved main trigger (the caller supplies it since only
// Event has access to recurrence + sub-repetition state).
func (a SubAlarm) DateTime(mainTrigger alarmtime.DateTime) alarmtime.DateTime {
	if a.Type == DeferredAlarm || a.Type == DeferredReminder {
		return a.DeferredTo
	}
	return mainTrigger
}

func (a SubAlarm) reminder() bool { return a.Type&ReminderAlarm != 0 }
func (a SubAlarm) deferred() bool { return a.Type&DeferredAlarm != 0 }
