package event

import (
	"time"

	"kalarmd/internal/alarmtime"
)

// maxWorkTimeSearchDays bounds the Work/AllWork forward search so a
// misconfigured (always-false) WorkTimeChecker cannot hang the scheduler.
const maxWorkTimeSearchDays = 366

// NextTrigger returns the next date-time for kind, or a null DateTime if
// the event is expired (§4.3). All/DisplayOnly additionally consider a
// pending deferral and reminder ahead of the plain main trigger; Work/
// AllWork mask the result against wtc.
func (e *Event) NextTrigger(kind TriggerType, wtc WorkTimeChecker) alarmtime.DateTime {
	if e.Expired() {
		return alarmtime.Null()
	}

	candidate := e.MainDateTime(true)

	if kind == AllTrigger || kind == DisplayTrigger || kind == WorkTrigger || kind == AllWorkTrigger {
		if a, ok := e.Alarm(DeferredAlarm); ok {
			candidate = a.DeferredTo
		} else if a, ok := e.Alarm(DeferredReminder); ok {
			candidate = a.DeferredTo
		} else if e.ReminderMinutes > 0 {
			if r, ok := e.Alarm(ReminderAlarm); ok {
				_ = r
				rem := alarmtime.New(candidate.EffectiveTime().Add(-time.Duration(e.ReminderMinutes) * time.Minute))
				candidate = rem
			}
		}
	}

	if kind == WorkTrigger || kind == AllWorkTrigger {
		return e.maskToWorkTime(candidate, wtc)
	}
	return candidate
}

// maskToWorkTime advances candidate along the recurrence to the next
// occurrence that passes workTimeOK (an event with no recurrence, or no
// further occurrence, yields a null DateTime), per §9's "preserve the safer behaviour" decision: a checker
// that can't confirm work time excludes rather than fires.
func (e *Event) maskToWorkTime(candidate alarmtime.DateTime, wtc WorkTimeChecker) alarmtime.DateTime {
	if !e.WorkTimeOnly && !e.ExcludeHolidays {
		return candidate
	}
	t := candidate.EffectiveTime()
	for i := 0; i < maxWorkTimeSearchDays; i++ {
		if e.workTimeOK(t, wtc) {
			return alarmtime.New(t)
		}
		if e.Recurrence == nil {
			return alarmtime.Null()
		}
		next, ok := e.Recurrence.NextAfter(t)
		if !ok {
			return alarmtime.Null()
		}
		t = next
	}
	return alarmtime.Null()
}

// SetNextOccurrence advances next_main to the smallest occurrence ≥ t and
// resets the sub-repetition index to zero (§4.3). Returns NoOccurrence
// (event has no occurrence at or after t: the caller should archive or
// delete it) or one of FirstOrOnlyOccur/RecurrenceDate/RecurrenceDateTime/
// LastRecurrence.
func (e *Event) SetNextOccurrence(t time.Time) OccurType {
	e.NextRepeatIndex = 0

	if !e.Recurs() {
		if !e.Start.EffectiveTime().Before(t) {
			e.NextMain = e.Start
			return FirstOrOnlyOccur
		}
		e.MainExpired = true
		return NoOccurrence
	}

	occ, ok := e.Recurrence.NextAfter(t.Add(-time.Nanosecond))
	if !ok {
		e.MainExpired = true
		return NoOccurrence
	}
	e.NextMain = alarmtime.NewDateOnly(occ, e.Start.IsDateOnly())

	if occ.Equal(e.Start.Time()) {
		return FirstOrOnlyOccur
	}
	if _, hasMore := e.Recurrence.NextAfter(occ); !hasMore {
		return LastRecurrence
	}
	if e.Start.IsDateOnly() {
		return RecurrenceDate
	}
	return RecurrenceDateTime
}

// DeferralLimit returns the latest time a pending deferral may target
// (§4.3). A reminder is limited by the main trigger it precedes; the main
// occurrence itself is limited by the next sub-repetition point, else the
// next recurrence; a non-recurring, non-repeating event has no limit.
func (e *Event) DeferralLimit() (alarmtime.DateTime, DeferLimitType) {
	if _, ok := e.Alarm(ReminderAlarm); ok {
		return e.NextMain, LimitMain
	}
	if e.SubRepeatCount > 0 && e.NextRepeatIndex < e.SubRepeatCount && e.SubRepeatInterval > 0 {
		offset := time.Duration(e.NextRepeatIndex+1) * e.SubRepeatInterval
		return alarmtime.New(e.NextMain.EffectiveTime().Add(offset)), LimitRepetition
	}
	if e.Recurs() {
		if occ, ok := e.Recurrence.NextAfter(e.NextMain.EffectiveTime()); ok {
			return alarmtime.New(occ), LimitRecurrence
		}
	}
	return alarmtime.Null(), LimitNone
}

// Defer sets the deferred trigger to t, optionally advancing past any
// occurrences ≤ t. Fails with ErrDeferralBeyondLimit if t is later than
// DeferralLimit allows.
func (e *Event) Defer(t time.Time, isReminder, adjustRecur bool) error {
	limit, kind := e.DeferralLimit()
	if kind != LimitNone && limit.IsValid() && t.After(limit.EffectiveTime()) {
		return ErrDeferralBeyondLimit
	}
	subType := DeferredAlarm
	if isReminder {
		subType = DeferredReminder
	}
	e.setAlarm(SubAlarm{Type: subType, DeferredTo: alarmtime.New(t), DeferralIsTimed: true})
	if adjustRecur {
		e.SetNextOccurrence(t.Add(time.Second))
	}
	return nil
}

// CancelDefer removes any pending deferral, restoring the event's previous
// trigger (the round-trip law `defer(t); cancel_defer()` from §8).
func (e *Event) CancelDefer() {
	e.clearAlarm(DeferredAlarm)
	e.clearAlarm(DeferredReminder)
}

// RemoveExpiredAlarm removes one sub-alarm (§4.3): the main sub-alarm sets
// MainExpired instead of merely being deleted, since the event's Main
// trigger is also referenced by sub-repetition bookkeeping.
func (e *Event) RemoveExpiredAlarm(t SubAlarmType) {
	if t == MainAlarm {
		e.MainExpired = true
		return
	}
	e.clearAlarm(t)
}

// SetDisplaying populates the displaying sub-alarm from src's currently
// firing sub-alarm type, recording where to restore the event to on
// acknowledgement (§4.3/§4.7).
func (e *Event) SetDisplaying(src *Event, t SubAlarmType, resourceID int64, when alarmtime.DateTime, showEdit, showDefer bool) {
	e.setAlarm(SubAlarm{
		Type:                   DisplayingAlarm,
		DisplayingOriginalType: t,
		DisplayingResourceID:   resourceID,
		DisplayingShowEdit:     showEdit,
		DisplayingShowDefer:    showDefer,
		DeferredTo:             when,
	})
	e.SetCategory(Displaying)
}

// ReinstateFromDisplaying is the inverse of SetDisplaying: it reports the
// original resource/show-button state so the caller can re-fetch the
// source event and remove the displaying copy (§4.7).
func (e *Event) ReinstateFromDisplaying() (resourceID int64, showEdit, showDefer bool, ok bool) {
	a, ok := e.Alarm(DisplayingAlarm)
	if !ok {
		return 0, false, false, false
	}
	return a.DisplayingResourceID, a.DisplayingShowEdit, a.DisplayingShowDefer, true
}
