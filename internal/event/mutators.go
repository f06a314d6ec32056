package event

import "time"

// SetReminder installs (or, when minutes<=0, removes) a reminder
// sub-alarm firing `minutes` before the main trigger (§3.3). onceOnly
// marks it to apply only to the event's next occurrence, matching
// alarmevent.h's setReminder(minutes, onceOnly).
func (e *Event) SetReminder(minutes int, onceOnly bool) {
	e.ReminderMinutes = minutes
	e.ReminderOnceOnly = onceOnly
	if minutes <= 0 {
		e.clearAlarm(ReminderAlarm)
		return
	}
	e.setAlarm(SubAlarm{Type: ReminderAlarm})
}

// SetActions installs pre/post-action shell commands. cancelOnError marks
// the alarm to be cancelled (and CmdErrorPre recorded) if the pre-action
// exits non-zero, per §4.9.
func (e *Event) SetActions(pre, post string, cancelOnError bool) {
	e.PreActionText = pre
	e.PostActionText = post
	e.PreActionCancelOnErr = cancelOnError
	if pre != "" {
		e.setAlarm(SubAlarm{Type: PreActionAlarm, ActionText: pre, CancelOnPreError: cancelOnError})
	} else {
		e.clearAlarm(PreActionAlarm)
	}
	if post != "" {
		e.setAlarm(SubAlarm{Type: PostActionAlarm, ActionText: post})
	} else {
		e.clearAlarm(PostActionAlarm)
	}
}

// SetAudioFile installs (or, when path=="", removes) the audio sub-alarm
// carried alongside a Message/File/Command action.
func (e *Event) SetAudioFile(path string, volume float64, fadeSeconds int, fadeVolume float64, repeat bool) {
	if path == "" {
		e.clearAlarm(AudioAlarm)
		return
	}
	e.setAlarm(SubAlarm{
		Type:        AudioAlarm,
		AudioFile:   path,
		AudioVolume: volume,
		FadeSeconds: fadeSeconds,
		FadeVolume:  fadeVolume,
		RepeatSound: repeat,
	})
}

// SetRepeatAtLogin enables or disables the at-login sub-alarm (§3.3).
func (e *Event) SetRepeatAtLogin(on bool) {
	e.AtLogin = on
	if on {
		e.setAlarm(SubAlarm{Type: AtLoginAlarm})
	} else {
		e.clearAlarm(AtLoginAlarm)
	}
}

// SetLateCancel sets the late-cancel window in minutes. 0 means never
// cancel (§8 boundary behaviour). Fails (returns false) if auto_close is
// set and minutes is 0, since auto_close requires a late-cancel window
// (§3.3 invariant).
func (e *Event) SetLateCancel(minutes int) bool {
	if minutes == 0 && e.AutoClose {
		return false
	}
	e.LateCancelMinutes = minutes
	return true
}

// SetAutoClose sets the auto-close flag. Fails if LateCancelMinutes is 0
// (§3.3 invariant: auto_close implies late_cancel > 0).
func (e *Event) SetAutoClose(on bool) bool {
	if on && e.LateCancelMinutes <= 0 {
		return false
	}
	e.AutoClose = on
	return true
}

// SetEnabled enables or disables the event without touching its sub-alarm
// set.
func (e *Event) SetEnabled(on bool) { e.Enabled = on }

// SetCommandError records which command(s) last failed, for the
// command-error persisted group (§6.2).
func (e *Event) SetCommandError(t CmdErrType) { e.CommandError = t }

// LateCancelled reports whether now is past trigger + late_cancel minutes
// (§4.3): if true, the caller must cancel rather than fire the alarm.
// Always false when late-cancel is disabled (minutes==0, §8).
func (e *Event) LateCancelled(now, trigger time.Time) bool {
	if e.LateCancelMinutes <= 0 {
		return false
	}
	deadline := trigger.Add(time.Duration(e.LateCancelMinutes) * time.Minute)
	return now.After(deadline)
}
