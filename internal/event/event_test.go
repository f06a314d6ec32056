package event

import (
	"testing"
	"time"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/recurrence"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tm
}

func TestCategorySuffixRoundTrip(t *testing.T) {
	uid := "event-123"
	for _, c := range []Category{Active, Archived, Template, Displaying} {
		tagged := uidForCategory(uid, c)
		if got := categoryFromUID(tagged); got != c {
			t.Errorf("categoryFromUID(%q) = %v, want %v", tagged, got, c)
		}
		if bareUID(tagged) != uid {
			t.Errorf("bareUID(%q) = %q, want %q", tagged, bareUID(tagged), uid)
		}
	}
}

func TestSetCategoryChangesUID(t *testing.T) {
	start := alarmtime.New(mustTime(t, "2025-06-01T09:00:00Z"))
	e := New("evt-1", start, Action{Kind: MessageAction, Text: "hi"})
	before := e.UID
	e.SetCategory(Archived)
	if e.UID == before {
		t.Errorf("SetCategory did not change UID")
	}
	if e.Category != Archived {
		t.Errorf("Category = %v, want Archived", e.Category)
	}
}

// Scenario 1: daily reminder with late-cancel.
func TestLateCancelScenario(t *testing.T) {
	start := alarmtime.New(mustTime(t, "2025-06-01T09:00:00Z"))
	e := New("evt-2", start, Action{Kind: MessageAction, Text: "daily"})
	e.Recurrence = recurrence.NewDailyRecurrence(start.Time(), 1, 0, recurrence.Terminator{})
	e.SetLateCancel(5)

	now := mustTime(t, "2025-06-01T09:06:00Z")
	if !e.LateCancelled(now, e.NextMain.EffectiveTime()) {
		t.Fatalf("expected late-cancel at 09:06 with 5 min window")
	}

	occType := e.SetNextOccurrence(now.Add(time.Second))
	if occType == NoOccurrence {
		t.Fatalf("expected an occurrence after cancelling, got NoOccurrence")
	}
	want := mustTime(t, "2025-06-02T09:00:00Z")
	if !e.NextMain.EffectiveTime().Equal(want) {
		t.Errorf("next_main = %v, want %v", e.NextMain.EffectiveTime(), want)
	}
}

// Scenario 3: sub-repetition rescheduling.
func TestSubRepetitionBookkeeping(t *testing.T) {
	start := alarmtime.New(mustTime(t, "2025-06-01T09:00:00Z"))
	e := New("evt-3", start, Action{Kind: MessageAction, Text: "repeat"})
	if !e.SetRepetition(10*time.Minute, 3) {
		t.Fatalf("SetRepetition should succeed")
	}
	e.NextRepeatIndex = 1
	got := e.MainDateTime(true)
	want := mustTime(t, "2025-06-01T09:10:00Z")
	if !got.EffectiveTime().Equal(want) {
		t.Errorf("MainDateTime(true) = %v, want %v", got.EffectiveTime(), want)
	}
}

func TestSetRepetitionRejectsInconsistentRequest(t *testing.T) {
	e := New("evt-4", alarmtime.New(mustTime(t, "2025-06-01T09:00:00Z")), Action{Kind: MessageAction})
	if e.SetRepetition(0, 3) {
		t.Errorf("SetRepetition(0, 3) should fail: zero interval with positive count")
	}
	if !e.SetRepetition(time.Minute, 0) {
		t.Errorf("SetRepetition(_, 0) should succeed: zero count disables sub-repetition")
	}
}

// Scenario 4: deferral limit.
func TestDeferralLimitReminder(t *testing.T) {
	start := alarmtime.New(mustTime(t, "2025-06-01T09:00:00Z"))
	e := New("evt-5", start, Action{Kind: MessageAction, Text: "reminder"})
	e.Recurrence = recurrence.NewDailyRecurrence(start.Time(), 1, 0, recurrence.Terminator{})
	e.SetReminder(30, false)

	limit, kind := e.DeferralLimit()
	if kind != LimitMain {
		t.Fatalf("DeferralLimit kind = %v, want LimitMain", kind)
	}
	if !limit.EffectiveTime().Equal(mustTime(t, "2025-06-01T09:00:00Z")) {
		t.Errorf("DeferralLimit = %v, want 09:00", limit.EffectiveTime())
	}

	if err := e.Defer(mustTime(t, "2025-06-01T10:00:00Z"), true, false); err == nil {
		t.Errorf("Defer past the main trigger should fail")
	}
	if err := e.Defer(mustTime(t, "2025-06-01T08:55:00Z"), true, false); err != nil {
		t.Errorf("Defer within the limit should succeed, got %v", err)
	}
	if a, ok := e.Alarm(DeferredReminder); !ok {
		t.Errorf("expected a DeferredReminder sub-alarm after Defer")
	} else if !a.DeferredTo.EffectiveTime().Equal(mustTime(t, "2025-06-01T08:55:00Z")) {
		t.Errorf("DeferredTo = %v, want 08:55", a.DeferredTo.EffectiveTime())
	}
}

func TestCancelDeferRestoresState(t *testing.T) {
	e := New("evt-6", alarmtime.New(mustTime(t, "2025-06-01T09:00:00Z")), Action{Kind: MessageAction})
	if err := e.Defer(mustTime(t, "2025-06-01T08:00:00Z"), false, false); err != nil {
		t.Fatalf("Defer: %v", err)
	}
	if _, ok := e.Alarm(DeferredAlarm); !ok {
		t.Fatalf("expected a deferral to be recorded")
	}
	e.CancelDefer()
	if _, ok := e.Alarm(DeferredAlarm); ok {
		t.Errorf("CancelDefer should remove the deferred sub-alarm")
	}
}

func TestIterationOrder(t *testing.T) {
	e := New("evt-7", alarmtime.New(mustTime(t, "2025-06-01T09:00:00Z")), Action{Kind: MessageAction})
	e.SetReminder(15, false)
	e.SetRepeatAtLogin(true)
	e.SetActions("pre.sh", "post.sh", false)

	var order []SubAlarmType
	a, ok := e.FirstAlarm()
	for ok {
		order = append(order, a.Type)
		a, ok = e.NextAlarm(a.Type)
	}

	want := []SubAlarmType{MainAlarm, ReminderAlarm, AtLoginAlarm, PreActionAlarm, PostActionAlarm}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %v, want %v", i, order[i], want[i])
		}
	}
}

func TestValidRejectsLoneAtLogin(t *testing.T) {
	e := New("evt-8", alarmtime.New(mustTime(t, "2025-06-01T09:00:00Z")), Action{Kind: MessageAction})
	e.RemoveExpiredAlarm(MainAlarm)
	e.clearAlarm(MainAlarm)
	e.SetRepeatAtLogin(true)
	if e.Valid() {
		t.Errorf("an event with only an at-login sub-alarm should be invalid")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	start := alarmtime.New(mustTime(t, "2025-06-01T09:00:00Z"))
	e := New("evt-9", start, Action{Kind: CommandAction, Text: "echo hi"})
	e.SetLateCancel(5)
	rec1 := e.ToStore()
	reloaded, err := FromStore(rec1)
	if err != nil {
		t.Fatalf("FromStore: %v", err)
	}
	rec2 := reloaded.ToStore()
	if rec1.UID != rec2.UID || rec1.LateCancelMinutes != rec2.LateCancelMinutes {
		t.Errorf("round trip mismatch: %+v vs %+v", rec1, rec2)
	}
}

func TestFromStoreRejectsMissingFields(t *testing.T) {
	if _, err := FromStore(Record{}); err == nil {
		t.Errorf("FromStore({}) should fail: missing uid/start/action")
	}
}
