package calendar

import (
	"errors"
	"testing"
	"time"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/event"
)

type fakeBackend struct {
	records map[string][]event.Record
}

func (b *fakeBackend) Load(location string) ([]event.Record, int, error) {
	if b.records == nil {
		return nil, 0, errors.New("not found")
	}
	recs, ok := b.records[location]
	if !ok {
		return nil, 0, errors.New("not found")
	}
	return recs, 3, nil
}

func (b *fakeBackend) Save(location string, records []event.Record) error {
	if b.records == nil {
		b.records = make(map[string][]event.Record)
	}
	b.records[location] = records
	return nil
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tm
}

func newEvent(t *testing.T, uid, start string) *event.Event {
	st := alarmtime.New(mustParse(t, start))
	return event.New(uid, st, event.Action{Kind: event.MessageAction, Text: "hi"})
}

func TestEarliestAlarmAcrossResources(t *testing.T) {
	c := NewResourcesCalendar(nil, Listener{})
	e1 := newEvent(t, "evt-1", "2025-06-01T09:00:00Z")
	e2 := newEvent(t, "evt-2", "2025-06-01T08:00:00Z")
	e2.ResourceID = 2

	c.HandleEventsAdded(1, []*event.Event{e1}, true)
	c.HandleEventsAdded(2, []*event.Event{e2}, true)

	earliest, ok := c.EarliestAlarm()
	if !ok || earliest.UID != "evt-2" {
		t.Fatalf("EarliestAlarm = %v, want evt-2", earliest)
	}
}

func TestSetAlarmPendingExcludesFromEarliest(t *testing.T) {
	c := NewResourcesCalendar(nil, Listener{})
	e1 := newEvent(t, "evt-1", "2025-06-01T09:00:00Z")
	c.HandleEventsAdded(1, []*event.Event{e1}, true)

	c.SetAlarmPending(e1, true)
	if _, ok := c.EarliestAlarm(); ok {
		t.Errorf("EarliestAlarm should be empty while the only event is pending")
	}
	c.SetAlarmPending(e1, false)
	if _, ok := c.EarliestAlarm(); !ok {
		t.Errorf("EarliestAlarm should return once pending is cleared")
	}
}

func TestHaveDisabledAlarmsEdgeNotification(t *testing.T) {
	var calls []bool
	c := NewResourcesCalendar(nil, Listener{HaveDisabledChanged: func(v bool) { calls = append(calls, v) }})
	e1 := newEvent(t, "evt-1", "2025-06-01T09:00:00Z")
	e1.Enabled = false
	c.HandleEventsAdded(1, []*event.Event{e1}, true)
	if !c.HaveDisabledAlarms() {
		t.Fatalf("expected have_disabled true")
	}
	if len(calls) != 1 || calls[0] != true {
		t.Errorf("expected exactly one edge notification, got %v", calls)
	}
}

func TestEventsToBeRemovedRecomputesEarliest(t *testing.T) {
	c := NewResourcesCalendar(nil, Listener{})
	e1 := newEvent(t, "evt-1", "2025-06-01T09:00:00Z")
	e2 := newEvent(t, "evt-2", "2025-06-01T10:00:00Z")
	c.HandleEventsAdded(1, []*event.Event{e1, e2}, true)

	earliest, _ := c.EarliestAlarm()
	if earliest.UID != "evt-1" {
		t.Fatalf("earliest = %s, want evt-1", earliest.UID)
	}

	c.HandleEventsToBeRemoved(1, []string{"evt-1"})
	earliest, ok := c.EarliestAlarm()
	if !ok || earliest.UID != "evt-2" {
		t.Errorf("after removing evt-1, earliest = %v, want evt-2", earliest)
	}
}

func TestAtLoginNotificationSuppressedDuringInitialPopulation(t *testing.T) {
	var notified []*event.Event
	c := NewResourcesCalendar(nil, Listener{AtLoginEventAdded: func(e *event.Event) { notified = append(notified, e) }})
	e1 := newEvent(t, "evt-1", "2025-06-01T09:00:00Z")
	e1.SetRepeatAtLogin(true)

	c.HandleEventsAdded(1, []*event.Event{e1}, true)
	if len(notified) != 0 {
		t.Errorf("at-login alarms found during initial population must not notify, got %d", len(notified))
	}

	c.HandleResourcesPopulated()
	e2 := newEvent(t, "evt-2", "2025-06-01T09:00:00Z")
	e2.SetRepeatAtLogin(true)
	c.HandleEventsAdded(1, []*event.Event{e2}, false)
	if len(notified) != 1 || notified[0].UID != "evt-2" {
		t.Errorf("at-login alarm added after population should notify once, got %v", notified)
	}
}

func TestDisplayCalendarShowAcknowledgeRoundTrip(t *testing.T) {
	backend := &fakeBackend{}
	dc := NewDisplayCalendar("/tmp/displaying.ics", backend)
	if err := dc.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	original := newEvent(t, "evt-1", "2025-06-01T09:00:00Z")
	original.ResourceID = 7
	when := alarmtime.New(mustParse(t, "2025-06-01T09:00:00Z"))

	shown, err := dc.Show(original, event.MainAlarm, when, true, true)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if !dc.Contains(shown.UID) {
		t.Fatalf("displaying copy should be recorded")
	}

	resID, showEdit, showDefer, err := dc.Acknowledge(shown.UID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if resID != 7 || !showEdit || !showDefer {
		t.Errorf("Acknowledge returned (%d,%v,%v), want (7,true,true)", resID, showEdit, showDefer)
	}
	if dc.Contains(shown.UID) {
		t.Errorf("displaying copy should be removed after Acknowledge")
	}
}

func TestDisplayCalendarOpenMissingFileIsEmpty(t *testing.T) {
	dc := NewDisplayCalendar("/tmp/nope.ics", &fakeBackend{})
	if err := dc.Open(); err != nil {
		t.Fatalf("Open on a missing file should succeed with an empty calendar, got %v", err)
	}
	if len(dc.ReinstateAll()) != 0 {
		t.Errorf("expected no displaying events")
	}
}
