package scheduler

import (
	"testing"
	"time"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/calendar"
	"kalarmd/internal/event"
	"kalarmd/internal/resource"
)

type fakeBackend struct {
	records map[string][]event.Record
}

// Load treats a location with no stored records as an empty, new
// resource, as the iCalendar backend does for a missing path.
func (b *fakeBackend) Load(location string) ([]event.Record, int, error) {
	return b.records[location], resource.CurrentFormatVersion, nil
}

func (b *fakeBackend) Save(location string, records []event.Record) error {
	if b.records == nil {
		b.records = make(map[string][]event.Record)
	}
	b.records[location] = records
	return nil
}

type recordingDispatcher struct {
	fired []string
}

func (d *recordingDispatcher) Fire(e *event.Event, t event.SubAlarmType) {
	d.fired = append(d.fired, e.UID)
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tm
}

func newScheduler(t *testing.T, now time.Time) (*Scheduler, *calendar.ResourcesCalendar, *resource.Registry, *recordingDispatcher) {
	t.Helper()
	reg := resource.NewRegistry(nil)
	backend := &fakeBackend{}
	active := resource.New(0, "active", "Active", resource.StorageFile, "/tmp/active.ics", resource.Active, backend, nil)
	archived := resource.New(0, "archived", "Archived", resource.StorageFile, "/tmp/archived.ics", resource.Archived, backend, nil)
	reg.Add(active)
	reg.Add(archived)
	if err := active.Load(true); err != nil {
		t.Fatalf("Load active: %v", err)
	}
	if err := archived.Load(true); err != nil {
		t.Fatalf("Load archived: %v", err)
	}
	if err := reg.SetStandard(archived, resource.Archived, true); err != nil {
		t.Fatalf("SetStandard: %v", err)
	}

	cal := calendar.NewResourcesCalendar(nil, calendar.Listener{})
	dispatcher := &recordingDispatcher{}
	s := New(cal, reg, dispatcher, nil)
	s.now = func() time.Time { return now }
	return s, cal, reg, dispatcher
}

func TestHandleDueFiresAndReschedulesNonRecurring(t *testing.T) {
	now := mustParse(t, "2025-06-01T09:00:05Z")
	s, cal, reg, dispatcher := newScheduler(t, now)

	active, _ := reg.Resource(1)
	start := alarmtime.New(mustParse(t, "2025-06-01T09:00:00Z"))
	e := event.New("evt-1", start, event.Action{Kind: event.MessageAction, Text: "hi"})
	e.Archive = true
	active.AddEvent(e)
	cal.HandleEventsAdded(active.ID(), []*event.Event{e}, true)
	cal.HandleResourcesPopulated()

	s.Enqueue(Action{Kind: Handle})

	if len(dispatcher.fired) != 1 {
		t.Fatalf("expected exactly one dispatch, got %v", dispatcher.fired)
	}
	if _, ok := cal.EarliestAlarm(); ok {
		t.Errorf("non-recurring event should be archived out of the active calendar")
	}
	archived, _ := reg.Resource(2)
	if !archived.Contains(e.UID) {
		t.Errorf("expired event with Archive set should move to the archived resource")
	}
}

func TestHandleDueSkipsWhenNotYetDue(t *testing.T) {
	now := mustParse(t, "2025-06-01T08:00:00Z")
	s, cal, reg, dispatcher := newScheduler(t, now)

	active, _ := reg.Resource(1)
	start := alarmtime.New(mustParse(t, "2025-06-01T09:00:00Z"))
	e := event.New("evt-2", start, event.Action{Kind: event.MessageAction, Text: "later"})
	active.AddEvent(e)
	cal.HandleEventsAdded(active.ID(), []*event.Event{e}, true)

	s.Enqueue(Action{Kind: Handle})

	if len(dispatcher.fired) != 0 {
		t.Errorf("alarm not yet due should not dispatch, got %v", dispatcher.fired)
	}
}

func TestFireAppliesLateCancel(t *testing.T) {
	now := mustParse(t, "2025-06-01T09:30:00Z")
	s, cal, reg, dispatcher := newScheduler(t, now)

	active, _ := reg.Resource(1)
	start := alarmtime.New(mustParse(t, "2025-06-01T09:00:00Z"))
	e := event.New("evt-3", start, event.Action{Kind: event.MessageAction, Text: "late"})
	e.SetLateCancel(5)
	active.AddEvent(e)
	cal.HandleEventsAdded(active.ID(), []*event.Event{e}, true)

	s.Enqueue(Action{Kind: Handle})

	if len(dispatcher.fired) != 0 {
		t.Errorf("a late-cancelled alarm should not dispatch, got %v", dispatcher.fired)
	}
}

func TestSubRepetitionAdvancesIndexBeforeRecurrence(t *testing.T) {
	now := mustParse(t, "2025-06-01T09:00:05Z")
	s, cal, reg, _ := newScheduler(t, now)

	active, _ := reg.Resource(1)
	start := alarmtime.New(mustParse(t, "2025-06-01T09:00:00Z"))
	e := event.New("evt-4", start, event.Action{Kind: event.MessageAction, Text: "repeat"})
	e.SetRepetition(10*time.Minute, 2)
	active.AddEvent(e)
	cal.HandleEventsAdded(active.ID(), []*event.Event{e}, true)

	s.rescheduleAlarm(e)
	if e.NextRepeatIndex != 1 {
		t.Errorf("NextRepeatIndex = %d, want 1 after first reschedule", e.NextRepeatIndex)
	}
}
