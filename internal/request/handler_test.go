package request

import (
	"errors"
	"testing"
	"time"

	"kalarmd/internal/calendar"
	"kalarmd/internal/event"
	"kalarmd/internal/resource"
	"kalarmd/internal/scheduler"
)

type memBackend struct {
	records map[string][]event.Record
}

func (b *memBackend) Load(location string) ([]event.Record, int, error) {
	return b.records[location], resource.CurrentFormatVersion, nil
}

func (b *memBackend) Save(location string, records []event.Record) error {
	if b.records == nil {
		b.records = make(map[string][]event.Record)
	}
	b.records[location] = records
	return nil
}

type nopDispatcher struct{}

func (nopDispatcher) Fire(e *event.Event, t event.SubAlarmType) {}

func newTestHandler(t *testing.T) (*Handler, *resource.Registry) {
	t.Helper()
	reg := resource.NewRegistry(nil)
	active := resource.New(1, "active", "Active", resource.StorageFile, "/tmp/active.ics", resource.Active, &memBackend{}, nil)
	reg.Add(active)
	if err := active.Load(true); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := reg.SetStandard(active, resource.Active, true); err != nil {
		t.Fatalf("SetStandard: %v", err)
	}
	cal := calendar.NewResourcesCalendar(nil, calendar.Listener{})
	sched := scheduler.New(cal, reg, nopDispatcher{}, nil)
	return New(reg, cal, sched), reg
}

func future() time.Time { return time.Date(2054, 1, 1, 9, 0, 0, 0, time.UTC) }

func TestScheduleMessageRoundTrips(t *testing.T) {
	h, reg := newTestHandler(t)
	uid, err := h.ScheduleMessage(MessageParams{
		commonParams: commonParams{Start: future()},
		Text:         "wake up",
	})
	if err != nil {
		t.Fatalf("ScheduleMessage: %v", err)
	}
	res, ok := reg.Resource(1)
	if !ok {
		t.Fatalf("resource 1 missing")
	}
	e, ok := res.Event(uid, true)
	if !ok {
		t.Fatalf("event %q not stored", uid)
	}
	if e.Action.Text != "wake up" {
		t.Errorf("Action.Text = %q", e.Action.Text)
	}
	if _, ok := h.cal.Event(calendar.EventKey{ResourceID: 1, UID: uid}); !ok {
		t.Errorf("event not indexed in calendar")
	}
}

func TestScheduleMessageRequiresText(t *testing.T) {
	h, _ := newTestHandler(t)
	if _, err := h.ScheduleMessage(MessageParams{commonParams: commonParams{Start: future()}}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
}

func TestScheduleMessageRequiresStart(t *testing.T) {
	h, _ := newTestHandler(t)
	if _, err := h.ScheduleMessage(MessageParams{Text: "hi"}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
}

func TestScheduleCommandFlags(t *testing.T) {
	h, reg := newTestHandler(t)
	uid, err := h.ScheduleCommand(CommandParams{
		commonParams: commonParams{Start: future(), Flags: Script | ExecInTerm},
		Command:      "echo hi",
	})
	if err != nil {
		t.Fatalf("ScheduleCommand: %v", err)
	}
	res, _ := reg.Resource(1)
	e, _ := res.Event(uid, true)
	if !e.Action.CommandScript {
		t.Errorf("CommandScript not set")
	}
	if !e.ExecInTerm {
		t.Errorf("ExecInTerm not set")
	}
}

func TestScheduleEmailRequiresRecipient(t *testing.T) {
	h, _ := newTestHandler(t)
	if _, err := h.ScheduleEmail(EmailParams{commonParams: commonParams{Start: future()}, Subject: "hi"}); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
}

func TestScheduleAudioVolume(t *testing.T) {
	h, reg := newTestHandler(t)
	uid, err := h.ScheduleAudio(AudioParams{
		commonParams:  commonParams{Start: future()},
		URL:           "file:///tmp/a.ogg",
		VolumePercent: 50,
	})
	if err != nil {
		t.Fatalf("ScheduleAudio: %v", err)
	}
	res, _ := reg.Resource(1)
	e, _ := res.Event(uid, true)
	if e.Action.AudioVolume != 0.5 {
		t.Errorf("AudioVolume = %v, want 0.5", e.Action.AudioVolume)
	}
}

func TestAutoCloseRequiresLateCancel(t *testing.T) {
	h, _ := newTestHandler(t)
	_, err := h.ScheduleMessage(MessageParams{
		commonParams: commonParams{Start: future(), Flags: AutoClose},
		Text:         "hi",
	})
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
}

func TestAutoCloseWithLateCancel(t *testing.T) {
	h, reg := newTestHandler(t)
	uid, err := h.ScheduleMessage(MessageParams{
		commonParams: commonParams{Start: future(), Flags: AutoClose, LateCancel: 10},
		Text:         "hi",
	})
	if err != nil {
		t.Fatalf("ScheduleMessage: %v", err)
	}
	res, _ := reg.Resource(1)
	e, _ := res.Event(uid, true)
	if !e.AutoClose {
		t.Errorf("AutoClose not set")
	}
}

func TestTriggerAndCancelEnqueue(t *testing.T) {
	h, _ := newTestHandler(t)
	uid, err := h.ScheduleMessage(MessageParams{commonParams: commonParams{Start: future()}, Text: "hi"})
	if err != nil {
		t.Fatalf("ScheduleMessage: %v", err)
	}
	if err := h.TriggerEvent(uid); err != nil {
		t.Fatalf("TriggerEvent: %v", err)
	}
	if err := h.CancelEvent(uid); err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}
	if err := h.TriggerEvent("nonexistent"); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments for unknown identifier, got %v", err)
	}
}

func TestEditEventAndSaveEdit(t *testing.T) {
	h, reg := newTestHandler(t)
	uid, err := h.ScheduleMessage(MessageParams{commonParams: commonParams{Start: future()}, Text: "hi"})
	if err != nil {
		t.Fatalf("ScheduleMessage: %v", err)
	}
	e, err := h.EditEvent(uid)
	if err != nil {
		t.Fatalf("EditEvent: %v", err)
	}
	e.Action.Text = "changed"
	if err := h.SaveEdit(e); err != nil {
		t.Fatalf("SaveEdit: %v", err)
	}
	res, _ := reg.Resource(1)
	stored, _ := res.Event(uid, true)
	if stored.Action.Text != "changed" {
		t.Errorf("Action.Text = %q, want changed", stored.Action.Text)
	}
}

func TestList(t *testing.T) {
	h, _ := newTestHandler(t)
	if _, err := h.ScheduleMessage(MessageParams{commonParams: commonParams{Start: future()}, Text: "one"}); err != nil {
		t.Fatalf("ScheduleMessage: %v", err)
	}
	if _, err := h.ScheduleMessage(MessageParams{commonParams: commonParams{Start: future()}, Text: "two"}); err != nil {
		t.Fatalf("ScheduleMessage: %v", err)
	}
	listing, err := h.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(listing))
	}
}

func TestRecurrenceTuplePropagates(t *testing.T) {
	h, reg := newTestHandler(t)
	uid, err := h.ScheduleMessage(MessageParams{
		commonParams: commonParams{
			Start:      future(),
			Recurrence: RecurrenceSpec{Period: Daily, Interval: 1, Count: 5},
		},
		Text: "daily",
	})
	if err != nil {
		t.Fatalf("ScheduleMessage: %v", err)
	}
	res, _ := reg.Resource(1)
	e, _ := res.Event(uid, true)
	if !e.Recurs() {
		t.Errorf("event should recur")
	}
}

func TestRecurrenceInvalidPeriod(t *testing.T) {
	h, _ := newTestHandler(t)
	_, err := h.ScheduleMessage(MessageParams{
		commonParams: commonParams{Start: future(), Recurrence: RecurrenceSpec{Period: 99}},
		Text:         "x",
	})
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
}
