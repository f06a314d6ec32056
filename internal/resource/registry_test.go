package resource

import (
	"errors"
	"testing"
	"time"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/event"
)

type memBackend struct {
	records map[string][]event.Record
	failLoad bool
}

func (b *memBackend) Load(location string) ([]event.Record, int, error) {
	if b.failLoad {
		return nil, 0, errors.New("boom")
	}
	return b.records[location], CurrentFormatVersion, nil
}

func (b *memBackend) Save(location string, records []event.Record) error {
	if b.records == nil {
		b.records = make(map[string][]event.Record)
	}
	b.records[location] = records
	return nil
}

func newTestEvent(uid string) *event.Event {
	start := alarmtime.New(mustParse("2025-06-01T09:00:00Z"))
	return event.New(uid, start, event.Action{Kind: event.MessageAction, Text: "hi"})
}

func mustParse(s string) time.Time {
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestWritableStatus(t *testing.T) {
	backend := &memBackend{}
	r := New(1, "active", "Active", StorageFile, "/tmp/active.ics", Active, backend, nil)
	if got := r.WritableStatus(Active); got != -1 {
		t.Fatalf("new resource with no events loaded (compat unknown) should report -1, got %d", got)
	}
	if err := r.Load(true); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := r.WritableStatus(Active); got != 1 {
		t.Errorf("populated, enabled, writable resource should report 1, got %d", got)
	}
	r.SetReadOnly(true)
	if got := r.WritableStatus(Active); got != -1 {
		t.Errorf("read-only resource should report -1, got %d", got)
	}
}

func TestRegistryDestinationPrefersStandard(t *testing.T) {
	reg := NewRegistry(nil)
	b := &memBackend{}
	r1 := New(0, "a", "A", StorageFile, "/tmp/a.ics", Active, b, nil)
	r2 := New(0, "b", "B", StorageFile, "/tmp/b.ics", Active, b, nil)
	reg.Add(r1)
	reg.Add(r2)
	r1.Load(true)
	r2.Load(true)

	if err := reg.SetStandard(r2, Active, true); err != nil {
		t.Fatalf("SetStandard: %v", err)
	}
	dest, cancelled := reg.Destination(Active, NoDestOption)
	if cancelled || dest != r2 {
		t.Errorf("Destination should pick the standard resource r2, got %v cancelled=%v", dest, cancelled)
	}

	if err := reg.SetStandard(r1, Active, true); err != nil {
		t.Fatalf("SetStandard r1: %v", err)
	}
	if reg.IsStandard(r2, Active) {
		t.Errorf("r2 should no longer be standard after r1 claims it")
	}
}

func TestRegistryDestinationNoCandidates(t *testing.T) {
	reg := NewRegistry(nil)
	dest, cancelled := reg.Destination(Active, NoDestOption)
	if dest != nil || cancelled {
		t.Errorf("Destination with no candidates should return nil, false; got %v %v", dest, cancelled)
	}
}

func TestResourceForEventParsesConfigNamePrefix(t *testing.T) {
	reg := NewRegistry(nil)
	b := &memBackend{records: map[string][]event.Record{
		"/tmp/a.ics": {newTestEvent("evt-1").ToStore()},
	}}
	r1 := New(0, "home", "Home", StorageFile, "/tmp/a.ics", Active, b, nil)
	reg.Add(r1)
	if err := r1.Load(true); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, eid, ok := reg.ResourceForEvent("home:evt-1")
	if !ok || got != r1 || eid != "evt-1" {
		t.Errorf("ResourceForEvent(home:evt-1) = %v,%v,%v", got, eid, ok)
	}

	got2, eid2, ok2 := reg.ResourceForEvent("evt-1")
	if !ok2 || got2 != r1 || eid2 != "evt-1" {
		t.Errorf("ResourceForEvent(evt-1) without prefix = %v,%v,%v", got2, eid2, ok2)
	}
}
