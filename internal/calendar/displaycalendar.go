package calendar

import (
	"fmt"
	"sync"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/event"
	"kalarmd/internal/resource"
)

// DisplayCalendar is the crash-recovery store from §3.6/§4.7: a
// standalone file holding a displaying-copy of every event whose display
// is currently open. If the process dies mid-display, the next startup
// re-raises everything still in this file.
type DisplayCalendar struct {
	mu sync.Mutex

	location string
	backend  resource.Backend // reused: Load/Save over []event.Record is backend-agnostic
	showing  map[string]*event.Event // keyed by the displaying copy's own UID
}

func NewDisplayCalendar(location string, backend resource.Backend) *DisplayCalendar {
	return &DisplayCalendar{
		location: location,
		backend:  backend,
		showing:  make(map[string]*event.Event),
	}
}

// Open reads the backing file. A load error is treated as an empty
// calendar rather than a fatal error, since a corrupt or absent display
// file must never block startup. No file is created here, and the stored
// format version is not checked or upgraded.
func (d *DisplayCalendar) Open() error {
	records, _, err := d.backend.Load(d.location)
	if err != nil {
		d.mu.Lock()
		d.showing = make(map[string]*event.Event)
		d.mu.Unlock()
		return nil
	}
	showing := make(map[string]*event.Event, len(records))
	for _, rec := range records {
		e, err := event.FromStore(rec)
		if err != nil {
			continue
		}
		showing[e.UID] = e
	}
	d.mu.Lock()
	d.showing = showing
	d.mu.Unlock()
	return nil
}

// Show clones original, marks the clone as displaying sub-alarm subType
// (§4.3's set_displaying), records it, and persists the calendar so a
// crash mid-display can still recover it.
func (d *DisplayCalendar) Show(original *event.Event, subType event.SubAlarmType, when alarmtime.DateTime, showEdit, showDefer bool) (*event.Event, error) {
	clone := original.Clone()
	clone.SetDisplaying(original, subType, original.ResourceID, when, showEdit, showDefer)

	d.mu.Lock()
	d.showing[clone.UID] = clone
	d.mu.Unlock()

	if err := d.persist(); err != nil {
		return nil, err
	}
	return clone, nil
}

// Acknowledge removes a displaying copy — called on user close, auto-
// close, or deferral commit (§4.7) — and reports the bookkeeping needed
// to restore the original event's state in its home resource.
func (d *DisplayCalendar) Acknowledge(uid string) (resourceID int64, showEdit, showDefer bool, err error) {
	d.mu.Lock()
	clone, ok := d.showing[uid]
	if ok {
		delete(d.showing, uid)
	}
	d.mu.Unlock()
	if !ok {
		return 0, false, false, fmt.Errorf("calendar: %s is not currently displaying", uid)
	}
	if err := d.persist(); err != nil {
		return 0, false, false, err
	}
	resID, showEditF, showDeferF, _ := clone.ReinstateFromDisplaying()
	return resID, showEditF, showDeferF, nil
}

// ReinstateAll returns every displaying copy currently recorded, for the
// startup re-raise scan described in §4.7: the caller re-fetches each
// original from its resource (or Archived, if it was archived meanwhile)
// and re-shows it.
func (d *DisplayCalendar) ReinstateAll() []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*event.Event, 0, len(d.showing))
	for _, e := range d.showing {
		out = append(out, e)
	}
	return out
}

func (d *DisplayCalendar) Contains(uid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.showing[uid]
	return ok
}

func (d *DisplayCalendar) persist() error {
	d.mu.Lock()
	records := make([]event.Record, 0, len(d.showing))
	for _, e := range d.showing {
		records = append(records, e.ToStore())
	}
	d.mu.Unlock()
	return d.backend.Save(d.location, records)
}
