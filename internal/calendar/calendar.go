// Package calendar implements the in-memory cross-resource event index
// (ResourcesCalendar, §3.5/§4.6) and the crash-recovery display store
// (DisplayCalendar, §3.6/§4.7). Both generalise the teacher's
// internal/storage.MemoryEventStorage — a single flat map plus a daily
// index with no resource concept — into the two-tier model the spec
// requires: per-resource storage (internal/resource.Resource) backed by
// a registry-wide index kept in sync via explicit reaction methods,
// mirroring original_source/src/resourcescalendar.h's slot-driven design
// without Qt's signal/slot machinery.
package calendar

import (
	"sync"

	"kalarmd/internal/event"
	"kalarmd/internal/resource"
)

// EventKey is the composite (ResourceId, UID) index key from
// original_source/src/eventid.h's EventId: a resource's event UIDs are
// only unique within that resource, so the calendar-wide index needs
// both halves.
type EventKey struct {
	ResourceID int64
	UID        string
}

// Listener receives the calendar's reaction-point notifications
// (resourcescalendar.h's Q_SIGNALS), so a scheduler or dispatch
// collaborator can react without this package importing them. Any field
// may be nil.
type Listener struct {
	EarliestAlarmChanged   func()
	HaveDisabledChanged    func(bool)
	AtLoginEventAdded      func(e *event.Event)
}

// ResourcesCalendar is the in-memory index over every resource's events
// (§3.5): by_uid for direct lookup, by_resource for per-resource
// iteration, earliest_per_resource as a cache the scheduler queries every
// wake-up, pending to suppress an alarm currently being processed from
// re-triggering, and ignore_at_login, set once initial population has
// finished.
type ResourcesCalendar struct {
	mu sync.RWMutex

	byUID      map[EventKey]*event.Event
	byResource map[int64][]*event.Event
	earliest   map[int64]*event.Event
	pending    map[string]bool

	haveDisabled  bool
	ignoreAtLogin bool

	wtc      event.WorkTimeChecker
	listener Listener
}

func NewResourcesCalendar(wtc event.WorkTimeChecker, listener Listener) *ResourcesCalendar {
	return &ResourcesCalendar{
		byUID:      make(map[EventKey]*event.Event),
		byResource: make(map[int64][]*event.Event),
		earliest:   make(map[int64]*event.Event),
		pending:    make(map[string]bool),
		wtc:        wtc,
		listener:   listener,
	}
}

// HandleEventsAdded reacts to Resources' events_added signal for one
// resource (§4.6): indexes each event, recomputes that resource's
// earliest cache, tracks have_disabled, and — outside initial population
// — announces newly-added enabled at-login alarms.
func (c *ResourcesCalendar) HandleEventsAdded(resourceID int64, events []*event.Event, initialPopulation bool) {
	c.mu.Lock()
	for _, e := range events {
		key := EventKey{ResourceID: resourceID, UID: e.UID}
		c.byUID[key] = e
		c.insertByResourceLocked(resourceID, e)

		if e.Category == event.Active && !e.Enabled {
			c.setHaveDisabledLocked(true)
		}
		if !initialPopulation && e.Enabled && e.AtLogin {
			c.notifyAtLogin(e)
		}
	}
	c.recomputeEarliestLocked(resourceID)
	c.mu.Unlock()
}

// insertByResourceLocked replaces an existing entry with the same UID in
// place, or appends a new one (§4.6 point 1).
func (c *ResourcesCalendar) insertByResourceLocked(resourceID int64, e *event.Event) {
	list := c.byResource[resourceID]
	for i, existing := range list {
		if existing.UID == e.UID {
			list[i] = e
			c.byResource[resourceID] = list
			return
		}
	}
	c.byResource[resourceID] = append(list, e)
}

// HandleEventsToBeRemoved drops the named events from both indexes and
// recomputes the earliest cache for resourceID if any of them held that
// slot (§4.6).
func (c *ResourcesCalendar) HandleEventsToBeRemoved(resourceID int64, uids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removedEarliest := false
	for _, uid := range uids {
		key := EventKey{ResourceID: resourceID, UID: uid}
		delete(c.byUID, key)
		delete(c.pending, uid)
		if earliest, ok := c.earliest[resourceID]; ok && earliest.UID == uid {
			removedEarliest = true
		}
		list := c.byResource[resourceID]
		for i, existing := range list {
			if existing.UID == uid {
				c.byResource[resourceID] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	if removedEarliest {
		c.recomputeEarliestLocked(resourceID)
	}
}

// HandleResourcesPopulated flips ignore_at_login to true, permanently,
// marking the end of initial population (§4.6 point on
// resources_populated).
func (c *ResourcesCalendar) HandleResourcesPopulated() {
	c.mu.Lock()
	c.ignoreAtLogin = true
	c.mu.Unlock()
}

// SetAlarmPending marks e as currently being processed (notification
// shown, command running) so it is excluded from EarliestAlarm until the
// caller clears it, preventing the scheduler from re-firing the same
// alarm on every wake-up while it is mid-flight (§4.6).
func (c *ResourcesCalendar) SetAlarmPending(e *event.Event, pending bool) {
	c.mu.Lock()
	if pending {
		c.pending[e.UID] = true
	} else {
		delete(c.pending, e.UID)
	}
	for key := range c.byUID {
		if key.UID == e.UID {
			c.recomputeEarliestLocked(key.ResourceID)
		}
	}
	c.mu.Unlock()
}

// recomputeEarliestLocked rebuilds the earliest-per-resource cache entry
// for resourceID by scanning its event list (§4.6: "O(#events of that
// resource) on recompute").
func (c *ResourcesCalendar) recomputeEarliestLocked(resourceID int64) {
	var best *event.Event
	var bestTime int64
	for _, e := range c.byResource[resourceID] {
		if c.pending[e.UID] || !e.Enabled || e.Category != event.Active {
			continue
		}
		trigger := e.NextTrigger(event.AllTrigger, c.wtc)
		if !trigger.IsValid() {
			continue
		}
		ns := trigger.EffectiveTime().UnixNano()
		if best == nil || ns < bestTime {
			best, bestTime = e, ns
		}
	}
	if best == nil {
		delete(c.earliest, resourceID)
	} else {
		c.earliest[resourceID] = best
	}
	c.notifyEarliestChanged()
}

// EarliestAlarm returns the event with the soonest trigger across every
// resource (§3.5/§4.6): minimum over the per-resource cache.
func (c *ResourcesCalendar) EarliestAlarm() (*event.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var best *event.Event
	var bestTime int64
	for _, e := range c.earliest {
		t := e.NextTrigger(event.AllTrigger, c.wtc)
		if !t.IsValid() {
			continue
		}
		ns := t.EffectiveTime().UnixNano()
		if best == nil || ns < bestTime {
			best, bestTime = e, ns
		}
	}
	return best, best != nil
}

func (c *ResourcesCalendar) HaveDisabledAlarms() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.haveDisabled
}

func (c *ResourcesCalendar) setHaveDisabledLocked(v bool) {
	if c.haveDisabled == v {
		return
	}
	c.haveDisabled = v
	if c.listener.HaveDisabledChanged != nil {
		c.listener.HaveDisabledChanged(v)
	}
}

func (c *ResourcesCalendar) notifyEarliestChanged() {
	if c.listener.EarliestAlarmChanged != nil {
		c.listener.EarliestAlarmChanged()
	}
}

func (c *ResourcesCalendar) notifyAtLogin(e *event.Event) {
	if c.listener.AtLoginEventAdded != nil {
		c.listener.AtLoginEventAdded(e)
	}
}

// Event looks an event up by its composite key.
func (c *ResourcesCalendar) Event(key EventKey) (*event.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byUID[key]
	return e, ok
}

// EventsForResource returns resourceID's indexed events in insertion
// order.
func (c *ResourcesCalendar) EventsForResource(resourceID int64) []*event.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*event.Event, len(c.byResource[resourceID]))
	copy(out, c.byResource[resourceID])
	return out
}

// Rebuild re-derives the whole index from reg's current resource
// contents, for use right after Registry.LoadAll (§4.5's
// resources_populated boundary).
func (c *ResourcesCalendar) Rebuild(reg *resource.Registry) {
	for _, r := range reg.All(resource.EmptyType, resource.NoSort) {
		c.HandleEventsAdded(r.ID(), r.Events(), true)
	}
	c.HandleResourcesPopulated()
}
