// Package resource implements one calendar backend (§3.4/§4.4, grounded on
// original_source/src/resources/resource.h) and the process-wide registry
// of them (§4.5, resources.h). It generalises the teacher's path-keyed
// internal/storage.Calendar/MemoryEventStorage (a flat map of events per
// directory, no enabled/standard/compatibility concepts at all) into the
// full Resource model the spec requires.
package resource

import (
	"fmt"
	"sync"

	"kalarmd/internal/event"
)

// AlarmType is a bitmask over the alarm categories a resource can hold
// (§3.4). Named distinctly from event.Category since a resource's
// EnabledTypes/StandardTypes are always a *set* of categories.
type AlarmType int

const (
	Active AlarmType = 1 << iota
	Archived
	Template
	Displaying // the reserved type used only by the display calendar, never user-configurable
)

const EmptyType AlarmType = 0

// AllConfigurable is every alarm type an ordinary resource (not the display
// calendar) can be enabled/standard for.
const AllConfigurable = Active | Archived | Template

func typeFromCategory(c event.Category) AlarmType {
	switch c {
	case event.Active:
		return Active
	case event.Archived:
		return Archived
	case event.Template:
		return Template
	case event.Displaying:
		return Displaying
	default:
		return EmptyType
	}
}

// Storage is the kind of backing store a resource uses (resource.h's
// Storage enum).
type Storage int

const (
	StorageNone Storage = iota
	StorageFile
	StorageDirectory
)

// Compatibility is a resource's on-disk format status relative to the
// current schema (§3.4, resource.h's KACalendar::Compat).
type Compatibility int

const (
	CompatUnknown Compatibility = iota
	CompatCurrent
	CompatConvertible
	CompatConverted
	CompatIncompatible
)

// State is the resource lifecycle state machine from §4.4.
type State int

const (
	StateNew State = iota
	StateLoading
	StatePopulated
	StateFailed
	StateModifying
	StateDeleted
)

// MessageKind classifies a resource_message (§4.4).
type MessageKind int

const (
	Info MessageKind = iota
	Warning
	Error
)

// Backend loads and saves the events of one resource's backing file(s).
// Implemented by internal/parser per SPEC_FULL.md §4.10; kept here as an
// interface so Resource never imports the iCalendar codec directly.
type Backend interface {
	Load(location string) (records []event.Record, formatVersion int, err error)
	Save(location string, records []event.Record) error
}

// CurrentFormatVersion is the schema version this build writes; Resource
// derives Compatibility by comparing a loaded calendar's version against
// it (§6.1's format-version migration).
const CurrentFormatVersion = 3

// MessageFunc receives resource_message notifications (§4.4). The resource
// ID and display name are included so a single listener can serve every
// resource, matching the registry's aggregation role.
type MessageFunc func(id int64, kind MessageKind, message, details string)

// Resource is one calendar backend: file or directory, a subset of alarm
// types enabled, a standard-for-type subset, read-only/compatibility/colour
// attributes, and the events it currently holds (§3.4).
type Resource struct {
	mu sync.RWMutex

	id          int64
	configName  string
	displayName string
	storageKind Storage
	location    string

	enabledTypes  AlarmType
	standardTypes AlarmType
	readOnly      bool
	keepFormat    bool
	bgColour      string
	compat        Compatibility

	state   State
	backend Backend
	onMsg   MessageFunc

	events map[string]*event.Event // keyed by bare UID within this resource
}

// New constructs a Resource in StateNew. backend performs the actual I/O;
// onMsg may be nil.
func New(id int64, configName, displayName string, kind Storage, location string, enabled AlarmType, backend Backend, onMsg MessageFunc) *Resource {
	return &Resource{
		id:           id,
		configName:   configName,
		displayName:  displayName,
		storageKind:  kind,
		location:     location,
		enabledTypes: enabled,
		compat:       CompatUnknown,
		state:        StateNew,
		backend:      backend,
		onMsg:        onMsg,
		events:       make(map[string]*event.Event),
	}
}

func (r *Resource) ID() int64            { return r.id }
func (r *Resource) ConfigName() string   { return r.configName }
func (r *Resource) DisplayName() string  { return r.displayName }
func (r *Resource) Location() string     { return r.location }
func (r *Resource) StorageType() Storage { return r.storageKind }

func (r *Resource) message(kind MessageKind, msg, details string) {
	if r.onMsg != nil {
		r.onMsg(r.id, kind, msg, details)
	}
}

// IsEnabled reports whether the resource is enabled for t, or for any type
// at all when t is EmptyType.
func (r *Resource) IsEnabled(t AlarmType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t == EmptyType {
		return r.enabledTypes != EmptyType
	}
	return r.enabledTypes&t != 0
}

func (r *Resource) EnabledTypes() AlarmType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledTypes
}

// SetEnabled enables or disables t, clearing the standard bit for any type
// becoming disabled (§4.4).
func (r *Resource) SetEnabled(t AlarmType, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enabled {
		r.enabledTypes |= t
		return
	}
	r.enabledTypes &^= t
	r.standardTypes &^= t
}

func (r *Resource) SetEnabledTypes(mask AlarmType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.standardTypes &= mask
	r.enabledTypes = mask
}

func (r *Resource) ReadOnly() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readOnly
}

func (r *Resource) SetReadOnly(ro bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readOnly = ro
}

func (r *Resource) KeepFormat() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keepFormat
}

func (r *Resource) SetKeepFormat(keep bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keepFormat = keep
}

func (r *Resource) BackgroundColour() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bgColour
}

func (r *Resource) SetBackgroundColour(c string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bgColour = c
}

func (r *Resource) Compatibility() Compatibility {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.compat
}

func (r *Resource) IsCompatible() bool { return r.Compatibility() == CompatCurrent }

// WritableStatus reports the 3-way result from resource.h: 1 fully
// writable, 0 writable but the backend is in a convertible old format, -1
// read-only/disabled/incompatible.
func (r *Resource) WritableStatus(t AlarmType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	enabled := t == EmptyType && r.enabledTypes != EmptyType || t != EmptyType && r.enabledTypes&t != 0
	if r.readOnly || !enabled || r.compat == CompatIncompatible || r.compat == CompatUnknown {
		return -1
	}
	if r.compat == CompatConvertible {
		return 0
	}
	return 1
}

func (r *Resource) IsWritable(t AlarmType) bool { return r.WritableStatus(t) >= 0 }

func (r *Resource) ConfigIsStandard(t AlarmType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.standardTypes&t != 0
}

func (r *Resource) ConfigStandardTypes() AlarmType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.standardTypes & r.alarmTypesLocked()
}

// configSetStandard sets or clears the standard bit for t without any
// cross-resource arbitration; callers needing the full invariant (at most
// one standard resource per type) must go through Registry.SetStandard.
func (r *Resource) configSetStandard(t AlarmType, standard bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if standard {
		r.standardTypes |= t
	} else {
		r.standardTypes &^= t
	}
}

// AlarmTypes returns the union of categories actually present among the
// resource's events (§3.4 invariant: alarm_types ⊇ every category it
// contains).
func (r *Resource) AlarmTypes() AlarmType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alarmTypesLocked()
}

func (r *Resource) alarmTypesLocked() AlarmType {
	var types AlarmType
	for _, e := range r.events {
		types |= typeFromCategory(e.Category)
	}
	return types | r.enabledTypes
}

func (r *Resource) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Resource) IsPopulated() bool { return r.State() == StatePopulated }

// Load reads the backing file/folder and parses events (§4.4). A disabled
// resource does nothing and returns nil.
func (r *Resource) Load(force bool) error {
	r.mu.Lock()
	if r.enabledTypes == EmptyType {
		r.mu.Unlock()
		return nil
	}
	if r.state == StatePopulated && !force {
		r.mu.Unlock()
		return nil
	}
	r.state = StateLoading
	backend, location := r.backend, r.location
	r.mu.Unlock()

	records, formatVersion, err := backend.Load(location)
	if err != nil {
		r.mu.Lock()
		r.state = StateFailed
		r.mu.Unlock()
		r.message(Error, fmt.Sprintf("failed to load %s", location), err.Error())
		return fmt.Errorf("resource: load %s: %w", location, err)
	}

	events := make(map[string]*event.Event, len(records))
	for _, rec := range records {
		rec.ResourceID = r.id
		e, err := event.FromStore(rec)
		if err != nil {
			r.message(Warning, "skipped invalid event", err.Error())
			continue
		}
		events[e.UID] = e
	}

	compat := CompatCurrent
	switch {
	case formatVersion > CurrentFormatVersion:
		compat = CompatIncompatible
	case formatVersion < CurrentFormatVersion:
		compat = CompatConvertible
	}

	r.mu.Lock()
	r.events = events
	r.compat = compat
	r.state = StatePopulated
	r.mu.Unlock()
	return nil
}

func (r *Resource) Reload(discardMods bool) error { return r.Load(true) }

// Save writes events back (§4.4). No-op if disabled; fails if read-only.
func (r *Resource) Save() error {
	r.mu.Lock()
	if r.enabledTypes == EmptyType {
		r.mu.Unlock()
		return nil
	}
	if r.readOnly {
		r.mu.Unlock()
		return fmt.Errorf("resource: %s is read-only", r.location)
	}
	records := make([]event.Record, 0, len(r.events))
	for _, e := range r.events {
		records = append(records, e.ToStore())
	}
	backend, location := r.backend, r.location
	r.state = StateModifying
	r.mu.Unlock()

	if err := backend.Save(location, records); err != nil {
		r.mu.Lock()
		r.state = StateFailed
		r.mu.Unlock()
		r.message(Error, fmt.Sprintf("failed to save %s", location), err.Error())
		return fmt.Errorf("resource: save %s: %w", location, err)
	}

	r.mu.Lock()
	r.state = StatePopulated
	r.mu.Unlock()
	return nil
}

func (r *Resource) Events() []*event.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*event.Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e)
	}
	return out
}

func (r *Resource) Event(uid string, allowDisabled bool) (*event.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[uid]
	if !ok {
		return nil, false
	}
	if !allowDisabled && r.enabledTypes&typeFromCategory(e.Category) == 0 {
		return nil, false
	}
	return e, true
}

func (r *Resource) Contains(uid string) bool {
	_, ok := r.Event(uid, false)
	return ok
}

// AddEvent adds e, failing if the resource is not writable for e's
// category (§4.4).
func (r *Resource) AddEvent(e *event.Event) error {
	if !r.IsWritable(typeFromCategory(e.Category)) {
		return fmt.Errorf("resource: %s not writable for %v", r.location, e.Category)
	}
	r.mu.Lock()
	e.ResourceID = r.id
	r.events[e.UID] = e
	r.mu.Unlock()
	return nil
}

// UpdateEvent replaces the stored event with the same UID. saveIfReadOnly
// is accepted for parity with resource.h but this in-memory Resource never
// persists implicitly; callers call Save explicitly.
func (r *Resource) UpdateEvent(e *event.Event, saveIfReadOnly bool) error {
	if !r.IsWritable(typeFromCategory(e.Category)) && !(r.readOnly && saveIfReadOnly) {
		return fmt.Errorf("resource: %s not writable for %v", r.location, e.Category)
	}
	r.mu.Lock()
	r.events[e.UID] = e
	r.mu.Unlock()
	return nil
}

func (r *Resource) DeleteEvent(e *event.Event) error {
	if !r.IsWritable(typeFromCategory(e.Category)) {
		return fmt.Errorf("resource: %s not writable for %v", r.location, e.Category)
	}
	r.mu.Lock()
	delete(r.events, e.UID)
	r.mu.Unlock()
	return nil
}

// AdjustStartOfDay is called when the configured start-of-day time changes.
// Its body is empty: alarmtime.StartOfDay is global, so date-only events
// pick up the new value when their times are next evaluated, and no
// event's NextMain is re-derived here. It is kept as a resource-level hook
// matching resource.h's adjustStartOfDay for call-site parity.
func (r *Resource) AdjustStartOfDay() {}
