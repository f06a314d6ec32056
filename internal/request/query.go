package request

import (
	"fmt"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/calendar"
	"kalarmd/internal/event"
	"kalarmd/internal/resource"
	"kalarmd/internal/scheduler"
)

// resolve parses identifier's "[rid:]eid" form (§6.3) against the
// registry and returns the event plus its calendar.EventKey.
func (h *Handler) resolve(identifier string) (*event.Event, calendar.EventKey, error) {
	res, eid, ok := h.reg.ResourceForEvent(identifier)
	if !ok {
		return nil, calendar.EventKey{}, fmt.Errorf("%w: no such resource for identifier %q", ErrInvalidArguments, identifier)
	}
	e, ok := res.Event(eid, true)
	if !ok {
		return nil, calendar.EventKey{}, fmt.Errorf("%w: event %q not found", ErrInvalidArguments, identifier)
	}
	return e, calendar.EventKey{ResourceID: res.ID(), UID: eid}, nil
}

// TriggerEvent fires identifier's alarm immediately, bypassing its
// schedule (§6.3's trigger_event). scheduler.Scheduler, not Handler,
// performs the actual dispatch; Handler only enqueues the request so it
// takes its place in the scheduler's FIFO alongside any due alarms already
// queued.
func (h *Handler) TriggerEvent(identifier string) error {
	_, key, err := h.resolve(identifier)
	if err != nil {
		return err
	}
	h.sched.Enqueue(scheduler.Action{Kind: scheduler.Trigger, Key: key, Flags: scheduler.FindByID})
	return nil
}

// CancelEvent removes identifier's pending main trigger (§6.3's
// cancel_event), again by enqueuing onto the scheduler so ordering with
// any in-flight Handle/Trigger actions for the same event is preserved.
func (h *Handler) CancelEvent(identifier string) error {
	_, key, err := h.resolve(identifier)
	if err != nil {
		return err
	}
	h.sched.Enqueue(scheduler.Action{Kind: scheduler.Cancel, Key: key, Flags: scheduler.FindByID})
	return nil
}

// EditEvent returns the live event named by identifier for a front-end
// collaborator to mutate (§6.3's edit_event). The scheduler's Edit case is
// a deliberate no-op (see internal/scheduler): resolving and persisting
// the edit is entirely Handler's responsibility, via SaveEdit.
func (h *Handler) EditEvent(identifier string) (*event.Event, error) {
	e, _, err := h.resolve(identifier)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SaveEdit persists an event previously obtained from EditEvent, after the
// caller has mutated it in place, using the same dest.Save +
// cal.HandleEventsAdded path schedule() uses for newly created events.
func (h *Handler) SaveEdit(e *event.Event) error {
	dest, ok := h.reg.Resource(e.ResourceID)
	if !ok {
		return fmt.Errorf("%w: resource %d for event %q no longer exists", ErrSchedulingFailed, e.ResourceID, e.UID)
	}
	if err := dest.UpdateEvent(e, false); err != nil {
		return fmt.Errorf("%w: %v", ErrSchedulingFailed, err)
	}
	if err := dest.Save(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	h.cal.HandleEventsAdded(dest.ID(), []*event.Event{e}, false)
	if h.sched != nil {
		h.sched.CheckNextDueAlarm()
	}
	return nil
}

// Listing is one row of List's result (§6.3: "list of active alarms' UIDs
// and next triggers").
type Listing struct {
	UID         string
	ResourceID  int64
	NextTrigger alarmtime.DateTime
	Enabled     bool
}

// List enumerates every active alarm across all configured resources
// (§6.3's list).
func (h *Handler) List() ([]Listing, error) {
	var out []Listing
	for _, res := range h.reg.All(resource.Active, resource.NoSort) {
		for _, e := range res.Events() {
			out = append(out, Listing{
				UID:         e.UID,
				ResourceID:  res.ID(),
				NextTrigger: e.NextMain,
				Enabled:     e.Enabled,
			})
		}
	}
	return out, nil
}
