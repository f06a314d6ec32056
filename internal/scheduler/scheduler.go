package scheduler

import (
	"sync"
	"time"

	"kalarmd/internal/calendar"
	"kalarmd/internal/event"
	"kalarmd/internal/resource"
)

// maxTimerDelay caps check_next_due_alarm's re-arm delay at 24 hours
// "to survive clock changes and working-hours boundaries" (§4.8).
const maxTimerDelay = 24 * time.Hour

// Dispatcher is the action-dispatch collaborator consumed from §4.9,
// kept as a local interface (rather than importing internal/dispatch
// directly) so the dependency runs one way: dispatch depends on
// scheduler's types, not the reverse.
type Dispatcher interface {
	// Fire runs every side effect of alarm t on e firing: display,
	// command, email, audio, pre/post-action. It returns nothing;
	// dispatch-level failures are reported through its own channel.
	Fire(e *event.Event, t event.SubAlarmType)
}

// Scheduler is the single-timer app queue (§4.8).
type Scheduler struct {
	mu         sync.Mutex
	queue      []Action
	processing bool

	cal        *calendar.ResourcesCalendar
	reg        *resource.Registry
	dispatcher Dispatcher
	wtc        event.WorkTimeChecker
	now        func() time.Time

	timer  *time.Timer
	stopCh chan struct{}
	doneCh chan struct{}
}

func New(cal *calendar.ResourcesCalendar, reg *resource.Registry, dispatcher Dispatcher, wtc event.WorkTimeChecker) *Scheduler {
	return &Scheduler{
		cal:        cal,
		reg:        reg,
		dispatcher: dispatcher,
		wtc:        wtc,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Enqueue appends a to the action queue and kicks process_queue.
func (s *Scheduler) Enqueue(a Action) {
	s.mu.Lock()
	s.queue = append(s.queue, a)
	s.mu.Unlock()
	s.ProcessQueue()
}

// Start arms the timer and begins the run loop; mirrors the teacher's
// AlertManager.run, generalised from a fixed ticker to a timer re-armed
// to the computed earliest trigger after every firing.
func (s *Scheduler) Start() {
	s.doneCh = make(chan struct{})
	s.CheckNextDueAlarm()
	go s.run()
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	if s.doneCh != nil {
		<-s.doneCh
	}
}

func (s *Scheduler) run() {
	defer close(s.doneCh)
	for {
		s.mu.Lock()
		timer := s.timer
		s.mu.Unlock()
		if timer == nil {
			return
		}
		select {
		case <-timer.C:
			s.Enqueue(Action{Kind: Handle})
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// ProcessQueue is process_queue (§4.8): while processing is false and
// the queue is non-empty, drain it synchronously, then re-arm the timer.
func (s *Scheduler) ProcessQueue() {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return
	}
	s.processing = true
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			break
		}
		a := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.execute(a)
	}

	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()

	s.CheckNextDueAlarm()
}

func (s *Scheduler) execute(a Action) {
	switch a.Kind {
	case Handle:
		s.handleDue()
	case Trigger:
		if e, ok := s.cal.Event(a.Key); ok {
			s.fire(e)
		}
	case Cancel:
		if e, ok := s.cal.Event(a.Key); ok {
			s.cancel(e)
			s.rescheduleAlarm(e)
		}
	case Edit, List:
		// Resolved entirely within internal/request; the scheduler only
		// needs to drain these off the queue so ProcessQueue's FIFO
		// ordering with Handle/Trigger/Cancel is preserved.
	}
}

// handleDue evaluates whatever is currently due, per §4.8's Handle
// contract: if the earliest alarm is not yet due, stop without acting.
func (s *Scheduler) handleDue() {
	e, ok := s.cal.EarliestAlarm()
	if !ok {
		return
	}
	trigger := e.NextTrigger(event.AllTrigger, s.wtc)
	if !trigger.IsValid() || trigger.EffectiveTime().After(s.now()) {
		return
	}
	s.fire(e)
}

// fire evaluates late-cancel, then either cancels or dispatches e,
// always ending with reschedule_alarm (§4.8).
func (s *Scheduler) fire(e *event.Event) {
	trigger := e.NextTrigger(event.MainTrigger, s.wtc)
	now := s.now()

	if e.LateCancelled(now, trigger.EffectiveTime()) {
		s.cancel(e)
		s.rescheduleAlarm(e)
		return
	}

	s.cal.SetAlarmPending(e, true)
	if s.dispatcher != nil {
		alarm, hasAlarm := e.FirstAlarm()
		t := event.MainAlarm
		if hasAlarm {
			t = alarm.Type
		}
		s.dispatcher.Fire(e, t)
	}
	s.cal.SetAlarmPending(e, false)
	s.rescheduleAlarm(e)
}

// cancel marks e cancelled for this occurrence without displaying it
// (late-cancel or an explicit Cancel action); the "last" pointer still
// advances via rescheduleAlarm.
func (s *Scheduler) cancel(e *event.Event) {
	e.RemoveExpiredAlarm(event.MainAlarm)
}

// rescheduleAlarm implements §4.8's reschedule semantics: bump the
// sub-repetition index if one remains; else advance the recurrence, and
// when recurrence is exhausted, archive (or delete) the event.
func (s *Scheduler) rescheduleAlarm(e *event.Event) {
	if e.NextRepeatIndex < e.SubRepeatCount {
		e.NextRepeatIndex++
		return
	}

	occType := e.SetNextOccurrence(s.now().Add(time.Second))
	if occType != event.NoOccurrence {
		return
	}

	res, ok := s.reg.Resource(e.ResourceID)
	if !ok {
		return
	}
	res.DeleteEvent(e)
	s.cal.HandleEventsToBeRemoved(e.ResourceID, []string{e.UID})
	if !e.Archive {
		return
	}

	e.SetCategory(event.Archived)
	if dest, cancelled := s.reg.Destination(resource.Archived, resource.NoDestOption); !cancelled && dest != nil {
		dest.AddEvent(e)
		s.cal.HandleEventsAdded(dest.ID(), []*event.Event{e}, false)
	}
}

// CheckNextDueAlarm re-arms the timer to max(0, trigger-now), capped at
// maxTimerDelay (§4.8). A resource with no due events at all re-arms to
// the cap, so the scheduler keeps waking to notice newly-added events.
func (s *Scheduler) CheckNextDueAlarm() {
	delay := maxTimerDelay
	if e, ok := s.cal.EarliestAlarm(); ok {
		trigger := e.NextTrigger(event.AllTrigger, s.wtc)
		if trigger.IsValid() {
			d := trigger.EffectiveTime().Sub(s.now())
			if d < 0 {
				d = 0
			}
			if d < delay {
				delay = d
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		s.timer = time.NewTimer(delay)
		return
	}
	if !s.timer.Stop() {
		select {
		case <-s.timer.C:
		default:
		}
	}
	s.timer.Reset(delay)
}
