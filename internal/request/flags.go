// Package request implements the scheduling request surface consumed by a
// CLI or other front-end collaborator (§6.3/§4.11): schedule_message,
// schedule_file, schedule_command, schedule_email, schedule_audio,
// trigger_event, cancel_event, edit_event and list. Grounded on
// original_source/kalarmiface.h's scheduleXxxx DCOP methods for parameter
// shape (the Flags and RecurType enums in particular), translated into Go
// option structs instead of a positional DCOP call, and wired against
// internal/resource.Registry, internal/calendar.ResourcesCalendar and
// internal/scheduler.Scheduler the way the teacher's cmd/calwatch wires its
// storage/alerts/notifications collaborators together.
package request

// Flags is the OR-able event-attribute bitmask from kalarmiface.h's Flags
// enum, kept at the same bit values for documentation parity even though
// nothing here crosses a DCOP/D-Bus wire anymore.
type Flags uint

const (
	RepeatAtLogin Flags = 0x01
	Beep          Flags = 0x02
	ConfirmAck    Flags = 0x04
	RepeatSound   Flags = 0x08
	AutoClose     Flags = 0x10
	EmailBcc      Flags = 0x20
	Disabled      Flags = 0x40
	Script        Flags = 0x80
	ExecInTerm    Flags = 0x100
	Speak         Flags = 0x200
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// PeriodKind is kalarmiface.h's RecurType enum, the unit a tuple-form
// RecurrenceSpec's Interval is measured in.
type PeriodKind int

const (
	Minutely PeriodKind = 1
	Daily    PeriodKind = 2
	Weekly   PeriodKind = 3
	Monthly  PeriodKind = 4
	Yearly   PeriodKind = 5
)

func (p PeriodKind) rruleFreq() (string, bool) {
	switch p {
	case Minutely:
		return "MINUTELY", true
	case Daily:
		return "DAILY", true
	case Weekly:
		return "WEEKLY", true
	case Monthly:
		return "MONTHLY", true
	case Yearly:
		return "YEARLY", true
	default:
		return "", false
	}
}
