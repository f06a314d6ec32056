// Package dispatch implements the action-dispatch collaborators of §4.9:
// Display/Commander/Mailer/AudioPlayer interfaces plus the default
// desktop/dbus, exec-based, and SMTP implementations, wired together by
// Service into a kalarmd/internal/scheduler.Dispatcher.
//
// Grounded on the teacher's internal/notifications.Notifier (template
// rendering plus a notify-send exec.Command call) for the general shape
// — an interface with one concrete default implementation, configured
// once and handed requests from the scheduler — generalised from a
// single desktop-notification concern into the full display/command/
// mail/audio collaborator set §4.9 names.
package dispatch

import (
	"time"

	"kalarmd/internal/event"
)

// DisplayFlags controls how a Display is opened (e.g. whether a missed
// reminder is being caught up on restart).
type DisplayFlags int

const (
	NoDisplayFlags DisplayFlags = 0
	Reinstated     DisplayFlags = 1 << iota
)

// Display is the open alarm window/notification returned by
// DisplayFactory.Create (§4.9): "show message or file; offers Ack,
// Defer, Edit."
type Display interface {
	Ack() error
	Defer(t time.Time) error
	Edit() error
	Close() error
}

// DisplayFactory creates the UI surface for a Message/File alarm.
type DisplayFactory interface {
	Create(e *event.Event, alarm event.SubAlarm, flags DisplayFlags) (Display, error)
}

// ExitStatus is the Commander on_exit outcome set from §4.9.
type ExitStatus int

const (
	Success ExitStatus = iota
	Died
	Unauthorised
	NotFound
	StartFail
	Inactive
)

func (s ExitStatus) String() string {
	switch s {
	case Success:
		return "Success"
	case Died:
		return "Died"
	case Unauthorised:
		return "Unauthorised"
	case NotFound:
		return "NotFound"
	case StartFail:
		return "StartFail"
	case Inactive:
		return "Inactive"
	default:
		return "Unknown"
	}
}

// CommandFlags controls how Commander.Run spawns the command.
type CommandFlags int

const (
	NoCommandFlags  CommandFlags = 0
	ExecInTerminal  CommandFlags = 1 << iota
	CaptureOutput
)

// Commander spawns a shell command for a Command alarm, a pre-action, or
// a post-action (§4.9): "spawns a shell command; streams stdout/stderr
// to on_output; on_exit(status) receives one of ExitStatus."
type Commander interface {
	Run(e *event.Event, script string, flags CommandFlags, onOutput func(line string), onExit func(ExitStatus))
}

// MailResult is Mailer.Send's success outcome (§4.9); an error return
// carries the Error(msg) case.
type MailResult int

const (
	Queued MailResult = iota
	Sent
)

// Mailer sends an Email alarm (§4.9): "MIME assembly and transport."
type Mailer interface {
	Send(from string, to, bcc []string, subject, body string, attachments []string) (MailResult, error)
}

// AudioPlayer plays the audio sub-alarm accompanying any other alarm
// kind (§4.9): "non-blocking; at most one player thread active
// process-wide (serialised by a mutex)." done is closed when playback
// (including any fade and repeat) finishes or Stop is called.
type AudioPlayer interface {
	Play(url string, volume float64, fadeSeconds int, fadeStartVolume float64, repeat bool) (done <-chan struct{})
	Stop()
}
