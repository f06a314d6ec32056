package dispatch

import (
	"sync"

	"kalarmd/internal/event"
)

// Service wires the four collaborators together into the single entry
// point the scheduler calls (§4.9), implementing
// kalarmd/internal/scheduler.Dispatcher without either package importing
// the other.
type Service struct {
	Displays  DisplayFactory
	Commander Commander
	Mailer    Mailer
	Audio     AudioPlayer

	mu   sync.Mutex
	open map[string]Display // keyed by event UID
}

func NewService(displays DisplayFactory, commander Commander, mailer Mailer, audio AudioPlayer) *Service {
	return &Service{
		Displays:  displays,
		Commander: commander,
		Mailer:    mailer,
		Audio:     audio,
		open:      make(map[string]Display),
	}
}

// Fire runs every side effect of alarm t on e firing (§4.9): pre-action
// first (cancelling the alarm on failure if configured to), then the
// action itself, then any accompanying audio sub-alarm.
func (s *Service) Fire(e *event.Event, t event.SubAlarmType) {
	if e.PreActionText != "" {
		status := s.runSync(e, e.PreActionText, NoCommandFlags)
		if status != Success && e.PreActionCancelOnErr {
			e.SetCommandError(event.CmdErrorPre)
			return
		}
		if status != Success {
			e.SetCommandError(event.CmdErrorPre)
		}
	}

	alarm, _ := e.Alarm(t)
	s.dispatchAction(e, alarm)

	if audioAlarm, ok := e.Alarm(event.AudioAlarm); ok && s.Audio != nil {
		s.Audio.Play(audioAlarm.AudioFile, audioAlarm.AudioVolume, audioAlarm.FadeSeconds, audioAlarm.FadeVolume, audioAlarm.RepeatSound)
	}
}

func (s *Service) dispatchAction(e *event.Event, alarm event.SubAlarm) {
	switch e.Action.Kind {
	case event.MessageAction, event.FileAction:
		s.showDisplay(e, alarm)
	case event.CommandAction:
		flags := NoCommandFlags
		if e.ExecInTerm {
			flags |= ExecInTerminal
		}
		if e.DisplayCommandOutput {
			flags |= CaptureOutput
			s.showDisplay(e, alarm)
		}
		s.runAsync(e, e.Action.Text, flags)
	case event.EmailAction:
		if s.Mailer == nil {
			return
		}
		if _, err := s.Mailer.Send(e.Action.EmailFromIdentity, e.Action.EmailTo, e.Action.EmailBcc, e.Action.EmailSubject, e.Action.EmailBody, e.Action.EmailAttachments); err != nil {
			e.SetCommandError(event.CmdError)
		}
	}
}

func (s *Service) showDisplay(e *event.Event, alarm event.SubAlarm) {
	if s.Displays == nil {
		return
	}
	disp, err := s.Displays.Create(e, alarm, NoDisplayFlags)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.open[e.UID] = disp
	s.mu.Unlock()
}

// Acknowledge closes and forgets the open display for e, running the
// post-action if one is configured (§4.9: "post_action is scheduled when
// the display closes with confirmation").
func (s *Service) Acknowledge(e *event.Event) error {
	s.mu.Lock()
	disp, ok := s.open[e.UID]
	delete(s.open, e.UID)
	s.mu.Unlock()

	if ok {
		if err := disp.Ack(); err != nil {
			return err
		}
	}
	if e.PostActionText != "" {
		s.runAsync(e, e.PostActionText, NoCommandFlags)
	}
	return nil
}

func (s *Service) runAsync(e *event.Event, script string, flags CommandFlags) {
	if s.Commander == nil {
		return
	}
	s.Commander.Run(e, script, flags, nil, func(status ExitStatus) {
		if status != Success {
			e.SetCommandError(event.CmdError)
		}
	})
}

// runSync blocks until script's exit status is known, for the pre-action
// case where the main alarm must not fire before its result is known.
func (s *Service) runSync(e *event.Event, script string, flags CommandFlags) ExitStatus {
	if s.Commander == nil {
		return Success
	}
	result := make(chan ExitStatus, 1)
	s.Commander.Run(e, script, flags, nil, func(status ExitStatus) { result <- status })
	return <-result
}
