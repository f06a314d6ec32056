package request

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"kalarmd/internal/alarmtime"
	"kalarmd/internal/calendar"
	"kalarmd/internal/event"
	"kalarmd/internal/resource"
	"kalarmd/internal/scheduler"
)

// Handler implements the scheduling request surface (§6.3), the core-side
// counterpart of the teacher's CalWatch.performInitialScan/handleFileChange
// wiring: where the teacher stored events in a bare map, Handler routes
// every mutation through a resource.Registry destination, keeps
// calendar.ResourcesCalendar's index in sync, and wakes the scheduler so a
// newly scheduled or cancelled alarm is picked up immediately rather than
// waiting for the next poll.
type Handler struct {
	reg   *resource.Registry
	cal   *calendar.ResourcesCalendar
	sched *scheduler.Scheduler
}

func New(reg *resource.Registry, cal *calendar.ResourcesCalendar, sched *scheduler.Scheduler) *Handler {
	return &Handler{reg: reg, cal: cal, sched: sched}
}

// commonParams carries the fields every scheduleXxxx call shares (§6.3's
// table), named to match kalarmiface.h's scheduleMessage parameter list.
type commonParams struct {
	Start             time.Time
	StartDateOnly     bool
	LateCancel        int
	Flags             Flags
	ReminderMins      int
	Recurrence        RecurrenceSpec
	SubRepeatInterval int // minutes
	SubRepeatCount    int
}

func (h *Handler) newEvent(action event.Action, p commonParams) (*event.Event, error) {
	if p.Start.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrInvalidArguments)
	}
	start := alarmtime.NewDateOnly(p.Start, p.StartDateOnly)
	e := event.New(uuid.NewString(), start, action)

	rec, err := buildRecurrence(p.Recurrence, p.Start)
	if err != nil {
		return nil, err
	}
	e.SetRecurrence(rec)

	if !e.SetLateCancel(p.LateCancel) {
		return nil, fmt.Errorf("%w: late_cancel is required when auto_close is set", ErrInvalidArguments)
	}
	if p.ReminderMins > 0 {
		e.SetReminder(p.ReminderMins, false)
	}
	if p.SubRepeatCount > 0 {
		if !e.SetRepetition(time.Duration(p.SubRepeatInterval)*time.Minute, p.SubRepeatCount) {
			return nil, fmt.Errorf("%w: sub_repeat_interval is required when sub_repeat_count is set", ErrInvalidArguments)
		}
	}

	e.SetRepeatAtLogin(p.Flags.has(RepeatAtLogin))
	e.Beep = p.Flags.has(Beep)
	e.Speak = p.Flags.has(Speak)
	e.RepeatSound = p.Flags.has(RepeatSound)
	e.ConfirmAck = p.Flags.has(ConfirmAck)
	if p.Flags.has(AutoClose) {
		if !e.SetAutoClose(true) {
			return nil, fmt.Errorf("%w: auto_close requires a non-zero late_cancel", ErrInvalidArguments)
		}
	}
	e.ExecInTerm = p.Flags.has(ExecInTerm)
	e.Enabled = !p.Flags.has(Disabled)

	return e, nil
}

// schedule finalises e: picks a writable destination resource for Active
// alarms, stores it, indexes it in the calendar, and wakes the scheduler
// so its timer accounts for the new trigger (§4.5/§4.6/§4.8).
func (h *Handler) schedule(e *event.Event) (string, error) {
	dest, cancelled := h.reg.Destination(resource.Active, resource.NoResourcePrompt)
	if cancelled || dest == nil {
		return "", fmt.Errorf("%w: no writable resource for active alarms", ErrSchedulingFailed)
	}
	if err := dest.AddEvent(e); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSchedulingFailed, err)
	}
	if err := dest.Save(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	h.cal.HandleEventsAdded(dest.ID(), []*event.Event{e}, false)
	if h.sched != nil {
		h.sched.CheckNextDueAlarm()
	}
	return e.UID, nil
}

// MessageParams is schedule_message's parameter set (§6.3).
type MessageParams struct {
	commonParams
	Text               string
	BgColour, FgColour string
	Font               string
	AudioFile          string
	AudioVolume        float64
}

func (h *Handler) ScheduleMessage(p MessageParams) (string, error) {
	if p.Text == "" {
		return "", fmt.Errorf("%w: message text is required", ErrInvalidArguments)
	}
	e, err := h.newEvent(event.Action{Kind: event.MessageAction, Text: p.Text}, p.commonParams)
	if err != nil {
		return "", err
	}
	e.BgColour, e.FgColour, e.Font = p.BgColour, p.FgColour, p.Font
	if p.AudioFile != "" {
		e.SetAudioFile(p.AudioFile, p.AudioVolume, 0, 0, p.Flags.has(RepeatSound))
	}
	return h.schedule(e)
}

// FileParams is schedule_file's parameter set (§6.3).
type FileParams struct {
	commonParams
	URL         string
	BgColour    string
	AudioFile   string
	AudioVolume float64
}

func (h *Handler) ScheduleFile(p FileParams) (string, error) {
	if p.URL == "" {
		return "", fmt.Errorf("%w: file url is required", ErrInvalidArguments)
	}
	e, err := h.newEvent(event.Action{Kind: event.FileAction, Text: p.URL}, p.commonParams)
	if err != nil {
		return "", err
	}
	e.BgColour = p.BgColour
	if p.AudioFile != "" {
		e.SetAudioFile(p.AudioFile, p.AudioVolume, 0, 0, p.Flags.has(RepeatSound))
	}
	return h.schedule(e)
}

// CommandParams is schedule_command's parameter set (§6.3).
type CommandParams struct {
	commonParams
	Command string
}

func (h *Handler) ScheduleCommand(p CommandParams) (string, error) {
	if p.Command == "" {
		return "", fmt.Errorf("%w: command is required", ErrInvalidArguments)
	}
	e, err := h.newEvent(event.Action{
		Kind:          event.CommandAction,
		Text:          p.Command,
		CommandScript: p.Flags.has(Script),
		ExecInTerm:    p.Flags.has(ExecInTerm),
	}, p.commonParams)
	if err != nil {
		return "", err
	}
	return h.schedule(e)
}

// EmailParams is schedule_email's parameter set (§6.3).
type EmailParams struct {
	commonParams
	FromIdentity string
	To           []string
	Subject      string
	Body         string
	Attachments  []string
}

func (h *Handler) ScheduleEmail(p EmailParams) (string, error) {
	if len(p.To) == 0 {
		return "", fmt.Errorf("%w: at least one recipient is required", ErrInvalidArguments)
	}
	action := event.Action{
		Kind:              event.EmailAction,
		EmailFromIdentity: p.FromIdentity,
		EmailTo:           p.To,
		EmailSubject:      p.Subject,
		EmailBody:         p.Body,
		EmailAttachments:  p.Attachments,
	}
	if p.Flags.has(EmailBcc) && p.FromIdentity != "" {
		action.EmailBcc = []string{p.FromIdentity}
	}
	e, err := h.newEvent(action, p.commonParams)
	if err != nil {
		return "", err
	}
	return h.schedule(e)
}

// AudioParams is schedule_audio's parameter set (§6.3).
type AudioParams struct {
	commonParams
	URL           string
	VolumePercent int
}

func (h *Handler) ScheduleAudio(p AudioParams) (string, error) {
	if p.URL == "" {
		return "", fmt.Errorf("%w: audio url is required", ErrInvalidArguments)
	}
	e, err := h.newEvent(event.Action{
		Kind:        event.AudioAction,
		AudioFile:   p.URL,
		AudioVolume: float64(p.VolumePercent) / 100,
		RepeatSound: p.Flags.has(RepeatSound),
	}, p.commonParams)
	if err != nil {
		return "", err
	}
	return h.schedule(e)
}
