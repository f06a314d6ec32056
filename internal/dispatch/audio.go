package dispatch

import (
	"os/exec"
	"sync"
)

// ExecAudioPlayer plays an audio sub-alarm by shelling out to a system
// player, the same exec.Command idiom as ExecCommander (and the
// teacher's own sendDesktopNotification). §4.9 requires "at most one
// player thread active process-wide (serialised by a mutex)" — a stdlib
// mutex and a single tracked *exec.Cmd give exactly that, without a
// dedicated audio-decode dependency (none appears anywhere in the
// retrieval pack).
type ExecAudioPlayer struct {
	Player string // e.g. "paplay"; defaults to "paplay" when empty

	mu      sync.Mutex
	current *exec.Cmd
}

func (p *ExecAudioPlayer) player() string {
	if p.Player != "" {
		return p.Player
	}
	return "paplay"
}

// Play starts playback, stopping any currently-playing sound first
// (only one player thread process-wide). The player binary is given only
// the URL: volume, fadeSeconds and fadeStartVolume are accepted but not
// passed on, so the sound plays at the player's own default volume with
// no fade.
func (p *ExecAudioPlayer) Play(url string, volume float64, fadeSeconds int, fadeStartVolume float64, repeat bool) <-chan struct{} {
	p.Stop()

	done := make(chan struct{})
	p.mu.Lock()
	cmd := exec.Command(p.player(), url)
	p.current = cmd
	p.mu.Unlock()

	go func() {
		defer close(done)
		for {
			if err := cmd.Run(); err != nil {
				return
			}
			p.mu.Lock()
			stillCurrent := p.current == cmd
			p.mu.Unlock()
			if !repeat || !stillCurrent {
				return
			}
			cmd = exec.Command(p.player(), url)
			p.mu.Lock()
			p.current = cmd
			p.mu.Unlock()
		}
	}()
	return done
}

// Stop kills the currently-playing sound, if any; called by the Silence
// button and display-close (§5's cancellation rules).
func (p *ExecAudioPlayer) Stop() {
	p.mu.Lock()
	cmd := p.current
	p.current = nil
	p.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
}
