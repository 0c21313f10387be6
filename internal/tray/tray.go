// Package tray provides a system tray front-end showing the current
// avoidance command.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/ayusman/avoid/internal/avoidance"
	"github.com/ayusman/avoid/internal/telemetry"
)

// PollInterval is how often the tray checks the publisher for a new command.
const PollInterval = 250 * time.Millisecond

// Tray represents the system tray application.
type Tray struct {
	publisher *telemetry.Publisher
	log       zerolog.Logger

	onToggle    func(enabled bool)
	onDashboard func()
	onQuit      func()
	enabled     bool
	mu          sync.RWMutex

	menuToggle  *systray.MenuItem
	menuCommand *systray.MenuItem
	menuThreat  *systray.MenuItem

	stop chan struct{}
}

// New creates a Tray following p. Detection starts enabled.
func New(p *telemetry.Publisher, log zerolog.Logger) *Tray {
	return &Tray{
		publisher: p,
		log:       log.With().Str("component", "tray").Logger(),
		enabled:   true,
		stop:      make(chan struct{}),
	}
}

// OnToggle sets the callback called when detection is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback called when the dashboard item is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback called when quit is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle(CommandTitle(avoidance.Clear))
	systray.SetTooltip("Obstacle avoidance")

	t.menuToggle = systray.AddMenuItem(toggleTitle(true), "Toggle detection")
	systray.AddSeparator()

	t.menuCommand = systray.AddMenuItem(CommandTitle(avoidance.Clear), "Current command")
	t.menuCommand.Disable()
	t.menuThreat = systray.AddMenuItem(ThreatTitle(telemetry.Snapshot{}), "Selected threat")
	t.menuThreat.Disable()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop avoidance and quit")

	go t.follow()

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	close(t.stop)
}

// follow mirrors the published command into the menu until the tray exits.
func (t *Tray) follow() {
	if t.publisher == nil {
		return
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var last avoidance.Command = -1
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}

		snap := t.publisher.Latest()
		t.menuThreat.SetTitle(ThreatTitle(snap))
		if snap.Command == last {
			continue
		}
		last = snap.Command
		title := CommandTitle(snap.Command)
		systray.SetTitle(title)
		t.menuCommand.SetTitle(title)
	}
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleTitle(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	t.log.Info().Bool("enabled", enabled).Msg("detection toggled")
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// CommandTitle is the text shown for a command.
func CommandTitle(c avoidance.Command) string {
	return "Command: " + c.String()
}

// ThreatTitle describes the selected threat of s.
func ThreatTitle(s telemetry.Snapshot) string {
	if s.Threat == nil {
		return "Threat: none"
	}
	return fmt.Sprintf("Threat: (%d, %d) of %d", s.Threat.X, s.Threat.Y, s.DangerousCount())
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}
