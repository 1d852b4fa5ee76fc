package notify

import (
	"sync"

	"github.com/gen2brain/beeep"
)

// AppName is shown as the sender of desktop notifications.
const AppName = "medtracker"

// BeepSound plays the system beep.
type BeepSound struct {
	// Frequency in Hz; zero uses beeep's default.
	Frequency float64

	// DurationMs; zero uses beeep's default.
	DurationMs int
}

// Play implements SoundPlayer.
func (b BeepSound) Play() error {
	freq := b.Frequency
	if freq <= 0 {
		freq = beeep.DefaultFreq
	}
	dur := b.DurationMs
	if dur <= 0 {
		dur = beeep.DefaultDuration
	}
	return beeep.Beep(freq, dur)
}

// DesktopPopup shows notifications through the OS notification service.
type DesktopPopup struct {
	// Icon is an optional path to an icon file.
	Icon string
}

var setAppName sync.Once

// Notify implements DesktopNotifier.
func (d DesktopPopup) Notify(title, message string) error {
	setAppName.Do(func() { beeep.AppName = AppName })
	return beeep.Notify(title, message, d.Icon)
}

// NopSound is a SoundPlayer for hosts without audio.
type NopSound struct{}

// Play implements SoundPlayer.
func (NopSound) Play() error { return nil }

// NopDesktop is a DesktopNotifier that shows nothing.
type NopDesktop struct{}

// Notify implements DesktopNotifier.
func (NopDesktop) Notify(string, string) error { return nil }
