package session

import (
	"github.com/mcdev12/liftdisplay/go/internal/display/breaktimer"
	"github.com/mcdev12/liftdisplay/go/internal/display/params"
)

// FrameType identifies what a frame tells the rendering surface.
type FrameType string

const (
	FrameSettings FrameType = "settings"
	FrameTheme    FrameType = "theme"
	FrameLocation FrameType = "location"
	FrameTitle    FrameType = "title"
	FrameTimer    FrameType = "timer"
	FrameOverlay  FrameType = "overlay"
)

// Frame is one instruction for the rendering surface.
type Frame struct {
	Type     FrameType        `json:"type"`
	Title    string           `json:"title,omitempty"`
	Dark     *bool            `json:"dark,omitempty"`
	Location string           `json:"location,omitempty"`
	Settings *params.Settings `json:"settings,omitempty"`
	Timer    *TimerFrame      `json:"timer,omitempty"`
	Overlay  *OverlayFrame    `json:"overlay,omitempty"`
}

// TimerFrame describes a break timer change.
type TimerFrame struct {
	Event           string `json:"event"`
	RemainingMillis *int   `json:"remainingMs,omitempty"`
	Indefinite      bool   `json:"indefinite"`
	Running         bool   `json:"running"`
}

// OverlayFrame opens or closes the overlay.
type OverlayFrame struct {
	Open    bool   `json:"open"`
	Content string `json:"content,omitempty"`
}

func timerFrame(u breaktimer.Update) Frame {
	return Frame{
		Type: FrameTimer,
		Timer: &TimerFrame{
			Event:           u.Kind.String(),
			RemainingMillis: u.State.RemainingMillis,
			Indefinite:      u.State.Indefinite(),
			Running:         u.State.Running,
		},
	}
}

func settingsFrame(s params.Settings) Frame {
	return Frame{Type: FrameSettings, Settings: &s}
}

func themeFrame(dark bool) Frame {
	return Frame{Type: FrameTheme, Dark: &dark}
}
