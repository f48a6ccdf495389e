package session

import (
	"github.com/mcdev12/liftdisplay/go/internal/display/breaktimer"
	"github.com/mcdev12/liftdisplay/go/internal/display/events"
	"github.com/mcdev12/liftdisplay/go/internal/display/params"
	"github.com/mcdev12/liftdisplay/go/internal/display/schedule"
)

// Msg is anything the session loop accepts.
type Msg interface{ isSessionMsg() }

// FromFeed carries an event from the competition feed.
type FromFeed struct {
	Event events.Event
}

// TaskFired carries a scheduled task that came due.
type TaskFired struct {
	schedule.Fired
}

// FromClient carries a command sent by the display itself.
type FromClient struct {
	Cmd ClientCommand
}

// GetView asks for a read-only copy of the session state.
type GetView struct {
	Reply chan View
}

// Detach ends the session.
type Detach struct{}

func (FromFeed) isSessionMsg()   {}
func (TaskFired) isSessionMsg()  {}
func (FromClient) isSessionMsg() {}
func (GetView) isSessionMsg()    {}
func (Detach) isSessionMsg()     {}

// Client command types.
const (
	CmdSetOption    = "setOption"
	CmdOpenOverlay  = "openOverlay"
	CmdCloseOverlay = "closeOverlay"
)

// ClientCommand is a request from the display, e.g. a runtime option toggle.
type ClientCommand struct {
	Type    string `json:"type"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
	Content string `json:"content,omitempty"`
}

// View is a snapshot of one session.
type View struct {
	ID             string            `json:"id"`
	Platform       string            `json:"platform"`
	Title          string            `json:"title"`
	Location       string            `json:"location"`
	Settings       params.Settings   `json:"settings"`
	History        []events.Snapshot `json:"history"`
	Timer          breaktimer.State  `json:"timer"`
	OverlayOpen    bool              `json:"overlayOpen"`
	OverlayContent string            `json:"overlayContent,omitempty"`
	Entries        []params.Entry    `json:"entries"`
}
