package session

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liftdisplay/go/internal/display/breaktimer"
	"github.com/mcdev12/liftdisplay/go/internal/display/events"
	"github.com/mcdev12/liftdisplay/go/internal/display/history"
	"github.com/mcdev12/liftdisplay/go/internal/display/overlay"
	"github.com/mcdev12/liftdisplay/go/internal/display/params"
	"github.com/mcdev12/liftdisplay/go/internal/display/schedule"
)

// PageURLKey is the name under which a switchable display's location is kept.
const PageURLKey = "pageURL"

const (
	defaultInboxSize  = 64
	defaultOutboxSize = 32
	recordTimeout     = 2 * time.Second
)

// ErrDetached is returned when a message is sent to a session that has ended.
var ErrDetached = errors.New("display session detached")

// LocationRecorder stores the last known location of a connection.
type LocationRecorder interface {
	Save(ctx context.Context, connectionID, name, location string) error
}

// Options configures a session.
type Options struct {
	ID       string
	Platform string
	Config   *params.Config
	// BaseURL is prefixed to the location when it is recorded.
	BaseURL         string
	Clock           schedule.Clock
	TimerCadence    time.Duration
	OverlayOnRender bool
	OutboxSize      int
	Recorder        LocationRecorder
}

// Session is the single owner of one display's synchronization state. All
// state is mutated from its loop goroutine; everything else talks to it
// through the inbox.
type Session struct {
	id              string
	platform        string
	baseURL         string
	overlayOnRender bool
	recorder        LocationRecorder

	config    *params.Config
	tracker   *history.Tracker
	timer     *breaktimer.Synchronizer
	overlay   *overlay.Overlay
	scheduler *schedule.Scheduler
	title     string

	inbox  chan Msg
	outbox chan Frame
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// New attaches a session and starts its loop. The attach frames (settings,
// theme, location and title) are queued on the outbox before New returns.
func New(parent context.Context, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = defaultOutboxSize
	}
	if opts.Config == nil {
		opts.Config = params.Normalize(params.Navigation{}, params.Defaults{})
	}

	s := &Session{
		id:              opts.ID,
		platform:        opts.Platform,
		baseURL:         opts.BaseURL,
		overlayOnRender: opts.OverlayOnRender,
		recorder:        opts.Recorder,
		config:          opts.Config,
		tracker:         history.NewTracker(opts.Platform),
		inbox:           make(chan Msg, defaultInboxSize),
		outbox:          make(chan Frame, opts.OutboxSize),
		done:            make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}
	s.scheduler = schedule.New(ctx, opts.Clock, func(f schedule.Fired) {
		_ = s.Send(TaskFired{Fired: f})
	})
	s.timer = breaktimer.New(opts.Platform, opts.TimerCadence, s.scheduler)
	s.overlay = overlay.New(s.scheduler)

	s.attach()
	go s.loop()
	return s
}

// ID returns the connection ID of the session.
func (s *Session) ID() string { return s.id }

// Platform returns the platform the session follows.
func (s *Session) Platform() string { return s.platform }

// Outbox returns the frames to render. It is closed when the session ends.
func (s *Session) Outbox() <-chan Frame { return s.outbox }

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Deliver hands a feed event to the session without blocking. It reports
// false when the session has ended or its inbox is full.
func (s *Session) Deliver(ev events.Event) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.inbox <- FromFeed{Event: ev}:
		return true
	case <-s.ctx.Done():
		return false
	default:
		log.Warn().
			Str("connection_id", s.id).
			Str("platform", s.platform).
			Msg("session inbox full, dropping event")
		return false
	}
}

// Send queues msg, waiting for room in the inbox.
func (s *Session) Send(msg Msg) error {
	if s.ctx.Err() != nil {
		return ErrDetached
	}
	select {
	case s.inbox <- msg:
		return nil
	case <-s.ctx.Done():
		return ErrDetached
	}
}

// View returns a copy of the session state.
func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.Send(GetView{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return View{}, ErrDetached
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case FromFeed:
				s.handleEvent(msg.Event)
			case TaskFired:
				s.handleTask(msg.Fired)
			case FromClient:
				s.handleClient(msg.Cmd)
			case GetView:
				msg.Reply <- s.view()
			case Detach:
				s.cancel()
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	s.scheduler.Stop()
	close(s.outbox)
	log.Debug().Str("connection_id", s.id).Str("platform", s.platform).Msg("display session detached")
}

func (s *Session) attach() {
	settings := s.config.Settings()
	s.emit(settingsFrame(settings))
	s.emit(themeFrame(settings.Dark))
	s.publishLocation()
	s.render()
}

func (s *Session) handleEvent(ev events.Event) {
	if ev.Platform() != s.platform {
		return
	}

	switch e := ev.(type) {
	case events.StateChanged:
		if e.Snapshot.State == events.StateBreak {
			if u, ok := s.timer.Resync(e.BreakRemainingMillis); ok {
				s.emit(timerFrame(u))
			}
		}
		if s.tracker.Observe(e.Snapshot) {
			s.render()
		}
	case events.DecisionShown:
		if s.tracker.Observe(e.Snapshot()) {
			s.render()
		}
	case events.TimerCommand:
		if u, ok := s.timer.Handle(e); ok {
			s.emit(timerFrame(u))
		}
	}
}

func (s *Session) handleTask(f schedule.Fired) {
	switch f.Key {
	case breaktimer.TaskKey:
		if u, ok := s.timer.Fire(f.Generation); ok {
			s.emit(timerFrame(u))
		}
	case overlay.TaskKey:
		if s.overlay.Fire(f.Generation) {
			s.emit(Frame{Type: FrameOverlay, Overlay: &OverlayFrame{Open: false}})
		}
	}
}

func (s *Session) handleClient(cmd ClientCommand) {
	switch cmd.Type {
	case CmdSetOption:
		if err := s.config.Set(cmd.Key, cmd.Value); err != nil {
			log.Warn().Err(err).Str("connection_id", s.id).Str("key", cmd.Key).Msg("ignoring option change")
			return
		}
		settings := s.config.Settings()
		s.emit(settingsFrame(settings))
		if cmd.Key == params.KeyDark {
			s.emit(themeFrame(settings.Dark))
		}
		s.publishLocation()
	case CmdOpenOverlay:
		s.openOverlay(cmd.Content)
	case CmdCloseOverlay:
		if s.overlay.Close() {
			s.emit(Frame{Type: FrameOverlay, Overlay: &OverlayFrame{Open: false}})
		}
	default:
		log.Warn().Str("connection_id", s.id).Str("type", cmd.Type).Msg("unknown client command")
	}
}

// render pushes the summary title when it changed.
func (s *Session) render() {
	title, ok := s.tracker.Update()
	if !ok {
		return
	}
	s.title = title
	s.emit(Frame{Type: FrameTitle, Title: title})
	if s.overlayOnRender {
		s.openOverlay(title)
	}
}

func (s *Session) openOverlay(content string) {
	if s.overlay.Open(content) {
		s.emit(Frame{Type: FrameOverlay, Overlay: &OverlayFrame{Open: true, Content: content}})
	}
}

// publishLocation replaces the display location with the normalized one and
// remembers it when the display is switchable.
func (s *Session) publishLocation() {
	location := s.config.Location()
	if s.config.Settings().Public && s.recorder != nil {
		ctx, cancel := context.WithTimeout(s.ctx, recordTimeout)
		if err := s.recorder.Save(ctx, s.id, PageURLKey, s.baseURL+location); err != nil {
			log.Error().Err(err).Str("connection_id", s.id).Msg("failed to record display location")
		}
		cancel()
	}
	s.emit(Frame{Type: FrameLocation, Location: location})
}

// emit queues f without blocking; a full outbox drops the frame.
func (s *Session) emit(f Frame) {
	select {
	case s.outbox <- f:
	default:
		log.Warn().
			Str("connection_id", s.id).
			Str("frame", string(f.Type)).
			Msg("display outbox full, dropping frame")
	}
}

func (s *Session) view() View {
	w := s.tracker.Window()
	return View{
		ID:             s.id,
		Platform:       s.platform,
		Title:          s.title,
		Location:       s.config.Location(),
		Settings:       s.config.Settings(),
		History:        w.Snapshots(),
		Timer:          s.timer.State(),
		OverlayOpen:    s.overlay.IsOpen(),
		OverlayContent: s.overlay.Content(),
		Entries:        s.config.Entries(),
	}
}
