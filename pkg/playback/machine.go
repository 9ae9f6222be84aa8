// Package playback implements the playback state machine that
// reconciles noisy host-player callbacks into a clean, causally
// ordered sequence of semantic events.
//
// The machine is single-threaded: all triggers must be invoked from
// one goroutine (normally the monitor loop). Triggers never return
// errors and never panic; impossible or redundant transitions are
// absorbed as silent no-ops so the instrumentation can never take the
// host application down with it.
package playback

import (
	"log/slog"
	"time"

	"github.com/litix/data-go/pkg/event"
	"github.com/litix/data-go/pkg/model"
)

// SeekDebounceWindow is the minimum time that must elapse after a
// first-frame render before a polled position update may conclude a
// seek. It absorbs the host player reporting the settled position a
// few milliseconds ahead of the corresponding frame-rendered signal.
const SeekDebounceWindow = 50 * time.Millisecond

// Machine owns the playback state and all transition guards for one
// view session. Construct with NewMachine; mutate only through the
// trigger methods.
type Machine struct {
	state State
	sink  event.Sink

	seekingInProgress    bool
	firstFrameReceived   bool
	firstFrameRenderedAt time.Time

	playEventsSent  int
	pauseEventsSent int
	eventsSent      int

	mimeType                string
	sourceWidth             int
	sourceHeight            int
	sourceAdvertisedBitrate int64
	sourceFramerate         float64
	sourceDurationMillis    int64

	playheadMillis int64

	logger *slog.Logger
	now    func() time.Time
}

// NewMachine creates a state machine that reports events to sink.
func NewMachine(sink event.Sink, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		state:  StateInit,
		sink:   sink,
		logger: logger.With("component", "playback_machine"),
		now:    time.Now,
	}
}

// State returns the current playback state.
func (m *Machine) State() State { return m.state }

// SeekInProgress reports whether a seek has started and not yet resolved.
func (m *Machine) SeekInProgress() bool { return m.seekingInProgress }

// EventsSent returns how many events the machine has dispatched.
func (m *Machine) EventsSent() int { return m.eventsSent }

// Release detaches the event sink. Every trigger called afterwards is
// a pure no-op; the machine never reattaches.
func (m *Machine) Release() {
	m.sink = nil
}

func (m *Machine) released() bool { return m.sink == nil }

// Reset clears state and guards for a fresh view. Source metadata is
// kept; it still describes the loaded media.
func (m *Machine) Reset() {
	if m.released() {
		return
	}
	m.state = StateInit
	m.seekingInProgress = false
	m.firstFrameReceived = false
	m.firstFrameRenderedAt = time.Time{}
	m.playEventsSent = 0
	m.pauseEventsSent = 0
	m.eventsSent = 0
	m.playheadMillis = 0
}

// Buffering reports that the player entered a buffering state.
// Buffering while PLAYING is a rebuffer; buffering during a seek or
// while settled after one is absorbed.
func (m *Machine) Buffering() {
	if m.released() {
		return
	}
	if m.state == StateRebuffering || m.seekingInProgress || m.state == StateSeeked {
		return
	}
	if m.state == StatePlaying {
		m.RebufferingStarted()
		return
	}
	m.state = StateBuffering
	m.dispatch(&event.Event{Type: event.TypeTimeUpdate})
}

// Play reports intent to play. Duplicate play chatter arriving while
// rebuffering or around a seek is suppressed, except that the first
// play of a view is always reported so startup is never lost.
func (m *Machine) Play() {
	if m.released() {
		return
	}
	if (m.state == StateRebuffering || m.seekingInProgress || m.state == StateSeeked) &&
		m.playEventsSent > 0 {
		return
	}
	m.state = StatePlay
	m.playEventsSent++
	m.dispatch(&event.Event{Type: event.TypePlay})
}

// Playing reports that playback is actually advancing. While a seek is
// in progress the signal is ignored; the seek resolution path re-enters
// here. A play is synthesized first when coming out of a pause or an
// ad break so that playing always observably follows play.
func (m *Machine) Playing() {
	if m.released() || m.seekingInProgress {
		return
	}
	if m.state == StatePaused || m.state == StateFinishedPlayingAds {
		m.Play()
	}
	if m.state == StateRebuffering {
		m.RebufferingEnded()
	}
	m.state = StatePlaying
	m.dispatch(&event.Event{Type: event.TypePlaying})
}

// Pause reports a pause. A pause arriving mid-seek means the seek
// settled while paused and is routed to Seeked(false); a duplicate
// pause after a settled seek is suppressed.
func (m *Machine) Pause() {
	if m.released() {
		return
	}
	if m.state == StateSeeked && m.pauseEventsSent > 0 {
		return
	}
	if m.state == StatePaused {
		return
	}
	if m.state == StateRebuffering {
		m.RebufferingEnded()
	}
	if m.seekingInProgress {
		m.Seeked(false)
		return
	}
	m.state = StatePaused
	m.pauseEventsSent++
	m.dispatch(&event.Event{Type: event.TypePause})
}

// RebufferingStarted marks the beginning of a stall during active
// playback. Reached from Buffering when the prior state was PLAYING.
func (m *Machine) RebufferingStarted() {
	if m.released() {
		return
	}
	m.state = StateRebuffering
	m.dispatch(&event.Event{Type: event.TypeRebufferStart})
}

// RebufferingEnded closes a stall. It does not reassign state; the
// caller follows up with the real post-stall transition.
func (m *Machine) RebufferingEnded() {
	if m.released() {
		return
	}
	m.dispatch(&event.Event{Type: event.TypeRebufferEnd})
}

// Seeking reports the start of a seek. A seek out of active playback
// is reported as pause-then-seeking; the frame-render debounce anchor
// is reset so only frames rendered after this point can conclude the
// seek.
func (m *Machine) Seeking() {
	if m.released() {
		return
	}
	if m.state == StatePlaying {
		m.pauseEventsSent++
		m.dispatch(&event.Event{Type: event.TypePause})
	}
	m.state = StateSeeking
	m.seekingInProgress = true
	m.firstFrameRenderedAt = time.Time{}
	m.dispatch(&event.Event{Type: event.TypeSeeking})
	m.firstFrameReceived = false
}

// Seeked resolves a seek, if one is in progress.
//
// With timeUpdate true (a polled position sample) the seek concludes
// only once a first frame has rendered and the debounce window has
// elapsed since, then playback is considered resumed. With timeUpdate
// false (explicit pause-while-seeking) the seek concludes immediately
// into the SEEKED state.
func (m *Machine) Seeked(timeUpdate bool) {
	if m.released() || !m.seekingInProgress {
		return
	}

	if timeUpdate {
		if !m.firstFrameReceived {
			return
		}
		if m.now().Sub(m.firstFrameRenderedAt) < SeekDebounceWindow {
			return
		}
		m.seekingInProgress = false
		m.dispatch(&event.Event{Type: event.TypeSeeked})
		m.Playing()
		return
	}

	m.seekingInProgress = false
	m.dispatch(&event.Event{Type: event.TypeSeeked})
	m.state = StateSeeked
}

// FirstFrameRendered records the debounce anchor used by Seeked(true).
func (m *Machine) FirstFrameRendered() {
	if m.released() {
		return
	}
	m.firstFrameReceived = true
	m.firstFrameRenderedAt = m.now()
}

// TimeUpdate records a playhead position sample and reports it.
func (m *Machine) TimeUpdate(playheadMillis int64) {
	if m.released() {
		return
	}
	m.playheadMillis = playheadMillis
	m.dispatch(&event.Event{Type: event.TypeTimeUpdate})
}

// Ended reports end of the presentation. A synthetic pause always
// precedes the ended event, even when already paused.
func (m *Machine) Ended() {
	if m.released() {
		return
	}
	m.pauseEventsSent++
	m.dispatch(&event.Event{Type: event.TypePause})
	m.dispatch(&event.Event{Type: event.TypeEnded})
	m.state = StateEnded
}

// HandleRenditionChange records the newly active rendition and reports
// it. Framerate is taken only when positive; sentinel values from the
// host player are ignored.
func (m *Machine) HandleRenditionChange(r *model.Rendition) {
	if m.released() || r == nil {
		return
	}
	m.sourceAdvertisedBitrate = r.Bitrate
	if r.Framerate > 0 {
		m.sourceFramerate = r.Framerate
	}
	m.sourceWidth = r.Width
	m.sourceHeight = r.Height
	rc := *r
	m.dispatch(&event.Event{Type: event.TypeRenditionChange, Rendition: &rc})
}

// SetSourceMetadata records last-known media properties used when
// constructing event payloads.
func (m *Machine) SetSourceMetadata(mimeType string, durationMillis int64) {
	if m.released() {
		return
	}
	if mimeType != "" {
		m.mimeType = mimeType
	}
	if durationMillis > 0 {
		m.sourceDurationMillis = durationMillis
	}
}

// InternalError reports a playback error as an error event. Typed
// player errors keep their classification; anything else is wrapped
// with the unknown sentinel code.
func (m *Machine) InternalError(err error) {
	if m.released() || err == nil {
		return
	}
	info := ClassifyError(CategoryUnknown, err)
	m.state = StateError
	m.dispatch(&event.Event{Type: event.TypeError, Error: info})
}

// Error reports an application-described problem not detected by the
// player itself. Same event shape as InternalError.
func (m *Machine) Error(code model.ErrorCode, text string) {
	if m.released() {
		return
	}
	m.state = StateError
	m.dispatch(&event.Event{Type: event.TypeError, Error: &model.ErrorInfo{Code: code, Text: text}})
}

// AdBreakStarted reports the start of an ad break.
func (m *Machine) AdBreakStarted(ad *model.AdInfo) {
	if m.released() {
		return
	}
	m.state = StatePlayingAds
	m.dispatch(&event.Event{Type: event.TypeAdBreakStart, Ad: ad})
}

// AdBreakEnded reports the end of an ad break. The next Playing
// synthesizes a play, the same as resuming from a pause.
func (m *Machine) AdBreakEnded(ad *model.AdInfo) {
	if m.released() {
		return
	}
	m.state = StateFinishedPlayingAds
	m.dispatch(&event.Event{Type: event.TypeAdBreakEnd, Ad: ad})
}

// AdEvent forwards a non-state-affecting ad lifecycle signal 1:1.
// Non-ad event types are ignored.
func (m *Machine) AdEvent(t event.Type, ad *model.AdInfo) {
	if m.released() || !t.IsAd() {
		return
	}
	m.dispatch(&event.Event{Type: t, Ad: ad})
}

func (m *Machine) dispatch(e *event.Event) {
	if m.sink == nil {
		return
	}
	e.Time = m.now()
	e.PlayheadMillis = m.playheadMillis
	m.eventsSent++
	m.sink.Dispatch(e)
	m.logger.Debug("event dispatched",
		"event", string(e.Type),
		"state", m.state.String())
}
