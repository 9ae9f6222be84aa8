// Package monitor owns one view session: it serializes host-adapter
// signals and position-poller ticks onto a single goroutine that
// drives the playback machine and the bandwidth dispatcher, keeping
// both strictly single-writer.
package monitor

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/litix/data-go/pkg/bandwidth"
	"github.com/litix/data-go/pkg/event"
	"github.com/litix/data-go/pkg/hlstags"
	"github.com/litix/data-go/pkg/model"
	"github.com/litix/data-go/pkg/playback"
)

// DefaultPositionPollInterval is the position sampling period.
const DefaultPositionPollInterval = 150 * time.Millisecond

// DefaultSignalBuffer is the depth of the signal channel. Adapter
// callbacks block once it fills rather than dropping signals.
const DefaultSignalBuffer = 256

// PositionReader samples the current playhead position. It is called
// from the monitor goroutine's ticker and must be safe to call from
// there; ok is false when no position is available yet.
type PositionReader func() (playheadMillis int64, ok bool)

// Config holds monitor options.
type Config struct {
	// PositionPollInterval overrides the position sampling period.
	PositionPollInterval time.Duration
	// PositionReader supplies playhead samples. Optional; without it no
	// polling runs and Seeked(true) resolution relies on explicit signals.
	PositionReader PositionReader
	// DeviceID is attached to the viewstart event.
	DeviceID string
	// ViewerData is extra metadata attached to the viewstart event.
	ViewerData map[string]string
}

// Monitor is the adapter-facing surface of the SDK core. All exported
// signal methods marshal onto the internal loop and return
// immediately; they are safe to call from any goroutine and become
// no-ops once the monitor is stopped.
type Monitor struct {
	cfg        Config
	bus        *event.Bus
	machine    *playback.Machine
	dispatcher *bandwidth.Dispatcher
	tags       hlstags.Tracker
	viewID     string
	logger     *slog.Logger

	signals chan func()
	running atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// New creates a monitor publishing to bus.
func New(bus *event.Bus, cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PositionPollInterval <= 0 {
		cfg.PositionPollInterval = DefaultPositionPollInterval
	}
	m := &Monitor{
		cfg:     cfg,
		bus:     bus,
		viewID:  newViewID(),
		logger:  logger.With("component", "monitor"),
		signals: make(chan func(), DefaultSignalBuffer),
		done:    make(chan struct{}),
	}
	// Stamp the view ID on everything the core emits.
	sink := event.SinkFunc(func(e *event.Event) {
		e.ViewID = m.viewID
		bus.Dispatch(e)
	})
	m.machine = playback.NewMachine(sink, logger)
	m.dispatcher = bandwidth.NewDispatcher(sink, logger)
	return m
}

// ViewID returns the identifier of the current view session.
func (m *Monitor) ViewID() string { return m.viewID }

// Machine exposes the underlying state machine for inspection.
func (m *Monitor) Machine() *playback.Machine { return m.machine }

// Dispatcher exposes the underlying bandwidth dispatcher.
func (m *Monitor) Dispatcher() *bandwidth.Dispatcher { return m.dispatcher }

// Start launches the monitor loop, emits viewstart, and begins
// position polling when a reader is configured.
func (m *Monitor) Start(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)

	go m.run(ctx)

	viewer := map[string]string{}
	for k, v := range m.cfg.ViewerData {
		viewer[k] = v
	}
	if m.cfg.DeviceID != "" {
		viewer["device_id"] = m.cfg.DeviceID
	}
	m.send(func() {
		m.bus.Dispatch(&event.Event{
			Type:       event.TypeViewStart,
			ViewID:     m.viewID,
			ViewerData: viewer,
		})
	})
}

// Stop emits viewend, releases the machine and dispatcher, and stops
// the loop. Signals arriving afterwards are discarded.
func (m *Monitor) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	m.send(func() {
		m.bus.Dispatch(&event.Event{Type: event.TypeViewEnd, ViewID: m.viewID})
		m.machine.Release()
		m.dispatcher.Release()
	})
	m.cancel()
	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	var tick <-chan time.Time
	if m.cfg.PositionReader != nil {
		ticker := time.NewTicker(m.cfg.PositionPollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// Drain signals queued before cancellation, Stop's release
			// included.
			for {
				select {
				case fn := <-m.signals:
					fn()
				default:
					return
				}
			}
		case fn := <-m.signals:
			fn()
		case <-tick:
			pos, ok := m.cfg.PositionReader()
			if !ok {
				continue
			}
			m.machine.TimeUpdate(pos)
			m.machine.Seeked(true)
		}
	}
}

// send marshals fn onto the monitor goroutine.
func (m *Monitor) send(fn func()) {
	if !m.running.Load() {
		// One exception: Stop itself queues the final release.
		select {
		case <-m.done:
			return
		default:
		}
	}
	select {
	case m.signals <- fn:
	case <-m.done:
	}
}

// Playback signal surface. Each method mirrors one trigger on the
// state machine.

// Buffering reports that the player entered a buffering state.
func (m *Monitor) Buffering() { m.send(m.machine.Buffering) }

// Play reports intent to play.
func (m *Monitor) Play() { m.send(m.machine.Play) }

// Playing reports that playback is advancing.
func (m *Monitor) Playing() { m.send(m.machine.Playing) }

// Pause reports a pause.
func (m *Monitor) Pause() { m.send(m.machine.Pause) }

// Seeking reports the start of a seek.
func (m *Monitor) Seeking() { m.send(m.machine.Seeking) }

// SeekSettled reports an explicit pause-while-seeking resolution.
func (m *Monitor) SeekSettled() { m.send(func() { m.machine.Seeked(false) }) }

// FirstFrameRendered reports that the first frame after a seek or
// startup was rendered.
func (m *Monitor) FirstFrameRendered() { m.send(m.machine.FirstFrameRendered) }

// Ended reports end of the presentation.
func (m *Monitor) Ended() { m.send(m.machine.Ended) }

// RenditionChanged reports the newly active rendition.
func (m *Monitor) RenditionChanged(r *model.Rendition) {
	m.send(func() { m.machine.HandleRenditionChange(r) })
}

// SourceMetadata records last-known media properties.
func (m *Monitor) SourceMetadata(mimeType string, durationMillis int64) {
	m.send(func() { m.machine.SetSourceMetadata(mimeType, durationMillis) })
}

// PlayerError reports a host player error with its declared category.
func (m *Monitor) PlayerError(category playback.ErrorCategory, err error) {
	m.send(func() {
		if info := playback.ClassifyError(category, err); info != nil {
			m.machine.Error(info.Code, info.Text)
		}
	})
}

// ApplicationError reports a problem described by the embedding
// application rather than detected by the player.
func (m *Monitor) ApplicationError(code model.ErrorCode, text string) {
	m.send(func() { m.machine.Error(code, text) })
}

// Ad signal surface.

// AdBreakStarted reports the start of an ad break.
func (m *Monitor) AdBreakStarted(ad *model.AdInfo) {
	m.send(func() { m.machine.AdBreakStarted(ad) })
}

// AdBreakEnded reports the end of an ad break.
func (m *Monitor) AdBreakEnded(ad *model.AdInfo) {
	m.send(func() { m.machine.AdBreakEnded(ad) })
}

// AdEvent forwards any other ad lifecycle signal 1:1.
func (m *Monitor) AdEvent(t event.Type, ad *model.AdInfo) {
	m.send(func() { m.machine.AdEvent(t, ad) })
}

// Network signal surface. Each method mirrors one dispatcher entry point.

// LoadStarted reports the start of a segment load.
func (m *Monitor) LoadStarted(url string, mediaStartMillis, mediaEndMillis int64, loadType bandwidth.LoadType, host, mimeType string, width, height int) {
	m.send(func() {
		m.dispatcher.LoadStarted(url, mediaStartMillis, mediaEndMillis, loadType, host, mimeType, width, height)
	})
}

// LoadCompleted reports a completed segment load.
func (m *Monitor) LoadCompleted(url string, bytesLoaded int64, trackFormat *model.Rendition, headers map[string][]string) {
	m.send(func() { m.dispatcher.LoadCompleted(url, bytesLoaded, trackFormat, headers) })
}

// LoadError reports a failed segment load.
func (m *Monitor) LoadError(url string, err error) {
	m.send(func() { m.dispatcher.LoadError(url, err) })
}

// LoadCanceled reports a canceled segment load.
func (m *Monitor) LoadCanceled(url string, headers map[string][]string) {
	m.send(func() { m.dispatcher.LoadCanceled(url, headers) })
}

// TracksChanged reports a track-group change.
func (m *Monitor) TracksChanged(groups []bandwidth.TrackGroup) {
	m.send(func() { m.dispatcher.TracksChanged(groups) })
}

// PlaylistLoaded feeds a fetched HLS playlist through session-tag
// extraction and rendition seeding. A sessiondata event is emitted
// only when the namespaced tag list value-differs from the previous
// one; renditions from a multivariant playlist replace the dispatcher
// list wholesale.
func (m *Monitor) PlaylistLoaded(data []byte) {
	m.send(func() {
		if tags := hlstags.ParseSessionTags(data); m.tags.Update(tags) {
			m.bus.Dispatch(&event.Event{
				Type:        event.TypeSessionData,
				ViewID:      m.viewID,
				SessionTags: tags,
			})
		}
		renditions, err := hlstags.SeedRenditions(data)
		if err != nil {
			m.logger.Debug("playlist parse failed", "error", err.Error())
			return
		}
		if len(renditions) > 0 {
			m.dispatcher.TracksChanged([]bandwidth.TrackGroup{
				{Kind: bandwidth.TrackVideo, Renditions: renditions},
			})
		}
	})
}

func newViewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
