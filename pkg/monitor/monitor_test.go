package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litix/data-go/pkg/bandwidth"
	"github.com/litix/data-go/pkg/event"
	"github.com/litix/data-go/pkg/model"
	"github.com/litix/data-go/pkg/playback"
)

func collectEvents(t *testing.T, sub *event.Subscriber, n int) []*event.Event {
	t.Helper()
	var events []*event.Event
	deadline := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case e, ok := <-sub.Events:
			if !ok {
				t.Fatalf("subscription closed after %d of %d events", len(events), n)
			}
			events = append(events, e)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func eventTypes(events []*event.Event) []event.Type {
	out := make([]event.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestMonitor_ViewLifecycle(t *testing.T) {
	bus := event.NewBus(nil)
	sub := bus.Subscribe("test")
	m := New(bus, Config{DeviceID: "dev-1"}, nil)

	m.Start(context.Background())
	m.Play()
	m.Playing()
	m.Stop()

	events := collectEvents(t, sub, 4)
	assert.Equal(t, []event.Type{
		event.TypeViewStart,
		event.TypePlay,
		event.TypePlaying,
		event.TypeViewEnd,
	}, eventTypes(events))

	assert.Equal(t, m.ViewID(), events[0].ViewID)
	assert.Equal(t, "dev-1", events[0].ViewerData["device_id"])
}

func TestMonitor_EventsCarryViewID(t *testing.T) {
	bus := event.NewBus(nil)
	sub := bus.Subscribe("test")
	m := New(bus, Config{}, nil)

	m.Start(context.Background())
	m.Play()
	m.Stop()

	events := collectEvents(t, sub, 3)
	for _, e := range events {
		assert.Equal(t, m.ViewID(), e.ViewID, "event %s", e.Type)
	}
}

func TestMonitor_SignalsAfterStopAreDiscarded(t *testing.T) {
	bus := event.NewBus(nil)
	sub := bus.Subscribe("test")
	m := New(bus, Config{}, nil)

	m.Start(context.Background())
	m.Stop()
	collectEvents(t, sub, 2) // viewstart, viewend

	assert.NotPanics(t, func() {
		m.Play()
		m.Playing()
		m.Buffering()
		m.LoadStarted("seg.ts", 0, 0, bandwidth.LoadMedia, "", "", 0, 0)
		m.LoadCompleted("seg.ts", 1, nil, nil)
	})

	select {
	case e, ok := <-sub.Events:
		if ok {
			t.Fatalf("unexpected event after stop: %s", e.Type)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitor_SerializesConcurrentSignals(t *testing.T) {
	bus := event.NewBus(nil)
	m := New(bus, Config{}, nil)

	m.Start(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			m.Play()
			m.Playing()
			m.Pause()
		}
	}()
	for range 50 {
		m.TracksChanged([]bandwidth.TrackGroup{{Kind: bandwidth.TrackVideo}})
		m.Buffering()
	}
	<-done
	m.Stop()

	// The race detector is the real assertion; the counter just proves
	// the loop applied the signals.
	assert.Positive(t, m.Machine().EventsSent())
}

func TestMonitor_PositionPolling(t *testing.T) {
	bus := event.NewBus(nil)
	sub := bus.Subscribe("test")

	var pos atomic.Int64
	pos.Store(1_000)
	m := New(bus, Config{
		PositionPollInterval: 5 * time.Millisecond,
		PositionReader: func() (int64, bool) {
			return pos.Load(), true
		},
	}, nil)

	m.Start(context.Background())
	defer m.Stop()

	events := collectEvents(t, sub, 4)
	require.Equal(t, event.TypeViewStart, events[0].Type)
	for _, e := range events[1:] {
		assert.Equal(t, event.TypeTimeUpdate, e.Type)
		assert.Equal(t, int64(1_000), e.PlayheadMillis)
	}
}

func TestMonitor_PolledSeekResolution(t *testing.T) {
	// A seek resolves from the position poller once a frame has
	// rendered and the debounce window has elapsed.
	bus := event.NewBus(nil)
	sub := bus.Subscribe("test")

	m := New(bus, Config{
		PositionPollInterval: 5 * time.Millisecond,
		PositionReader: func() (int64, bool) {
			return 30_000, true
		},
	}, nil)

	m.Start(context.Background())
	m.Play()
	m.Playing()
	m.Seeking()
	m.FirstFrameRendered()

	deadline := time.After(2 * time.Second)
	var sawSeeked, sawPlaying bool
	for !(sawSeeked && sawPlaying) {
		select {
		case e := <-sub.Events:
			switch e.Type {
			case event.TypeSeeked:
				sawSeeked = true
			case event.TypePlaying:
				if sawSeeked {
					sawPlaying = true
				}
			}
		case <-deadline:
			t.Fatal("seek never resolved from polled position updates")
		}
	}
	m.Stop()
}

func TestMonitor_PlaylistLoaded(t *testing.T) {
	playlist := []byte(`#EXTM3U
#EXT-X-SESSION-DATA:DATA-ID="io.litix.data.experiment",VALUE="blue"
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720,CODECS="avc1.640020,mp4a.40.2"
video/720/playlist.m3u8
`)

	bus := event.NewBus(nil)
	sub := bus.Subscribe("test")
	m := New(bus, Config{}, nil)

	m.Start(context.Background())
	m.PlaylistLoaded(playlist)
	m.PlaylistLoaded(playlist) // unchanged tags emit nothing
	m.LoadStarted("seg.ts", 0, 0, bandwidth.LoadMedia, "", "", 0, 0)
	m.LoadCompleted("seg.ts", 1, &model.Rendition{Bitrate: 2_800_000, Width: 1280, Height: 720}, nil)
	m.Stop()

	var sessionData, completed []*event.Event
	for _, e := range collectEvents(t, sub, 4) {
		switch e.Type {
		case event.TypeSessionData:
			sessionData = append(sessionData, e)
		case event.TypeRequestCompleted:
			completed = append(completed, e)
		}
	}

	require.Len(t, sessionData, 1)
	require.Len(t, sessionData[0].SessionTags, 1)
	assert.Equal(t, model.SessionTag{Key: "experiment", Value: "blue"}, sessionData[0].SessionTags[0])

	// Renditions seeded from the playlist annotate the completed load.
	require.Len(t, completed, 1)
	require.NotNil(t, completed[0].Metric)
	assert.Equal(t, 0, completed[0].Metric.QualityLevel)
}

func TestMonitor_StartIsIdempotent(t *testing.T) {
	bus := event.NewBus(nil)
	sub := bus.Subscribe("test")
	m := New(bus, Config{}, nil)

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx)
	m.Stop()
	m.Stop()

	events := collectEvents(t, sub, 2)
	assert.Equal(t, []event.Type{event.TypeViewStart, event.TypeViewEnd}, eventTypes(events))
}

func TestMonitor_PlayerErrorClassification(t *testing.T) {
	bus := event.NewBus(nil)
	sub := bus.Subscribe("test")
	m := New(bus, Config{}, nil)

	m.Start(context.Background())
	m.PlayerError(playback.CategoryDRM, assertableError("no license"))
	m.Stop()

	events := collectEvents(t, sub, 3)
	require.Equal(t, event.TypeError, events[1].Type)
	require.NotNil(t, events[1].Error)
	assert.Equal(t, model.ErrorDRM, events[1].Error.Code)
}

type assertableError string

func (e assertableError) Error() string { return string(e) }
