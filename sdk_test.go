package data

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litix/data-go/internal/beacon"
	"github.com/litix/data-go/pkg/event"
	"github.com/litix/data-go/pkg/monitor"
)

func newTestSDK(t *testing.T, collectorURL string) *SDK {
	t.Helper()
	if collectorURL != "" {
		t.Setenv("LITIX_COLLECTOR_URL", collectorURL)
	}
	sdk, err := New(Options{
		StateDir: t.TempDir(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sdk.Close() })
	return sdk
}

func TestNew_ResolvesDeviceIdentity(t *testing.T) {
	sdk := newTestSDK(t, "")

	assert.NotEmpty(t, sdk.DeviceID())
	assert.NotNil(t, sdk.Bus())
	assert.NotNil(t, sdk.Config())
}

func TestNewMonitor_FillsDefaults(t *testing.T) {
	sdk := newTestSDK(t, "")

	mon := sdk.NewMonitor(monitor.Config{})
	require.NotNil(t, mon)
	assert.NotEmpty(t, mon.ViewID())
}

func TestNewMonitor_ViewerDataOverridesHostMetadata(t *testing.T) {
	sdk := newTestSDK(t, "")

	sub := sdk.Bus().Subscribe("tap")
	defer sdk.Bus().Unsubscribe("tap")

	mon := sdk.NewMonitor(monitor.Config{
		ViewerData: map[string]string{"os": "custom-os", "app": "demo"},
	})
	mon.Start(context.Background())
	defer mon.Stop()

	select {
	case e := <-sub.Events:
		require.Equal(t, event.TypeViewStart, e.Type)
		require.NotNil(t, e.ViewerData)
		assert.Equal(t, "custom-os", e.ViewerData["os"])
		assert.Equal(t, "demo", e.ViewerData["app"])
		assert.Equal(t, sdk.DeviceID(), e.ViewerData["device_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("no viewstart observed")
	}
}

func TestConcurrentMonitorsShareOneBus(t *testing.T) {
	sdk := newTestSDK(t, "")

	sub := sdk.Bus().Subscribe("tap")
	defer sdk.Bus().Unsubscribe("tap")

	seen := make(map[uint64]bool)
	tapDone := make(chan struct{})
	go func() {
		defer close(tapDone)
		for e := range sub.Events {
			if seen[e.Sequence] {
				t.Errorf("sequence %d stamped twice", e.Sequence)
			}
			seen[e.Sequence] = true
		}
	}()

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mon := sdk.NewMonitor(monitor.Config{})
			mon.Start(context.Background())
			for range 50 {
				mon.Playing()
				mon.Pause()
			}
			mon.Stop()
		}()
	}
	wg.Wait()

	sdk.Bus().Unsubscribe("tap")
	<-tapDone
	assert.NotEmpty(t, seen)
}

func TestClose_FlushesBufferedEvents(t *testing.T) {
	var mu sync.Mutex
	var payloads []beacon.Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		p, err := beacon.DecodePayload(body, r.Header.Get("Content-Encoding"))
		require.NoError(t, err)
		mu.Lock()
		payloads = append(payloads, *p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sdk := newTestSDK(t, srv.URL)

	mon := sdk.NewMonitor(monitor.Config{})
	mon.Start(context.Background())
	mon.Playing()
	mon.Stop()

	require.NoError(t, sdk.Close())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, payloads)
	var types []event.Type
	for _, p := range payloads {
		assert.Equal(t, sdk.DeviceID(), p.DeviceID)
		for _, e := range p.Events {
			types = append(types, e.Type)
		}
	}
	assert.Contains(t, types, event.TypeViewStart)
	assert.Contains(t, types, event.TypeViewEnd)
}

func TestClose_Idempotent(t *testing.T) {
	t.Setenv("LITIX_COLLECTOR_URL", "")
	sdk, err := New(Options{
		StateDir: t.TempDir(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	require.NoError(t, sdk.Close())
}
