// Package data is the playback analytics SDK entry point. It wires
// configuration, structured logging, the persisted device identity,
// the event bus, and the beacon delivery loop, and mints one Monitor
// per view session.
//
// Typical use:
//
//	sdk, err := data.New(data.Options{})
//	if err != nil { ... }
//	defer sdk.Close()
//
//	mon := sdk.NewMonitor(monitor.Config{PositionReader: player.Position})
//	mon.Start(ctx)
//	// feed player callbacks into mon, then:
//	mon.Stop()
package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/litix/data-go/internal/beacon"
	"github.com/litix/data-go/internal/config"
	"github.com/litix/data-go/internal/device"
	"github.com/litix/data-go/internal/observability"
	"github.com/litix/data-go/pkg/event"
	"github.com/litix/data-go/pkg/monitor"
)

// Options controls SDK construction. The zero value loads config from
// the default search path and environment, logs to stdout, and stores
// the device identity under the user config directory.
type Options struct {
	// ConfigPath points at an explicit config file. Empty uses the
	// default search path and LITIX_* environment variables.
	ConfigPath string
	// StateDir is where the device identity is persisted. Empty
	// resolves to the user config directory.
	StateDir string
	// Logger overrides the logger built from the loaded config.
	Logger *slog.Logger
}

// SDK owns the shared plumbing behind all monitors: the loaded
// configuration, the event bus, the beacon, and the device identity.
type SDK struct {
	cfg      *config.Config
	logger   *slog.Logger
	bus      *event.Bus
	beacon   *beacon.Beacon
	deviceID string
	cancel   context.CancelFunc
}

// New loads configuration, resolves the device identity, and starts
// the beacon delivery loop.
func New(opts Options) (*SDK, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(cfg.Logging)
	}

	store, err := device.NewStore(opts.StateDir)
	if err != nil {
		return nil, fmt.Errorf("opening device store: %w", err)
	}
	deviceID, err := store.DeviceID()
	if err != nil {
		return nil, fmt.Errorf("resolving device id: %w", err)
	}

	bus := event.NewBus(logger)
	b := beacon.New(*cfg, bus, deviceID, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)

	return &SDK{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		beacon:   b,
		deviceID: deviceID,
		cancel:   cancel,
	}, nil
}

// NewMonitor mints a monitor for one view session, publishing to the
// SDK's bus. Zero fields in cfg are filled from the loaded
// configuration: the poll interval, the device identity, and host
// metadata merged under the caller's viewer data.
func (s *SDK) NewMonitor(cfg monitor.Config) *monitor.Monitor {
	if cfg.PositionPollInterval <= 0 {
		cfg.PositionPollInterval = s.cfg.Polling.PositionInterval
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = s.deviceID
	}
	viewer := device.HostMetadata()
	for k, v := range cfg.ViewerData {
		viewer[k] = v
	}
	cfg.ViewerData = viewer
	return monitor.New(s.bus, cfg, s.logger)
}

// Bus exposes the event bus for additional subscribers, such as a
// local event tap alongside the beacon.
func (s *SDK) Bus() *event.Bus { return s.bus }

// DeviceID returns the persisted device identity.
func (s *SDK) DeviceID() string { return s.deviceID }

// Config returns the loaded configuration.
func (s *SDK) Config() *config.Config { return s.cfg }

// Close stops the beacon, flushing buffered events, and shuts the bus
// down. Monitors must be stopped before Close.
func (s *SDK) Close() error {
	s.cancel()
	s.beacon.Stop()
	s.bus.Close()
	return nil
}
