// Package beacon batches semantic events and delivers them to the
// remote collector. It subscribes to the event bus, buffers events,
// and flushes on an interval or when the batch watermark is reached.
package beacon

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/oklog/ulid/v2"

	"github.com/litix/data-go/internal/config"
	"github.com/litix/data-go/internal/version"
	"github.com/litix/data-go/pkg/event"
)

// Payload is one delivered batch.
type Payload struct {
	// BatchID uniquely identifies the batch for collector-side dedup.
	BatchID string `json:"batch_id"`
	// DeviceID is the persisted device identity.
	DeviceID string `json:"device_id,omitempty"`
	// SDKVersion identifies the SDK build that produced the batch.
	SDKVersion string `json:"sdk_version"`
	// SentAt is when the batch left the SDK.
	SentAt time.Time `json:"sent_at"`
	// Events are the buffered events, in dispatch order.
	Events []*event.Event `json:"events"`
}

// Beacon drains an event bus subscription into batches and posts them
// to the collector.
type Beacon struct {
	cfg      config.Config
	client   *Client
	bus      *event.Bus
	deviceID string
	logger   *slog.Logger

	mu      sync.Mutex
	pending []*event.Event

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a beacon for the given bus. The client may be nil, in
// which case one is built from the collector configuration.
func New(cfg config.Config, bus *event.Bus, deviceID string, client *Client, logger *slog.Logger) *Beacon {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		cc := DefaultClientConfig()
		cc.Timeout = cfg.Collector.Timeout
		cc.RetryAttempts = cfg.Collector.RetryAttempts
		cc.RetryDelay = cfg.Collector.RetryDelay
		cc.Logger = logger
		client = NewClient(cc)
	}
	return &Beacon{
		cfg:      cfg,
		client:   client,
		bus:      bus,
		deviceID: deviceID,
		logger:   logger.With("component", "beacon"),
		done:     make(chan struct{}),
	}
}

// Start subscribes to the bus and begins the flush loop.
func (b *Beacon) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	sub := b.bus.Subscribe("beacon")

	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.cfg.Beacon.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				b.drain(sub)
				b.flush(context.Background())
				return
			case e, ok := <-sub.Events:
				if !ok {
					b.flush(context.Background())
					return
				}
				if b.buffer(e) >= b.cfg.Beacon.BatchSize {
					b.flush(ctx)
				}
			case <-ticker.C:
				b.flush(ctx)
			}
		}
	}()
}

// Stop flushes remaining events and stops the loop. Stopping a beacon
// that was never started is a no-op.
func (b *Beacon) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	b.bus.Unsubscribe("beacon")
	<-b.done
}

// PendingCount returns the number of buffered, unflushed events.
func (b *Beacon) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// drain moves events still buffered in the subscription into the
// pending batch so shutdown never loses them.
func (b *Beacon) drain(sub *event.Subscriber) {
	for {
		select {
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			b.buffer(e)
		default:
			return
		}
	}
}

func (b *Beacon) buffer(e *event.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, e)
	return len(b.pending)
}

func (b *Beacon) flush(ctx context.Context) {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if b.cfg.Collector.URL == "" {
		// No collector configured; the batch is dropped. Subscribers on
		// the bus still see every event.
		return
	}

	payload := Payload{
		BatchID:    ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		DeviceID:   b.deviceID,
		SDKVersion: version.Version,
		SentAt:     time.Now(),
		Events:     batch,
	}

	body, encoding, err := EncodePayload(&payload, b.cfg.Beacon.Compression)
	if err != nil {
		b.logger.Error("encoding beacon payload", "error", err.Error())
		return
	}

	if err := b.client.Post(ctx, b.cfg.Collector.URL, b.cfg.Collector.EnvKey, encoding, body); err != nil {
		b.logger.Warn("beacon delivery gave up",
			"error", err.Error(),
			"events", len(batch))
		return
	}
	b.logger.Debug("beacon flushed", "events", len(batch))
}

// EncodePayload JSON-encodes a payload and applies the configured
// compression. It returns the body and the Content-Encoding value to
// send ("" for none).
func EncodePayload(p *Payload, compression string) ([]byte, string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, "", err
	}
	if compression != "br" {
		return raw, "", nil
	}

	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "br", nil
}

// DecodePayload reverses EncodePayload; used by tests and tooling.
func DecodePayload(body []byte, encoding string) (*Payload, error) {
	var raw []byte
	if encoding == "br" {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(brotli.NewReader(bytes.NewReader(body))); err != nil {
			return nil, err
		}
		raw = buf.Bytes()
	} else {
		raw = body
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
