// Package bandwidth correlates asynchronous segment load callbacks
// into complete per-segment metric records, annotated with the
// currently selected quality level.
//
// The dispatcher is single-threaded like the playback machine: all
// load and track callbacks must arrive on one goroutine. The header
// allow-list is the one exception and carries its own lock.
package bandwidth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/litix/data-go/pkg/event"
	"github.com/litix/data-go/pkg/model"
)

// LoadType is the host player's coarse classification of a load.
type LoadType int

const (
	// LoadUnknown is an unclassified load.
	LoadUnknown LoadType = iota
	// LoadManifest is a playlist or manifest load.
	LoadManifest
	// LoadMedia is a media segment load.
	LoadMedia
	// LoadInit is an initialization segment load; the mime type decides
	// whether it is video or audio.
	LoadInit
)

// TrackKind identifies the media kind of a track group.
type TrackKind int

const (
	// TrackVideo is a video track group.
	TrackVideo TrackKind = iota
	// TrackAudio is an audio track group.
	TrackAudio
	// TrackText is a text or caption track group.
	TrackText
)

// TrackGroup is one group of selectable tracks reported by the host
// player on a track change.
type TrackGroup struct {
	Kind       TrackKind
	Renditions []model.Rendition
}

// CancelReasonGeneric is stamped on records resolved by a cancel
// callback that carries no more specific reason.
const CancelReasonGeneric = "load canceled by player"

// Dispatcher keys in-flight segment metric records by URL and resolves
// them against the most recently observed rendition list. Records that
// never see a terminal callback stay in the table until Release; there
// is no eviction.
type Dispatcher struct {
	inflight   map[string]*model.SegmentMetric
	renditions []model.Rendition
	allowList  *HeaderAllowList
	sink       event.Sink
	logger     *slog.Logger
	now        func() time.Time
}

// NewDispatcher creates a dispatcher reporting resolved records to sink.
func NewDispatcher(sink event.Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		inflight:  make(map[string]*model.SegmentMetric),
		allowList: NewHeaderAllowList(),
		sink:      sink,
		logger:    logger.With("component", "bandwidth_dispatcher"),
		now:       time.Now,
	}
}

// AllowList returns the response-header allow-list for extension.
func (d *Dispatcher) AllowList() *HeaderAllowList { return d.allowList }

// Release detaches the event sink; every entry point becomes a no-op.
func (d *Dispatcher) Release() { d.sink = nil }

func (d *Dispatcher) released() bool { return d.sink == nil }

// InFlightCount returns the number of unresolved records.
func (d *Dispatcher) InFlightCount() int { return len(d.inflight) }

// Renditions returns a copy of the current rendition list.
func (d *Dispatcher) Renditions() []model.Rendition {
	out := make([]model.Rendition, len(d.renditions))
	copy(out, d.renditions)
	return out
}

// LoadStarted opens a metric record for a segment load. The record is
// keyed by URL and classified by load type, with init segments split
// into video or audio by mime type.
func (d *Dispatcher) LoadStarted(rawURL string, mediaStartMillis, mediaEndMillis int64, loadType LoadType, host, mimeType string, sourceWidth, sourceHeight int) {
	if d.released() || rawURL == "" {
		return
	}

	rec := &model.SegmentMetric{
		URL:              rawURL,
		Hostname:         host,
		RequestType:      classify(loadType, mimeType),
		ResponseStart:    d.now(),
		MediaStartMillis: mediaStartMillis,
		QualityLevel:     model.QualityLevelUnknown,
		Width:            sourceWidth,
		Height:           sourceHeight,
		Renditions:       d.Renditions(),
	}
	if mediaEndMillis > mediaStartMillis {
		rec.MediaDurationMillis = mediaEndMillis - mediaStartMillis
	}
	if rec.Hostname == "" {
		rec.Hostname = hostOf(rawURL)
	}
	d.inflight[rawURL] = rec
}

// LoadCompleted resolves a record with its byte count, response
// headers, and quality-level annotation, then emits it. A completion
// for an unknown URL produces a best-effort empty record rather than
// failing.
func (d *Dispatcher) LoadCompleted(rawURL string, bytesLoaded int64, trackFormat *model.Rendition, headers map[string][]string) *model.SegmentMetric {
	if d.released() {
		return nil
	}

	rec := d.resolve(rawURL)
	rec.BytesLoaded = bytesLoaded
	rec.Headers = d.allowList.Filter(headers)
	if trackFormat != nil {
		rec.LabeledBitrate = trackFormat.Bitrate
		rec.QualityLevel = d.qualityLevel(*trackFormat)
	}
	d.emit(event.TypeRequestCompleted, rec)
	return rec
}

// LoadError resolves a record with error details and emits it.
func (d *Dispatcher) LoadError(rawURL string, err error) *model.SegmentMetric {
	if d.released() {
		return nil
	}

	rec := d.resolve(rawURL)
	if err != nil {
		info := classifyLoadError(err)
		rec.ErrorCode = int(info.Code)
		rec.ErrorText = info.Text
	}
	d.emit(event.TypeRequestFailed, rec)
	return rec
}

// LoadCanceled resolves a record with a cancel reason and emits it.
func (d *Dispatcher) LoadCanceled(rawURL string, headers map[string][]string) *model.SegmentMetric {
	if d.released() {
		return nil
	}

	rec := d.resolve(rawURL)
	rec.CancelReason = CancelReasonGeneric
	rec.Headers = d.allowList.Filter(headers)
	d.emit(event.TypeRequestCanceled, rec)
	return rec
}

// TracksChanged rebuilds the rendition list from the first video track
// group, replacing it wholesale. Quality-level annotation on later
// completions is always relative to this latest list, so a track
// change racing a load in flight can skew that load's annotation.
func (d *Dispatcher) TracksChanged(groups []TrackGroup) {
	if d.released() {
		return
	}
	for _, group := range groups {
		if group.Kind != TrackVideo {
			continue
		}
		next := make([]model.Rendition, len(group.Renditions))
		copy(next, group.Renditions)
		d.renditions = next
		return
	}
}

// resolve removes and returns the in-flight record for a URL,
// synthesizing an empty one when the start callback was never seen.
// Either way the record's response end is stamped.
func (d *Dispatcher) resolve(rawURL string) *model.SegmentMetric {
	rec, ok := d.inflight[rawURL]
	if !ok {
		rec = &model.SegmentMetric{
			URL:          rawURL,
			Hostname:     hostOf(rawURL),
			RequestType:  model.RequestMedia,
			QualityLevel: model.QualityLevelUnknown,
		}
		d.logger.Debug("resolving load with no in-flight record", "url", rawURL)
	}
	delete(d.inflight, rawURL)
	rec.ResponseEnd = d.now()
	return rec
}

func (d *Dispatcher) qualityLevel(format model.Rendition) int {
	for i, r := range d.renditions {
		if r.Matches(format) {
			return i
		}
	}
	return model.QualityLevelUnknown
}

func (d *Dispatcher) emit(t event.Type, rec *model.SegmentMetric) {
	d.sink.Dispatch(&event.Event{Type: t, Metric: rec})
}

func classify(loadType LoadType, mimeType string) model.RequestType {
	switch loadType {
	case LoadManifest:
		return model.RequestManifest
	case LoadInit:
		mt := strings.ToLower(mimeType)
		if strings.Contains(mt, "video") {
			return model.RequestVideoInit
		}
		if strings.Contains(mt, "audio") {
			return model.RequestAudioInit
		}
		return model.RequestMedia
	default:
		return model.RequestMedia
	}
}

func classifyLoadError(err error) model.ErrorInfo {
	var pe *model.PlayerError
	if errors.As(err, &pe) {
		return model.ErrorInfo{Code: pe.Code, Text: pe.Message}
	}
	return model.ErrorInfo{Code: model.ErrorUnknown, Text: fmt.Sprintf("%T: %v", err, err)}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
