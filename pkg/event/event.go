// Package event defines the semantic playback events produced by the SDK
// core and the bus that fans them out to subscribers.
package event

import (
	"time"

	"github.com/litix/data-go/pkg/model"
)

// Type identifies a semantic playback event.
type Type string

// Playback lifecycle events.
const (
	TypeViewStart       Type = "viewstart"
	TypeViewEnd         Type = "viewend"
	TypePlay            Type = "play"
	TypePlaying         Type = "playing"
	TypePause           Type = "pause"
	TypeSeeking         Type = "seeking"
	TypeSeeked          Type = "seeked"
	TypeRebufferStart   Type = "rebufferstart"
	TypeRebufferEnd     Type = "rebufferend"
	TypeTimeUpdate      Type = "timeupdate"
	TypeRenditionChange Type = "renditionchange"
	TypeEnded           Type = "ended"
	TypeError           Type = "error"
	TypeSessionData     Type = "sessiondata"
)

// Bandwidth metric events.
const (
	TypeRequestCompleted Type = "requestcompleted"
	TypeRequestCanceled  Type = "requestcanceled"
	TypeRequestFailed    Type = "requestfailed"
)

// Ad lifecycle events, forwarded 1:1 from the host ad SDK.
const (
	TypeAdBreakStart     Type = "adbreakstart"
	TypeAdBreakEnd       Type = "adbreakend"
	TypeAdRequest        Type = "adrequest"
	TypeAdResponse       Type = "adresponse"
	TypeAdPlay           Type = "adplay"
	TypeAdPlaying        Type = "adplaying"
	TypeAdPause          Type = "adpause"
	TypeAdFirstQuartile  Type = "adfirstquartile"
	TypeAdMidpoint       Type = "admidpoint"
	TypeAdThirdQuartile  Type = "adthirdquartile"
	TypeAdEnded          Type = "adended"
	TypeAdError          Type = "aderror"
)

// IsAd reports whether the event type is an ad lifecycle event.
func (t Type) IsAd() bool {
	switch t {
	case TypeAdBreakStart, TypeAdBreakEnd, TypeAdRequest, TypeAdResponse,
		TypeAdPlay, TypeAdPlaying, TypeAdPause, TypeAdFirstQuartile,
		TypeAdMidpoint, TypeAdThirdQuartile, TypeAdEnded, TypeAdError:
		return true
	}
	return false
}

// IsRequest reports whether the event type is a bandwidth metric event.
func (t Type) IsRequest() bool {
	return t == TypeRequestCompleted || t == TypeRequestCanceled || t == TypeRequestFailed
}

// Event is one semantic playback event. Exactly one payload pointer is
// set for event types that carry one; the rest are nil.
type Event struct {
	// Type identifies the event.
	Type Type `json:"type"`
	// Sequence is a monotonic dispatch-order sequence number, stamped by the bus.
	Sequence uint64 `json:"sequence"`
	// ViewID identifies the view session the event belongs to.
	ViewID string `json:"view_id,omitempty"`
	// Time is when the event was produced.
	Time time.Time `json:"time"`
	// PlayheadMillis is the playback position when the event was produced.
	PlayheadMillis int64 `json:"playhead_ms"`

	// Metric is set on request* events.
	Metric *model.SegmentMetric `json:"metric,omitempty"`
	// Rendition is set on renditionchange events.
	Rendition *model.Rendition `json:"rendition,omitempty"`
	// Error is set on error events.
	Error *model.ErrorInfo `json:"error,omitempty"`
	// Ad is set on ad events.
	Ad *model.AdInfo `json:"ad,omitempty"`
	// SessionTags is set on sessiondata events.
	SessionTags []model.SessionTag `json:"session_tags,omitempty"`
	// ViewerData is set on viewstart events.
	ViewerData map[string]string `json:"viewer_data,omitempty"`
}

// Sink receives events from the core. The bus is the normal sink;
// tests substitute a recording sink.
type Sink interface {
	Dispatch(e *Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e *Event)

// Dispatch implements Sink.
func (f SinkFunc) Dispatch(e *Event) { f(e) }
