// Package model defines the value objects shared by the playback core:
// rendition descriptors, segment metric records, session tags, and error info.
package model

import (
	"fmt"
	"time"
)

// RequestType classifies a network load by what it fetched.
type RequestType string

const (
	// RequestManifest is a playlist or manifest fetch.
	RequestManifest RequestType = "manifest"
	// RequestMedia is a media segment fetch.
	RequestMedia RequestType = "media"
	// RequestVideoInit is a video initialization segment fetch.
	RequestVideoInit RequestType = "video_init"
	// RequestAudioInit is an audio initialization segment fetch.
	RequestAudioInit RequestType = "audio_init"
)

// Rendition describes one encoded quality variant of an adaptive stream.
type Rendition struct {
	// Bitrate is the advertised bitrate in bits per second.
	Bitrate int64 `json:"bitrate"`
	// Width is the frame width in pixels.
	Width int `json:"width"`
	// Height is the frame height in pixels.
	Height int `json:"height"`
	// Framerate is the advertised frame rate, or 0 if unknown.
	Framerate float64 `json:"framerate,omitempty"`
	// Name is an optional human-readable label (e.g. "720p").
	Name string `json:"name,omitempty"`
}

// Matches reports whether the rendition has the exact same
// width, height, and bitrate as other.
func (r Rendition) Matches(other Rendition) bool {
	return r.Width == other.Width && r.Height == other.Height && r.Bitrate == other.Bitrate
}

// QualityLevelUnknown is the quality-level index used when a completed
// load could not be matched against the known rendition list.
const QualityLevelUnknown = -1

// SegmentMetric is the record produced for one network load attempt.
// It is created on load start and resolved on load complete, error, or
// cancel. Resolved records are handed to the event sink.
type SegmentMetric struct {
	// URL is the request URL; it keys the in-flight table.
	URL string `json:"url"`
	// Hostname is the host component of the request URL.
	Hostname string `json:"hostname,omitempty"`
	// RequestType classifies what was fetched.
	RequestType RequestType `json:"request_type"`
	// ResponseStart is when the load was observed to start.
	ResponseStart time.Time `json:"response_start"`
	// ResponseEnd is when the load resolved (complete, error, or cancel).
	ResponseEnd time.Time `json:"response_end"`
	// MediaStartMillis is the requested media start position within the
	// presentation, in milliseconds.
	MediaStartMillis int64 `json:"media_start_ms"`
	// MediaDurationMillis is the requested media duration, in milliseconds.
	MediaDurationMillis int64 `json:"media_duration_ms"`
	// BytesLoaded is the number of bytes transferred, set on completion.
	BytesLoaded int64 `json:"bytes_loaded"`
	// QualityLevel is the index of the matching rendition in the rendition
	// list current at resolution time, or QualityLevelUnknown.
	QualityLevel int `json:"quality_level"`
	// LabeledBitrate is the bitrate declared by the track format that
	// produced the load, in bits per second.
	LabeledBitrate int64 `json:"labeled_bitrate,omitempty"`
	// Width and Height are the source dimensions declared at load start.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Renditions is the rendition list snapshot taken at load start.
	Renditions []Rendition `json:"renditions,omitempty"`
	// Headers holds response headers that survived allow-list filtering.
	Headers map[string]string `json:"headers,omitempty"`
	// ErrorCode and ErrorText describe an abnormal termination.
	ErrorCode int    `json:"error_code,omitempty"`
	ErrorText string `json:"error_text,omitempty"`
	// CancelReason is set when the load was canceled rather than failed.
	CancelReason string `json:"cancel_reason,omitempty"`
}

// SessionTag is one key/value pair parsed from an HLS
// EXT-X-SESSION-DATA tag within the SDK namespace.
type SessionTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TagsEqual reports whether two session tag lists carry the same
// pairs in the same order. Comparison is by value, not identity.
func TagsEqual(a, b []SessionTag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ErrorCode classifies a playback error.
type ErrorCode int

const (
	// ErrorUnknown is an unclassified error.
	ErrorUnknown ErrorCode = iota
	// ErrorDRM is a DRM/license failure.
	ErrorDRM
	// ErrorIO is a source or network failure.
	ErrorIO
	// ErrorDecoder is a decoder or renderer failure.
	ErrorDecoder
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorDRM:
		return "drm"
	case ErrorIO:
		return "io"
	case ErrorDecoder:
		return "decoder"
	default:
		return "unknown"
	}
}

// ErrorInfo is the payload of an internal-error event.
type ErrorInfo struct {
	Code ErrorCode `json:"code"`
	Text string    `json:"text"`
}

// PlayerError is a typed playback error carrying a classification code.
// Errors that are not PlayerError are reported with ErrorUnknown and
// the error's type name as text.
type PlayerError struct {
	Code    ErrorCode
	Message string
}

// NewPlayerError creates a classified player error.
func NewPlayerError(code ErrorCode, message string) *PlayerError {
	return &PlayerError{Code: code, Message: message}
}

func (e *PlayerError) Error() string {
	return fmt.Sprintf("player error (%s): %s", e.Code, e.Message)
}

// AdInfo is the payload of an ad lifecycle event.
type AdInfo struct {
	// AdID is the host ad SDK's identifier for the creative, if known.
	AdID string `json:"ad_id,omitempty"`
	// CreativeID identifies the creative within the ad, if known.
	CreativeID string `json:"creative_id,omitempty"`
	// PositionMillis is the playhead position when the signal arrived.
	PositionMillis int64 `json:"position_ms,omitempty"`
}
