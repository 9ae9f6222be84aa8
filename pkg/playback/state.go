package playback

// State is the playback state of one monitored view session. It is
// mutated only by Machine trigger methods, on the single goroutine
// that receives player callbacks.
type State int

const (
	// StateInit is the state before any player signal has arrived.
	StateInit State = iota
	// StateBuffering is ordinary startup or seek buffering.
	StateBuffering
	// StateRebuffering is a stall that interrupted active playback.
	StateRebuffering
	// StateSeeking is an unresolved seek.
	StateSeeking
	// StateSeeked marks a seek that completed while not playing.
	StateSeeked
	// StatePlay is the intent-to-play state before the first frame.
	StatePlay
	// StatePlaying is active playback.
	StatePlaying
	// StatePaused is user-paused playback.
	StatePaused
	// StatePlayingAds is playback of an ad break.
	StatePlayingAds
	// StateFinishedPlayingAds is the state just after an ad break ends.
	StateFinishedPlayingAds
	// StateError is a terminal player error.
	StateError
	// StateEnded is end of the presentation.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateBuffering:
		return "buffering"
	case StateRebuffering:
		return "rebuffering"
	case StateSeeking:
		return "seeking"
	case StateSeeked:
		return "seeked"
	case StatePlay:
		return "play"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StatePlayingAds:
		return "playing_ads"
	case StateFinishedPlayingAds:
		return "finished_playing_ads"
	case StateError:
		return "error"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}
