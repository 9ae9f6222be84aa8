// Package hlstags extracts SDK-namespaced EXT-X-SESSION-DATA tags and
// rendition descriptors from HLS multivariant playlists.
package hlstags

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"

	"github.com/litix/data-go/pkg/model"
)

// DataIDPrefix is the EXT-X-SESSION-DATA Data-ID namespace the SDK
// claims. Tags outside the namespace are ignored.
const DataIDPrefix = "io.litix.data."

const sessionDataTag = "#EXT-X-SESSION-DATA:"

// ParseSessionTags scans a playlist for EXT-X-SESSION-DATA tags whose
// DATA-ID carries the SDK namespace prefix and returns them as
// key/value pairs, with the prefix stripped from the key. Order
// follows the playlist.
func ParseSessionTags(data []byte) []model.SessionTag {
	var tags []model.SessionTag
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, sessionDataTag) {
			continue
		}
		attrs := parseAttributes(strings.TrimPrefix(line, sessionDataTag))
		dataID := attrs["DATA-ID"]
		if !strings.HasPrefix(dataID, DataIDPrefix) {
			continue
		}
		tags = append(tags, model.SessionTag{
			Key:   strings.TrimPrefix(dataID, DataIDPrefix),
			Value: attrs["VALUE"],
		})
	}
	return tags
}

// SeedRenditions parses a multivariant playlist and returns one
// rendition descriptor per variant stream, in playlist order. A media
// playlist yields no renditions and no error.
func SeedRenditions(data []byte) ([]model.Rendition, error) {
	pl, err := playlist.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parsing playlist: %w", err)
	}
	mv, ok := pl.(*playlist.Multivariant)
	if !ok {
		return nil, nil
	}

	renditions := make([]model.Rendition, 0, len(mv.Variants))
	for _, variant := range mv.Variants {
		r := model.Rendition{Bitrate: int64(variant.Bandwidth)}
		r.Width, r.Height = parseResolution(variant.Resolution)
		if variant.FrameRate != nil {
			r.Framerate = *variant.FrameRate
		}
		renditions = append(renditions, r)
	}
	return renditions, nil
}

// Tracker suppresses redundant session-tag updates: Update reports
// true only when the parsed list value-differs from the previous one.
type Tracker struct {
	last []model.SessionTag
}

// Update records the latest tag list and reports whether it changed.
func (t *Tracker) Update(tags []model.SessionTag) bool {
	if model.TagsEqual(t.last, tags) {
		return false
	}
	t.last = tags
	return true
}

// Current returns the last accepted tag list.
func (t *Tracker) Current() []model.SessionTag { return t.last }

// parseAttributes splits an HLS attribute list into a map, honoring
// quoted values that contain commas.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = s[eq+1:]

		var value string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				value = s[1:]
				s = ""
			} else {
				value = s[1 : end+1]
				s = s[end+2:]
				s = strings.TrimPrefix(s, ",")
			}
		} else {
			comma := strings.IndexByte(s, ',')
			if comma < 0 {
				value = s
				s = ""
			} else {
				value = s[:comma]
				s = s[comma+1:]
			}
		}
		if key != "" {
			attrs[key] = value
		}
	}
	return attrs
}

func parseResolution(res string) (width, height int) {
	parts := strings.SplitN(strings.ToLower(res), "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0
	}
	return w, h
}
