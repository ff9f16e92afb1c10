// Package hls implements the HLS Publisher (C7): segments each produced MP4
// into .ts parts, maintains an EVENT-type media playlist, uploads segments
// under a bounded-concurrency worker pool, and performs the final merge.
package hls

import (
	"fmt"
	"strconv"
	"strings"
)

const playlistVersion = 3
const targetDurationSec = 10

// segment is one emitted .ts part in the EVENT playlist.
type segment struct {
	Filename        string
	DurationSec     float64
	Discontinuity   bool
}

// Playlist is the mutable EVENT-type media playlist for one task.
type Playlist struct {
	MediaSequence int
	Segments      []segment
	EndList       bool
}

// NewPlaylist starts an empty playlist at media sequence 0.
func NewPlaylist() *Playlist {
	return &Playlist{}
}

// ParsePlaylist reconstructs a Playlist from an existing EVENT playlist's
// text, used to resume publishing after a restart. It is intentionally
// tolerant: unknown tags are ignored.
func ParsePlaylist(text string) (*Playlist, error) {
	p := &Playlist{}
	lines := strings.Split(text, "\n")
	pendingDisc := false
	var pendingDur float64

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"))
			if err != nil {
				return nil, fmt.Errorf("parse media sequence: %w", err)
			}
			p.MediaSequence = n
		case line == "#EXT-X-DISCONTINUITY":
			pendingDisc = true
		case strings.HasPrefix(line, "#EXTINF:"):
			fields := strings.SplitN(strings.TrimPrefix(line, "#EXTINF:"), ",", 2)
			d, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("parse extinf: %w", err)
			}
			pendingDur = d
		case line == "#EXT-X-ENDLIST":
			p.EndList = true
		case strings.HasPrefix(line, "#"):
			continue
		default:
			p.Segments = append(p.Segments, segment{
				Filename:      line,
				DurationSec:   pendingDur,
				Discontinuity: pendingDisc,
			})
			pendingDisc = false
			pendingDur = 0
		}
	}
	return p, nil
}

// AddSegments appends the .ts parts produced for one MP4, marking the first
// part of each new source MP4 with a discontinuity tag per the spec.
func (p *Playlist) AddSegments(parts []SegmentFile) {
	for i, part := range parts {
		p.Segments = append(p.Segments, segment{
			Filename:      part.Filename,
			DurationSec:   part.DurationSec,
			Discontinuity: i == 0,
		})
	}
}

// Render produces the full EVENT playlist text.
func (p *Playlist) Render() string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", playlistVersion)
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDurationSec)
	b.WriteString("#EXT-X-PLAYLIST-TYPE:EVENT\n")
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", p.MediaSequence)
	for _, s := range p.Segments {
		if s.Discontinuity {
			b.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n%s\n", s.DurationSec, s.Filename)
	}
	if p.EndList {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}
