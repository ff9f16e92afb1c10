package hls

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylist_AddSegmentsMarksFirstPartDiscontinuous(t *testing.T) {
	p := NewPlaylist()
	p.AddSegments([]SegmentFile{
		{Filename: "part0000_000.ts", DurationSec: 10},
		{Filename: "part0000_001.ts", DurationSec: 8},
	})

	require.Len(t, p.Segments, 2)
	assert.True(t, p.Segments[0].Discontinuity)
	assert.False(t, p.Segments[1].Discontinuity)
}

func TestPlaylist_RenderIncludesRequiredTags(t *testing.T) {
	p := NewPlaylist()
	p.AddSegments([]SegmentFile{{Filename: "part0000_000.ts", DurationSec: 10}})
	p.MediaSequence = 1

	text := p.Render()
	assert.True(t, strings.HasPrefix(text, "#EXTM3U\n"))
	assert.Contains(t, text, "#EXT-X-VERSION:3")
	assert.Contains(t, text, "#EXT-X-TARGETDURATION:10")
	assert.Contains(t, text, "#EXT-X-PLAYLIST-TYPE:EVENT")
	assert.Contains(t, text, "#EXT-X-MEDIA-SEQUENCE:1")
	assert.Contains(t, text, "#EXT-X-DISCONTINUITY")
	assert.Contains(t, text, "#EXTINF:10.000,\npart0000_000.ts")
	assert.NotContains(t, text, "#EXT-X-ENDLIST")
}

func TestPlaylist_RenderEndListWhenFinalized(t *testing.T) {
	p := NewPlaylist()
	p.EndList = true
	assert.Contains(t, p.Render(), "#EXT-X-ENDLIST")
}

func TestParsePlaylist_RoundTrip(t *testing.T) {
	p := NewPlaylist()
	p.AddSegments([]SegmentFile{{Filename: "part0000_000.ts", DurationSec: 10}})
	p.AddSegments([]SegmentFile{{Filename: "part0001_000.ts", DurationSec: 9.5}})
	p.MediaSequence = 2
	p.EndList = true

	rendered := p.Render()

	parsed, err := ParsePlaylist(rendered)
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.MediaSequence)
	assert.True(t, parsed.EndList)
	require.Len(t, parsed.Segments, 2)
	assert.Equal(t, "part0000_000.ts", parsed.Segments[0].Filename)
	assert.InDelta(t, 10, parsed.Segments[0].DurationSec, 1e-9)
	assert.True(t, parsed.Segments[0].Discontinuity)
	assert.True(t, parsed.Segments[1].Discontinuity)
}

func TestParsePlaylist_IgnoresUnknownTags(t *testing.T) {
	text := "#EXTM3U\n#EXT-X-SOME-FUTURE-TAG:whatever\n#EXT-X-MEDIA-SEQUENCE:0\n#EXTINF:10.000,\nseg.ts\n"
	parsed, err := ParsePlaylist(text)
	require.NoError(t, err)
	require.Len(t, parsed.Segments, 1)
	assert.Equal(t, "seg.ts", parsed.Segments[0].Filename)
}

func TestParsePlaylist_InvalidMediaSequence(t *testing.T) {
	_, err := ParsePlaylist("#EXT-X-MEDIA-SEQUENCE:not-a-number\n")
	assert.Error(t, err)
}
