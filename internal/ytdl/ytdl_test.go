package ytdl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProbe = `{
  "id": "dQw4w9WgXcQ",
  "title": "Test Clip",
  "duration": 212.5,
  "formats": [
    {"format_id": "140", "vcodec": "none", "acodec": "mp4a.40.2", "filesize": 3400000},
    {"format_id": "134", "height": 360, "vcodec": "avc1", "acodec": "none", "filesize": 9000000},
    {"format_id": "135", "height": 480, "vcodec": "avc1", "acodec": "none", "filesize": 15000000},
    {"format_id": "136", "height": 720, "vcodec": "avc1", "acodec": "none", "filesize_approx": 31000000.0},
    {"format_id": "18", "height": 360, "vcodec": "avc1", "acodec": "mp4a.40.2", "filesize": 12000000}
  ]
}`

func TestParseProbe(t *testing.T) {
	p, err := parseProbe([]byte(sampleProbe))
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", p.ID)
	assert.Equal(t, "Test Clip", p.Title)
	assert.EqualValues(t, 212, p.DurationSeconds)
	assert.Equal(t, []int{360, 480, 720}, p.Heights)
	// 360p rung: best video at or below 360 is the 12 MB muxed format,
	// plus the 3.4 MB audio estimate.
	assert.EqualValues(t, 12000000+3400000, p.SizeByHeight[360])
	assert.EqualValues(t, 31000000+3400000, p.SizeByHeight[720])
}

func TestParseProbeRejectsGarbage(t *testing.T) {
	_, err := parseProbe([]byte("not json"))
	require.Error(t, err)
}

func TestIsSupportedURL(t *testing.T) {
	assert.True(t, IsSupportedURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.True(t, IsSupportedURL("https://youtu.be/dQw4w9WgXcQ"))
	assert.True(t, IsSupportedURL(" https://m.youtube.com/watch?v=x "))
	assert.False(t, IsSupportedURL("youtube.com/watch?v=x"))
	assert.False(t, IsSupportedURL("https://example.com/video.mp4"))
	assert.False(t, IsSupportedURL("hello world"))
}
