package ingest

import (
	"testing"

	"ShadowStream/streamvault/config"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandArgs(t *testing.T) {
	assert.Equal(t, "night sky timelapse", commandArgs("/search night sky timelapse"))
	assert.Equal(t, "123", commandArgs("/delete 123"))
	assert.Equal(t, "", commandArgs("/catalog"))
	assert.Equal(t, "", commandArgs("  /help  "))
}

func TestDocumentFromMedia(t *testing.T) {
	doc := &tg.Document{
		ID:       987,
		MimeType: "video/mp4",
		Size:     1024,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: "movie.mp4"},
		},
	}
	media := &tg.MessageMediaDocument{}
	media.SetDocument(doc)

	got, ok := documentFromMedia(media)
	require.True(t, ok)
	assert.Equal(t, "movie.mp4", fileNameFromDocument(got))

	_, ok = documentFromMedia(&tg.MessageMediaPhoto{})
	assert.False(t, ok)
}

func TestFileNameFallback(t *testing.T) {
	doc := &tg.Document{ID: 555}
	assert.Equal(t, "file_555", fileNameFromDocument(doc))
}

func TestMediaCapError(t *testing.T) {
	prevSize, prevDur := config.ValueOf.MaxFileSizeMB, config.ValueOf.MaxVideoDurationHrs
	config.ValueOf.MaxFileSizeMB = 1
	config.ValueOf.MaxVideoDurationHrs = 1
	t.Cleanup(func() {
		config.ValueOf.MaxFileSizeMB = prevSize
		config.ValueOf.MaxVideoDurationHrs = prevDur
	})

	video := func(size int64, duration float64) *tg.Document {
		return &tg.Document{
			Size: size,
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeVideo{Duration: duration},
			},
		}
	}

	assert.Empty(t, mediaCapError(video(512*1024, 600)))
	assert.Contains(t, mediaCapError(video(2*1024*1024, 600)), "File too large")
	assert.Contains(t, mediaCapError(video(512*1024, 2*3600)), "Video too long")

	// Audio durations are capped the same way as video.
	audio := &tg.Document{
		Size: 1024,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeAudio{Duration: 2 * 3600},
		},
	}
	assert.Contains(t, mediaCapError(audio), "Video too long")

	// Plain documents declare no duration; only the size cap applies.
	assert.Empty(t, mediaCapError(&tg.Document{Size: 1024}))
}

func TestIsPrivate(t *testing.T) {
	assert.True(t, isPrivate(&tg.PeerUser{UserID: 1}))
	assert.False(t, isPrivate(&tg.PeerChannel{ChannelID: 1}))
	assert.False(t, isPrivate(&tg.PeerChat{ChatID: 1}))
}
