package ingest

import (
	"ShadowStream/streamvault/internal/ytdl"
	"time"

	"github.com/AnimeKaizoku/cacher"
)

// stateTTL bounds how long a half-finished conversation survives. After
// this the user starts over; nothing is persisted.
const stateTTL = 10 * time.Minute

// pendingUpload is a media message waiting for its display name.
type pendingUpload struct {
	ChatID        int64
	MessageID     int
	SuggestedName string
	SizeBytes     int64
	MimeType      string
	Kind          string
	Duration      int64
	FileUniqueID  string
}

// pendingURL is a probed external video waiting for a quality choice.
type pendingURL struct {
	URL       string
	Probe     *ytdl.Probe
	ChatID    int64
	PromptID  int
	RequestAt time.Time
}

// pendingDelete is a delete request waiting for its confirmation tap.
type pendingDelete struct {
	MessageID int
}

func newUploadStates() *cacher.Cacher[int64, *pendingUpload] {
	return cacher.NewCacher[int64, *pendingUpload](&cacher.NewCacherOpts{
		TimeToLive:    stateTTL,
		CleanInterval: stateTTL,
		Revaluate:     false,
	})
}

func newURLStates() *cacher.Cacher[int64, *pendingURL] {
	return cacher.NewCacher[int64, *pendingURL](&cacher.NewCacherOpts{
		TimeToLive:    stateTTL,
		CleanInterval: stateTTL,
		Revaluate:     false,
	})
}

func newDeleteStates() *cacher.Cacher[int64, *pendingDelete] {
	return cacher.NewCacher[int64, *pendingDelete](&cacher.NewCacherOpts{
		TimeToLive:    stateTTL,
		CleanInterval: stateTTL,
		Revaluate:     false,
	})
}
