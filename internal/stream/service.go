package stream

import (
	"ShadowStream/streamvault/internal/types"
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Service is the streaming facade the HTTP layer talks to. It owns the
// Source and per-blob timeout so route handlers never touch upstream
// details.
type Service struct {
	src          Source
	log          *zap.Logger
	fetchTimeout time.Duration
}

func NewService(src Source, log *zap.Logger, fetchTimeout time.Duration) *Service {
	return &Service{
		src:          src,
		log:          log.Named("Stream"),
		fetchTimeout: fetchTimeout,
	}
}

// Resolve returns the locator and metadata for an archived message.
func (s *Service) Resolve(ctx context.Context, channelID int64, messageID int) (*types.File, error) {
	return s.src.Resolve(ctx, channelID, messageID)
}

// Stream opens a healing reader over the inclusive byte range [start, end].
// The caller owns the reader and must Close it.
func (s *Service) Stream(ctx context.Context, channelID int64, messageID int, file *types.File, start, end int64) io.ReadCloser {
	metrics.TotalStreams.Add(1)
	metrics.ActiveStreams.Add(1)
	return &trackedReader{
		Reader: NewReader(ctx, s.src, s.log, channelID, messageID, file, start, end, s.fetchTimeout),
	}
}

// trackedReader decrements the active-streams gauge exactly once on Close.
type trackedReader struct {
	*Reader
	once sync.Once
}

func (t *trackedReader) Close() error {
	t.once.Do(func() {
		metrics.ActiveStreams.Add(-1)
	})
	return t.Reader.Close()
}
