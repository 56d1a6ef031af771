package stream

import (
	"ShadowStream/streamvault/internal/bot"
	"ShadowStream/streamvault/internal/types"
	"context"

	"github.com/celestix/gotgproto"
)

// Source abstracts the upstream: resolving an archived message to a file
// locator and fetching chunk-aligned blobs from it. The reader only ever
// talks to this interface.
type Source interface {
	// Resolve returns the file locator and metadata, cache permitting.
	Resolve(ctx context.Context, channelID int64, messageID int) (*types.File, error)
	// Refresh re-resolves the locator bypassing any cache. Used after the
	// upstream rejects a locator as expired.
	Refresh(ctx context.Context, channelID int64, messageID int) (*types.File, error)
	// Fetch pulls one blob. offset is a chunk-aligned byte offset; limit is
	// the chunk size in bytes. A short blob means the file ended.
	Fetch(ctx context.Context, file *types.File, offset int64, limit int) ([]byte, error)
}

// telegramSource is the production Source: message resolution through the
// bot client and blob fetches through the per-DC download session pool.
type telegramSource struct {
	client *gotgproto.Client
	pool   *bot.Pool
}

func NewTelegramSource(client *gotgproto.Client, pool *bot.Pool) Source {
	return &telegramSource{client: client, pool: pool}
}

func (s *telegramSource) Resolve(ctx context.Context, channelID int64, messageID int) (*types.File, error) {
	return bot.ResolveFile(ctx, s.client, channelID, messageID)
}

func (s *telegramSource) Refresh(ctx context.Context, channelID int64, messageID int) (*types.File, error) {
	return bot.RefreshFile(ctx, s.client, channelID, messageID)
}

func (s *telegramSource) Fetch(ctx context.Context, file *types.File, offset int64, limit int) ([]byte, error) {
	return s.pool.Fetch(ctx, file.DCID, file.Location, offset, limit)
}
