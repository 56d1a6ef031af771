package bot

import (
	"time"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GetFloodMiddleware wires FLOOD_WAIT handling and a client-side rate cap
// into every outgoing RPC. The waiter sleeps the server-indicated duration;
// the limiter keeps sustained throughput below the point where Telegram
// starts issuing those waits in the first place.
func GetFloodMiddleware(log *zap.Logger) []telegram.Middleware {
	_ = log
	waiter := floodwait.NewSimpleWaiter().WithMaxRetries(10)
	// 30 req/s sustained with bursts up to 15. Chunk fetches go through the
	// download pool, so this mostly governs ingest and metadata traffic.
	ratelimiter := ratelimit.New(rate.Every(time.Millisecond*33), 15)
	return []telegram.Middleware{
		waiter,
		ratelimiter,
	}
}
