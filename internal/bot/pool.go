package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// connectionsPerDC bounds the MTProto connections each pool entry may open.
const connectionsPerDC = 2

// Pool hands out pre-authenticated download sub-sessions keyed by
// datacenter. Creating one costs a DC dial plus auth export/import
// (seconds); afterwards every concurrent stream targeting that DC shares
// it, so no request ever re-authenticates.
type Pool struct {
	log  *zap.Logger
	dial func(ctx context.Context, dc int) (telegram.CloseInvoker, error)

	mu      sync.Mutex
	entries map[int]*poolEntry
}

type poolEntry struct {
	dc      int
	once    sync.Once
	initErr error
	invoker telegram.CloseInvoker
	api     *tg.Client

	// Serializes stream_file calls on this entry. Held for one blob fetch
	// at a time, so concurrent streams to the same DC interleave at blob
	// granularity.
	mu sync.Mutex
}

func NewPool(client *gotgproto.Client, log *zap.Logger) *Pool {
	return &Pool{
		log: log.Named("SessionPool"),
		dial: func(ctx context.Context, dc int) (telegram.CloseInvoker, error) {
			return client.DC(ctx, dc, connectionsPerDC)
		},
		entries: make(map[int]*poolEntry),
	}
}

// entry returns the pool entry for a DC, creating it on first use. The map
// mutex is held only for the lookup; the dial happens under the entry's
// sync.Once so concurrent first requests wait for one dial instead of
// racing several.
func (p *Pool) entry(ctx context.Context, dc int) (*poolEntry, error) {
	p.mu.Lock()
	e, ok := p.entries[dc]
	if !ok {
		e = &poolEntry{dc: dc}
		p.entries[dc] = e
	}
	p.mu.Unlock()

	e.once.Do(func() {
		p.log.Sugar().Infof("Creating download session for DC %d", dc)
		invoker, err := p.dial(ctx, dc)
		if err != nil {
			e.initErr = fmt.Errorf("dial DC %d: %w", dc, err)
			return
		}
		e.invoker = invoker
		e.api = tg.NewClient(invoker)
		p.log.Sugar().Infof("Download session ready for DC %d", dc)
	})
	if e.initErr != nil {
		// Leave the broken entry behind so the next request retries the
		// dial instead of reusing a dead invoker.
		p.mu.Lock()
		if p.entries[dc] == e {
			delete(p.entries, dc)
		}
		p.mu.Unlock()
		return nil, e.initErr
	}
	return e, nil
}

// Fetch pulls one chunk from the given DC. offset is a byte offset and must
// be chunk-aligned; limit is the chunk size in bytes.
func (p *Pool) Fetch(ctx context.Context, dc int, location tg.InputFileLocationClass, offset int64, limit int) ([]byte, error) {
	e, err := p.entry(ctx, dc)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.api.UploadGetFile(ctx, &tg.UploadGetFileRequest{
		Precise:  true,
		Location: location,
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	switch result := res.(type) {
	case *tg.UploadFile:
		return result.GetBytes(), nil
	case *tg.UploadFileCDNRedirect:
		return nil, fmt.Errorf("unexpected CDN redirect for DC %d", dc)
	default:
		return nil, fmt.Errorf("unexpected upload.getFile response %T", res)
	}
}

// Size reports how many DC entries exist. Used by the status route.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close tears down every download session. Called once on shutdown.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for dc, e := range p.entries {
		if e.invoker == nil {
			continue
		}
		if err := e.invoker.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close DC %d session: %w", dc, err)
		}
	}
	p.entries = make(map[int]*poolEntry)
	return firstErr
}
