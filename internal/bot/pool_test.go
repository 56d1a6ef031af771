package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeInvoker serves upload.getFile from an in-memory blob and records how
// many calls it saw in flight at once.
type fakeInvoker struct {
	data []byte

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	closed      atomic.Bool
}

func (f *fakeInvoker) Invoke(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxInFlight.Load()
		if cur <= seen || f.maxInFlight.CompareAndSwap(seen, cur) {
			break
		}
	}
	// Widen the window so overlapping calls would be observed.
	time.Sleep(2 * time.Millisecond)

	req, ok := input.(*tg.UploadGetFileRequest)
	if !ok {
		return fmt.Errorf("unexpected request %T", input)
	}
	end := req.Offset + int64(req.Limit)
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	res := &tg.UploadFile{Type: &tg.StorageFilePartial{}, Bytes: f.data[req.Offset:end]}
	var buf bin.Buffer
	if err := res.Encode(&buf); err != nil {
		return err
	}
	return output.Decode(&buf)
}

func (f *fakeInvoker) Close() error {
	f.closed.Store(true)
	return nil
}

func newTestPool(dial func(ctx context.Context, dc int) (telegram.CloseInvoker, error)) *Pool {
	return &Pool{
		log:     zap.NewNop(),
		dial:    dial,
		entries: make(map[int]*poolEntry),
	}
}

func TestPoolSharesSessionPerDC(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i % 251)
	}
	inv := &fakeInvoker{data: data}

	var dials atomic.Int32
	pool := newTestPool(func(ctx context.Context, dc int) (telegram.CloseInvoker, error) {
		dials.Add(1)
		// A real DC dial takes long enough for every first request to pile
		// up behind it.
		time.Sleep(20 * time.Millisecond)
		return inv, nil
	})

	const workers = 8
	const limit = 512
	var wg sync.WaitGroup
	errs := make([]error, workers)
	got := make([][]byte, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := int64(i * limit)
			got[i], errs[i] = pool.Fetch(context.Background(), 4, &tg.InputDocumentFileLocation{}, offset, limit)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, data[i*limit:(i+1)*limit], got[i])
	}
	assert.EqualValues(t, 1, dials.Load(), "concurrent first requests must share one dial")
	assert.Equal(t, 1, pool.Size())
	assert.EqualValues(t, 1, inv.maxInFlight.Load(), "fetches on one session must be serialized")

	require.NoError(t, pool.Close())
	assert.True(t, inv.closed.Load())
	assert.Equal(t, 0, pool.Size())
}

func TestPoolRedialsAfterFailedDial(t *testing.T) {
	inv := &fakeInvoker{data: []byte("payload")}

	var dials atomic.Int32
	pool := newTestPool(func(ctx context.Context, dc int) (telegram.CloseInvoker, error) {
		if dials.Add(1) == 1 {
			return nil, errors.New("dc unreachable")
		}
		return inv, nil
	})

	_, err := pool.Fetch(context.Background(), 2, &tg.InputDocumentFileLocation{}, 0, 1024)
	require.Error(t, err)
	assert.Equal(t, 0, pool.Size(), "failed dial must not leave a dead entry behind")

	got, err := pool.Fetch(context.Background(), 2, &tg.InputDocumentFileLocation{}, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	assert.EqualValues(t, 2, dials.Load())
	assert.Equal(t, 1, pool.Size())
}
