package stream

import (
	"ShadowStream/streamvault/internal/httprange"
	"ShadowStream/streamvault/internal/types"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

var (
	// ErrPrematureEOF reports that the upstream delivered fewer bytes than
	// the file size promised. Not healable: bytes already sent cannot be
	// unsent, so the connection is dropped mid-body.
	ErrPrematureEOF = errors.New("upstream ended before the requested range was delivered")

	// ErrStreamBroken reports that healing gave up after exhausting its
	// retry budget.
	ErrStreamBroken = errors.New("stream broken")
)

// maxHealRetries bounds consecutive heal attempts for one incident. The
// counter resets after every successfully delivered blob.
const maxHealRetries = 3

// Reader streams one byte range of an archived file as an io.ReadCloser,
// translating it into chunk-aligned upstream fetches and healing transient
// upstream failures in place. Offsets sent upstream are always
// chunk-aligned; the sub-chunk remainder is skipped locally, so a resumed
// stream continues at exactly the next undelivered byte.
type Reader struct {
	ctx       context.Context
	src       Source
	log       *zap.Logger
	channelID int64
	messageID int
	file      *types.File

	start     int64 // first byte of the range (absolute)
	want      int64 // total bytes owed to the client
	delivered int64 // bytes handed out so far
	buf       []byte
	err       error

	fetchTimeout time.Duration
}

// NewReader builds a reader for the inclusive byte range [start, end] of an
// already-resolved file. fetchTimeout bounds each individual blob fetch.
func NewReader(ctx context.Context, src Source, log *zap.Logger, channelID int64, messageID int, file *types.File, start, end int64, fetchTimeout time.Duration) *Reader {
	if fetchTimeout <= 0 {
		fetchTimeout = 60 * time.Second
	}
	return &Reader{
		ctx:          ctx,
		src:          src,
		log:          log.Named("Reader"),
		channelID:    channelID,
		messageID:    messageID,
		file:         file,
		start:        start,
		want:         end - start + 1,
		fetchTimeout: fetchTimeout,
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if len(r.buf) == 0 {
		if r.delivered >= r.want {
			r.err = io.EOF
			return 0, io.EOF
		}
		if err := r.fill(); err != nil {
			r.err = err
			return 0, err
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	r.delivered += int64(n)
	metrics.BytesServed.Add(int64(n))
	return n, nil
}

func (r *Reader) Close() error {
	if r.err == nil {
		r.err = errors.New("reader closed")
	}
	return nil
}

// fill fetches the blob containing the next undelivered byte, healing
// transient failures along the way. On success r.buf holds at least one
// byte, already trimmed to the range.
func (r *Reader) fill() error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.Multiplier = 4
	bo.RandomizationFactor = 0
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()

	attempts := 0
	timeoutKeptLocator := false
	for {
		blob, err := r.fetchOnce()
		if err == nil {
			r.buf = blob
			return nil
		}
		if r.ctx.Err() != nil {
			return r.ctx.Err()
		}
		if wait, ok := tgerr.AsFloodWait(err); ok {
			// Server-mandated pause. Sleeping is the fix, so this does not
			// consume a heal attempt and the locator stays valid.
			r.log.Warn("Flood wait mid-stream, sleeping",
				zap.Duration("wait", wait), zap.Int("messageID", r.messageID))
			if !r.sleep(wait) {
				return r.ctx.Err()
			}
			continue
		}
		if !healable(err) {
			return err
		}

		attempts++
		if attempts > maxHealRetries {
			metrics.HealFailures.Add(1)
			return fmt.Errorf("%w after %d attempts: %v", ErrStreamBroken, maxHealRetries, err)
		}
		metrics.HealEvents.Add(1)
		r.log.Warn("Healing stream",
			zap.Int("attempt", attempts),
			zap.Int64("delivered", r.delivered),
			zap.Int("messageID", r.messageID),
			zap.Error(err))
		if !r.sleep(bo.NextBackOff()) {
			return r.ctx.Err()
		}

		// A first timeout is usually a slow DC, not a dead locator; skip
		// the re-resolve round trip once. Every other failure gets a fresh
		// locator.
		if isTimeout(err) && !timeoutKeptLocator {
			timeoutKeptLocator = true
			continue
		}
		file, rerr := r.src.Refresh(r.ctx, r.channelID, r.messageID)
		if rerr != nil {
			r.log.Warn("Locator refresh failed during heal", zap.Error(rerr))
			continue
		}
		r.file = file
	}
}

// fetchOnce performs a single chunk-aligned fetch for the next undelivered
// byte and trims it to the range.
func (r *Reader) fetchOnce() ([]byte, error) {
	next := r.start + r.delivered
	chunkOffset := (next / httprange.ChunkSize) * httprange.ChunkSize
	skip := next - chunkOffset

	ctx, cancel := context.WithTimeout(r.ctx, r.fetchTimeout)
	defer cancel()
	blob, err := r.src.Fetch(ctx, r.file, chunkOffset, int(httprange.ChunkSize))
	if err != nil {
		return nil, err
	}
	if int64(len(blob)) <= skip {
		return nil, fmt.Errorf("%w: got %d bytes at offset %d, needed past byte %d",
			ErrPrematureEOF, len(blob), chunkOffset, skip)
	}
	blob = blob[skip:]
	if remaining := r.want - r.delivered; int64(len(blob)) > remaining {
		blob = blob[:remaining]
	}
	return blob, nil
}

// sleep waits for d or until the request context dies. Reports false on
// cancellation.
func (r *Reader) sleep(d time.Duration) bool {
	if d <= 0 {
		return r.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-r.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// healable classifies errors worth a retry: expired locators, bad offsets
// after a locator change, timeouts and transient network faults.
func healable(err error) bool {
	if tgerr.Is(err, "FILE_REFERENCE_EXPIRED", "FILE_REFERENCE_INVALID", "OFFSET_INVALID", "LOCATION_INVALID") {
		return true
	}
	if isTimeout(err) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
