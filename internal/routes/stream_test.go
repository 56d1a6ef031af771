package routes

import (
	"ShadowStream/streamvault/config"
	"ShadowStream/streamvault/internal/bot"
	"ShadowStream/streamvault/internal/database"
	"ShadowStream/streamvault/internal/types"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testChannelRaw = int64(1234567890)
	testChannelBot = int64(-1001234567890)
	testMessageID  = 42
)

type fakeStore struct {
	record *database.ArchivedFile
}

func (f *fakeStore) GetByMessageID(ctx context.Context, channelID int64, msgID int) (*database.ArchivedFile, error) {
	if f.record == nil || channelID != f.record.ChannelID || msgID != f.record.MessageID {
		return nil, database.ErrNotFound
	}
	return f.record, nil
}

func (f *fakeStore) Catalog(ctx context.Context, page, perPage int64) ([]database.ArchivedFile, error) {
	if f.record == nil {
		return nil, nil
	}
	return []database.ArchivedFile{*f.record}, nil
}

func (f *fakeStore) Search(ctx context.Context, query string, limit int64) ([]database.ArchivedFile, error) {
	return f.Catalog(ctx, 1, limit)
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	if f.record == nil {
		return 0, nil
	}
	return 1, nil
}

type fakeStreamer struct {
	data       []byte
	resolveErr error
	resolved   int
	streamed   int
}

func (f *fakeStreamer) Resolve(ctx context.Context, channelID int64, messageID int) (*types.File, error) {
	f.resolved++
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return &types.File{FileSize: int64(len(f.data)), FileName: "clip.mp4", MimeType: "video/mp4"}, nil
}

func (f *fakeStreamer) Stream(ctx context.Context, channelID int64, messageID int, file *types.File, start, end int64) io.ReadCloser {
	f.streamed++
	return io.NopCloser(bytes.NewReader(f.data[start : end+1]))
}

func testRecord(size int64) *database.ArchivedFile {
	return &database.ArchivedFile{
		MessageID:   testMessageID,
		ChannelID:   testChannelRaw,
		DisplayName: "clip.mp4",
		SizeBytes:   size,
		MimeType:    "video/mp4",
		Kind:        database.KindVideo,
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
	}
}

func newTestServer(t *testing.T, store Store, streamer Streamer, ready bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	Load(zap.NewNop(), engine, Deps{
		Store:    store,
		Streamer: streamer,
		Ready:    func() bool { return ready },
		PoolSize: func() int { return 1 },
	})
	return engine
}

func doRange(engine *gin.Engine, method, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/stream/-1001234567890/42", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestStreamFullBody(t *testing.T) {
	data := make([]byte, 2000)
	rand.New(rand.NewSource(1)).Read(data)
	streamer := &fakeStreamer{data: data}
	engine := newTestServer(t, &fakeStore{record: testRecord(2000)}, streamer, true)

	w := doRange(engine, http.MethodGet, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Equal(t, "2000", w.Header().Get("Content-Length"))
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clip.mp4")
	assert.Equal(t, data, w.Body.Bytes())
}

func TestStreamPartialContent(t *testing.T) {
	data := make([]byte, 2000)
	rand.New(rand.NewSource(2)).Read(data)
	streamer := &fakeStreamer{data: data}
	engine := newTestServer(t, &fakeStore{record: testRecord(2000)}, streamer, true)

	w := doRange(engine, http.MethodGet, "bytes=100-999")
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 100-999/2000", w.Header().Get("Content-Range"))
	assert.Equal(t, "900", w.Header().Get("Content-Length"))
	assert.Equal(t, data[100:1000], w.Body.Bytes())
}

func TestStreamOpenEndedRange(t *testing.T) {
	data := make([]byte, 2000)
	rand.New(rand.NewSource(3)).Read(data)
	streamer := &fakeStreamer{data: data}
	engine := newTestServer(t, &fakeStore{record: testRecord(2000)}, streamer, true)

	w := doRange(engine, http.MethodGet, "bytes=1500-")
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 1500-1999/2000", w.Header().Get("Content-Range"))
	assert.Equal(t, data[1500:], w.Body.Bytes())
}

func TestStreamUnsatisfiableRanges(t *testing.T) {
	streamer := &fakeStreamer{data: make([]byte, 2000)}
	engine := newTestServer(t, &fakeStore{record: testRecord(2000)}, streamer, true)

	for _, header := range []string{
		"bytes=2000-2100",
		"bytes=100-5000",
		"bytes=500-100",
		"bytes=-500",
		"bytes=0-99,200-299",
	} {
		w := doRange(engine, http.MethodGet, header)
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code, "header %q", header)
		assert.Equal(t, "bytes */2000", w.Header().Get("Content-Range"), "header %q", header)
	}
	assert.Zero(t, streamer.streamed, "416 must not open a stream")
}

func TestStreamNotFoundSkipsUpstream(t *testing.T) {
	streamer := &fakeStreamer{data: make([]byte, 10)}
	engine := newTestServer(t, &fakeStore{record: nil}, streamer, true)

	w := doRange(engine, http.MethodGet, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, streamer.resolved, "404 must not touch the upstream")
	assert.Zero(t, streamer.streamed)
}

func TestStreamNotReady(t *testing.T) {
	streamer := &fakeStreamer{data: make([]byte, 10)}
	engine := newTestServer(t, &fakeStore{record: testRecord(10)}, streamer, false)

	w := doRange(engine, http.MethodGet, "bytes=0-4")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.Empty(t, w.Header().Get("Accept-Ranges"))
	assert.Empty(t, w.Header().Get("Content-Range"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestStreamMessageGone(t *testing.T) {
	streamer := &fakeStreamer{data: make([]byte, 10), resolveErr: bot.ErrMessageGone}
	engine := newTestServer(t, &fakeStore{record: testRecord(10)}, streamer, true)

	w := doRange(engine, http.MethodGet, "bytes=0-4")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Accept-Ranges"))
	assert.Empty(t, w.Header().Get("Content-Range"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestStreamHead(t *testing.T) {
	streamer := &fakeStreamer{data: make([]byte, 2000)}
	engine := newTestServer(t, &fakeStore{record: testRecord(2000)}, streamer, true)

	w := doRange(engine, http.MethodHead, "bytes=0-999")
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "1000", w.Header().Get("Content-Length"))
	assert.Equal(t, "bytes 0-999/2000", w.Header().Get("Content-Range"))
	assert.Empty(t, w.Body.Bytes())
	assert.Zero(t, streamer.streamed, "HEAD must not open a stream")
}

func TestStreamZeroSizeFile(t *testing.T) {
	streamer := &fakeStreamer{}
	engine := newTestServer(t, &fakeStore{record: testRecord(0)}, streamer, true)

	w := doRange(engine, http.MethodGet, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("Content-Length"))
	assert.Empty(t, w.Body.Bytes())

	w = doRange(engine, http.MethodGet, "bytes=0-0")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
}

func TestStreamBadIdentifiers(t *testing.T) {
	engine := newTestServer(t, &fakeStore{}, &fakeStreamer{}, true)

	for _, path := range []string{
		"/stream/notanumber/42",
		"/stream/-1001234567890/zero",
		"/stream/-1001234567890/-5",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "path %q", path)
	}
}

func TestCatalogListing(t *testing.T) {
	config.ValueOf.Host = "http://localhost:7860"
	engine := newTestServer(t, &fakeStore{record: testRecord(2000)}, &fakeStreamer{}, true)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog?page=1&per_page=10", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp catalogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Total)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "http://localhost:7860/stream/-1001234567890/42", resp.Files[0].StreamURL)
}

func TestCatalogPerPageCap(t *testing.T) {
	engine := newTestServer(t, &fakeStore{record: testRecord(10)}, &fakeStreamer{}, true)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog?per_page=5000", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp catalogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, maxPerPage, resp.PerPage)
}
