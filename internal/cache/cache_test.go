package cache

import (
	"ShadowStream/streamvault/internal/types"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocatorRoundTrip(t *testing.T) {
	InitCache(zap.NewNop())

	file := &types.File{
		Location: &tg.InputDocumentFileLocation{
			ID:            111222333,
			AccessHash:    -444555666,
			FileReference: []byte{0xde, 0xad, 0xbe, 0xef},
		},
		FileSize: 4724464,
		FileName: "clip.mp4",
		MimeType: "video/mp4",
		ID:       111222333,
		DCID:     4,
	}
	key := LocatorKey(1234567890, 42)
	require.NoError(t, GetCache().Set(key, file, LocatorTTL))

	var got types.File
	require.NoError(t, GetCache().Get(key, &got))
	assert.Equal(t, file.FileSize, got.FileSize)
	assert.Equal(t, file.FileName, got.FileName)
	assert.Equal(t, file.DCID, got.DCID)
	loc, ok := got.Location.(*tg.InputDocumentFileLocation)
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, loc.FileReference)

	GetCache().Delete(key)
	assert.Error(t, GetCache().Get(key, &got))
}

func TestLocatorKeyIsPerMessage(t *testing.T) {
	assert.NotEqual(t, LocatorKey(1, 2), LocatorKey(1, 3))
	assert.NotEqual(t, LocatorKey(1, 2), LocatorKey(2, 2))
}
