package httprange

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNoHeader(t *testing.T) {
	r, err := Parse("", 1500000)
	require.NoError(t, err)
	assert.True(t, r.Full)
	assert.Equal(t, int64(0), r.Start)
	assert.Equal(t, int64(1499999), r.End)
	assert.Equal(t, int64(1500000), r.Plan().Want)
}

func TestParseOpenEnded(t *testing.T) {
	r, err := Parse("bytes=500000-", 1500000)
	require.NoError(t, err)
	assert.False(t, r.Full)
	assert.Equal(t, int64(500000), r.Start)
	assert.Equal(t, int64(1499999), r.End)
}

func TestParseExplicit(t *testing.T) {
	r, err := Parse("bytes=500000-1000000", 1500000)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), r.Start)
	assert.Equal(t, int64(1000000), r.End)
	assert.Equal(t, "bytes 500000-1000000/1500000", r.ContentRange())

	plan := r.Plan()
	assert.Equal(t, int64(0), plan.ChunkOffset)
	assert.Equal(t, int64(500000), plan.HeadSkip)
	assert.Equal(t, int64(500001), plan.Want)
}

func TestParseChunkAligned(t *testing.T) {
	r, err := Parse("bytes=1048576-1499999", 1500000)
	require.NoError(t, err)
	plan := r.Plan()
	assert.Equal(t, int64(1), plan.ChunkOffset)
	assert.Equal(t, int64(0), plan.HeadSkip)
	assert.Equal(t, int64(451424), plan.Want)
}

func TestParseTail(t *testing.T) {
	r, err := Parse("bytes=1400000-1499999", 1500000)
	require.NoError(t, err)
	plan := r.Plan()
	assert.Equal(t, int64(1), plan.ChunkOffset)
	assert.Equal(t, int64(351424), plan.HeadSkip)
	assert.Equal(t, int64(100000), plan.Want)
}

func TestParseUnsatisfiable(t *testing.T) {
	cases := []struct {
		header string
		size   int64
	}{
		{"bytes=5-2", 100},                 // start > end
		{"bytes=100-", 100},                // start >= size
		{"bytes=1600000-1700000", 1500000}, // past EOF
		{"bytes=0-100", 100},               // end >= size, no clamping
		{"bytes=0-1,5-6", 100},             // multi-range unsupported
		{"bytes=-50", 100},                 // suffix range unsupported
		{"chunks=0-1", 100},                // wrong unit
		{"bytes=abc-def", 100},             // not numeric
		{"bytes=", 100},                    // empty spec
		{"bytes=0-0", 0},                   // empty file
	}
	for _, tc := range cases {
		t.Run(tc.header, func(t *testing.T) {
			_, err := Parse(tc.header, tc.size)
			assert.ErrorIs(t, err, ErrUnsatisfiable)
		})
	}
	assert.Equal(t, "bytes */1500000", UnsatisfiableContentRange(1500000))
}

func TestPlanArithmetic(t *testing.T) {
	// Chunk plan over arbitrary offsets in [0, 10*ChunkSize).
	size := 10 * ChunkSize
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		start := rng.Int63n(size)
		end := start + rng.Int63n(size-start)
		r, err := Parse(fmt.Sprintf("bytes=%d-%d", start, end), size)
		require.NoError(t, err)
		plan := r.Plan()
		assert.Equal(t, start/ChunkSize, plan.ChunkOffset)
		assert.Equal(t, start%ChunkSize, plan.HeadSkip)
		assert.Equal(t, end-start+1, plan.Want)
		// The plan lands exactly on the requested first byte.
		assert.Equal(t, plan.ChunkOffset*ChunkSize+plan.HeadSkip, start)
	}
}

func TestParseBoundarySizes(t *testing.T) {
	for _, size := range []int64{1, ChunkSize - 1, ChunkSize, ChunkSize + 1, 3*ChunkSize + 123} {
		r, err := Parse("", size)
		require.NoError(t, err)
		assert.Equal(t, size, r.Plan().Want)

		r, err = Parse(fmt.Sprintf("bytes=0-%d", size-1), size)
		require.NoError(t, err)
		assert.Equal(t, size, r.Plan().Want)
	}
}
