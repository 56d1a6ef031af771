// Package httprange parses HTTP Range headers and maps validated byte
// ranges onto Telegram's fixed 1 MiB transfer chunks.
package httprange

import (
	"errors"
	"strconv"
	"strings"
)

// ChunkSize is the upstream protocol's fixed transfer unit. upload.getFile
// speaks in these units; passing raw byte offsets where chunk-aligned
// offsets are expected is rejected upstream with OFFSET_INVALID.
const ChunkSize int64 = 1 << 20

// ErrUnsatisfiable reports a Range header that is malformed or cannot be
// satisfied for the given size. The HTTP layer maps it to 416 with
// "Content-Range: bytes */<size>".
var ErrUnsatisfiable = errors.New("range not satisfiable")

// Range is a validated inclusive byte range within a file of Size bytes.
type Range struct {
	Start int64
	End   int64
	Size  int64
	// Full is set when no Range header was present and the whole file is
	// being served with a 200 rather than a 206.
	Full bool
}

// Plan is the contract consumed by the stream engine: skip ChunkOffset
// whole chunks upstream, discard HeadSkip bytes from the first fetched
// chunk, then deliver exactly Want bytes.
type Plan struct {
	ChunkOffset int64
	HeadSkip    int64
	Want        int64
}

// Parse validates an optional Range header against a total size.
//
// Only a single "bytes=S-E" or "bytes=S-" range is supported. Multi-range
// requests, suffix ranges ("bytes=-N"), S > E, S >= size and E >= size all
// fail with ErrUnsatisfiable; there is no silent clamping.
func Parse(header string, size int64) (Range, error) {
	if header == "" {
		return Range{Start: 0, End: size - 1, Size: size, Full: true}, nil
	}
	if size <= 0 {
		return Range{}, ErrUnsatisfiable
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return Range{}, ErrUnsatisfiable
	}
	if strings.Contains(spec, ",") {
		return Range{}, ErrUnsatisfiable
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok || startStr == "" {
		return Range{}, ErrUnsatisfiable
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return Range{}, ErrUnsatisfiable
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return Range{}, ErrUnsatisfiable
		}
	}

	if start > end || start >= size || end >= size {
		return Range{}, ErrUnsatisfiable
	}
	return Range{Start: start, End: end, Size: size}, nil
}

// Plan computes the chunk plan for the range.
func (r Range) Plan() Plan {
	return Plan{
		ChunkOffset: r.Start / ChunkSize,
		HeadSkip:    r.Start % ChunkSize,
		Want:        r.End - r.Start + 1,
	}
}

// ContentRange renders the Content-Range header value for a 206 response.
func (r Range) ContentRange() string {
	return "bytes " + strconv.FormatInt(r.Start, 10) + "-" + strconv.FormatInt(r.End, 10) + "/" + strconv.FormatInt(r.Size, 10)
}

// UnsatisfiableContentRange renders the Content-Range header value that
// accompanies a 416 response.
func UnsatisfiableContentRange(size int64) string {
	return "bytes */" + strconv.FormatInt(size, 10)
}
