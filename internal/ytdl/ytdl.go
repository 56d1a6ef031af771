// Package ytdl shells out to yt-dlp for probing and downloading external
// videos. The binary must be on PATH; everything else (proxy, cookies) comes
// from configuration.
package ytdl

import (
	"ShadowStream/streamvault/config"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const binary = "yt-dlp"

// standardHeights are the quality rungs offered to users, capped by what
// the probe actually found.
var standardHeights = []int{360, 480, 720, 1080}

// Probe is the condensed result of a metadata probe.
type Probe struct {
	ID              string
	Title           string
	DurationSeconds int64
	// Heights lists available quality rungs ascending.
	Heights []int
	// SizeByHeight estimates the merged output size in bytes per rung.
	// Zero means the probe had no estimate.
	SizeByHeight map[int]int64
}

// probeJSON mirrors the slice of `yt-dlp -J` output we care about.
type probeJSON struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Formats  []struct {
		FormatID       string  `json:"format_id"`
		Height         int     `json:"height"`
		VCodec         string  `json:"vcodec"`
		ACodec         string  `json:"acodec"`
		Filesize       int64   `json:"filesize"`
		FilesizeApprox float64 `json:"filesize_approx"`
	} `json:"formats"`
}

// IsSupportedURL reports whether the text looks like a video URL the
// downloader handles.
func IsSupportedURL(raw string) bool {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return false
	}
	for _, host := range []string{"youtube.com/", "youtu.be/", "m.youtube.com/"} {
		if strings.Contains(raw, host) {
			return true
		}
	}
	return false
}

// ProbeURL fetches video metadata without downloading anything.
func ProbeURL(ctx context.Context, log *zap.Logger, rawURL string) (*Probe, error) {
	args := append(commonArgs(), "-J", "--no-playlist", rawURL)
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		log.Warn("yt-dlp probe failed",
			zap.String("stderr", firstLine(stderr.String())), zap.Error(err))
		return nil, fmt.Errorf("probe failed: %w", err)
	}
	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*Probe, error) {
	var pj probeJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}
	p := &Probe{
		ID:              pj.ID,
		Title:           pj.Title,
		DurationSeconds: int64(pj.Duration),
		SizeByHeight:    make(map[int]int64),
	}

	// Best audio estimate, added to every video-only rung.
	var audioSize int64
	maxHeight := 0
	videoSize := make(map[int]int64)
	for _, f := range pj.Formats {
		size := f.Filesize
		if size == 0 {
			size = int64(f.FilesizeApprox)
		}
		if f.VCodec == "none" && f.ACodec != "none" {
			if size > audioSize {
				audioSize = size
			}
			continue
		}
		if f.Height > maxHeight {
			maxHeight = f.Height
		}
		if size > videoSize[f.Height] {
			videoSize[f.Height] = size
		}
	}

	for _, h := range standardHeights {
		if h > maxHeight {
			continue
		}
		p.Heights = append(p.Heights, h)
		// Best video at or below the rung.
		var best int64
		for height, size := range videoSize {
			if height <= h && size > best {
				best = size
			}
		}
		if best > 0 {
			p.SizeByHeight[h] = best + audioSize
		}
	}
	sort.Ints(p.Heights)
	if len(p.Heights) == 0 && maxHeight > 0 {
		p.Heights = []int{maxHeight}
	}
	return p, nil
}

// Download fetches the video merged to mp4 at the given quality rung and
// returns the output path inside destDir.
func Download(ctx context.Context, log *zap.Logger, rawURL string, height int, destDir string) (string, error) {
	out := filepath.Join(destDir, "%(id)s.%(ext)s")
	args := append(commonArgs(),
		"-f", fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", height, height),
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", out,
		rawURL,
	)
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Sugar().Infof("Downloading at %dp", height)
	if err := cmd.Run(); err != nil {
		log.Warn("yt-dlp download failed",
			zap.String("stderr", firstLine(stderr.String())), zap.Error(err))
		return "", fmt.Errorf("download failed: %w", err)
	}
	path := strings.TrimSpace(stdout.String())
	if path == "" {
		return "", fmt.Errorf("download produced no output path")
	}
	return path, nil
}

func commonArgs() []string {
	var args []string
	if config.ValueOf.ProxyURL != "" {
		args = append(args, "--proxy", config.ValueOf.ProxyURL)
	}
	if config.ValueOf.YtdlCookies != "" {
		args = append(args, "--cookies", config.ValueOf.YtdlCookies)
	}
	return args
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
