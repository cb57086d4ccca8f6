package ffmpeg

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const (
	thumbnailWidth   = 320
	thumbnailMinSeek = 1.0
	thumbnailMaxSeek = 300.0
)

// Thumbnail extracts a representative JPEG frame from input. It seeks to 10%
// of the video duration for a more representative frame than the first one.
func (e *Engine) Thumbnail(ctx context.Context, input string) ([]byte, error) {
	ctx, cancel := e.withTimeout(ctx, e.thumbnailTimeout)
	defer cancel()

	seek := thumbnailMinSeek
	info, err := e.Probe(ctx, input)
	if err != nil {
		e.log.Debug("probe before thumbnail failed, using fallback seek", zap.String("input", input), zap.Error(err))
	} else {
		seek = thumbnailSeek(info.DurationSec)
	}

	return e.extractJPEG(ctx, "ffmpeg.Thumbnail", input, seek, fmt.Sprintf("scale=%d:-1", thumbnailWidth))
}

func thumbnailSeek(duration float64) float64 {
	if duration <= 0 {
		return thumbnailMinSeek
	}
	seek := duration * 0.10
	if seek < thumbnailMinSeek {
		seek = thumbnailMinSeek
	}
	if seek > thumbnailMaxSeek {
		seek = thumbnailMaxSeek
	}
	// Short clips: stay inside the video.
	if seek >= duration {
		seek = duration / 2
	}
	return seek
}
