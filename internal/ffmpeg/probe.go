package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

type ProbeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"` // video, audio
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	RFrameRate string `json:"r_frame_rate,omitempty"`
}

type MediaInfo struct {
	DurationSec float64 `json:"duration_sec"`
	VideoCodec  string  `json:"video_codec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FrameRate   string  `json:"frame_rate"`
}

// Probe reads container metadata with ffprobe.
func (e *Engine) Probe(ctx context.Context, input string) (*MediaInfo, error) {
	ctx, cancel := e.withTimeout(ctx, e.captureTimeout)
	defer cancel()

	stdout, stderr, err := e.runner.Run(ctx, e.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(stderr)))
	}
	return parseProbe(stdout)
}

func parseProbe(output []byte) (*MediaInfo, error) {
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &MediaInfo{}
	if result.Format.Duration != "" {
		d, err := strconv.ParseFloat(result.Format.Duration, 64)
		if err == nil && d > 0 {
			info.DurationSec = d
		}
	}
	for _, s := range result.Streams {
		if s.CodecType == "video" && info.VideoCodec == "" {
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.FrameRate = s.RFrameRate
		}
	}
	if info.VideoCodec == "" {
		return nil, fmt.Errorf("no video stream found")
	}
	return info, nil
}
