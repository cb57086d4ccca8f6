package ffmpeg

import (
	"context"
	"errors"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/config"
)

// Engine runs ffmpeg and ffprobe to pull still frames out of videos.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	ffmpegPath       string
	ffprobePath      string
	runner           Runner
	captureTimeout   time.Duration
	thumbnailTimeout time.Duration
	log              *zap.Logger
}

func NewEngine(cfg config.FFmpegConfig, runner Runner, log *zap.Logger) *Engine {
	if runner == nil {
		runner = NewExecRunner()
	}
	ffmpegPath := cfg.Path
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := cfg.ProbePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Engine{
		ffmpegPath:       ffmpegPath,
		ffprobePath:      ffprobePath,
		runner:           runner,
		captureTimeout:   cfg.CaptureTimeout,
		thumbnailTimeout: cfg.ThumbnailTimeout,
		log:              log.Named("ffmpeg"),
	}
}

func (e *Engine) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// CaptureFrame extracts exactly one JPEG frame at ts seconds. Input may be a
// local path or an http(s) URL ffmpeg can open directly.
func (e *Engine) CaptureFrame(ctx context.Context, input string, ts float64) ([]byte, error) {
	const op = "ffmpeg.CaptureFrame"
	if ts < 0 {
		return nil, apperr.Newf(apperr.KindValidation, op, "timestamp must be >= 0, got %v", ts)
	}
	if strings.TrimSpace(input) == "" {
		return nil, apperr.New(apperr.KindValidation, op, "input is required")
	}

	ctx, cancel := e.withTimeout(ctx, e.captureTimeout)
	defer cancel()
	return e.extractJPEG(ctx, op, input, ts, "")
}

func (e *Engine) extractJPEG(ctx context.Context, op, input string, ts float64, filter string) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(ts),
		"-i", input,
		"-frames:v", "1",
	}
	if filter != "" {
		args = append(args, "-vf", filter)
	}
	args = append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "pipe:1")

	start := time.Now()
	stdout, stderr, err := e.runner.Run(ctx, e.ffmpegPath, args...)
	diag := strings.TrimSpace(string(stderr))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &apperr.Error{Kind: apperr.KindTimeout, Op: op, Msg: "ffmpeg timed out", Detail: diag, Err: ctx.Err()}
		}
		e.log.Warn("ffmpeg failed", zap.String("op", op), zap.String("input", input), zap.Error(err), zap.String("stderr", diag))
		return nil, &apperr.Error{Kind: apperr.KindCaptureFailed, Op: op, Msg: "ffmpeg exited with error", Detail: diag, Err: err}
	}
	if len(stdout) == 0 {
		if diag == "" {
			diag = "no frame decoded at " + formatSeconds(ts) + "s"
		}
		return nil, &apperr.Error{Kind: apperr.KindCaptureFailed, Op: op, Msg: "ffmpeg produced no output", Detail: diag}
	}

	e.log.Debug("frame extracted",
		zap.String("op", op),
		zap.Float64("ts", ts),
		zap.Int("bytes", len(stdout)),
		zap.Duration("elapsed", time.Since(start)))
	return stdout, nil
}

func formatSeconds(ts float64) string {
	return strconv.FormatFloat(ts, 'f', 3, 64)
}

// CaptureName builds the deterministic frame name {base}_{CODE}.jpg so that a
// repeated capture for the same phase overwrites the previous one.
func CaptureName(videoName, code string) string {
	base := path.Base(strings.ReplaceAll(videoName, "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		base = "frame"
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return base + ".jpg"
	}
	return base + "_" + code + ".jpg"
}
