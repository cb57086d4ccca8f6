package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/config"
)

type call struct {
	name string
	args []string
}

// stubRunner replays canned output per executable and records every call.
type stubRunner struct {
	mu      sync.Mutex
	calls   []call
	outputs map[string]stubResult
}

type stubResult struct {
	stdout []byte
	stderr []byte
	err    error
	block  bool
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{name: name, args: args})
	res := s.outputs[name]
	s.mu.Unlock()
	if res.block {
		<-ctx.Done()
		return nil, []byte("killed"), ctx.Err()
	}
	return res.stdout, res.stderr, res.err
}

func (s *stubRunner) last(name string) call {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].name == name {
			return s.calls[i]
		}
	}
	return call{}
}

func newTestEngine(r Runner) *Engine {
	return NewEngine(config.FFmpegConfig{
		Path:             "/opt/bin/ffmpeg-stub",
		ProbePath:        "/opt/bin/ffprobe-stub",
		CaptureTimeout:   time.Second,
		ThumbnailTimeout: time.Second,
	}, r, zap.NewNop())
}

const probeJSON = `{"format":{"filename":"swing01.mp4","duration":"12.500000","size":"1024"},
"streams":[{"index":0,"codec_name":"aac","codec_type":"audio"},
{"index":1,"codec_name":"h264","codec_type":"video","width":1920,"height":1080,"r_frame_rate":"60/1"}]}`

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestCaptureFrameUsesConfiguredPathAndTimestamp(t *testing.T) {
	r := &stubRunner{outputs: map[string]stubResult{
		"/opt/bin/ffmpeg-stub": {stdout: []byte{0xff, 0xd8, 0xff}},
	}}
	e := newTestEngine(r)

	img, err := e.CaptureFrame(context.Background(), "/tmp/swing01.mp4", 3.25)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, img)

	c := r.last("/opt/bin/ffmpeg-stub")
	assert.Equal(t, "3.250", argValue(c.args, "-ss"))
	assert.Equal(t, "/tmp/swing01.mp4", argValue(c.args, "-i"))
	assert.Equal(t, "1", argValue(c.args, "-frames:v"))
	assert.Equal(t, "pipe:1", c.args[len(c.args)-1])
}

func TestCaptureFrameFailures(t *testing.T) {
	tests := []struct {
		name       string
		result     stubResult
		wantKind   apperr.Kind
		wantDetail string
	}{
		{
			name:       "non-zero exit carries stderr",
			result:     stubResult{stderr: []byte("moov atom not found\n"), err: errors.New("exit status 1")},
			wantKind:   apperr.KindCaptureFailed,
			wantDetail: "moov atom not found",
		},
		{
			name:       "empty output",
			result:     stubResult{},
			wantKind:   apperr.KindCaptureFailed,
			wantDetail: "no frame decoded at 99.000s",
		},
		{
			name:       "deadline",
			result:     stubResult{block: true},
			wantKind:   apperr.KindTimeout,
			wantDetail: "killed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRunner{outputs: map[string]stubResult{"/opt/bin/ffmpeg-stub": tt.result}}
			e := newTestEngine(r)
			e.captureTimeout = 20 * time.Millisecond

			_, err := e.CaptureFrame(context.Background(), "in.mp4", 99)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Equal(t, tt.wantDetail, apperr.DetailOf(err))
		})
	}
}

func TestCaptureFrameRejectsNegativeTimestamp(t *testing.T) {
	r := &stubRunner{}
	_, err := newTestEngine(r).CaptureFrame(context.Background(), "in.mp4", -0.5)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, r.calls)
}

func TestThumbnailSeeksToTenPercent(t *testing.T) {
	r := &stubRunner{outputs: map[string]stubResult{
		"/opt/bin/ffprobe-stub": {stdout: []byte(probeJSON)},
		"/opt/bin/ffmpeg-stub":  {stdout: []byte("jpeg")},
	}}
	e := newTestEngine(r)

	img, err := e.Thumbnail(context.Background(), "swing01.mp4")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(img))

	c := r.last("/opt/bin/ffmpeg-stub")
	assert.Equal(t, "1.250", argValue(c.args, "-ss"))
	assert.Equal(t, "scale=320:-1", argValue(c.args, "-vf"))
}

func TestThumbnailSeek(t *testing.T) {
	assert.Equal(t, 1.0, thumbnailSeek(0))
	assert.Equal(t, 1.0, thumbnailSeek(5))
	assert.Equal(t, 0.4, thumbnailSeek(0.8))
	assert.Equal(t, 6.0, thumbnailSeek(60))
	assert.Equal(t, 300.0, thumbnailSeek(7200))
}

func TestProbe(t *testing.T) {
	r := &stubRunner{outputs: map[string]stubResult{
		"/opt/bin/ffprobe-stub": {stdout: []byte(probeJSON)},
	}}
	e := newTestEngine(r)

	info, err := e.Probe(context.Background(), "swing01.mp4")
	require.NoError(t, err)
	assert.Equal(t, 12.5, info.DurationSec)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, 1920, info.Width)
}

func TestProbeWithoutVideoStream(t *testing.T) {
	r := &stubRunner{outputs: map[string]stubResult{
		"/opt/bin/ffprobe-stub": {stdout: []byte(`{"format":{"duration":"3.0"},"streams":[{"codec_type":"audio"}]}`)},
	}}
	e := newTestEngine(r)
	info, err := e.Probe(context.Background(), "voice.webm")
	assert.Error(t, err)
	assert.Nil(t, info)
}

func TestCaptureName(t *testing.T) {
	tests := []struct {
		video, code, want string
	}{
		{"swing01.mp4", "IM", "swing01_IM.jpg"},
		{"videos/v1/swing01.mp4", "im", "swing01_IM.jpg"},
		{`C:\clips\driver.MOV`, "TP", "driver_TP.jpg"},
		{"swing01", "AD", "swing01_AD.jpg"},
		{"", "F1", "frame_F1.jpg"},
		{"swing01.mp4", "", "swing01.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := CaptureName(tt.video, tt.code)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.Contains(got, "("))
		})
	}
}
