package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/api/middleware"
	"github.com/swing-coach/backend/internal/coaching"
	"github.com/swing-coach/backend/internal/config"
	"github.com/swing-coach/backend/internal/db"
	"github.com/swing-coach/backend/internal/db/models"
	"github.com/swing-coach/backend/internal/ffmpeg"
	"github.com/swing-coach/backend/internal/storage"
	"github.com/swing-coach/backend/internal/summarize"
	"github.com/swing-coach/backend/internal/transcribe"
)

type fakeCapture struct{}

func (fakeCapture) Probe(ctx context.Context, input string) (*ffmpeg.MediaInfo, error) {
	return &ffmpeg.MediaInfo{DurationSec: 20, VideoCodec: "h264"}, nil
}

func (fakeCapture) Thumbnail(ctx context.Context, input string) ([]byte, error) {
	return []byte("thumb"), nil
}

func (fakeCapture) CaptureFrame(ctx context.Context, input string, ts float64) ([]byte, error) {
	return []byte("frame"), nil
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, req transcribe.Request, purpose transcribe.Purpose) (string, error) {
	return "transcribed " + string(purpose), nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, kind summarize.Kind, text string) (string, error) {
	return "summary", nil
}

func (fakeSummarizer) SuggestTags(ctx context.Context, req summarize.TagRequest) (*summarize.TagSuggestion, error) {
	return &summarize.TagSuggestion{Tags: models.PhaseSet{models.PhaseImpact}, Reasoning: "impact"}, nil
}

type testServer struct {
	*httptest.Server
	svc *coaching.Service
}

func newTestServer(t *testing.T, limit int) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	dir := t.TempDir()

	database, err := db.Open(ctx, config.DatabaseConfig{Driver: "sqlite3", DSN: filepath.Join(dir, "api.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ts := &testServer{}
	mux := http.NewServeMux()
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	store, err := storage.NewLocal(filepath.Join(dir, "media"), ts.URL, 1, zap.NewNop())
	require.NoError(t, err)

	ts.svc = coaching.New(database, store, fakeCapture{}, fakeTranscriber{}, fakeSummarizer{},
		coaching.Options{ThumbnailWait: time.Second, URLTTL: time.Minute}, zap.NewNop())
	t.Cleanup(func() { ts.svc.Wait(context.Background()) })

	cfg := &config.Config{CORSOrigins: []string{"*"}, MaxUploadBytes: 10 << 20, MaxJSONBytes: 1 << 20}
	mux.Handle("/", NewRouter(Deps{
		Config:   cfg,
		Coaching: ts.svc,
		Database: database,
		Storage:  store,
		Limiter:  middleware.NewRateLimiter(ctx, limit, time.Minute),
		Log:      zap.NewNop(),
	}))
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return ts.send(t, req)
}

func (ts *testServer) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (ts *testServer) multipart(t *testing.T, path string, fields map[string]string, fileField, fileName string, data []byte) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.send(t, req)
}

func (ts *testServer) uploadVideo(t *testing.T) string {
	t.Helper()
	resp, body := ts.multipart(t, "/api/videos", map[string]string{"user_id": "user-1", "club_type": "iron"}, "video", "swing01.mp4", []byte("mp4-bytes"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["video_id"].(string)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 10)
	resp, body := ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "local", body["storage"])
}

func TestAnnotationFlow(t *testing.T) {
	ts := newTestServer(t, 100)
	videoID := ts.uploadVideo(t)

	resp, video := ts.do(t, http.MethodGet, "/api/videos/"+videoID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "iron", video["club_type"])
	assert.Equal(t, "videos/"+videoID+"/thumb.jpg", video["thumbnail_url"])

	_, first := ts.do(t, http.MethodPost, "/api/videos/"+videoID+"/section-groups", nil)
	_, second := ts.do(t, http.MethodPost, "/api/videos/"+videoID+"/section-groups", nil)
	groupID := first["section_group_id"].(string)
	assert.Equal(t, groupID, second["section_group_id"])

	resp, sec := ts.do(t, http.MethodPost, "/api/section-groups/"+groupID+"/sections", map[string]any{
		"start_sec":   1.5,
		"end_sec":     3.25,
		"tags":        []string{"top"},
		"markup_json": map[string]any{"shapes": []any{}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, sec)
	sectionID := sec["section_id"].(string)
	assert.Equal(t, 1.5, sec["start_sec"])
	assert.Equal(t, 3.25, sec["end_sec"])

	resp, body := ts.do(t, http.MethodPost, "/api/section-groups/"+groupID+"/sections", map[string]any{"start_sec": 5, "end_sec": 4})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["kind"])

	resp, sec = ts.do(t, http.MethodPost, "/api/sections/"+sectionID+"/comment", map[string]string{"text": "keep the wrist flat"})
	require.Equal(t, http.StatusOK, resp.StatusCode, sec)
	assert.Equal(t, "keep the wrist flat", sec["coach_comment"])
	assert.Equal(t, "summary", sec["coach_comment_summary"])

	resp, res := ts.do(t, http.MethodPost, "/api/sections/"+sectionID+"/analyze", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, res)
	assert.Equal(t, true, res["rolled_up"])
	assert.Equal(t, []any{"impact"}, res["suggested_tags"])

	resp, capture := ts.do(t, http.MethodPost, "/api/capture-frame", map[string]any{
		"video_id": videoID, "timestamp": 2.0, "phase": "top", "section_id": sectionID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, capture)
	assert.Equal(t, "swing01_TP.jpg", capture["file_name"])

	img, err := http.Get(capture["image_url"].(string))
	require.NoError(t, err)
	data, _ := io.ReadAll(img.Body)
	img.Body.Close()
	assert.Equal(t, "frame", string(data))

	resp, u := ts.do(t, http.MethodGet, "/api/media-url?locator="+capture["image_locator"].(string), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, capture["image_url"], u["url"])

	resp, list := ts.do(t, http.MethodGet, "/api/section-groups/"+groupID+"/sections", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list["sections"], 1)

	resp, _ = ts.do(t, http.MethodDelete, "/api/videos/"+videoID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, body = ts.do(t, http.MethodGet, "/api/videos/"+videoID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["kind"])
}

func TestCommentFromAudioUpload(t *testing.T) {
	ts := newTestServer(t, 100)
	videoID := ts.uploadVideo(t)
	_, g := ts.do(t, http.MethodPost, "/api/videos/"+videoID+"/section-groups", nil)
	_, sec := ts.do(t, http.MethodPost, "/api/section-groups/"+g["section_group_id"].(string)+"/sections", map[string]any{"start_sec": 0, "end_sec": 1})

	resp, body := ts.multipart(t, "/api/sections/"+sec["section_id"].(string)+"/comment", nil, "audio", "memo.webm", []byte("opus"))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "transcribed section_comment", body["coach_comment"])
}

func TestFeedbackEndpoint(t *testing.T) {
	ts := newTestServer(t, 100)
	videoID := ts.uploadVideo(t)
	_, g := ts.do(t, http.MethodPost, "/api/videos/"+videoID+"/section-groups", nil)
	groupID := g["section_group_id"].(string)

	resp, body := ts.do(t, http.MethodPost, "/api/section-groups/"+groupID+"/feedback", map[string]string{"type": "overall", "text": "good rhythm overall"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	resp, body = ts.do(t, http.MethodPost, "/api/section-groups/"+groupID+"/feedback", map[string]string{"type": "next_training", "text": "towel drill x30"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.NotNil(t, body["feedback_created_at"])

	resp, body = ts.do(t, http.MethodPost, "/api/section-groups/"+groupID+"/feedback", map[string]string{"type": "poem", "text": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestCaptureRejectsFileURL(t *testing.T) {
	ts := newTestServer(t, 100)
	resp, body := ts.do(t, http.MethodPost, "/api/capture-frame", map[string]any{
		"access_url": "file:///etc/passwd", "timestamp": 1, "filename": "x.mp4",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["kind"])

	resp, _ = ts.do(t, http.MethodPost, "/api/capture-frame", map[string]any{"video_id": "v"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	ts := newTestServer(t, 100)
	for _, path := range []string{"/api/videos/nope", "/api/sections/nope", "/api/section-groups/nope", "/api/reservations/nope"} {
		resp, body := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, "not_found", body["kind"], path)
	}
}

func TestReservationEndpoints(t *testing.T) {
	ts := newTestServer(t, 100)
	resp, r := ts.do(t, http.MethodPost, "/api/reservations", map[string]any{
		"user_id": "u1", "coach_id": "c1", "scheduled_at": "2026-11-02T10:00:00Z", "location_type": "indoor", "price": 5000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, r)
	id := r["reservation_id"].(string)

	resp, r = ts.do(t, http.MethodPost, "/api/reservations/"+id+"/status", map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", r["status"])

	resp, r = ts.do(t, http.MethodPost, "/api/reservations/"+id+"/status", map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", r["kind"])
}

func TestAIRoutesAreRateLimited(t *testing.T) {
	ts := newTestServer(t, 1)
	resp, _ := ts.multipart(t, "/api/transcribe-audio", map[string]string{"type": "general"}, "audio", "a.webm", []byte("opus"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.multipart(t, "/api/transcribe-audio", map[string]string{"type": "general"}, "audio", "a.webm", []byte("opus"))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", body["kind"])
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	resp, _ = ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSectionImageUpload(t *testing.T) {
	ts := newTestServer(t, 10)

	resp, body := ts.multipart(t, "/api/section-images", nil, "image", "markup.png", []byte("png"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	locator := body["image_locator"].(string)
	assert.Contains(t, locator, "section-images/")

	resp, u := ts.do(t, http.MethodGet, "/api/media-url?locator="+locator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, u)
	assert.Equal(t, body["image_url"], u["url"])

	resp, body = ts.multipart(t, "/api/section-images", nil, "", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestAttachThumbnail(t *testing.T) {
	ts := newTestServer(t, 10)
	videoID := ts.uploadVideo(t)

	resp, body := ts.multipart(t, "/api/videos/"+videoID+"/thumbnail", nil, "thumbnail", "thumb.jpg", []byte("jpeg"))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.NotEmpty(t, body["thumbnail_url"])

	resp, body = ts.multipart(t, "/api/videos/"+videoID+"/thumbnail", nil, "thumbnail", "notes.txt", []byte("text"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["kind"])
}

func TestMediaDirectoriesAreNotListed(t *testing.T) {
	ts := newTestServer(t, 10)
	ts.uploadVideo(t)

	for _, p := range []string{"/media/", "/media/videos/"} {
		resp, err := http.Get(ts.URL + p)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
	}
}
