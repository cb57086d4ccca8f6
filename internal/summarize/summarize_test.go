package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/config"
	"github.com/swing-coach/backend/internal/db/models"
)

type stubEngine struct {
	calls  atomic.Int32
	out    string
	err    error
	block  bool
	system string
	prompt string
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	s.calls.Add(1)
	s.system, s.prompt = system, prompt
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.out, s.err
}

func newTestService(e Engine) *Service {
	return NewService(e, config.SummarizationConfig{
		MinChars: 30,
		MaxChars: 40,
		Language: "Japanese",
		Timeout:  time.Second,
	}, zap.NewNop())
}

func TestSummarizeBlankSkipsEngine(t *testing.T) {
	e := &stubEngine{out: "should not be used"}
	s := newTestService(e)

	for _, in := range []string{"", "   ", "\n\t", "あ", " x "} {
		got, err := s.Summarize(context.Background(), KindSectionComment, in)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Zero(t, e.calls.Load())
}

func TestSummarizeCallsEngineOnce(t *testing.T) {
	e := &stubEngine{out: "  左肘を伸ばす。  "}
	s := newTestService(e)

	got, err := s.Summarize(context.Background(), KindSectionComment, "トップで左肘が曲がっているので伸ばしましょう")
	require.NoError(t, err)
	assert.Equal(t, "左肘を伸ばす。", got)
	assert.Equal(t, int32(1), e.calls.Load())
	assert.Equal(t, "トップで左肘が曲がっているので伸ばしましょう", e.prompt)
	assert.Contains(t, e.system, "Japanese")
	assert.Contains(t, e.system, "no longer than the input")
}

func TestSummarizeBandInstruction(t *testing.T) {
	e := &stubEngine{out: "ok"}
	s := newTestService(e)
	_, err := s.Summarize(context.Background(), KindSessionRollup, strings.Repeat("テンポ良く振る。", 10))
	require.NoError(t, err)
	assert.Contains(t, e.system, "between 30 and 40 characters")
	assert.Contains(t, e.system, "swing order")
}

func TestSummarizeTruncatesToMax(t *testing.T) {
	long := strings.Repeat("あ", 25) + "。" + strings.Repeat("い", 30) + "。"
	e := &stubEngine{out: long}
	got, err := newTestService(e).Summarize(context.Background(), KindOverallFeedback, "長いコメントです")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("あ", 25)+"。", got)
	assert.LessOrEqual(t, len([]rune(got)), 40)
}

func TestSummarizeFailures(t *testing.T) {
	e := &stubEngine{err: errors.New("429 rate limited")}
	_, err := newTestService(e).Summarize(context.Background(), KindPracticeMenu, "素振り50回")
	assert.True(t, errors.Is(err, apperr.SummarizationFailed))
	assert.Contains(t, apperr.DetailOf(err), "rate limited")

	empty := &stubEngine{out: "   "}
	_, err = newTestService(empty).Summarize(context.Background(), KindPracticeMenu, "素振り50回")
	assert.Equal(t, apperr.KindSummarizationFailed, apperr.KindOf(err))

	slow := &stubEngine{block: true}
	s := newTestService(slow)
	s.timeout = 20 * time.Millisecond
	_, err = s.Summarize(context.Background(), KindPracticeMenu, "素振り50回")
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))

	_, err = newTestService(&stubEngine{}).Summarize(context.Background(), Kind("poem"), "素振り50回")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSuggestTags(t *testing.T) {
	e := &stubEngine{out: "TAGS: Impact, release, IM, top, finish_1\nREASON: 手首の返しが早い"}
	sug, err := newTestService(e).SuggestTags(context.Background(), TagRequest{
		StartSec: 1.5,
		EndSec:   2.25,
		Comment:  "インパクトで手首が返りすぎ",
		Current:  models.PhaseSet{models.PhaseDownswing},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSet{models.PhaseImpact, models.PhaseRelease, models.PhaseTop}, sug.Tags)
	assert.Equal(t, "手首の返しが早い", sug.Reasoning)
	assert.Contains(t, e.system, "follow_through")
	assert.Contains(t, e.prompt, "1.50-2.25s")
	assert.Contains(t, e.prompt, "Current tags: downswing")
}

func TestSuggestTagsRejectsUnknownPhase(t *testing.T) {
	for _, out := range []string{"TAGS: impact, wiggle\nREASON: x", "impact and release"} {
		_, err := newTestService(&stubEngine{out: out}).SuggestTags(context.Background(), TagRequest{Comment: "右肘が浮いている"})
		assert.Equal(t, apperr.KindSummarizationFailed, apperr.KindOf(err), out)
	}
}

func TestSuggestTagsTrivialCommentSkipsEngine(t *testing.T) {
	e := &stubEngine{out: "TAGS: top"}
	sug, err := newTestService(e).SuggestTags(context.Background(), TagRequest{Comment: " ."})
	require.NoError(t, err)
	assert.Nil(t, sug)
	assert.Zero(t, e.calls.Load())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("  short ", 10))
	assert.Equal(t, "One. Two.", Truncate("One. Two. Three four five", 12))
	assert.Equal(t, "abcdefgh", Truncate("abcdefghijkl", 8))
	assert.Equal(t, "一文目！", Truncate("一文目！二文目が長い", 6))
}

func TestOpenAIEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "コメント", req.Messages[1].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"要約"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL+"/v1", "gpt-4o-mini")
	out, err := e.Complete(context.Background(), "sys", "コメント", 100)
	require.NoError(t, err)
	assert.Equal(t, "要約", out)
}

func TestAnthropicEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"))
		var req struct {
			Model  string `json:"model"`
			System string `json:"system"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, "sys", req.System)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"m1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"練習メニュー"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	e := NewAnthropicEngine("key", srv.URL+"/v1", "claude-test")
	out, err := e.Complete(context.Background(), "sys", "text", 100)
	require.NoError(t, err)
	assert.Equal(t, "練習メニュー", out)
}
