package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/config"
)

// Service turns long coach text into a summary inside a character band.
// It does not cache: the same input may yield a different summary.
type Service struct {
	engine   Engine
	minChars int
	maxChars int
	language string
	timeout  time.Duration
	log      *zap.Logger
}

func NewService(engine Engine, cfg config.SummarizationConfig, log *zap.Logger) *Service {
	lang := cfg.Language
	if lang == "" {
		lang = "Japanese"
	}
	return &Service{
		engine:   engine,
		minChars: cfg.MinChars,
		maxChars: cfg.MaxChars,
		language: lang,
		timeout:  cfg.Timeout,
		log:      log.Named("summarize"),
	}
}

// NewFromConfig builds the service around the configured engine.
func NewFromConfig(cfg config.SummarizationConfig, log *zap.Logger) (*Service, error) {
	var engine Engine
	switch cfg.Engine {
	case "openai":
		engine = NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case "anthropic":
		engine = NewAnthropicEngine(cfg.AnthropicAPIKey, "", cfg.AnthropicModel)
	default:
		return nil, fmt.Errorf("unknown summarization engine %q", cfg.Engine)
	}
	s := NewService(engine, cfg, log)
	s.log.Info("registered engine",
		zap.String("engine", engine.Name()),
		zap.Int("min_chars", cfg.MinChars),
		zap.Int("max_chars", cfg.MaxChars))
	return s, nil
}

// Summarize returns a summary of text no longer than the configured maximum.
// Blank or near-empty text yields "" without calling the engine.
func (s *Service) Summarize(ctx context.Context, kind Kind, text string) (string, error) {
	const op = "summarize.Summarize"
	text = strings.TrimSpace(text)
	if IsTrivial(text) {
		return "", nil
	}
	if !kind.Valid() {
		return "", apperr.Newf(apperr.KindValidation, op, "unknown summary kind %q", kind)
	}

	inputLen := len([]rune(text))
	system := systemPrompt(kind, s.language, s.minChars, s.maxChars, inputLen)
	// Japanese runs close to one token per character; leave headroom.
	maxTokens := s.maxChars*2 + 64

	start := time.Now()
	out, err := s.complete(ctx, op, string(kind), system, text, maxTokens)
	if err != nil {
		return "", err
	}

	summary := Truncate(out, s.maxChars)
	if summary == "" {
		return "", apperr.New(apperr.KindSummarizationFailed, op, "engine returned an empty summary")
	}
	s.log.Debug("summarized",
		zap.String("kind", string(kind)),
		zap.Int("input_chars", inputLen),
		zap.Int("summary_chars", len([]rune(summary))),
		zap.Duration("elapsed", time.Since(start)))
	return summary, nil
}

// complete runs one engine call under the configured timeout and maps its
// failure to an apperr kind.
func (s *Service) complete(ctx context.Context, op, task, system, prompt string, maxTokens int) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	out, err := s.engine.Complete(ctx, system, prompt, maxTokens)
	if err != nil {
		s.log.Warn("engine call failed",
			zap.String("engine", s.engine.Name()),
			zap.String("task", task),
			zap.Error(err))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			return "", &apperr.Error{Kind: apperr.KindTimeout, Op: op, Msg: "summarization timed out", Err: err}
		}
		return "", &apperr.Error{Kind: apperr.KindSummarizationFailed, Op: op, Msg: s.engine.Name() + " failed", Detail: err.Error(), Err: err}
	}
	return out, nil
}
