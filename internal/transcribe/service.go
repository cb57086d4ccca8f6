package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/config"
)

// Service enforces the size ceiling and timeout around one selected engine.
// It keeps no state between calls and persists nothing.
type Service struct {
	engines  map[string]Transcriber
	engine   string
	language string
	maxBytes int64
	timeout  time.Duration
	log      *zap.Logger
}

func NewService(cfg config.TranscriptionConfig, log *zap.Logger) *Service {
	return &Service{
		engines:  make(map[string]Transcriber),
		engine:   cfg.Engine,
		language: cfg.Language,
		maxBytes: cfg.MaxAudioBytes,
		timeout:  cfg.Timeout,
		log:      log.Named("transcribe"),
	}
}

// NewFromConfig builds the service and registers the configured engine.
func NewFromConfig(ctx context.Context, cfg config.TranscriptionConfig, log *zap.Logger) (*Service, error) {
	s := NewService(cfg, log)
	switch cfg.Engine {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			s.log.Warn("OPENAI_API_KEY is empty, transcription requests will fail")
		}
		s.RegisterEngine(NewOpenAIWhisper(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model))
	case "whisper.cpp":
		s.RegisterEngine(NewWhisperCppClient(cfg.WhisperURL, nil))
	case "gcp-speech":
		g, err := NewGCPSpeech(ctx, cfg.SpeechCredentialsFile)
		if err != nil {
			return nil, err
		}
		s.RegisterEngine(g)
	default:
		return nil, fmt.Errorf("unknown transcription engine %q", cfg.Engine)
	}
	return s, nil
}

func (s *Service) RegisterEngine(engine Transcriber) {
	s.engines[engine.Name()] = engine
	s.log.Info("registered engine", zap.String("engine", engine.Name()))
}

// Transcribe converts one audio clip to normalized text.
func (s *Service) Transcribe(ctx context.Context, req Request, purpose Purpose) (string, error) {
	const op = "transcribe.Transcribe"
	if len(req.Audio) == 0 {
		return "", apperr.New(apperr.KindValidation, op, "audio is empty")
	}
	if s.maxBytes > 0 && int64(len(req.Audio)) > s.maxBytes {
		return "", apperr.Newf(apperr.KindAudioTooLarge, op, "audio is %d bytes, limit is %d", len(req.Audio), s.maxBytes)
	}
	engine, ok := s.engines[s.engine]
	if !ok {
		return "", apperr.Newf(apperr.KindTranscriptionFailed, op, "engine %q not available (registered: %s)", s.engine, strings.Join(s.engineNames(), ", "))
	}
	if req.Language == "" {
		req.Language = s.language
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := engine.Transcribe(ctx, req)
	if err != nil {
		s.log.Warn("transcription failed",
			zap.String("engine", engine.Name()),
			zap.String("purpose", string(purpose)),
			zap.Int("bytes", len(req.Audio)),
			zap.Error(err))
		if isDeadline(ctx, err) {
			return "", &apperr.Error{Kind: apperr.KindTimeout, Op: op, Msg: "transcription timed out", Err: err}
		}
		return "", &apperr.Error{Kind: apperr.KindTranscriptionFailed, Op: op, Msg: engine.Name() + " failed", Detail: err.Error(), Err: err}
	}

	text = Normalize(text)
	s.log.Info("transcribed",
		zap.String("engine", engine.Name()),
		zap.String("purpose", string(purpose)),
		zap.Int("bytes", len(req.Audio)),
		zap.Int("chars", len([]rune(text))),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

func isDeadline(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return status.Code(err) == codes.DeadlineExceeded
}

func (s *Service) engineNames() []string {
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases engines that hold connections.
func (s *Service) Close() error {
	var errs []error
	for _, e := range s.engines {
		if c, ok := e.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
