package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is read from an optional YAML file with environment overrides.
// Secrets are env-only (yaml:"-").
type Config struct {
	Port           int      `yaml:"port" env:"PORT" env-default:"8080"`
	PublicBaseURL  string   `yaml:"public_base_url" env:"PUBLIC_BASE_URL" env-default:""`
	LogMode        string   `yaml:"log_mode" env:"LOG_MODE" env-default:"dev"`
	CORSOrigins    []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"524288000"`
	MaxJSONBytes   int64    `yaml:"max_json_bytes" env:"MAX_JSON_BYTES" env-default:"1048576"`

	// Per-IP limit on routes that call an AI engine.
	AIRateLimit  int           `yaml:"ai_rate_limit" env:"AI_RATE_LIMIT" env-default:"30"`
	AIRateWindow time.Duration `yaml:"ai_rate_window" env:"AI_RATE_WINDOW" env-default:"1m"`

	Database      DatabaseConfig      `yaml:"database"`
	Storage       StorageConfig       `yaml:"storage"`
	FFmpeg        FFmpegConfig        `yaml:"ffmpeg"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summarization SummarizationConfig `yaml:"summarization"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite3"` // sqlite3 | pgx
	DSN    string `yaml:"dsn" env:"DB_DSN" env-default:"data/swingcoach.db"`
}

type StorageConfig struct {
	Backend    string        `yaml:"backend" env:"STORAGE_BACKEND" env-default:"local"` // local | gcs
	LocalPath  string        `yaml:"local_path" env:"STORAGE_LOCAL_PATH" env-default:"data/media"`
	URLTTL     time.Duration `yaml:"url_ttl" env:"STORAGE_URL_TTL" env-default:"15m"`
	PutRetries int           `yaml:"put_retries" env:"STORAGE_PUT_RETRIES" env-default:"3"`

	GCSBucket          string `yaml:"gcs_bucket" env:"GCS_BUCKET" env-default:""`
	GCSCredentialsFile string `yaml:"gcs_credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS" env-default:""`
	GCSSignerEmail     string `yaml:"gcs_signer_email" env:"GCS_SIGNER_EMAIL" env-default:""`
	GCSPrivateKeyFile  string `yaml:"gcs_private_key_file" env:"GCS_PRIVATE_KEY_FILE" env-default:""`
	GCSEmulatorHost    string `yaml:"gcs_emulator_host" env:"STORAGE_EMULATOR_HOST" env-default:""`
}

type FFmpegConfig struct {
	Path             string        `yaml:"path" env:"FFMPEG_PATH" env-default:"ffmpeg"`
	ProbePath        string        `yaml:"probe_path" env:"FFPROBE_PATH" env-default:"ffprobe"`
	CaptureTimeout   time.Duration `yaml:"capture_timeout" env:"CAPTURE_TIMEOUT" env-default:"30s"`
	ThumbnailTimeout time.Duration `yaml:"thumbnail_timeout" env:"THUMBNAIL_TIMEOUT" env-default:"60s"`
	ThumbnailWait    time.Duration `yaml:"thumbnail_wait" env:"THUMBNAIL_WAIT" env-default:"3s"`
}

type TranscriptionConfig struct {
	Engine                string        `yaml:"engine" env:"TRANSCRIPTION_ENGINE" env-default:"openai"` // openai | whisper.cpp | gcp-speech
	OpenAIAPIKey          string        `yaml:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string        `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:""`
	Model                 string        `yaml:"model" env:"TRANSCRIPTION_MODEL" env-default:"whisper-1"`
	WhisperURL            string        `yaml:"whisper_url" env:"WHISPER_URL" env-default:"http://localhost:8178"`
	SpeechCredentialsFile string        `yaml:"speech_credentials_file" env:"SPEECH_CREDENTIALS_FILE" env-default:""`
	Language              string        `yaml:"language" env:"TRANSCRIPTION_LANGUAGE" env-default:"ja"`
	MaxAudioBytes         int64         `yaml:"max_audio_bytes" env:"MAX_AUDIO_BYTES" env-default:"26214400"`
	Timeout               time.Duration `yaml:"timeout" env:"TRANSCRIPTION_TIMEOUT" env-default:"2m"`
}

type SummarizationConfig struct {
	Engine          string        `yaml:"engine" env:"SUMMARIZATION_ENGINE" env-default:"openai"` // openai | anthropic
	OpenAIAPIKey    string        `yaml:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:""`
	OpenAIModel     string        `yaml:"openai_model" env:"SUMMARIZATION_OPENAI_MODEL" env-default:"gpt-4o-mini"`
	AnthropicAPIKey string        `yaml:"-" env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string        `yaml:"anthropic_model" env:"SUMMARIZATION_ANTHROPIC_MODEL" env-default:"claude-3-5-haiku-latest"`
	MinChars        int           `yaml:"min_chars" env:"SUMMARY_MIN_CHARS" env-default:"300"`
	MaxChars        int           `yaml:"max_chars" env:"SUMMARY_MAX_CHARS" env-default:"500"`
	Language        string        `yaml:"language" env:"SUMMARY_LANGUAGE" env-default:"Japanese"`
	Timeout         time.Duration `yaml:"timeout" env:"SUMMARIZATION_TIMEOUT" env-default:"60s"`
}

// Load reads path (if it exists) and then the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if _, statErr := os.Stat(path); path != "" && statErr == nil {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.CORSOrigins = normalizeOrigins(cfg.CORSOrigins)
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite3 or pgx, got %q", c.Database.Driver))
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalPath == "" {
			errs = append(errs, errors.New("storage.local_path is required for the local backend"))
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			errs = append(errs, errors.New("storage.gcs_bucket is required for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be local or gcs, got %q", c.Storage.Backend))
	}
	if c.Storage.URLTTL <= 0 {
		errs = append(errs, errors.New("storage.url_ttl must be positive"))
	}
	switch c.Transcription.Engine {
	case "openai", "whisper.cpp", "gcp-speech":
	default:
		errs = append(errs, fmt.Errorf("transcription.engine %q is not supported", c.Transcription.Engine))
	}
	if c.Transcription.MaxAudioBytes <= 0 {
		errs = append(errs, errors.New("transcription.max_audio_bytes must be positive"))
	}
	switch c.Summarization.Engine {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("summarization.engine %q is not supported", c.Summarization.Engine))
	}
	if c.Summarization.MinChars < 0 || c.Summarization.MaxChars <= 0 || c.Summarization.MinChars > c.Summarization.MaxChars {
		errs = append(errs, fmt.Errorf("summarization band %d..%d is invalid", c.Summarization.MinChars, c.Summarization.MaxChars))
	}
	return errors.Join(errs...)
}

// normalizeOrigins trims entries and drops blanks; an empty list means "*".
func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
