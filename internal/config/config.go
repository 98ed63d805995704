package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

type Config struct {
	LogLevel string

	RootDir      string
	IntakeDir    string
	KnowledgeDir string
	LogDir       string
	TaxonomyFile string

	Workers            int
	MaxConcurrentCalls int
	Verify             bool
	MinContentChars    int
	DuplicateThreshold float64
	ReviewConfidence   float64

	LLMProvider       string
	OllamaURL         string
	OllamaGenModel    string
	AnthropicAPIKey   string
	AnthropicModel    string
	LLMRateLimitRPS   float64
	LLMRetryAttempts  int
	LLMRetryBackoff   time.Duration
	LLMRequestTimeout time.Duration
	ToolTimeout       time.Duration
	WhisperCommand    string
	WhisperModel      string
	WhisperLanguage   string
	FFmpegCommand     string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	MetricsFile string
}

const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

func Load() Config {
	root := mustEnv("PIPELINE_ROOT", ".")
	return Config{
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		RootDir:      root,
		IntakeDir:    mustEnv("PIPELINE_INTAKE_DIR", filepath.Join(root, "intake")),
		KnowledgeDir: mustEnv("PIPELINE_KNOWLEDGE_DIR", filepath.Join(root, "knowledge")),
		LogDir:       mustEnv("PIPELINE_LOG_DIR", filepath.Join(root, "logs", "pipeline")),
		TaxonomyFile: mustEnv("PIPELINE_TAXONOMY_FILE", ""),

		Workers:            mustEnvInt("PIPELINE_WORKERS", 5),
		MaxConcurrentCalls: mustEnvInt("PIPELINE_MAX_CONCURRENT_CALLS", 5),
		Verify:             mustEnvBool("PIPELINE_VERIFY", true),
		MinContentChars:    mustEnvInt("PIPELINE_MIN_CONTENT_CHARS", 50),
		DuplicateThreshold: mustEnvFloat("PIPELINE_DUPLICATE_THRESHOLD", 0.8),
		ReviewConfidence:   mustEnvFloat("PIPELINE_REVIEW_CONFIDENCE", 0.6),

		LLMProvider:       mustEnv("LLM_PROVIDER", ProviderOllama),
		OllamaURL:         mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:    mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		AnthropicAPIKey:   mustEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:    mustEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		LLMRateLimitRPS:   mustEnvFloat("LLM_RATE_LIMIT_RPS", 0),
		LLMRetryAttempts:  mustEnvInt("LLM_RETRY_MAX_ATTEMPTS", 3),
		LLMRetryBackoff:   time.Duration(mustEnvInt("LLM_RETRY_INITIAL_BACKOFF_MS", 1000)) * time.Millisecond,
		LLMRequestTimeout: time.Duration(mustEnvInt("LLM_REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
		ToolTimeout:       time.Duration(mustEnvInt("PIPELINE_TOOL_TIMEOUT_SECONDS", 1800)) * time.Second,
		WhisperCommand:    mustEnv("WHISPER_COMMAND", "whisper"),
		WhisperModel:      mustEnv("WHISPER_MODEL", "base"),
		WhisperLanguage:   mustEnv("WHISPER_LANGUAGE", "ja"),
		FFmpegCommand:     mustEnv("FFMPEG_COMMAND", "ffmpeg"),

		PostgresDSN: mustEnv("PIPELINE_POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "knowledge.records.filed"),

		MetricsFile: mustEnv("PIPELINE_METRICS_FILE", ""),
	}
}

// LoadTaxonomy reads the label taxonomy from path, falling back to the
// built-in one when path is empty. Sections missing from the file keep
// their defaults.
func LoadTaxonomy(path string) (domain.Taxonomy, error) {
	tax := domain.DefaultTaxonomy()
	if path == "" {
		return tax, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Taxonomy{}, fmt.Errorf("read taxonomy file: %w", err)
	}

	var fromFile domain.Taxonomy
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return domain.Taxonomy{}, fmt.Errorf("parse taxonomy file: %w", err)
	}
	if len(fromFile.Categories) > 0 {
		tax.Categories = fromFile.Categories
	}
	if len(fromFile.Priorities) > 0 {
		tax.Priorities = fromFile.Priorities
	}
	if fromFile.Tags != nil {
		tax.Tags = fromFile.Tags
	}
	if fromFile.Terminology != nil {
		tax.Terminology = fromFile.Terminology
	}
	return tax, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
