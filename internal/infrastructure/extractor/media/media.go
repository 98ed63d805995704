package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

const maxToolOutput = 500

type WhisperConfig struct {
	Command  string
	Model    string
	Language string
	Timeout  time.Duration
}

// WhisperTranscriber shells out to the whisper CLI and reads the .txt file
// it writes into a scratch directory.
type WhisperTranscriber struct {
	cfg WhisperConfig
}

func NewWhisperTranscriber(cfg WhisperConfig) *WhisperTranscriber {
	if cfg.Command == "" {
		cfg.Command = "whisper"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	return &WhisperTranscriber{cfg: cfg}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	outDir, err := os.MkdirTemp("", "transcribe-*")
	if err != nil {
		return "", domain.WrapError(domain.ErrEnvironment, "create transcript dir", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{path, "--model", w.cfg.Model, "--output_format", "txt", "--output_dir", outDir}
	if w.cfg.Language != "" {
		args = append(args, "--language", w.cfg.Language)
	}
	if err := run(ctx, w.cfg.Timeout, w.cfg.Command, args...); err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	raw, err := os.ReadFile(filepath.Join(outDir, stem+".txt"))
	if err != nil {
		return "", &domain.ConversionError{Tool: w.cfg.Command, Message: "transcript file missing", Err: err}
	}
	return strings.TrimSpace(string(raw)), nil
}

type Config struct {
	FFmpegCommand string
	Timeout       time.Duration
}

// Extractor transcribes audio directly and video after extracting a 16 kHz
// mono WAV track with ffmpeg.
type Extractor struct {
	cfg         Config
	transcriber ports.Transcriber
}

func NewExtractor(cfg Config, transcriber ports.Transcriber) *Extractor {
	if cfg.FFmpegCommand == "" {
		cfg.FFmpegCommand = "ffmpeg"
	}
	return &Extractor{cfg: cfg, transcriber: transcriber}
}

func (e *Extractor) Convert(ctx context.Context, file domain.IntakeFile) (domain.Extraction, error) {
	audioPath := file.Path
	tool := "transcriber"
	if file.SourceType == domain.SourceVideo {
		tmp, err := os.CreateTemp("", "audio-*.wav")
		if err != nil {
			return domain.Extraction{}, domain.WrapError(domain.ErrEnvironment, "create audio temp file", err)
		}
		tmp.Close()
		defer os.Remove(tmp.Name())

		if err := run(ctx, e.cfg.Timeout, e.cfg.FFmpegCommand,
			"-i", file.Path, "-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1", "-y", tmp.Name(),
		); err != nil {
			return domain.Extraction{}, err
		}
		audioPath = tmp.Name()
		tool = e.cfg.FFmpegCommand + "+transcriber"
	}

	text, err := e.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		var convErr *domain.ConversionError
		if errors.As(err, &convErr) || ctx.Err() != nil {
			return domain.Extraction{}, err
		}
		return domain.Extraction{}, &domain.ConversionError{Tool: "transcriber", Message: "transcribe " + file.Name, Err: err}
	}
	if text == "" {
		return domain.Extraction{}, &domain.ConversionError{Tool: "transcriber", Message: "empty transcript for " + file.Name}
	}

	return domain.Extraction{
		Text:       text,
		SourceType: file.SourceType,
		Tool:       tool,
	}, nil
}

func run(ctx context.Context, timeout time.Duration, name string, args ...string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return &domain.ConversionError{Tool: name, Message: "command not found", Err: err}
		}
		if ctx.Err() != nil {
			return &domain.ConversionError{Tool: name, Message: "interrupted", Err: ctx.Err()}
		}
		return &domain.ConversionError{Tool: name, Message: tail(stderr.String(), maxToolOutput), Err: err}
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("...%s", string(r[len(r)-n:]))
}
