package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/infrastructure/resilience"
)

// Analyzer runs the classification, structuring, verification, transcript
// cleanup and image description prompts against a Completer. Every call goes
// through the resilience executor.
type Analyzer struct {
	completer Completer
	executor  *resilience.Executor
	taxonomy  domain.Taxonomy
	logger    *slog.Logger
}

func NewAnalyzer(completer Completer, executor *resilience.Executor, taxonomy domain.Taxonomy, logger *slog.Logger) *Analyzer {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		completer: completer,
		executor:  executor,
		taxonomy:  taxonomy,
		logger:    logger,
	}
}

func (a *Analyzer) Classify(ctx context.Context, text string) (domain.Classification, error) {
	req := Request{
		Operation:   "llm.classify",
		System:      systemPrompt,
		Prompt:      buildClassificationPrompt(a.taxonomy, text),
		JSON:        true,
		MaxTokens:   1500,
		Temperature: 0.1,
	}

	var out domain.Classification
	err := a.run(ctx, req, func(raw string) error {
		out = domain.Classification{}
		return decodeJSON(req.Operation, raw, &out, "category", "confidence")
	})
	if err != nil {
		return domain.Classification{}, err
	}

	out.Category = strings.TrimSpace(out.Category)
	out.SubCategory = strings.TrimSpace(out.SubCategory)
	out.Priority = strings.ToLower(strings.TrimSpace(out.Priority))
	out.Confidence = clamp01(out.Confidence)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out, nil
}

func (a *Analyzer) Structure(ctx context.Context, text, category, subCategory string) (domain.Structure, error) {
	req := Request{
		Operation:   "llm.structure",
		System:      systemPrompt,
		Prompt:      buildStructurePrompt(text, category, subCategory),
		JSON:        true,
		MaxTokens:   4000,
		Temperature: 0.2,
	}

	var out domain.Structure
	err := a.run(ctx, req, func(raw string) error {
		out = domain.Structure{}
		return decodeJSON(req.Operation, raw, &out, "sections")
	})
	if err != nil {
		return domain.Structure{}, err
	}

	sections := out.Sections[:0]
	for _, s := range out.Sections {
		if strings.TrimSpace(s.Heading) != "" || strings.TrimSpace(s.Content) != "" {
			sections = append(sections, s)
		}
	}
	out.Sections = sections
	qa := make([]domain.QAPair, 0, len(out.QAPairs))
	for _, p := range out.QAPairs {
		if strings.TrimSpace(p.Question) != "" && strings.TrimSpace(p.Answer) != "" {
			qa = append(qa, p)
		}
	}
	out.QAPairs = qa
	return out, nil
}

func (a *Analyzer) Verify(ctx context.Context, text string, result domain.AnalysisResult) (domain.Verification, error) {
	req := Request{
		Operation:   "llm.verify",
		System:      systemPrompt,
		Prompt:      buildVerificationPrompt(text, result),
		JSON:        true,
		MaxTokens:   1000,
		Temperature: 0.1,
	}

	var out domain.Verification
	err := a.run(ctx, req, func(raw string) error {
		out = domain.Verification{}
		return decodeJSON(req.Operation, raw, &out, "is_valid", "quality_score")
	})
	if err != nil {
		return domain.Verification{}, err
	}
	out.QualityScore = clamp01(out.QualityScore)
	return out, nil
}

// CleanupTranscript cleans one transcript chunk. Callers split long
// transcripts first.
func (a *Analyzer) CleanupTranscript(ctx context.Context, text string) (string, error) {
	req := Request{
		Operation:   "llm.cleanup",
		Prompt:      buildCleanupPrompt(text),
		MaxTokens:   4000,
		Temperature: 0.15,
	}

	var out string
	err := a.run(ctx, req, func(raw string) error {
		out = strings.TrimSpace(raw)
		return nil
	})
	if err != nil {
		return "", err
	}
	if out == "" {
		return text, nil
	}
	return out, nil
}

func (a *Analyzer) DescribeImage(ctx context.Context, mediaType string, data []byte) (string, error) {
	req := Request{
		Operation: "llm.vision",
		Prompt:    imagePrompt,
		Image:     &Image{MediaType: mediaType, Data: data},
		MaxTokens: 1500,
	}

	var out string
	err := a.run(ctx, req, func(raw string) error {
		out = strings.TrimSpace(raw)
		return nil
	})
	return out, err
}

func (a *Analyzer) run(ctx context.Context, req Request, parse func(raw string) error) error {
	call := func(ctx context.Context) error {
		raw, err := a.completer.Complete(ctx, req)
		if err != nil {
			return err
		}
		return parse(raw)
	}
	if err := a.executor.Execute(ctx, req.Operation, call, ClassifyError); err != nil {
		a.logger.Warn("llm_call_failed", "operation", req.Operation, "error", err)
		return wrapCallError(req.Operation, err)
	}
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
