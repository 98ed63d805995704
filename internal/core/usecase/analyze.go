package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
	"github.com/kirillkom/knowledge-pipeline/internal/core/ports"
)

const (
	minAnalysisRunes        = 30
	transcriptCleanupMin    = 100
	verifySkipConfidence    = 0.95
	fallbackSectionRunes    = 3000
	defaultReviewQuality    = 0.6
	defaultReviewConfidence = 0.6
)

type AnalyzeOptions struct {
	ReviewConfidence float64
	ReviewQuality    float64
}

type AnalyzeUseCase struct {
	analyzer ports.ContentAnalyzer
	chunker  ports.Chunker
	gate     *Gate
	taxonomy domain.Taxonomy
	opts     AnalyzeOptions
	logger   *slog.Logger
}

func NewAnalyzeUseCase(
	analyzer ports.ContentAnalyzer,
	chunker ports.Chunker,
	gate *Gate,
	taxonomy domain.Taxonomy,
	opts AnalyzeOptions,
	logger *slog.Logger,
) *AnalyzeUseCase {
	if gate == nil {
		gate = NewGate(0)
	}
	if opts.ReviewConfidence <= 0 {
		opts.ReviewConfidence = defaultReviewConfidence
	}
	if opts.ReviewQuality <= 0 {
		opts.ReviewQuality = defaultReviewQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeUseCase{
		analyzer: analyzer,
		chunker:  chunker,
		gate:     gate,
		taxonomy: taxonomy,
		opts:     opts,
		logger:   logger,
	}
}

// Analyze runs classification, structuring and the optional verification
// pass over the extracted text of one file.
func (uc *AnalyzeUseCase) Analyze(ctx context.Context, file domain.IntakeFile, ext domain.Extraction, verify bool) (domain.AnalysisResult, error) {
	result := domain.AnalysisResult{
		SourceName:        file.Name,
		SourceType:        ext.SourceType,
		ImageDescriptions: ext.ImageDescriptions,
	}
	if result.SourceType == domain.SourceUnknown {
		result.SourceType = file.SourceType
	}

	text, err := uc.prepareText(ctx, result.SourceType, ext)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	if len([]rune(strings.TrimSpace(text))) < minAnalysisRunes {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrAnalysis, "analyze",
			fmt.Errorf("extracted text shorter than %d characters", minAnalysisRunes))
	}
	result.FullText = text

	if err := uc.classify(ctx, text, &result); err != nil {
		return domain.AnalysisResult{}, err
	}
	if err := uc.structure(ctx, text, &result); err != nil {
		return domain.AnalysisResult{}, err
	}

	if verify && result.Confidence < verifySkipConfidence {
		if err := uc.verify(ctx, text, &result); err != nil {
			return domain.AnalysisResult{}, err
		}
	} else {
		result.QualityScore = result.Confidence
	}

	result.IDPrefix = domain.IDPrefixFor(result.SourceType)
	result.KnowledgeDir = domain.KnowledgeDirFor(result.IDPrefix)

	if result.Confidence < uc.opts.ReviewConfidence {
		result.FlagReview(fmt.Sprintf("low classification confidence (%.2f)", result.Confidence))
	}
	if result.QualityScore > 0 && result.QualityScore < uc.opts.ReviewQuality {
		result.FlagReview(fmt.Sprintf("low quality score (%.2f)", result.QualityScore))
	}

	uc.logger.Info("file_analyzed",
		"file", file.Name,
		"category", result.Category,
		"sub_category", result.SubCategory,
		"confidence", result.Confidence,
		"quality_score", result.QualityScore,
		"needs_review", result.NeedsReview,
	)
	return result, nil
}

func (uc *AnalyzeUseCase) prepareText(ctx context.Context, st domain.SourceType, ext domain.Extraction) (string, error) {
	text := ext.Text
	if (st == domain.SourceAudio || st == domain.SourceVideo) && len([]rune(text)) > transcriptCleanupMin {
		cleaned, err := uc.cleanupTranscript(ctx, text)
		if err != nil {
			return "", err
		}
		text = cleaned
	}
	if len(ext.ImageDescriptions) > 0 {
		text += "\n\n## Images\n\n" + strings.Join(ext.ImageDescriptions, "\n\n---\n\n")
	}
	return NormalizeTerminology(text, uc.taxonomy.Terminology), nil
}

// cleanupTranscript cleans a transcript chunk by chunk. A chunk whose cleanup
// fails keeps its original text.
func (uc *AnalyzeUseCase) cleanupTranscript(ctx context.Context, text string) (string, error) {
	chunks := []string{text}
	if uc.chunker != nil {
		chunks = uc.chunker.Split(text)
	}
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		var cleaned string
		err := uc.gate.Do(ctx, func(ctx context.Context) error {
			var err error
			cleaned, err = uc.analyzer.CleanupTranscript(ctx, chunk)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", domain.WrapError(domain.ErrCanceled, "cleanup transcript", ctx.Err())
			}
			uc.logger.Warn("transcript_cleanup_failed", "error", err)
			cleaned = chunk
		}
		if strings.TrimSpace(cleaned) == "" {
			cleaned = chunk
		}
		out = append(out, cleaned)
	}
	return strings.Join(out, "\n\n"), nil
}

func (uc *AnalyzeUseCase) classify(ctx context.Context, text string, result *domain.AnalysisResult) error {
	var cls domain.Classification
	err := uc.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		cls, err = uc.analyzer.Classify(ctx, text)
		return err
	})
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	category, ok := uc.taxonomy.MatchCategory(cls.Category)
	if !ok {
		return domain.WrapError(domain.ErrAnalysis, "classify",
			fmt.Errorf("category %q is not in the taxonomy", cls.Category))
	}
	result.Category = category
	result.SubCategory = strings.TrimSpace(cls.SubCategory)
	if sub, ok := uc.taxonomy.MatchSubCategory(category, result.SubCategory); ok {
		result.SubCategory = sub
	} else {
		result.FlagReview(fmt.Sprintf("sub_category %q is not listed under %s", result.SubCategory, category))
	}

	result.Priority = cls.Priority
	result.Tags = uc.taxonomy.FilterTags(cls.Tags)
	result.Title = strings.TrimSpace(cls.Title)
	result.Summary = strings.TrimSpace(cls.Summary)
	result.Confidence = cls.Confidence
	return nil
}

func (uc *AnalyzeUseCase) structure(ctx context.Context, text string, result *domain.AnalysisResult) error {
	var st domain.Structure
	err := uc.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		st, err = uc.analyzer.Structure(ctx, text, result.Category, result.SubCategory)
		return err
	})
	if err != nil {
		return fmt.Errorf("structure: %w", err)
	}

	result.Sections = st.Sections
	result.QAPairs = st.QAPairs
	if len(result.Sections) == 0 {
		heading := result.Title
		if heading == "" {
			heading = "Content"
		}
		result.Sections = []domain.Section{{Heading: heading, Content: truncateRunes(text, fallbackSectionRunes)}}
	}
	return nil
}

func (uc *AnalyzeUseCase) verify(ctx context.Context, text string, result *domain.AnalysisResult) error {
	var v domain.Verification
	err := uc.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		v, err = uc.analyzer.Verify(ctx, text, *result)
		return err
	})
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	result.QualityScore = v.QualityScore
	applyCorrections(result, v.Corrections, uc.taxonomy)
	for _, issue := range v.Issues {
		if issue = strings.TrimSpace(issue); issue != "" {
			result.FlagReview(issue)
		}
	}
	return nil
}

// applyCorrections takes category and priority only when they are valid
// labels; free-text fields are taken as given.
func applyCorrections(result *domain.AnalysisResult, c domain.Corrections, tax domain.Taxonomy) {
	if c.Category != "" && tax.HasCategory(c.Category) {
		result.Category = c.Category
	}
	if c.SubCategory != "" {
		result.SubCategory = c.SubCategory
	}
	if p := strings.ToLower(strings.TrimSpace(c.Priority)); p != "" && tax.HasPriority(p) {
		result.Priority = p
	}
	if c.Title != "" {
		result.Title = c.Title
	}
	if c.Summary != "" {
		result.Summary = c.Summary
	}
}

// NormalizeTerminology rewrites dictionary terms, longest first so that a
// term never shadows a longer one containing it.
func NormalizeTerminology(text string, dict map[string]string) string {
	if len(dict) == 0 {
		return text
	}
	terms := make([]string, 0, len(dict))
	for k := range dict {
		if k != "" {
			terms = append(terms, k)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	pairs := make([]string, 0, len(terms)*2)
	for _, t := range terms {
		pairs = append(pairs, t, dict[t])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func truncateRunes(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
