package domain

type QAPair struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

type Section struct {
	Heading string `json:"heading" yaml:"heading"`
	Content string `json:"content" yaml:"content"`
}

// AnalysisResult is the structured judgment for one file. It belongs to the
// run that produced it and is never shared across runs.
type AnalysisResult struct {
	SourceName        string     `json:"source_name"`
	SourceType        SourceType `json:"source_type"`
	Category          string     `json:"category"`
	SubCategory       string     `json:"sub_category"`
	Priority          string     `json:"priority"`
	Tags              []string   `json:"tags"`
	Title             string     `json:"title"`
	Summary           string     `json:"summary"`
	Confidence        float64    `json:"confidence"`
	QualityScore      float64    `json:"quality_score"`
	QAPairs           []QAPair   `json:"qa_pairs"`
	Sections          []Section  `json:"sections"`
	ImageDescriptions []string   `json:"image_descriptions,omitempty"`
	FullText          string     `json:"-"`
	IDPrefix          string     `json:"id_prefix"`
	KnowledgeDir      string     `json:"knowledge_dir"`
	NeedsReview       bool       `json:"needs_review"`
	ReviewReasons     []string   `json:"review_reasons,omitempty"`
}

func (r *AnalysisResult) FlagReview(reason string) {
	r.NeedsReview = true
	r.ReviewReasons = append(r.ReviewReasons, reason)
}

// Classification is the pass-one output of the hosted LLM.
type Classification struct {
	Category    string   `json:"category"`
	SubCategory string   `json:"sub_category"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning,omitempty"`
}

// Structure is the pass-two output: sections and extracted Q&A.
type Structure struct {
	Sections []Section `json:"sections"`
	QAPairs  []QAPair  `json:"qa_pairs"`
}

type Corrections struct {
	Category    string `json:"category,omitempty"`
	SubCategory string `json:"sub_category,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Title       string `json:"title,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// Verification is the optional pass-three cross check.
type Verification struct {
	IsValid      bool        `json:"is_valid"`
	Corrections  Corrections `json:"corrections"`
	QualityScore float64     `json:"quality_score"`
	Issues       []string    `json:"issues"`
}

var prefixBySource = map[SourceType]string{
	SourceVideo:       "VID",
	SourceAudio:       "AUD",
	SourcePDF:         "BK",
	SourceDocx:        "ML",
	SourceText:        "ML",
	SourceSpreadsheet: "ML",
	SourceImage:       "PR",
}

var dirByPrefix = map[string]string{
	"VID": "seminars",
	"AUD": "trainings",
	"QA":  "qa",
	"ML":  "articles",
	"BK":  "articles",
	"NL":  "articles",
	"TL":  "sales_tools",
	"PR":  "sales_tools",
}

func IDPrefixFor(st SourceType) string {
	if p, ok := prefixBySource[st]; ok {
		return p
	}
	return "ML"
}

func KnowledgeDirFor(prefix string) string {
	if d, ok := dirByPrefix[prefix]; ok {
		return d
	}
	return "articles"
}

// KnowledgeDirs lists every subdirectory a record can be filed into.
func KnowledgeDirs() []string {
	return []string{"articles", "qa", "sales_tools", "seminars", "trainings"}
}
