package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// IntakeState is the lifecycle position of a source file. Each state maps to
// a directory under the intake root.
type IntakeState string

const (
	StateRaw        IntakeState = "raw"
	StateProcessing IntakeState = "processing"
	StateCompleted  IntakeState = "completed"
	StateFailed     IntakeState = "failed"
)

// FileKind is the coarse grouping used for fan-out batches.
type FileKind string

const (
	KindText        FileKind = "text"
	KindMedia       FileKind = "media"
	KindImage       FileKind = "image"
	KindUnsupported FileKind = "unsupported"
)

// SourceType selects the converter for a file.
type SourceType string

const (
	SourceText        SourceType = "text"
	SourcePDF         SourceType = "pdf"
	SourceDocx        SourceType = "docx"
	SourceSpreadsheet SourceType = "xlsx"
	SourceAudio       SourceType = "audio"
	SourceVideo       SourceType = "video"
	SourceImage       SourceType = "image"
	SourceUnknown     SourceType = ""
)

var extensionTypes = map[string]SourceType{
	".txt":  SourceText,
	".md":   SourceText,
	".csv":  SourceText,
	".pdf":  SourcePDF,
	".docx": SourceDocx,
	".xlsx": SourceSpreadsheet,
	".mp3":  SourceAudio,
	".wav":  SourceAudio,
	".m4a":  SourceAudio,
	".aac":  SourceAudio,
	".ogg":  SourceAudio,
	".flac": SourceAudio,
	".mp4":  SourceVideo,
	".mov":  SourceVideo,
	".avi":  SourceVideo,
	".mkv":  SourceVideo,
	".wmv":  SourceVideo,
	".png":  SourceImage,
	".jpg":  SourceImage,
	".jpeg": SourceImage,
	".gif":  SourceImage,
	".webp": SourceImage,
	".bmp":  SourceImage,
}

// ClassifyPath returns the source type and kind for a file name based on its
// extension only.
func ClassifyPath(name string) (SourceType, FileKind) {
	st := extensionTypes[strings.ToLower(filepath.Ext(name))]
	return st, st.Kind()
}

func (s SourceType) Kind() FileKind {
	switch s {
	case SourceText, SourcePDF, SourceDocx, SourceSpreadsheet:
		return KindText
	case SourceAudio, SourceVideo:
		return KindMedia
	case SourceImage:
		return KindImage
	default:
		return KindUnsupported
	}
}

type IntakeFile struct {
	Name       string      `json:"name"`
	Path       string      `json:"path"`
	State      IntakeState `json:"state"`
	Kind       FileKind    `json:"kind"`
	SourceType SourceType  `json:"source_type"`
	Size       int64       `json:"size"`
	ModTime    time.Time   `json:"mod_time"`
}

// Manifest is the side-effect free result of scanning the raw directory.
type Manifest struct {
	Files       []IntakeFile `json:"files"`
	Unsupported []IntakeFile `json:"unsupported,omitempty"`
	Filtered    []IntakeFile `json:"filtered,omitempty"`
}

func (m Manifest) ByKind() map[FileKind][]IntakeFile {
	out := make(map[FileKind][]IntakeFile)
	for _, f := range m.Files {
		out[f.Kind] = append(out[f.Kind], f)
	}
	return out
}

// TypeFilter narrows a run to a subset of source types.
type TypeFilter string

const (
	FilterNone  TypeFilter = ""
	FilterText  TypeFilter = "text"
	FilterAudio TypeFilter = "audio"
	FilterVideo TypeFilter = "video"
	FilterImage TypeFilter = "image"
	FilterMedia TypeFilter = "media"
)

func ParseTypeFilter(raw string) (TypeFilter, bool) {
	switch f := TypeFilter(strings.ToLower(strings.TrimSpace(raw))); f {
	case FilterNone, FilterText, FilterAudio, FilterVideo, FilterImage, FilterMedia:
		return f, true
	default:
		return FilterNone, false
	}
}

func (f TypeFilter) Matches(st SourceType) bool {
	switch f {
	case FilterNone:
		return true
	case FilterText:
		return st.Kind() == KindText
	case FilterAudio:
		return st == SourceAudio
	case FilterVideo:
		return st == SourceVideo
	case FilterImage:
		return st == SourceImage
	case FilterMedia:
		return st == SourceAudio || st == SourceVideo || st == SourceImage
	default:
		return false
	}
}

// Extraction is the plain-text output of the converter stage.
type Extraction struct {
	Text              string            `json:"text"`
	SourceType        SourceType        `json:"source_type"`
	Tool              string            `json:"tool"`
	ImageDescriptions []string          `json:"image_descriptions,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}
