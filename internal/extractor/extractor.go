package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// maxExtractChars bounds extracted text so one large file cannot blow
// the prompt budget downstream.
const maxExtractChars = 200000

// Kind is the coarse file classification driving extraction.
type Kind string

const (
	KindPDF          Kind = "pdf"
	KindWord         Kind = "word"
	KindSpreadsheet  Kind = "spreadsheet"
	KindPresentation Kind = "presentation"
	KindText         Kind = "text"
	KindImage        Kind = "image"
	KindUnknown      Kind = "unknown"
)

// Outcome says which of the three contract results Extract produced.
type Outcome int

const (
	OutcomeText Outcome = iota
	OutcomeEmpty
	OutcomeError
)

// Result is always usable as prompt text; the caller never gets a nil
// or an exception for a non-image file.
type Result struct {
	Outcome Outcome
	Kind    Kind
	Text    string
}

// File describes one uploaded file to extract.
type File struct {
	Path         string
	MimeType     string
	OriginalName string
}

type Extractor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Plain-text-like extensions read verbatim.
var textExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".csv": {}, ".json": {}, ".xml": {}, ".yaml": {}, ".yml": {},
	".html": {}, ".htm": {}, ".css": {}, ".js": {}, ".ts": {}, ".go": {}, ".py": {},
	".java": {}, ".c": {}, ".cpp": {}, ".h": {}, ".sql": {}, ".sh": {}, ".log": {},
	".ini": {}, ".conf": {}, ".toml": {}, ".env": {},
}

// DetectKind classifies a file, mime type first and extension as the
// fallback for absent or generic types.
func DetectKind(mimeType, filename string) Kind {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case mime == "application/pdf" || ext == ".pdf":
		return KindPDF
	case strings.Contains(mime, "wordprocessingml") || mime == "application/msword" ||
		ext == ".docx" || ext == ".doc":
		return KindWord
	case strings.Contains(mime, "spreadsheetml") || mime == "application/vnd.ms-excel" ||
		ext == ".xlsx" || ext == ".xls":
		return KindSpreadsheet
	case strings.Contains(mime, "presentationml") || mime == "application/vnd.ms-powerpoint" ||
		ext == ".pptx" || ext == ".ppt":
		return KindPresentation
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "text/") || mime == "application/json" || mime == "application/xml":
		return KindText
	default:
		if _, ok := textExtensions[ext]; ok {
			return KindText
		}
		return KindUnknown
	}
}

// Extract converts a non-image file to text. The contract is total: the
// result is exactly one of wrapped text, an empty-file notice, or an
// error notice.
func (e *Extractor) Extract(file File) Result {
	kind := DetectKind(file.MimeType, file.OriginalName)

	var (
		text string
		err  error
	)
	switch kind {
	case KindPDF:
		text, err = extractPDF(file.Path)
	case KindWord:
		text, err = extractWord(file.Path)
	case KindSpreadsheet:
		text, err = extractSpreadsheet(file.Path)
	case KindPresentation:
		text, err = extractOOXML(file.Path, []string{"ppt/slides/"})
	case KindText:
		text, err = readTextFile(file.Path)
	default:
		err = fmt.Errorf("unsupported file kind %s", kind)
	}

	if err != nil {
		e.logger.Warn("File extraction failed",
			zap.String("file", file.OriginalName),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return Result{
			Outcome: OutcomeError,
			Kind:    kind,
			Text:    fmt.Sprintf("Error reading file %s: %v", file.OriginalName, err),
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{
			Outcome: OutcomeEmpty,
			Kind:    kind,
			Text:    fmt.Sprintf("File %s was read but contains no extractable text.", file.OriginalName),
		}
	}

	if len(text) > maxExtractChars {
		text = text[:maxExtractChars]
	}

	wrapped := fmt.Sprintf("=== File: %s (%s) ===\n%s\n=== End of %s ===",
		file.OriginalName, kind, text, file.OriginalName)
	return Result{Outcome: OutcomeText, Kind: kind, Text: wrapped}
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// collapseBlankLines squeezes runs of blank lines down to one.
func collapseBlankLines(text string) string {
	return blankLines.ReplaceAllString(text, "\n\n")
}
