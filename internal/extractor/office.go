package extractor

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// extractOOXML is the generic office-document text extractor: it walks
// the XML parts of an OOXML container under the given path prefixes and
// collects their character data. Works for any of the zip-based office
// formats, which makes it both the presentation extractor and the
// fallback for word documents.
func extractOOXML(path string, prefixes []string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("error opening office container: %v", err)
	}
	defer archive.Close()

	var parts []*zip.File
	for _, file := range archive.File {
		if !strings.HasSuffix(file.Name, ".xml") {
			continue
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(file.Name, prefix) {
				parts = append(parts, file)
				break
			}
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no readable parts in office container")
	}

	// Slide and section parts are numbered; keep them in order.
	sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })

	var b strings.Builder
	for _, part := range parts {
		text, err := xmlCharData(part)
		if err != nil {
			return "", fmt.Errorf("error reading %s: %v", part.Name, err)
		}
		if strings.TrimSpace(text) != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	}

	return collapseBlankLines(b.String()), nil
}

func xmlCharData(file *zip.File) (string, error) {
	reader, err := file.Open()
	if err != nil {
		return "", err
	}
	defer reader.Close()

	decoder := xml.NewDecoder(reader)
	var b strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			// Paragraph-ish boundaries become line breaks.
			if t.Name.Local == "p" || t.Name.Local == "br" {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		}
	}

	return b.String(), nil
}
