package loader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/atlas-chat/atlas/internal/domain"
)

// wordDocument mirrors the parts of word/document.xml we care about: body
// paragraphs, their runs, and the text elements inside each run.
type wordDocument struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []struct {
					Content string `xml:",chardata"`
				} `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

// loadDOCX extracts paragraph text from a .docx archive as a single document.
func loadDOCX(path string) ([]domain.Document, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	var raw []byte
	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		raw, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		break
	}
	if raw == nil {
		return nil, fmt.Errorf("no word/document.xml in %s", path)
	}

	var doc wordDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			sb.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				sb.WriteString(text.Content)
			}
		}
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, nil
	}
	return []domain.Document{domain.NewDocument(content, path, nil)}, nil
}
