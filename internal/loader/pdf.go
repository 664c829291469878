package loader

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/atlas-chat/atlas/internal/domain"
)

var errNotUTF8 = errors.New("file is not valid UTF-8")

// loadPDF extracts the plain text of a PDF as a single document.
func loadPDF(path string) (docs []domain.Document, err error) {
	// The pdf package panics on some malformed files; convert that into an
	// ordinary extraction error so the walk continues.
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(buf.String())
	if content == "" {
		return nil, nil
	}
	return []domain.Document{domain.NewDocument(content, path, nil)}, nil
}
