package loader

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/atlas-chat/atlas/internal/domain"
)

// loadText reads a plain-text file as a single document. Files that are not
// valid UTF-8 are rejected rather than embedded as mojibake.
func loadText(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, errNotUTF8
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, nil
	}
	return []domain.Document{domain.NewDocument(content, path, nil)}, nil
}
