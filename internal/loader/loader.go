// Package loader walks a directory tree and extracts plain text from the
// file formats the assistant can ingest. One corrupt file never aborts the
// rest of the walk: failures are logged and skipped.
package loader

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/domain"
)

// extractor turns one file into zero or more documents.
type extractor func(path string) ([]domain.Document, error)

// Loader reads supported files under a directory into Documents.
type Loader struct {
	logger *zap.Logger
	ignore []string
	byExt  map[string]extractor
}

// New creates a Loader. Ignore patterns use doublestar glob syntax and are
// matched against the path relative to the load root.
func New(logger *zap.Logger, ignore []string) *Loader {
	l := &Loader{
		logger: logger,
		ignore: ignore,
	}
	l.byExt = map[string]extractor{
		".txt":  loadText,
		".md":   loadText,
		".pdf":  loadPDF,
		".docx": loadDOCX,
		".csv":  loadCSV,
		".json": loadJSON,
	}
	return l
}

// Load walks dir recursively and extracts every supported file. A missing
// directory, an unsupported file, or a file that fails to parse all degrade
// to "nothing loaded from there"; Load itself never fails.
func (l *Loader) Load(dir string) []domain.Document {
	if _, err := os.Stat(dir); err != nil {
		l.logger.Warn("data directory not accessible, nothing to load",
			zap.String("dir", dir), zap.Error(err))
		return nil
	}

	var docs []domain.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		if l.ignored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		extract, ok := l.byExt[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		fileDocs, err := extract(path)
		if err != nil {
			l.logger.Warn("failed to extract file, skipping",
				zap.String("path", path), zap.Error(err))
			return nil
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		l.logger.Warn("directory walk aborted", zap.String("dir", dir), zap.Error(err))
	}

	l.logger.Info("documents loaded", zap.String("dir", dir), zap.Int("count", len(docs)))
	return docs
}

func (l *Loader) ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range l.ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
