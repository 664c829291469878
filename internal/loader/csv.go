package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/atlas-chat/atlas/internal/domain"
)

// loadCSV reads a CSV file with a header row and produces one document per
// data row, rendered as "column: value" lines in column order.
func loadCSV(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	var docs []domain.Document
	for i, row := range records[1:] {
		var lines []string
		for j, value := range row {
			name := fmt.Sprintf("column_%d", j)
			if j < len(header) {
				name = header[j]
			}
			lines = append(lines, fmt.Sprintf("%s: %s", name, value))
		}
		metadata := map[string]string{"row": fmt.Sprintf("%d", i)}
		docs = append(docs, domain.NewDocument(strings.Join(lines, "\n"), path, metadata))
	}
	return docs, nil
}
