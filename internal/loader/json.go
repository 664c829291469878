package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/atlas-chat/atlas/internal/domain"
)

// loadJSON reads record-oriented JSON. A root array yields one document per
// element; a root object yields a single document. Object fields are
// rendered as "key: value" lines in the order they appear in the file, which
// is why this parses the token stream instead of unmarshalling into a map.
func loadJSON(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()

	root, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch root {
	case json.Delim('['):
		var docs []domain.Document
		for i := 0; dec.More(); i++ {
			content, err := renderElement(dec)
			if err != nil {
				return nil, err
			}
			if content == "" {
				continue
			}
			metadata := map[string]string{"seq_num": fmt.Sprintf("%d", i)}
			docs = append(docs, domain.NewDocument(content, path, metadata))
		}
		if _, err := dec.Token(); err != nil { // closing ']'
			return nil, err
		}
		return docs, nil
	case json.Delim('{'):
		content, err := renderObject(dec)
		if err != nil {
			return nil, err
		}
		if content == "" {
			return nil, nil
		}
		return []domain.Document{domain.NewDocument(content, path, nil)}, nil
	default:
		return nil, fmt.Errorf("unsupported JSON root in %s: want object or array", path)
	}
}

// renderElement renders one array element. Objects become "key: value"
// lines; scalars become their literal text.
func renderElement(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if tok == json.Delim('{') {
		return renderObject(dec)
	}
	return renderValueToken(dec, tok)
}

// renderObject renders the fields of an already-opened object and consumes
// its closing brace.
func renderObject(dec *json.Decoder) (string, error) {
	var lines []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return "", err
		}
		key, ok := keyTok.(string)
		if !ok {
			return "", fmt.Errorf("unexpected object key token %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return "", err
		}
		value, err := renderValueToken(dec, valTok)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("%s: %s", key, value))
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// renderValueToken renders a value whose first token has been consumed.
// Nested objects and arrays are rendered as compact JSON, preserving the
// order of their own fields.
func renderValueToken(dec *json.Decoder, tok json.Token) (string, error) {
	switch v := tok.(type) {
	case json.Delim:
		var sb strings.Builder
		if err := renderCompact(dec, v, &sb); err != nil {
			return "", err
		}
		return sb.String(), nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	case nil:
		return "null", nil
	default:
		return "", fmt.Errorf("unexpected JSON token %v", tok)
	}
}

// renderCompact writes an opened composite value as compact JSON text.
func renderCompact(dec *json.Decoder, open json.Delim, sb *strings.Builder) error {
	sb.WriteString(open.String())
	isObject := open == json.Delim('{')

	for i := 0; dec.More(); i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		if isObject {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := keyTok.(string)
			if !ok {
				return fmt.Errorf("unexpected object key token %v", keyTok)
			}
			fmt.Fprintf(sb, "%q:", key)
		}
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			if err := renderCompact(dec, d, sb); err != nil {
				return err
			}
			continue
		}
		switch v := tok.(type) {
		case string:
			fmt.Fprintf(sb, "%q", v)
		case json.Number:
			sb.WriteString(v.String())
		case bool:
			fmt.Fprintf(sb, "%t", v)
		case nil:
			sb.WriteString("null")
		}
	}

	closeTok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := closeTok.(json.Delim)
	if !ok {
		return fmt.Errorf("unexpected token closing composite: %v", closeTok)
	}
	sb.WriteString(d.String())
	return nil
}
