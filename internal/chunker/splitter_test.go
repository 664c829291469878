package chunker

import (
	"strings"
	"testing"

	"github.com/atlas-chat/atlas/internal/domain"
)

func TestSplit_ShortDocumentYieldsSingleChunk(t *testing.T) {
	s := New(300, 50)

	doc := domain.NewDocument("short text", "notes.txt", nil)
	chunks := s.Split([]domain.Document{doc})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != doc.Content {
		t.Errorf("chunk content = %q, want %q", chunks[0].Content, doc.Content)
	}
	if chunks[0].Source != "notes.txt" {
		t.Errorf("chunk source = %q, want notes.txt", chunks[0].Source)
	}
	if chunks[0].Metadata["source"] != "notes.txt" {
		t.Errorf("metadata source = %q, want notes.txt", chunks[0].Metadata["source"])
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	s := New(300, 50)

	if got := s.Split(nil); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
	if got := s.Split([]domain.Document{{Content: "", Source: "empty.txt"}}); len(got) != 0 {
		t.Fatalf("expected no chunks for empty document, got %d", len(got))
	}
}

func TestSplit_OverlappingWindows(t *testing.T) {
	// Three 250-character paragraphs joined by blank lines: 754 characters.
	paragraphs := []string{
		strings.Repeat("a", 250),
		strings.Repeat("b", 250),
		strings.Repeat("c", 250),
	}
	doc := domain.NewDocument(strings.Join(paragraphs, "\n\n"), "essay.txt", nil)

	s := New(300, 50)
	chunks := s.Split([]domain.Document{doc})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c.Content)); n > 300 {
			t.Errorf("chunk %d has %d runes, exceeds size 300", i, n)
		}
		if c.Seq != i {
			t.Errorf("chunk %d has seq %d", i, c.Seq)
		}
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Content)
		cur := []rune(chunks[i].Content)
		tail := string(prev[len(prev)-50:])
		head := string(cur[:50])
		if tail != head {
			t.Errorf("chunks %d and %d do not share a 50-rune boundary", i-1, i)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	doc := domain.NewDocument(strings.Repeat("paragraph text ", 100), "file.txt", nil)
	s := New(200, 40)

	first := s.Split([]domain.Document{doc})
	second := s.Split([]domain.Document{doc})

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Content != second[i].Content {
			t.Errorf("chunk %d content differs between runs", i)
		}
	}
}

func TestSplit_CoversAllContent(t *testing.T) {
	content := strings.Repeat("0123456789", 77) // 770 runes
	doc := domain.NewDocument(content, "digits.txt", nil)

	s := New(300, 50)
	chunks := s.Split([]domain.Document{doc})

	// Reassemble by dropping each chunk's leading overlap.
	var sb strings.Builder
	for i, c := range chunks {
		runes := []rune(c.Content)
		if i > 0 {
			runes = runes[50:]
		}
		sb.WriteString(string(runes))
	}
	if sb.String() != content {
		t.Error("reassembled chunks do not reproduce the original content")
	}
}

func TestNew_SanitizesParameters(t *testing.T) {
	s := New(0, -1)
	if s.size != DefaultChunkSize || s.overlap != DefaultChunkOverlap {
		t.Errorf("got size=%d overlap=%d, want defaults", s.size, s.overlap)
	}

	s = New(50, 60)
	if s.overlap >= s.size {
		t.Errorf("overlap %d not reduced below size %d", s.overlap, s.size)
	}
}
