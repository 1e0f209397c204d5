package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func numberedWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	return words
}

func TestSplit_EmptyInput(t *testing.T) {
	s := NewSplitter()
	for _, in := range []string{"", "   ", "\n\n\t  \n"} {
		if got := s.Split(in); len(got) != 0 {
			t.Errorf("Split(%q) = %v, want no chunks", in, got)
		}
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s := NewSplitter()
	got := s.Split("Refund policy: customers may return items within 30 days.")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(got), got)
	}
}

func TestSplit_TinyTextIsKept(t *testing.T) {
	s := NewSplitter()
	got := s.Split("Hello.")
	if len(got) != 1 || got[0] != "Hello." {
		t.Fatalf("expected the tiny text to survive, got %v", got)
	}
}

func TestSplit_NormalizesWhitespace(t *testing.T) {
	s := NewSplitter()
	got := s.Split("first   paragraph\t\twith tabs\n\n\n\n\nsecond paragraph here")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if strings.Contains(got[0], "  ") || strings.Contains(got[0], "\t") {
		t.Errorf("whitespace runs not collapsed: %q", got[0])
	}
	if strings.Contains(got[0], "\n\n\n") {
		t.Errorf("blank lines not collapsed: %q", got[0])
	}
}

func TestSplit_Coverage(t *testing.T) {
	s := NewSplitter(WithChunkSize(10), WithOverlap(3))
	words := numberedWords(200)
	text := strings.Join(words, " ")

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	joined := strings.Join(chunks, " ")
	last := -1
	for _, w := range words {
		idx := strings.Index(joined, w)
		if idx < 0 {
			t.Fatalf("word %s lost", w)
		}
		if idx < last {
			t.Fatalf("word %s out of order", w)
		}
		last = idx
	}
}

func TestSplit_SizeBound(t *testing.T) {
	s := NewSplitter(WithChunkSize(20), WithOverlap(5))
	var sb strings.Builder
	for i := range 50 {
		fmt.Fprintf(&sb, "Sentence number %d talks about topic %d. ", i, i%7)
		if i%5 == 4 {
			sb.WriteString("\n\n")
		}
	}

	limit := 20*CharsPerToken + 5*CharsPerToken
	for i, c := range s.Split(sb.String()) {
		if n := utf8.RuneCountInString(c); n > limit {
			t.Errorf("chunk %d has %d chars, limit %d", i, n, limit)
		}
	}
}

func TestSplit_Overlap(t *testing.T) {
	s := NewSplitter(WithChunkSize(10), WithOverlap(3))
	chunks := s.Split(strings.Join(numberedWords(60), " "))
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}

	// 12 overlap chars hold two "wNNN " pieces.
	for i := 0; i+2 < len(chunks); i++ {
		prev := strings.Fields(chunks[i])
		head := strings.Join(prev[len(prev)-2:], " ")
		if !strings.HasPrefix(chunks[i+1], head) {
			t.Errorf("chunk %d does not start with tail %q of chunk %d: %q", i+1, head, i, chunks[i+1])
		}
	}
}

func TestSplit_LongWordFallsBackToCharacters(t *testing.T) {
	s := NewSplitter(WithChunkSize(5), WithOverlap(0))
	word := strings.Repeat("x", 100)

	chunks := s.Split(word)
	if len(chunks) < 5 {
		t.Fatalf("expected character-level split into several chunks, got %d", len(chunks))
	}
	if got := strings.Join(chunks, ""); strings.ReplaceAll(got, " ", "") != word {
		t.Errorf("characters lost: %q", got)
	}
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	s := NewSplitter(WithChunkSize(15), WithOverlap(0))
	p1 := strings.Repeat("alpha ", 9) + "end."
	p2 := strings.Repeat("beta ", 9) + "end."

	chunks := s.Split(p1 + "\n\n" + p2)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0], "alpha") || !strings.HasPrefix(chunks[1], "beta") {
		t.Errorf("paragraph boundary not respected: %q", chunks)
	}
}

func TestSplit_MultibyteSafe(t *testing.T) {
	s := NewSplitter(WithChunkSize(3), WithOverlap(0))
	for _, c := range s.Split(strings.Repeat("ж", 50)) {
		if !utf8.ValidString(c) {
			t.Fatalf("invalid UTF-8 in chunk %q", c)
		}
	}
}

func TestNewSplitter_OverlapClamped(t *testing.T) {
	s := NewSplitter(WithChunkSize(10), WithOverlap(50))
	if s.overlap >= s.chunkSize {
		t.Errorf("overlap %d not clamped below chunk size %d", s.overlap, s.chunkSize)
	}
}

func TestSplitDocument_Metadata(t *testing.T) {
	s := NewSplitter(WithChunkSize(10), WithOverlap(2))
	meta := map[string]string{
		MetaDocumentID:  "doc-1",
		"tenant_id":     "t1",
		"department_id": "d1",
	}

	chunks := s.SplitDocument(strings.Join(numberedWords(40), " "), meta)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.DocumentID != "doc-1" {
			t.Errorf("chunk %d document id = %q", i, c.DocumentID)
		}
		if c.TokenCount != EstimateTokens(c.Content) {
			t.Errorf("chunk %d token count = %d", i, c.TokenCount)
		}
		if c.Metadata["tenant_id"] != "t1" || c.Metadata[MetaTotalChunks] != fmt.Sprint(len(chunks)) {
			t.Errorf("chunk %d metadata = %v", i, c.Metadata)
		}
	}
	if _, ok := meta[MetaChunkIndex]; ok {
		t.Error("caller metadata was mutated")
	}
}

func TestSplitDocument_Empty(t *testing.T) {
	if got := NewSplitter().SplitDocument("  ", nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{"abcdefgh", 2},
		{strings.Repeat("a", 400), 100},
	}
	for _, tc := range tests {
		if got := EstimateTokens(tc.in); got != tc.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.in), got, tc.want)
		}
	}
}
