package app

import (
	"strings"
	"testing"
)

func TestChunkParagraphsKeepsParagraphBoundaries(t *testing.T) {
	text := "Primer párrafo sobre el artículo 1.\n\nSegundo párrafo sobre el artículo 2.\n\n \nTercer párrafo."
	chunks := chunkParagraphs(text, 1000)
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "Primer párrafo") || !strings.Contains(chunks[0], "Tercer párrafo") {
		t.Fatalf("chunk missing paragraphs: %q", chunks[0])
	}
}

func TestChunkParagraphsSplitsAtMaxSize(t *testing.T) {
	para1 := strings.Repeat("a", 600)
	para2 := strings.Repeat("b", 600)
	chunks := chunkParagraphs(para1+"\n\n"+para2, 1000)
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %d", len(chunks))
	}
	if chunks[0] != para1 || chunks[1] != para2 {
		t.Fatalf("paragraphs were not kept intact")
	}
}

func TestChunkParagraphsSplitsLongParagraphAtSpace(t *testing.T) {
	words := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		words = append(words, "palabra")
	}
	para := strings.Join(words, " ")
	chunks := chunkParagraphs(para, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d chars", i, len(chunk))
		}
		if strings.HasPrefix(chunk, " ") || strings.HasSuffix(chunk, " ") {
			t.Fatalf("chunk %d has surrounding whitespace: %q", i, chunk)
		}
	}
}

func TestChunkParagraphsToleratesUnbrokenRun(t *testing.T) {
	run := strings.Repeat("x", 2500)
	chunks := chunkParagraphs(run, 1000)
	if len(chunks) != 1 {
		t.Fatalf("expected the run to stay intact, got %d chunks", len(chunks))
	}
	if chunks[0] != run {
		t.Fatalf("run was altered")
	}
}

func TestChunkParagraphsEmptyInput(t *testing.T) {
	if got := chunkParagraphs("   \n\n  ", 1000); len(got) != 0 {
		t.Fatalf("expected no chunks, got %v", got)
	}
}
