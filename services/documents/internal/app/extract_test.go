package app

import (
	"strings"
	"testing"
)

func TestExtractTextPlainFile(t *testing.T) {
	got, err := extractText("nota.txt", []byte("  Contrato de arrendamiento.\nCláusula primera.  "))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.HasPrefix(got, "Contrato") {
		t.Fatalf("text not trimmed: %q", got)
	}
}

func TestExtractTextRejectsEmptyFile(t *testing.T) {
	if _, err := extractText("vacio.txt", []byte("   ")); err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestExtractTextRejectsBinary(t *testing.T) {
	if _, err := extractText("raro.txt", []byte{0xff, 0xfe, 0x00, 0x81}); err == nil {
		t.Fatalf("expected error for non-UTF-8 content")
	}
}

func TestExtractTextRejectsBrokenPDF(t *testing.T) {
	if _, err := extractText("doc.pdf", []byte("not a pdf")); err == nil {
		t.Fatalf("expected error for invalid pdf")
	}
}

func TestExtractTextHTMLStripsMarkup(t *testing.T) {
	page := []byte(`<html><head><style>p{color:red}</style><script>var x=1;</script></head>` +
		`<body><h1>Ley 45</h1><p>Artículo 1. Primera parte.</p><p>Artículo 2. Segunda parte.</p></body></html>`)
	text, err := extractText("gaceta.html", page)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(text, "color:red") || strings.Contains(text, "var x") {
		t.Fatalf("markup leaked into text: %q", text)
	}
	for _, want := range []string{"Ley 45", "Artículo 1. Primera parte.", "Artículo 2. Segunda parte."} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in %q", want, text)
		}
	}
	if !strings.Contains(text, "\n\n") {
		t.Fatalf("expected paragraph breaks, got %q", text)
	}
}
