package markdown

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Raport anual</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Venituri</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Prima parte, </w:t></w:r><w:r><w:t>a doua parte.</w:t></w:r></w:p>
<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/></w:numPr></w:pPr><w:r><w:t>element</w:t></w:r></w:p>
<w:p></w:p>
</w:body>
</w:document>`

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestConvertDOCXMapsHeadingsAndLists(t *testing.T) {
	data := buildZip(t, map[string]string{"word/document.xml": docxBody})

	got, err := NewConverter().Convert(context.Background(), data, "raport.docx")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := "# Raport anual\n\n## Venituri\n\nPrima parte, a doua parte.\n\n- element\n"
	if got != want {
		t.Fatalf("unexpected markdown:\n%q\nwant\n%q", got, want)
	}
}

func TestConvertPlainZipIsUnsupported(t *testing.T) {
	data := buildZip(t, map[string]string{"notes.txt": "hello"})

	_, err := NewConverter().Convert(context.Background(), data, "notes.zip")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestConvertTextNormalizesLineEndings(t *testing.T) {
	got, err := NewConverter().Convert(context.Background(), []byte("\xef\xbb\xbf# Titlu\r\n\r\ntext\r\n\r\n"), "note.md")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got != "# Titlu\n\ntext\n" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestConvertRejectsInvalidUTF8Text(t *testing.T) {
	_, err := NewConverter().Convert(context.Background(), []byte{0xff, 0xfe, 0x41}, "bad.txt")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestConvertImageHasNoText(t *testing.T) {
	_, err := NewConverter().Convert(context.Background(), []byte("\x89PNG\r\n\x1a\nrest"), "scan.png")
	if !errors.Is(err, ErrNoText) || !errors.Is(err, ErrNoTextLayer) {
		t.Fatalf("expected ErrNoText marked as missing text layer, got %v", err)
	}
}

// buildPDF writes a minimal PDF with one page per entry, each page showing
// its text with a WinAnsi Helvetica font. An empty entry yields a page with
// no text.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	var objects []string
	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := "BT ET"
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func TestConvertPDFSinglePageIsPlainParagraphs(t *testing.T) {
	got, err := NewConverter().Convert(context.Background(), buildPDF(t, "Hello world"), "scan.pdf")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got != "Hello world\n" {
		t.Fatalf("unexpected markdown %q", got)
	}
}

func TestConvertPDFMultiPageAddsPageHeadings(t *testing.T) {
	got, err := NewConverter().Convert(context.Background(), buildPDF(t, "First page", "Second page"), "scan.pdf")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := "## Page 1\n\nFirst page\n\n## Page 2\n\nSecond page\n"
	if got != want {
		t.Fatalf("unexpected markdown:\n got %q\nwant %q", got, want)
	}
}

func TestConvertPDFKeepsHeadingForBlankPage(t *testing.T) {
	got, err := NewConverter().Convert(context.Background(), buildPDF(t, "Cover", ""), "scan.pdf")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got != "## Page 1\n\nCover\n\n## Page 2\n" {
		t.Fatalf("unexpected markdown %q", got)
	}
}

func TestConvertPDFWithoutTextNeedsTextLayer(t *testing.T) {
	_, err := NewConverter().Convert(context.Background(), buildPDF(t, ""), "scan.pdf")
	if !errors.Is(err, ErrNoText) || !errors.Is(err, ErrNoTextLayer) {
		t.Fatalf("expected missing text layer, got %v", err)
	}
}

func TestConvertCorruptPDFFails(t *testing.T) {
	_, err := NewConverter().Convert(context.Background(), []byte("%PDF-1.4\nnot really a pdf"), "broken.pdf")
	if err == nil {
		t.Fatalf("expected error for corrupt pdf")
	}
}

func TestConvertEmptyInput(t *testing.T) {
	_, err := NewConverter().Convert(context.Background(), nil, "empty.txt")
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
	if errors.Is(err, ErrNoTextLayer) {
		t.Fatalf("empty input must not ask for a text layer")
	}
}

func TestConvertHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewConverter().Convert(ctx, []byte("text"), "a.txt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParagraphsJoinsWrappedLines(t *testing.T) {
	got := paragraphs("first line\n  continues here\n\n\nsecond   block\n")
	if got != "first line continues here\n\nsecond block" {
		t.Fatalf("unexpected paragraphs: %q", got)
	}
}

func TestHeadingLevel(t *testing.T) {
	cases := map[string]int{
		"Title":     1,
		"Heading1":  1,
		"heading 3": 3,
		"Heading9":  6,
		"Normal":    0,
		"HeadingX":  0,
	}
	for style, want := range cases {
		if got := headingLevel(style); got != want {
			t.Fatalf("headingLevel(%q) = %d, want %d", style, got, want)
		}
	}
}

func TestSharedIsMemoized(t *testing.T) {
	if Shared() != Shared() {
		t.Fatalf("expected the same converter instance")
	}
}
