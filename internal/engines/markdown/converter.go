// Package markdown renders uploads as structured markdown.
package markdown

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/ledongthuc/pdf"
)

const (
	kindPDF   = "pdf"
	kindDOCX  = "docx"
	kindText  = "text"
	kindImage = "image"
)

var (
	// ErrUnsupported is returned for inputs the converter cannot read.
	ErrUnsupported = errors.New("unsupported input")
	// ErrNoText is returned when a document carries no extractable text.
	ErrNoText = errors.New("no extractable text")
	// ErrNoTextLayer marks ErrNoText for scanned PDFs and images, the inputs
	// OCR can recover text from.
	ErrNoTextLayer = errors.New("no text layer")
)

// Converter turns PDF, DOCX and text inputs into markdown. It holds no
// per-call state and is safe for concurrent use.
type Converter struct {
	// MaxBytes bounds the input size read into memory; zero means no limit.
	MaxBytes int64
}

// NewConverter returns a converter with default limits.
func NewConverter() *Converter {
	return &Converter{MaxBytes: 200 << 20}
}

var shared = sync.OnceValue(NewConverter)

// Shared returns the process-wide converter.
func Shared() *Converter {
	return shared()
}

// ConvertFile converts the file at path.
func (c *Converter) ConvertFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open input")
	}
	defer f.Close()

	var r io.Reader = f
	if c.MaxBytes > 0 {
		r = io.LimitReader(f, c.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "read input")
	}
	if c.MaxBytes > 0 && int64(len(data)) > c.MaxBytes {
		return "", errors.Newf("input exceeds %d bytes", c.MaxBytes)
	}
	return c.Convert(ctx, data, filepath.Base(path))
}

// Convert renders data as markdown. fileName is only used to pick the format
// when the content itself is ambiguous.
func (c *Converter) Convert(ctx context.Context, data []byte, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.Wrap(ErrNoText, "empty input")
	}
	switch kind := detectKind(data, fileName); kind {
	case kindPDF:
		return convertPDF(ctx, data)
	case kindDOCX:
		return convertDOCX(data)
	case kindText:
		return convertText(data)
	case kindImage:
		return "", errors.Mark(errors.Wrap(ErrNoText, "image input has no text layer"), ErrNoTextLayer)
	default:
		return "", errors.Wrapf(ErrUnsupported, "%s", fileName)
	}
}

func detectKind(data []byte, fileName string) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return kindPDF
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		if zipHas(data, "word/document.xml") {
			return kindDOCX
		}
		return ""
	case bytes.HasPrefix(data, []byte("\x89PNG")),
		bytes.HasPrefix(data, []byte("\xff\xd8\xff")),
		bytes.HasPrefix(data, []byte("II*\x00")),
		bytes.HasPrefix(data, []byte("MM\x00*")):
		return kindImage
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt", ".md", ".markdown", ".csv", ".text":
		return kindText
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return kindImage
	}
	if utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
		return kindText
	}
	return ""
}

func zipHas(data []byte, name string) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == name {
			return true
		}
	}
	return false
}

func convertPDF(ctx context.Context, data []byte) (out string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("corrupt pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "open pdf")
	}

	total := reader.NumPage()
	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return "", errors.Wrapf(err, "read page %d", i)
		}
		pages = append(pages, paragraphs(text))
	}

	var b strings.Builder
	hasText := false
	for i, text := range pages {
		if text != "" {
			hasText = true
		}
		if len(pages) > 1 {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString("## Page " + strconv.Itoa(i+1))
			if text != "" {
				b.WriteString("\n\n")
			}
		} else if b.Len() > 0 && text != "" {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	if !hasText {
		return "", errors.Mark(errors.Wrap(ErrNoText, "pdf has no text layer"), ErrNoTextLayer)
	}
	return b.String() + "\n", nil
}

// paragraphs joins wrapped lines and separates blocks with blank lines.
func paragraphs(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, " "))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return strings.Join(blocks, "\n\n")
}

func convertText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.Wrap(ErrUnsupported, "text input is not valid UTF-8")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimRight(text, " \t\n")
	if strings.TrimSpace(text) == "" {
		return "", errors.Wrap(ErrNoText, "empty text input")
	}
	return text + "\n", nil
}

func convertDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "open docx")
	}
	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.Wrap(ErrUnsupported, "word/document.xml not found")
	}
	rc, err := docFile.Open()
	if err != nil {
		return "", errors.Wrap(err, "open document.xml")
	}
	defer rc.Close()

	blocks, err := docxBlocks(rc)
	if err != nil {
		return "", errors.Wrap(err, "parse document.xml")
	}
	if len(blocks) == 0 {
		return "", errors.Wrap(ErrNoText, "docx has no text")
	}
	return strings.Join(blocks, "\n\n") + "\n", nil
}

type docxParagraph struct {
	style string
	list  bool
	text  strings.Builder
}

func (p *docxParagraph) markdown() string {
	text := strings.TrimSpace(p.text.String())
	if text == "" {
		return ""
	}
	if level := headingLevel(p.style); level > 0 {
		return strings.Repeat("#", level) + " " + text
	}
	if p.list {
		return "- " + text
	}
	return text
}

func docxBlocks(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var blocks []string
	var para *docxParagraph
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para = &docxParagraph{}
			case "pStyle":
				if para != nil {
					para.style = attr(t, "val")
				}
			case "numPr":
				if para != nil {
					para.list = true
				}
			case "t":
				inText = true
			case "tab":
				if para != nil {
					para.text.WriteString("\t")
				}
			case "br", "cr":
				if para != nil {
					para.text.WriteString("\n")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if para != nil {
					if md := para.markdown(); md != "" {
						blocks = append(blocks, md)
					}
				}
				para = nil
			}
		case xml.CharData:
			if inText && para != nil {
				para.text.Write(t)
			}
		}
	}
	return blocks, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingLevel maps Word paragraph styles such as "Heading2" or "Title".
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case s == "title":
		return 1
	case strings.HasPrefix(s, "heading"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
		if err != nil || n < 1 {
			return 0
		}
		if n > 6 {
			n = 6
		}
		return n
	}
	return 0
}
