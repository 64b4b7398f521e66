package documents

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockListItem
	blockCode
)

// block is one paragraph of the output document.
type block struct {
	kind  blockKind
	level int
	text  string
}

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

var headingSizes = [...]int{40, 32, 28, 26, 24, 22}

func stylesXML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:styles xmlns:w="` + wordNS + `">`)
	b.WriteString(`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/>` +
		`<w:pPr><w:spacing w:after="120"/></w:pPr><w:rPr><w:sz w:val="22"/></w:rPr></w:style>`)
	for i, size := range headingSizes {
		n := strconv.Itoa(i + 1)
		b.WriteString(`<w:style w:type="paragraph" w:styleId="Heading` + n + `"><w:name w:val="heading ` + n + `"/>` +
			`<w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="` + strconv.Itoa(i) + `"/></w:pPr>` +
			`<w:rPr><w:b/><w:sz w:val="` + strconv.Itoa(size) + `"/></w:rPr></w:style>`)
	}
	b.WriteString(`<w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/>` +
		`<w:basedOn w:val="Normal"/><w:pPr><w:ind w:left="720"/></w:pPr></w:style>`)
	b.WriteString(`<w:style w:type="paragraph" w:styleId="Code"><w:name w:val="Code"/><w:basedOn w:val="Normal"/>` +
		`<w:pPr><w:spacing w:after="0"/></w:pPr><w:rPr><w:rFonts w:ascii="Consolas" w:hAnsi="Consolas"/><w:sz w:val="20"/></w:rPr></w:style>`)
	b.WriteString(`</w:styles>`)
	return b.String()
}

func styleFor(b block) string {
	switch b.kind {
	case blockHeading:
		level := b.level
		if level < 1 {
			level = 1
		}
		if level > len(headingSizes) {
			level = len(headingSizes)
		}
		return "Heading" + strconv.Itoa(level)
	case blockListItem:
		return "ListParagraph"
	case blockCode:
		return "Code"
	}
	return ""
}

func documentXML(blocks []block) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	buf.WriteString(`<w:document xmlns:w="` + wordNS + `"><w:body>`)
	for _, b := range blocks {
		buf.WriteString(`<w:p>`)
		style := styleFor(b)
		if style != "" || (b.kind == blockListItem && b.level > 0) {
			buf.WriteString(`<w:pPr>`)
			if style != "" {
				buf.WriteString(`<w:pStyle w:val="` + style + `"/>`)
			}
			if b.kind == blockListItem && b.level > 0 {
				buf.WriteString(`<w:ind w:left="` + strconv.Itoa(720*(b.level+1)) + `"/>`)
			}
			buf.WriteString(`</w:pPr>`)
		}
		writeRuns(&buf, b.text)
		buf.WriteString(`</w:p>`)
	}
	buf.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>`)
	buf.WriteString(`</w:body></w:document>`)
	return buf.Bytes()
}

// writeRuns emits one run per line; tabs and line breaks become their
// WordprocessingML elements.
func writeRuns(buf *bytes.Buffer, text string) {
	if text == "" {
		return
	}
	buf.WriteString(`<w:r>`)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			buf.WriteString(`<w:br/>`)
		}
		for j, part := range strings.Split(line, "\t") {
			if j > 0 {
				buf.WriteString(`<w:tab/>`)
			}
			if part == "" {
				continue
			}
			buf.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(buf, []byte(stripControl(part)))
			buf.WriteString(`</w:t>`)
		}
	}
	buf.WriteString(`</w:r>`)
}

// stripControl drops characters XML 1.0 cannot carry.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		if r == 0xFFFE || r == 0xFFFF {
			return -1
		}
		return r
	}, s)
}

// writeDocx writes a minimal WordprocessingML package holding blocks.
func writeDocx(w io.Writer, blocks []block, modified time.Time) error {
	zw := zip.NewWriter(w)
	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
		{"word/document.xml", documentXML(blocks)},
		{"word/styles.xml", []byte(stylesXML())},
	}
	for _, part := range parts {
		header := &zip.FileHeader{Name: part.name, Method: zip.Deflate, Modified: modified}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return errors.Wrapf(err, "create %s", part.name)
		}
		if _, err := fw.Write(part.data); err != nil {
			return errors.Wrapf(err, "write %s", part.name)
		}
	}
	return errors.Wrap(zw.Close(), "close docx")
}

// textBlocks turns plain text into a heading plus one paragraph per line.
func textBlocks(title, content string) []block {
	var blocks []block
	if title != "" {
		blocks = append(blocks, block{kind: blockHeading, level: 1, text: title})
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	for _, line := range strings.Split(content, "\n") {
		blocks = append(blocks, block{kind: blockParagraph, text: line})
	}
	return blocks
}
