// Package docxtest builds and reads minimal DOCX archives in tests.
package docxtest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const documentHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentTail = `<w:sectPr/></w:body></w:document>`

// P builds a paragraph with one run per text. Texts are escaped.
func P(runs ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, r := range runs {
		b.WriteString(`<w:r><w:rPr><w:b/></w:rPr><w:t>`)
		b.WriteString(html.EscapeString(r))
		b.WriteString(`</w:t></w:r>`)
	}
	b.WriteString("</w:p>")
	return b.String()
}

// Document builds a DOCX whose body holds the given paragraphs.
func Document(paragraphs ...string) []byte {
	return Build(map[string]string{
		"word/document.xml": documentHead + strings.Join(paragraphs, "") + documentTail,
	})
}

// Build writes an archive with [Content_Types].xml first and the given
// parts after it in name order.
func Build(parts map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, body string) {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			panic(err)
		}
	}
	write("[Content_Types].xml", contentTypes)
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		write(name, parts[name])
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Part returns the raw contents of one archive entry.
func Part(docx []byte, name string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		return string(data), err
	}
	return "", fmt.Errorf("%s not in archive", name)
}

var (
	breakTag = regexp.MustCompile(`<w:br/>`)
	paraEnd  = regexp.MustCompile(`</w:p>`)
	anyTag   = regexp.MustCompile(`<[^>]+>`)
)

// Text flattens word/document.xml to plain text: one line per paragraph,
// <w:br/> as a newline.
func Text(docx []byte) (string, error) {
	xml, err := Part(docx, "word/document.xml")
	if err != nil {
		return "", err
	}
	xml = breakTag.ReplaceAllString(xml, "\n")
	xml = paraEnd.ReplaceAllString(xml, "\n")
	xml = anyTag.ReplaceAllString(xml, "")
	return html.UnescapeString(strings.TrimSpace(xml)), nil
}

// WellFormed decodes word/document.xml to the end and reports the first
// syntax error.
func WellFormed(docx []byte) error {
	part, err := Part(docx, "word/document.xml")
	if err != nil {
		return err
	}
	dec := xml.NewDecoder(strings.NewReader(part))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
