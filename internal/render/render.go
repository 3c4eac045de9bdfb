// Package render fills placeholders in DOCX templates.
//
// Placeholders use single braces: {name}, {party.name}, {.} for the current
// item, {#items}...{/items} for repeated or conditional sections and
// {^items}...{/items} for inverted sections.
package render

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

const documentPart = "word/document.xml"

var textParts = regexp.MustCompile(`^word/(document|header\d*|footer\d*|footnotes|endnotes)\.xml$`)

type options struct {
	level int
}

type Option func(*options)

// WithCompression sets the deflate level of the output archive.
func WithCompression(level int) Option {
	return func(o *options) { o.level = level }
}

// Render returns a new archive with every placeholder in the text parts of
// template replaced from vars. template is never modified.
func Render(template []byte, vars map[string]any, opts ...Option) ([]byte, error) {
	o := options{level: flate.DefaultCompression}
	for _, opt := range opts {
		opt(&o)
	}
	if vars == nil {
		vars = map[string]any{}
	}

	files, err := open(template)
	if err != nil {
		return nil, err
	}

	exec := &executor{missing: map[string]bool{}}
	rendered := make(map[string][]byte)
	for _, f := range files {
		if !textParts.MatchString(f.name) {
			continue
		}
		tree, err := parse(f.name, segments(string(f.data)))
		if err != nil {
			return nil, err
		}
		exec.b.Reset()
		exec.scopes = []any{vars}
		exec.run(tree)
		rendered[f.name] = []byte(exec.b.String())
	}
	if len(exec.order) > 0 {
		missing := append([]string(nil), exec.order...)
		sort.Strings(missing)
		return nil, &Error{Kind: ErrMissingVariable, Missing: missing}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, o.level)
	})
	for _, f := range files {
		data := f.data
		if r, ok := rendered[f.name]; ok {
			data = r
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Deflate, Modified: f.modified})
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Placeholders lists the top-level names a template needs, in first-use order.
func Placeholders(template []byte) ([]string, error) {
	files, err := open(template)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	for _, f := range files {
		if !textParts.MatchString(f.name) {
			continue
		}
		tree, err := parse(f.name, segments(string(f.data)))
		if err != nil {
			return nil, err
		}
		names = topLevelNames(tree, seen, names)
	}
	return names, nil
}

type archiveFile struct {
	name     string
	modified time.Time
	data     []byte
}

func open(template []byte) ([]archiveFile, error) {
	if len(template) == 0 || !isZip(mimetype.Detect(template)) {
		return nil, corrupt(fmt.Errorf("not a zip archive"))
	}
	zr, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, corrupt(err)
	}
	files := make([]archiveFile, 0, len(zr.File))
	hasDocument := false
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, corrupt(fmt.Errorf("open %s: %w", f.Name, err))
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, corrupt(fmt.Errorf("read %s: %w", f.Name, err))
		}
		if f.Name == documentPart {
			hasDocument = true
		}
		files = append(files, archiveFile{name: f.Name, modified: f.Modified, data: data})
	}
	if !hasDocument {
		return nil, corrupt(fmt.Errorf("%s not found", documentPart))
	}
	return files, nil
}

func isZip(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}
