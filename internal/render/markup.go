package render

import (
	"html"
	"regexp"
	"sort"
	"strings"
)

const (
	textClose    = "</w:t>"
	preserveOpen = `<w:t xml:space="preserve">`
	lineBreak    = textClose + "<w:br/>" + preserveOpen
)

var loopTag = regexp.MustCompile(`^\{[#/^]\s*[^{}\s][^{}]*\}$`)

// textNode is one <w:t> element of a part.
type textNode struct {
	start   int // index of "<w:t"
	openEnd int // index after the open tag's '>'
	end     int // index after "</w:t>"
	open    string
	text    string
}

type paragraph struct {
	start, end int
}

// segment is either raw markup copied verbatim or text scanned for tags.
type segment struct {
	raw    string
	text   string
	isText bool
}

func isTagBoundary(c byte) bool {
	switch c {
	case '>', '/', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func scanTextNodes(xml string) []textNode {
	var nodes []textNode
	pos := 0
	for {
		i := strings.Index(xml[pos:], "<w:t")
		if i < 0 {
			return nodes
		}
		start := pos + i
		after := start + len("<w:t")
		if after >= len(xml) || !isTagBoundary(xml[after]) {
			pos = after
			continue
		}
		gt := strings.IndexByte(xml[after:], '>')
		if gt < 0 {
			return nodes
		}
		openEnd := after + gt + 1
		if xml[openEnd-2] == '/' {
			pos = openEnd
			continue
		}
		c := strings.Index(xml[openEnd:], textClose)
		if c < 0 {
			return nodes
		}
		closeStart := openEnd + c
		nodes = append(nodes, textNode{
			start:   start,
			openEnd: openEnd,
			end:     closeStart + len(textClose),
			open:    xml[start:openEnd],
			text:    html.UnescapeString(xml[openEnd:closeStart]),
		})
		pos = closeStart + len(textClose)
	}
}

func unclosed(s string) bool {
	return strings.LastIndexByte(s, '{') > strings.LastIndexByte(s, '}')
}

// mergeSplitTags moves the pieces of a tag that Word split over several runs
// into the node holding its opening brace. Tags never span paragraphs; a
// brace with no closing brace in its paragraph stays literal text.
func mergeSplitTags(nodes []textNode, para []int) {
	for i := range nodes {
		if !unclosed(nodes[i].text) {
			continue
		}
		end := -1
		for j := i + 1; j < len(nodes) && para[j] == para[i]; j++ {
			if strings.IndexByte(nodes[j].text, '}') >= 0 {
				end = j
				break
			}
		}
		if end < 0 {
			continue
		}
		for j := i + 1; j < end; j++ {
			nodes[i].text += nodes[j].text
			nodes[j].text = ""
		}
		k := strings.IndexByte(nodes[end].text, '}')
		nodes[i].text += nodes[end].text[:k+1]
		nodes[end].text = nodes[end].text[k+1:]
	}
}

// paragraphOf maps each node to the paragraph containing it. Nodes outside
// any paragraph get a negative index of their own.
func paragraphOf(nodes []textNode, paras []paragraph) []int {
	out := make([]int, len(nodes))
	p := 0
	for i, node := range nodes {
		for p < len(paras) && paras[p].end <= node.start {
			p++
		}
		if p < len(paras) && paras[p].start <= node.start && node.end <= paras[p].end {
			out[i] = p
			continue
		}
		out[i] = -(i + 1)
	}
	return out
}

func scanParagraphs(xml string) []paragraph {
	var out []paragraph
	depth, start, pos := 0, 0, 0
	for pos < len(xml) {
		i := strings.IndexByte(xml[pos:], '<')
		if i < 0 {
			break
		}
		at := pos + i
		rest := xml[at:]
		switch {
		case strings.HasPrefix(rest, "</w:p>"):
			if depth > 0 {
				depth--
				if depth == 0 {
					out = append(out, paragraph{start: start, end: at + len("</w:p>")})
				}
			}
			pos = at + len("</w:p>")
			continue
		case strings.HasPrefix(rest, "<w:p") && len(rest) > 4 && (rest[4] == '>' || rest[4] == ' '):
			gt := strings.IndexByte(rest, '>')
			if gt < 0 {
				return out
			}
			if rest[gt-1] != '/' {
				if depth == 0 {
					start = at
				}
				depth++
			}
			pos = at + gt + 1
			continue
		}
		pos = at + 1
	}
	return out
}

type replacement struct {
	start, end int
	segs       []segment
}

// standalone is a paragraph whose whole text is one section tag.
type standalone struct {
	para        paragraph
	first, last int // node range
	tag         string
}

type sectionTag struct {
	sigil, name string
	alone       int // index into the standalone list, -1 when inline
}

// segments splits a part into markup and text. A section whose opening and
// closing tags each fill a paragraph of their own is lifted out of those
// paragraphs, so the section repeats whole paragraphs. Any other section is
// expanded inside the text it appears in.
func segments(xml string) []segment {
	nodes := scanTextNodes(xml)
	if len(nodes) == 0 {
		return []segment{{raw: xml}}
	}
	paras := scanParagraphs(xml)
	mergeSplitTags(nodes, paragraphOf(nodes, paras))

	var alone []standalone
	n := 0
	for _, p := range paras {
		for n < len(nodes) && nodes[n].start < p.start {
			n++
		}
		first := n
		var text strings.Builder
		for n < len(nodes) && nodes[n].end <= p.end {
			text.WriteString(nodes[n].text)
			n++
		}
		tag := strings.TrimSpace(text.String())
		if n == first || !loopTag.MatchString(tag) {
			continue
		}
		alone = append(alone, standalone{para: p, first: first, last: n, tag: tag})
	}

	lift := liftable(nodes, alone)
	var reps []replacement
	used := make([]bool, len(nodes))
	for i, a := range alone {
		if !lift[i] {
			continue
		}
		for k := a.first; k < a.last; k++ {
			used[k] = true
		}
		reps = append(reps, replacement{start: a.para.start, end: a.para.end, segs: []segment{{text: a.tag, isText: true}}})
	}
	for i, node := range nodes {
		if used[i] {
			continue
		}
		open := node.open
		if strings.ContainsRune(node.text, '{') {
			open = preserveOpen
		}
		reps = append(reps, replacement{start: node.start, end: node.end, segs: []segment{
			{raw: open},
			{text: node.text, isText: true},
			{raw: textClose},
		}})
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].start < reps[j].start })

	out := make([]segment, 0, len(reps)*3+1)
	pos := 0
	for _, r := range reps {
		if r.start > pos {
			out = append(out, segment{raw: xml[pos:r.start]})
		}
		out = append(out, r.segs...)
		pos = r.end
	}
	if pos < len(xml) {
		out = append(out, segment{raw: xml[pos:]})
	}
	return out
}

// liftable pairs section tags in document order and reports which
// standalone paragraphs open or close a section whose other end is also
// standalone. Unbalanced tags lift nothing; parse reports them.
func liftable(nodes []textNode, alone []standalone) []bool {
	lift := make([]bool, len(alone))
	if len(alone) == 0 {
		return lift
	}
	owner := make(map[int]int, len(alone))
	for i, a := range alone {
		owner[a.first] = i
	}
	var tags []sectionTag
	for i := 0; i < len(nodes); i++ {
		if a, ok := owner[i]; ok {
			m := tagPattern.FindStringSubmatch(alone[a].tag)
			tags = append(tags, sectionTag{sigil: m[1], name: strings.TrimSpace(m[2]), alone: a})
			i = alone[a].last - 1
			continue
		}
		for _, m := range tagPattern.FindAllStringSubmatch(nodes[i].text, -1) {
			name := strings.TrimSpace(m[2])
			if m[1] == "" || name == "" {
				continue
			}
			tags = append(tags, sectionTag{sigil: m[1], name: name, alone: -1})
		}
	}

	var stack []sectionTag
	for _, t := range tags {
		if t.sigil != "/" {
			stack = append(stack, t)
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1].name != t.name {
			return lift
		}
		open := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if open.alone >= 0 && t.alone >= 0 {
			lift[open.alone] = true
			lift[t.alone] = true
		}
	}
	return lift
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// escapeValue escapes a substituted value and turns newlines into Word line breaks.
func escapeValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = escapeText(s)
	return strings.ReplaceAll(s, "\n", lineBreak)
}
