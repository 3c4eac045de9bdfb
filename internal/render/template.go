package render

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tagPattern = regexp.MustCompile(`\{([#/^]?)([^{}]*)\}`)

type nodeKind int

const (
	literalNode nodeKind = iota
	variableNode
	sectionNode
	invertedNode
)

type node struct {
	kind     nodeKind
	out      string // literal output, already escaped
	name     string
	children []node
}

type frame struct {
	kind nodeKind
	name string
	body []node
}

// parse builds the placeholder tree of one part.
func parse(part string, segs []segment) ([]node, error) {
	stack := []frame{{}}
	emit := func(n node) {
		top := &stack[len(stack)-1]
		top.body = append(top.body, n)
	}
	for _, s := range segs {
		if !s.isText {
			emit(node{kind: literalNode, out: s.raw})
			continue
		}
		pos := 0
		for _, m := range tagPattern.FindAllStringSubmatchIndex(s.text, -1) {
			sigil := s.text[m[2]:m[3]]
			name := strings.TrimSpace(s.text[m[4]:m[5]])
			if name == "" {
				continue
			}
			if m[0] > pos {
				emit(node{kind: literalNode, out: escapeText(s.text[pos:m[0]])})
			}
			pos = m[1]
			switch sigil {
			case "":
				emit(node{kind: variableNode, name: name})
			case "#":
				stack = append(stack, frame{kind: sectionNode, name: name})
			case "^":
				stack = append(stack, frame{kind: invertedNode, name: name})
			case "/":
				if len(stack) == 1 {
					return nil, malformed(part, fmt.Sprintf("closing tag {/%s} without opening tag", name))
				}
				top := stack[len(stack)-1]
				if top.name != name {
					return nil, malformed(part, fmt.Sprintf("closing tag {/%s} does not match {#%s}", name, top.name))
				}
				stack = stack[:len(stack)-1]
				emit(node{kind: top.kind, name: top.name, children: top.body})
			}
		}
		if pos < len(s.text) {
			emit(node{kind: literalNode, out: escapeText(s.text[pos:])})
		}
	}
	if len(stack) > 1 {
		return nil, malformed(part, fmt.Sprintf("section {#%s} is never closed", stack[len(stack)-1].name))
	}
	return stack[0].body, nil
}

type executor struct {
	b       strings.Builder
	scopes  []any
	missing map[string]bool
	order   []string
}

func (e *executor) miss(name string) {
	if e.missing[name] {
		return
	}
	e.missing[name] = true
	e.order = append(e.order, name)
}

func (e *executor) run(nodes []node) {
	for _, n := range nodes {
		switch n.kind {
		case literalNode:
			e.b.WriteString(n.out)
		case variableNode:
			v, ok := e.lookup(n.name)
			if !ok {
				e.miss(n.name)
				continue
			}
			e.b.WriteString(escapeValue(display(v)))
		case sectionNode:
			v, ok := e.lookup(n.name)
			if !ok {
				e.miss(n.name)
				continue
			}
			e.section(n, v)
		case invertedNode:
			v, ok := e.lookup(n.name)
			if !ok {
				e.miss(n.name)
				continue
			}
			if !truthy(v) {
				e.run(n.children)
			}
		}
	}
}

func (e *executor) section(n node, v any) {
	if items, ok := list(v); ok {
		for _, item := range items {
			e.scopes = append(e.scopes, item)
			e.run(n.children)
			e.scopes = e.scopes[:len(e.scopes)-1]
		}
		return
	}
	if !truthy(v) {
		return
	}
	if b, ok := v.(bool); ok && b {
		e.run(n.children)
		return
	}
	e.scopes = append(e.scopes, v)
	e.run(n.children)
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// lookup resolves a dotted name from the innermost scope outwards; "." is
// the current section item.
func (e *executor) lookup(name string) (any, bool) {
	if name == "." {
		return e.scopes[len(e.scopes)-1], true
	}
	parts := strings.Split(name, ".")
	for i := len(e.scopes) - 1; i >= 0; i-- {
		head, ok := field(e.scopes[i], parts[0])
		if !ok {
			continue
		}
		return walk(head, parts[1:])
	}
	return nil, false
}

func walk(v any, path []string) (any, bool) {
	for _, p := range path {
		next, ok := field(v, p)
		if !ok {
			return nil, false
		}
		v = next
	}
	return v, true
}

func field(scope any, key string) (any, bool) {
	switch m := scope.(type) {
	case map[string]any:
		v, ok := m[key]
		return v, ok
	case map[string]string:
		v, ok := m[key]
		return v, ok
	}
	return nil, false
}

func list(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []map[string]any:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case json.Number:
		return t.String() != "0"
	}
	if items, ok := list(v); ok {
		return len(items) > 0
	}
	return true
}

func display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// topLevelNames lists variable and section names outside any section.
func topLevelNames(nodes []node, seen map[string]bool, out []string) []string {
	for _, n := range nodes {
		if n.kind == literalNode || n.name == "." {
			continue
		}
		name, _, _ := strings.Cut(n.name, ".")
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
