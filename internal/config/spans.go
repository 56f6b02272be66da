package config

import (
	"bytes"
	"strings"

	"github.com/pelletier/go-toml/v2/unstable"
)

// Span is a half-open byte range [Start, End) into the config source.
type Span struct {
	Start int
	End   int
}

func (s Span) union(o Span) Span {
	if o.Start < s.Start {
		s.Start = o.Start
	}
	if o.End > s.End {
		s.End = o.End
	}
	return s
}

// LabeledSpan attaches a human readable label to a span.
type LabeledSpan struct {
	Span
	Label string
}

// spanIndex maps dotted key paths to byte ranges in the document.
type spanIndex struct {
	tables    map[string]Span
	keys      map[string]Span
	values    map[string]Span
	entries   map[string]Span
	elements  map[string][]Span
	duplicate *Span
}

func pathKey(path ...string) string {
	return strings.Join(path, "\x1f")
}

func (idx *spanIndex) table(path ...string) (Span, bool) {
	s, ok := idx.tables[pathKey(path...)]
	return s, ok
}

func (idx *spanIndex) key(path ...string) (Span, bool) {
	s, ok := idx.keys[pathKey(path...)]
	return s, ok
}

func (idx *spanIndex) value(path ...string) (Span, bool) {
	s, ok := idx.values[pathKey(path...)]
	return s, ok
}

// entry covers a key and its value, e.g. `image = "ubuntu"`.
func (idx *spanIndex) entry(path ...string) (Span, bool) {
	s, ok := idx.entries[pathKey(path...)]
	return s, ok
}

func (idx *spanIndex) element(i int, path ...string) (Span, bool) {
	elems := idx.elements[pathKey(path...)]
	if i < 0 || i >= len(elems) {
		return Span{}, false
	}
	return elems[i], true
}

// spanBuilder walks the document once with the unstable parser. Positions
// come from node raw ranges when the parser provides them and otherwise from
// a forward scan anchored at the end of the previous node.
type spanBuilder struct {
	data   []byte
	parser *unstable.Parser
	cursor int
	idx    *spanIndex
}

func indexSpans(data []byte) (*spanIndex, error) {
	b := &spanBuilder{
		data:   data,
		parser: &unstable.Parser{},
		idx: &spanIndex{
			tables:   make(map[string]Span),
			keys:     make(map[string]Span),
			values:   make(map[string]Span),
			entries:  make(map[string]Span),
			elements: make(map[string][]Span),
		},
	}
	b.parser.Reset(data)

	var current []string
	for b.parser.NextExpression() {
		expr := b.parser.Expression()
		switch expr.Kind {
		case unstable.Table, unstable.ArrayTable:
			path, header := b.header(expr)
			current = path
			b.extendTable(path, header)
		case unstable.KeyValue:
			b.keyValue(current, expr)
		}
	}
	if err := b.parser.Error(); err != nil {
		return nil, err
	}
	return b.idx, nil
}

func (b *spanBuilder) header(expr *unstable.Node) ([]string, Span) {
	open := indexByteFrom(b.data, '[', b.cursor)
	if open < 0 {
		open = b.cursor
	}
	b.cursor = open + 1
	path, keySpan := b.keyParts(expr.Key())
	end := indexByteFrom(b.data, ']', keySpan.End)
	if end < 0 {
		end = keySpan.End
	} else {
		end++
		if expr.Kind == unstable.ArrayTable && end < len(b.data) && b.data[end] == ']' {
			end++
		}
	}
	b.cursor = end
	return path, Span{Start: open, End: end}
}

func (b *spanBuilder) keyParts(it unstable.Iterator) ([]string, Span) {
	var (
		parts []string
		span  Span
		first = true
	)
	for it.Next() {
		n := it.Node()
		s := b.scalarSpan(n)
		parts = append(parts, string(n.Data))
		if first {
			span = s
			first = false
		} else {
			span = span.union(s)
		}
	}
	return parts, span
}

func (b *spanBuilder) keyValue(table []string, kv *unstable.Node) {
	parts, keySpan := b.keyParts(kv.Key())
	path := make([]string, 0, len(table)+len(parts))
	path = append(path, table...)
	path = append(path, parts...)
	k := pathKey(path...)

	valSpan := b.value(path, kv.Value())
	entry := keySpan.union(valSpan)

	if _, seen := b.idx.entries[k]; seen && b.idx.duplicate == nil {
		dup := entry
		b.idx.duplicate = &dup
	}
	b.idx.keys[k] = keySpan
	b.idx.values[k] = valSpan
	b.idx.entries[k] = entry

	for i := 1; i < len(path); i++ {
		b.extendTable(path[:i], entry)
	}
}

func (b *spanBuilder) extendTable(path []string, s Span) {
	k := pathKey(path...)
	if prev, ok := b.idx.tables[k]; ok {
		b.idx.tables[k] = prev.union(s)
		return
	}
	b.idx.tables[k] = s
}

// value records the span of n. A nil path skips recording, which is used for
// nested array elements.
func (b *spanBuilder) value(path []string, n *unstable.Node) Span {
	switch n.Kind {
	case unstable.Array:
		return b.container(n, '[', ']', func() {
			var elems []Span
			it := n.Children()
			for it.Next() {
				elems = append(elems, b.value(nil, it.Node()))
			}
			if path != nil {
				b.idx.elements[pathKey(path...)] = elems
			}
		})
	case unstable.InlineTable:
		s := b.container(n, '{', '}', func() {
			it := n.Children()
			for it.Next() {
				b.keyValue(path, it.Node())
			}
		})
		if path != nil {
			b.extendTable(path, s)
		}
		return s
	default:
		return b.scalarSpan(n)
	}
}

func (b *spanBuilder) container(n *unstable.Node, open, closing byte, children func()) Span {
	start := indexByteFrom(b.data, open, b.cursor)
	if start < 0 {
		return b.scalarSpan(n)
	}
	end := matchBracket(b.data, start, open, closing)
	b.cursor = start + 1
	children()
	if end < 0 {
		end = len(b.data)
	} else {
		end++
	}
	b.cursor = end
	return Span{Start: start, End: end}
}

func (b *spanBuilder) scalarSpan(n *unstable.Node) Span {
	var s Span
	if r := n.Raw; r.Length > 0 && int(r.Offset)+int(r.Length) <= len(b.data) && int(r.Offset) >= b.cursor {
		s = Span{Start: int(r.Offset), End: int(r.Offset + r.Length)}
	} else {
		pos := b.cursor
		if len(n.Data) > 0 {
			if i := bytes.Index(b.data[b.cursor:], n.Data); i >= 0 {
				pos = b.cursor + i
			}
		}
		s = Span{Start: pos, End: pos + len(n.Data)}
	}
	s = widenQuotes(b.data, s)
	if s.End > b.cursor {
		b.cursor = s.End
	}
	return s
}

// widenQuotes grows s so that a string span includes its delimiters.
func widenQuotes(data []byte, s Span) Span {
	if s.Start >= len(data) {
		return s
	}
	if c := data[s.Start]; c == '"' || c == '\'' {
		return s
	}
	if s.Start == 0 || s.End >= len(data) {
		return s
	}
	q := data[s.Start-1]
	if (q != '"' && q != '\'') || data[s.End] != q {
		return s
	}
	width := 1
	if s.Start >= 3 && s.End+3 <= len(data) &&
		data[s.Start-2] == q && data[s.Start-3] == q &&
		data[s.End+1] == q && data[s.End+2] == q {
		width = 3
	}
	return Span{Start: s.Start - width, End: s.End + width}
}

func indexByteFrom(data []byte, c byte, from int) int {
	if from >= len(data) {
		return -1
	}
	i := bytes.IndexByte(data[from:], c)
	if i < 0 {
		return -1
	}
	return from + i
}

// matchBracket returns the offset of the bracket closing the one at start,
// skipping strings and comments, or -1.
func matchBracket(data []byte, start int, open, closing byte) int {
	depth := 0
	for i := start; i < len(data); i++ {
		switch c := data[i]; c {
		case '#':
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case '"', '\'':
			i = skipString(data, i)
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipString returns the offset of the final delimiter of the string that
// starts at i.
func skipString(data []byte, i int) int {
	q := data[i]
	multi := i+2 < len(data) && data[i+1] == q && data[i+2] == q
	if multi {
		for j := i + 3; j+2 < len(data); j++ {
			if q == '"' && data[j] == '\\' {
				j++
				continue
			}
			if data[j] == q && data[j+1] == q && data[j+2] == q {
				return j + 2
			}
		}
		return len(data) - 1
	}
	for j := i + 1; j < len(data); j++ {
		switch {
		case q == '"' && data[j] == '\\':
			j++
		case data[j] == q, data[j] == '\n':
			return j
		}
	}
	return len(data) - 1
}

// offsetOf converts a 1-based row and column into a byte offset.
func offsetOf(data []byte, row, col int) int {
	if row < 1 {
		return 0
	}
	off := 0
	for r := 1; r < row; r++ {
		i := bytes.IndexByte(data[off:], '\n')
		if i < 0 {
			return len(data)
		}
		off += i + 1
	}
	off += col - 1
	if off < 0 {
		return 0
	}
	if off > len(data) {
		return len(data)
	}
	return off
}

// tokenSpan extends a position to the end of the token starting there.
func tokenSpan(data []byte, off int) Span {
	if off >= len(data) {
		return Span{Start: len(data), End: len(data)}
	}
	if c := data[off]; c == '"' || c == '\'' {
		return Span{Start: off, End: skipString(data, off) + 1}
	}
	end := off
	for end < len(data) && !strings.ContainsRune(" \t\r\n=,]}#[{.", rune(data[end])) {
		end++
	}
	if end == off {
		end = off + 1
	}
	return Span{Start: off, End: end}
}
