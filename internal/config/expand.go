package config

import (
	"bytes"
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Env is the process environment used for variable expansion and config
// discovery. Resolution never reads os.Getenv directly.
type Env map[string]string

// EnvFromOS snapshots the current process environment.
func EnvFromOS() Env {
	env := make(Env)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Lookup mirrors os.LookupEnv against the snapshot.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// Expand replaces $VAR and ${VAR} with their values. Unset variables expand
// to the empty string and `\$` yields a literal dollar. A dollar that does not
// start a variable reference, such as `$1`, `$$` or `${`, is kept as written.
func (e Env) Expand(raw string) string {
	if raw == "" {
		return ""
	}
	protected := protectLiteralDollars(raw)
	expanded := os.Expand(protected, func(key string) string { return e[key] })
	return restoreEscapedDollar(expanded)
}

func (e Env) expandAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = e.Expand(v)
	}
	return out
}

const escapedDollarPlaceholder = "\x00BERTH_ESCAPED_DOLLAR\x00"

func protectLiteralDollars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '$':
			b.WriteString(escapedDollarPlaceholder)
			i++
		case s[i] == '$' && !startsReference(s[i+1:]):
			b.WriteString(escapedDollarPlaceholder)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// startsReference reports whether rest, the text after a dollar, begins with
// NAME or {NAME}.
func startsReference(rest string) bool {
	if rest == "" {
		return false
	}
	if rest[0] != '{' {
		return isNameStart(rest[0])
	}
	end := strings.IndexByte(rest, '}')
	if end < 2 || !isNameStart(rest[1]) {
		return false
	}
	for i := 2; i < end; i++ {
		if !isNameStart(rest[i]) && (rest[i] < '0' || rest[i] > '9') {
			return false
		}
	}
	return true
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func restoreEscapedDollar(s string) string {
	if !strings.Contains(s, escapedDollarPlaceholder) {
		return s
	}
	return strings.ReplaceAll(s, escapedDollarPlaceholder, "$")
}

// go-toml rejects the `\$` escape inside basic strings. When decoding fails on
// it, sanitizeDollarEscapes doubles the backslash so the decoded value keeps
// `\$`, which Expand later turns into a literal dollar.

const (
	scanNormal = iota
	scanBasic
	scanBasicMultiline
	scanLiteral
	scanLiteralMultiline
)

func needsDollarEscapeFix(err error) bool {
	var decodeErr *toml.DecodeError
	if !errors.As(err, &decodeErr) {
		return false
	}
	return strings.Contains(decodeErr.Error(), "U+0024")
}

// sanitizeDollarEscapes returns the rewritten document and the offsets, in
// the rewritten document, of every inserted backslash.
func sanitizeDollarEscapes(data []byte) ([]byte, []int) {
	if !bytes.Contains(data, []byte(`\$`)) {
		return data, nil
	}

	var (
		out      bytes.Buffer
		inserted []int
		state    = scanNormal
	)
	out.Grow(len(data) + 16)

	for i := 0; i < len(data); i++ {
		ch := data[i]
		switch state {
		case scanNormal:
			switch {
			case ch == '#':
				for i < len(data) && data[i] != '\n' {
					out.WriteByte(data[i])
					i++
				}
				if i < len(data) {
					out.WriteByte(data[i])
				}
			case ch == '"' && i+2 < len(data) && data[i+1] == '"' && data[i+2] == '"':
				out.WriteString(`"""`)
				i += 2
				state = scanBasicMultiline
			case ch == '"':
				out.WriteByte(ch)
				state = scanBasic
			case ch == '\'' && i+2 < len(data) && data[i+1] == '\'' && data[i+2] == '\'':
				out.WriteString(`'''`)
				i += 2
				state = scanLiteralMultiline
			case ch == '\'':
				out.WriteByte(ch)
				state = scanLiteral
			default:
				out.WriteByte(ch)
			}
		case scanLiteral:
			out.WriteByte(ch)
			if ch == '\'' || ch == '\n' {
				state = scanNormal
			}
		case scanLiteralMultiline:
			if ch == '\'' && i+2 < len(data) && data[i+1] == '\'' && data[i+2] == '\'' {
				out.WriteString(`'''`)
				i += 2
				state = scanNormal
				continue
			}
			out.WriteByte(ch)
		case scanBasic, scanBasicMultiline:
			if ch == '\\' && i+1 < len(data) {
				next := data[i+1]
				if next == '$' {
					inserted = append(inserted, out.Len())
					out.WriteByte('\\')
				}
				out.WriteByte('\\')
				out.WriteByte(next)
				i++
				continue
			}
			if state == scanBasicMultiline {
				if ch == '"' && i+2 < len(data) && data[i+1] == '"' && data[i+2] == '"' {
					out.WriteString(`"""`)
					i += 2
					state = scanNormal
					continue
				}
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(ch)
			if ch == '"' || ch == '\n' {
				state = scanNormal
			}
		}
	}

	if len(inserted) == 0 {
		return data, nil
	}
	return out.Bytes(), inserted
}

// offsetMapper translates offsets in a sanitized document back to the
// document the user wrote.
type offsetMapper []int

func (m offsetMapper) original(off int) int {
	if len(m) == 0 {
		return off
	}
	n := sort.SearchInts(m, off)
	return off - n
}

func (m offsetMapper) span(s Span) Span {
	return Span{Start: m.original(s.Start), End: m.original(s.End)}
}
