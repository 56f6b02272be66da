package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// RawEnvironment is an [environment.<Name>] table as written.
type RawEnvironment struct {
	EntryCmd      string   `toml:"entry_cmd"`
	Image         string   `toml:"image"`
	Dockerfile    string   `toml:"dockerfile"`
	BuildContext  string   `toml:"build_context"`
	EntryOptions  []string `toml:"entry_options"`
	ExecCmds      []string `toml:"exec_cmds"`
	ExecOptions   []string `toml:"exec_options"`
	CreateOptions []string `toml:"create_options"`
	CpCmds        []string `toml:"cp_cmds"`
	Presets       []string `toml:"presets"`
}

// RawPreset is a [preset.<Name>] table. It shares the environment shape but
// cannot reference other presets.
type RawPreset struct {
	EntryCmd      string   `toml:"entry_cmd"`
	Image         string   `toml:"image"`
	Dockerfile    string   `toml:"dockerfile"`
	BuildContext  string   `toml:"build_context"`
	EntryOptions  []string `toml:"entry_options"`
	ExecCmds      []string `toml:"exec_cmds"`
	ExecOptions   []string `toml:"exec_options"`
	CreateOptions []string `toml:"create_options"`
	CpCmds        []string `toml:"cp_cmds"`
}

// File is the decoded config document.
type File struct {
	Environments map[string]RawEnvironment `toml:"environment"`
	Presets      map[string]RawPreset      `toml:"preset"`
}

// Document is a decoded config file together with its source text and span
// index.
type Document struct {
	Path   string
	Source string
	File   File

	spans  *spanIndex
	mapper offsetMapper
}

// LoadDocument reads and decodes the config file at path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseDocument(path, data)
}

// ParseDocument decodes data as a berth config. path is used for relative
// path resolution and diagnostics only.
func ParseDocument(path string, data []byte) (*Document, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	doc := &Document{Path: path, Source: string(data)}

	parsed := data
	err := decodeFile(parsed, &doc.File)
	if err != nil && needsDollarEscapeFix(err) {
		if sanitized, inserted := sanitizeDollarEscapes(data); inserted != nil {
			doc.File = File{}
			parsed = sanitized
			doc.mapper = inserted
			err = decodeFile(parsed, &doc.File)
		}
	}
	if err != nil {
		return nil, doc.parseError(parsed, err)
	}

	spans, err := indexSpans(parsed)
	if err != nil {
		return nil, doc.parseError(parsed, err)
	}
	doc.spans = spans

	if doc.File.Environments == nil {
		return nil, &ConfigError{
			Kind:    KindTomlParse,
			Parse:   ParseMissingField,
			Path:    doc.Path,
			Source:  doc.Source,
			Message: "missing field `environment`",
			Labels:  []LabeledSpan{{Span: Span{}, Label: "missing field `environment`"}},
		}
	}
	return doc, nil
}

func decodeFile(data []byte, file *File) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(file)
}

func (d *Document) parseError(parsed []byte, err error) *ConfigError {
	cerr := &ConfigError{
		Kind:   KindTomlParse,
		Path:   d.Path,
		Source: d.Source,
		Err:    err,
	}

	var (
		strict    *toml.StrictMissingError
		decodeErr *toml.DecodeError
		message   string
		span      Span
		located   bool
	)
	switch {
	case errors.As(err, &strict) && len(strict.Errors) > 0:
		first := strict.Errors[0]
		row, col := first.Position()
		span = tokenSpan(parsed, offsetOf(parsed, row, col))
		if spans, ierr := indexSpans(parsed); ierr == nil {
			if s, ok := spans.key(first.Key()...); ok {
				span = s
			}
		}
		located = true
		key := strings.Join(first.Key(), ".")
		if key == "" {
			key = string(parsed[span.Start:span.End])
		}
		message = fmt.Sprintf("unknown field `%s`", key)
	case errors.As(err, &decodeErr):
		row, col := decodeErr.Position()
		span = tokenSpan(parsed, offsetOf(parsed, row, col))
		located = true
		message = strings.TrimPrefix(decodeErr.Error(), "toml: ")
	default:
		message = strings.TrimPrefix(err.Error(), "toml: ")
	}

	cerr.Parse = classifyParseMessage(message)
	if !located && cerr.Parse == ParseDuplicateKey {
		if spans, ierr := indexSpans(parsed); ierr == nil && spans.duplicate != nil {
			span = *spans.duplicate
		}
	}
	cerr.Message = message
	cerr.Labels = []LabeledSpan{{Span: d.mapper.span(span), Label: message}}
	return cerr
}

func classifyParseMessage(msg string) ParseClass {
	lower := strings.ToLower(msg)
	contains := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("unknown field", "missing in the target"):
		return ParseUnknownField
	case contains("missing field"):
		return ParseMissingField
	case contains("already defined", "already exists", "duplicate key"):
		return ParseDuplicateKey
	case contains("invalid type", "cannot decode", "cannot store", "cannot convert", "cannot assign", "incompatible", "type mismatch"):
		return ParseInvalidType
	default:
		return ParseUnclassified
	}
}

func (d *Document) envTable(name string) Span {
	if s, ok := d.spans.table("environment", name); ok {
		return d.mapper.span(s)
	}
	return d.wholeDocument()
}

func (d *Document) wholeDocument() Span {
	return Span{Start: 0, End: len(d.Source)}
}

// entrySpan locates `key = value` inside a table, falling back to the table.
func (d *Document) entrySpan(table, name, key string) Span {
	if s, ok := d.spans.entry(table, name, key); ok {
		return d.mapper.span(s)
	}
	if s, ok := d.spans.table(table, name); ok {
		return d.mapper.span(s)
	}
	return d.wholeDocument()
}

func (d *Document) valueSpan(table, name, key string) Span {
	if s, ok := d.spans.value(table, name, key); ok {
		return d.mapper.span(s)
	}
	return d.entrySpan(table, name, key)
}

func (d *Document) elementSpan(table, name, key string, i int) Span {
	if s, ok := d.spans.element(i, table, name, key); ok {
		return d.mapper.span(s)
	}
	return d.valueSpan(table, name, key)
}
