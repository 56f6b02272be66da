package config

import (
	"testing"
)

const spanDoc = `# berth config
[environment.Env]
image = "ubuntu" # trailing ] comment
entry_cmd = 'bash'
exec_cmds = [
  "echo [one]",
  'two',
]

[preset.Inline]
values = { entry_cmd = "sh", presets = ["a", "b"] }
`

func TestIndexSpans(t *testing.T) {
	t.Parallel()

	idx, err := indexSpans([]byte(spanDoc))
	if err != nil {
		t.Fatalf("indexSpans: %v", err)
	}
	text := func(s Span, ok bool) string {
		t.Helper()
		if !ok {
			t.Fatalf("span not found")
		}
		return spanDoc[s.Start:s.End]
	}

	cases := []struct {
		name string
		got  func() (Span, bool)
		want string
	}{
		{"key", func() (Span, bool) { return idx.key("environment", "Env", "image") }, "image"},
		{"basic string value", func() (Span, bool) { return idx.value("environment", "Env", "image") }, `"ubuntu"`},
		{"literal string value", func() (Span, bool) { return idx.value("environment", "Env", "entry_cmd") }, `'bash'`},
		{"entry", func() (Span, bool) { return idx.entry("environment", "Env", "entry_cmd") }, `entry_cmd = 'bash'`},
		{"array", func() (Span, bool) { return idx.value("environment", "Env", "exec_cmds") }, "[\n  \"echo [one]\",\n  'two',\n]"},
		{"first element", func() (Span, bool) { return idx.element(0, "environment", "Env", "exec_cmds") }, `"echo [one]"`},
		{"second element", func() (Span, bool) { return idx.element(1, "environment", "Env", "exec_cmds") }, `'two'`},
		{"inline table", func() (Span, bool) { return idx.table("preset", "Inline", "values") }, `{ entry_cmd = "sh", presets = ["a", "b"] }`},
		{"inline nested element", func() (Span, bool) { return idx.element(1, "preset", "Inline", "values", "presets") }, `"b"`},
	}
	for _, tc := range cases {
		s, ok := tc.got()
		if got := text(s, ok); got != tc.want {
			t.Fatalf("%s = %q, want %q", tc.name, got, tc.want)
		}
	}

	table, ok := idx.table("environment", "Env")
	if !ok {
		t.Fatalf("environment table span missing")
	}
	got := spanDoc[table.Start:table.End]
	want := "[environment.Env]\nimage = \"ubuntu\" # trailing ] comment\nentry_cmd = 'bash'\nexec_cmds = [\n  \"echo [one]\",\n  'two',\n]"
	if got != want {
		t.Fatalf("table span = %q, want %q", got, want)
	}

	if _, ok := idx.element(2, "environment", "Env", "exec_cmds"); ok {
		t.Fatalf("element 2 should not exist")
	}
}

func TestIndexSpansRecordsDuplicateEntry(t *testing.T) {
	t.Parallel()

	const doc = "[environment.Env]\nimage = \"a\"\nimage = \"b\"\n"
	idx, err := indexSpans([]byte(doc))
	if err != nil {
		t.Fatalf("indexSpans: %v", err)
	}
	if idx.duplicate == nil {
		t.Fatalf("duplicate entry not recorded")
	}
	if got := doc[idx.duplicate.Start:idx.duplicate.End]; got != `image = "b"` {
		t.Fatalf("duplicate = %q, want %q", got, `image = "b"`)
	}
}

func TestOffsetOfAndTokenSpan(t *testing.T) {
	t.Parallel()

	data := []byte("a = 1\nbogus = \"x\"\n")
	off := offsetOf(data, 2, 1)
	if off != 6 {
		t.Fatalf("offsetOf(2,1) = %d, want 6", off)
	}
	s := tokenSpan(data, off)
	if got := string(data[s.Start:s.End]); got != "bogus" {
		t.Fatalf("tokenSpan = %q, want %q", got, "bogus")
	}
	s = tokenSpan(data, offsetOf(data, 2, 9))
	if got := string(data[s.Start:s.End]); got != `"x"` {
		t.Fatalf("tokenSpan = %q, want %q", got, `"x"`)
	}
}
