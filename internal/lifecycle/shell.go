package lifecycle

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// splitOptions splits each option string with shell word rules and
// flattens the result, so `"-v /a:/b"` becomes two arguments.
func splitOptions(options []string) ([]string, error) {
	var out []string
	for _, opt := range options {
		words, err := shlex.Split(opt)
		if err != nil {
			return nil, fmt.Errorf("split %q: %w", opt, err)
		}
		out = append(out, words...)
	}
	return out, nil
}

// splitCopy parses a cp_cmds entry of the form `SRC DST`.
func splitCopy(entry string) (src, dst string, err error) {
	words, err := shlex.Split(entry)
	if err != nil {
		return "", "", fmt.Errorf("split %q: %w", entry, err)
	}
	if len(words) != 2 {
		return "", "", fmt.Errorf("copy entry %q must have exactly a source and a destination", entry)
	}
	return words[0], words[1], nil
}

// commandLine renders args as one line that a POSIX shell and shlex.Split
// both read back as the same words. It is used for logs and error messages.
func commandLine(args []string) string {
	words := make([]string, len(args))
	for i, a := range args {
		words[i] = quoteWord(a)
	}
	return strings.Join(words, " ")
}

// bareWordChars never need quoting in either reader.
const bareWordChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789@%_+=:,./-"

func quoteWord(s string) string {
	switch {
	case s == "":
		return "''"
	case isBareWord(s):
		return s
	case !strings.ContainsRune(s, '\''):
		return "'" + s + "'"
	}
	// Single quotes cannot hold a single quote, so fall back to double quotes
	// and escape what stays special inside them.
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

func isBareWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(bareWordChars, s[i]) < 0 {
			return false
		}
	}
	return true
}
