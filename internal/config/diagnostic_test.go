package config

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRenderPointsAtSpan(t *testing.T) {
	t.Parallel()

	_, err := resolveString(t, `[environment.Env]
image = "ubuntu"
entry_cmd = "bash"
presets = ["missing"]
`, "Env", Env{})
	requireConfigError(t, err, KindUnknownPreset)

	var buf bytes.Buffer
	Render(&buf, err, false)
	out := buf.String()

	for _, want := range []string{
		"Error[configuration::preset::unknown]: Unknown Preset",
		"config.toml:4:12",
		`4 | presets = ["missing"]`,
		"^^^^^^^^^ Failed to find provided preset",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderMultilineSpan(t *testing.T) {
	t.Parallel()

	_, err := resolveString(t, `[environment.Bad]
image = "ubuntu"
`, "Bad", Env{})
	requireConfigError(t, err, KindEnvironmentValidation)

	var buf bytes.Buffer
	Render(&buf, err, false)
	out := buf.String()
	for _, want := range []string{
		"1 | [environment.Bad]",
		`2 | image = "ubuntu"`,
		"^^^^^^^^^^^^^^^^ An environment requires a 'entry_cmd' field",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPlainError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	Render(&buf, errors.New("boom"), false)
	if got := buf.String(); got != "Error: boom\n" {
		t.Fatalf("render = %q, want %q", got, "Error: boom\n")
	}
}

func TestConfigErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ConfigError{Kind: KindEnvironmentSearch, Labels: []LabeledSpan{{Label: "Failed to find environment 'x' in config"}}}
	want := "Environment Not Present: Failed to find environment 'x' in config"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Code() != "configuration::environment::search" {
		t.Fatalf("Code() = %q", err.Code())
	}
}
