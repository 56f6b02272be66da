package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFindConfigPathExplicit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	touch(t, path)

	got, err := FindConfigPath(path, Env{})
	if err != nil {
		t.Fatalf("FindConfigPath: %v", err)
	}
	if got != path {
		t.Fatalf("path = %q, want %q", got, path)
	}

	_, err = FindConfigPath(filepath.Join(dir, "absent.toml"), Env{})
	var derr *DiscoveryError
	if !errors.As(err, &derr) || derr.Kind != NoConfigAtProvidedPath {
		t.Fatalf("error = %v, want NoConfigAtProvidedPath", err)
	}

	_, err = FindConfigPath(dir, Env{})
	if !errors.As(err, &derr) || derr.Kind != NoConfigAtProvidedPath {
		t.Fatalf("directory accepted as config: %v", err)
	}
}

func TestFindConfigPathStandardLocations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		files []string
		want  string
	}{
		{name: "xdg", files: []string{"xdg/berth/config.toml", "home/.config/berth/config.toml"}, want: "xdg/berth/config.toml"},
		{name: "xdg nested layout", files: []string{"xdg/.config/berth/config.toml"}, want: "xdg/.config/berth/config.toml"},
		{name: "home", files: []string{"home/.config/berth/config.toml"}, want: "home/.config/berth/config.toml"},
		{name: "none"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			for _, f := range tc.files {
				touch(t, filepath.Join(root, f))
			}
			env := Env{
				"XDG_CONFIG_HOME": filepath.Join(root, "xdg"),
				"HOME":            filepath.Join(root, "home"),
			}
			got, err := FindConfigPath("", env)
			if tc.want == "" {
				var derr *DiscoveryError
				if !errors.As(err, &derr) || derr.Kind != NoConfigInStandardLocation {
					t.Fatalf("error = %v, want NoConfigInStandardLocation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindConfigPath: %v", err)
			}
			if want := filepath.Join(root, tc.want); got != want {
				t.Fatalf("path = %q, want %q", got, want)
			}
		})
	}
}
