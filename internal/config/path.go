package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	configFileName = "config.toml"
	appDirName     = "berth"
)

// FindConfigPath returns explicit when it names an existing file, otherwise
// the first config.toml found under $XDG_CONFIG_HOME or $HOME/.config.
func FindConfigPath(explicit string, env Env) (string, error) {
	if explicit != "" {
		if !isFile(explicit) {
			return "", &DiscoveryError{Kind: NoConfigAtProvidedPath, Path: explicit}
		}
		if abs, err := filepath.Abs(explicit); err == nil {
			return abs, nil
		}
		return explicit, nil
	}

	for _, candidate := range standardLocations(env) {
		if isFile(candidate) {
			return candidate, nil
		}
	}
	return "", &DiscoveryError{Kind: NoConfigInStandardLocation}
}

func standardLocations(env Env) []string {
	var out []string
	if base := strings.TrimSpace(env["XDG_CONFIG_HOME"]); base != "" {
		out = append(out,
			filepath.Join(base, appDirName, configFileName),
			filepath.Join(base, ".config", appDirName, configFileName),
		)
	}
	if home := strings.TrimSpace(env["HOME"]); home != "" {
		out = append(out, filepath.Join(home, ".config", appDirName, configFileName))
	}
	return out
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
