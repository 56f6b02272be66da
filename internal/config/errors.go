package config

import (
	"fmt"
)

// ErrorKind classifies a ConfigError.
type ErrorKind int

const (
	KindTomlParse ErrorKind = iota + 1
	KindUnknownPreset
	KindDuplicateFieldsFromPresets
	KindEnvironmentValidation
	KindInvalidDockerfilePath
	KindInvalidBuildContextPath
	KindEnvironmentSearch
	KindFailedToInteractWithDockerfile
)

func (k ErrorKind) String() string {
	switch k {
	case KindTomlParse:
		return "TomlParse"
	case KindUnknownPreset:
		return "UnknownPreset"
	case KindDuplicateFieldsFromPresets:
		return "DuplicateFieldsFromPresets"
	case KindEnvironmentValidation:
		return "EnvironmentValidation"
	case KindInvalidDockerfilePath:
		return "InvalidDockerfilePath"
	case KindInvalidBuildContextPath:
		return "InvalidBuildContextPath"
	case KindEnvironmentSearch:
		return "EnvironmentSearch"
	case KindFailedToInteractWithDockerfile:
		return "FailedToInteractWithDockerfile"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ParseClass narrows a KindTomlParse failure.
type ParseClass int

const (
	ParseUnclassified ParseClass = iota
	ParseMissingField
	ParseUnknownField
	ParseInvalidType
	ParseDuplicateKey
)

func (c ParseClass) String() string {
	switch c {
	case ParseMissingField:
		return "missing-field"
	case ParseUnknownField:
		return "unknown-field"
	case ParseInvalidType:
		return "invalid-type"
	case ParseDuplicateKey:
		return "duplicate-key"
	default:
		return "unclassified"
	}
}

// ConfigError is a user-facing configuration failure annotated with spans
// into Source.
type ConfigError struct {
	Kind    ErrorKind
	Parse   ParseClass
	Path    string
	Source  string
	Labels  []LabeledSpan
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if msg == "" && len(e.Labels) > 0 {
		msg = e.Labels[0].Label
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return e.Title()
	}
	return fmt.Sprintf("%s: %s", e.Title(), msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Code is a stable, namespaced identifier for the failure.
func (e *ConfigError) Code() string {
	switch e.Kind {
	case KindTomlParse:
		return "configuration::parsing"
	case KindUnknownPreset:
		return "configuration::preset::unknown"
	case KindDuplicateFieldsFromPresets:
		return "configuration::preset::duplication"
	case KindEnvironmentValidation:
		return "configuration::environment::validation"
	case KindInvalidDockerfilePath:
		return "configuration::environment::dockerfile"
	case KindInvalidBuildContextPath:
		return "configuration::environment::build_context"
	case KindEnvironmentSearch:
		return "configuration::environment::search"
	case KindFailedToInteractWithDockerfile:
		return "configuration::environment::dockerfile::io"
	default:
		return "configuration"
	}
}

// Title is the short headline shown above the rendered source.
func (e *ConfigError) Title() string {
	switch e.Kind {
	case KindTomlParse:
		return "Malformed TOML"
	case KindUnknownPreset:
		return "Unknown Preset"
	case KindDuplicateFieldsFromPresets:
		return "Duplicate Fields From Presets"
	case KindEnvironmentValidation:
		return "Malformed Environment"
	case KindInvalidDockerfilePath:
		return "Nonexistent Dockerfile"
	case KindInvalidBuildContextPath:
		return "Nonexistent Build Context"
	case KindEnvironmentSearch:
		return "Environment Not Present"
	case KindFailedToInteractWithDockerfile:
		return "Unreadable Dockerfile"
	default:
		return "Configuration Error"
	}
}

func (d *Document) newError(kind ErrorKind, message string, labels ...LabeledSpan) *ConfigError {
	return &ConfigError{
		Kind:    kind,
		Path:    d.Path,
		Source:  d.Source,
		Labels:  labels,
		Message: message,
	}
}

// DiscoveryKind classifies a DiscoveryError.
type DiscoveryKind int

const (
	NoConfigAtProvidedPath DiscoveryKind = iota + 1
	NoConfigInStandardLocation
)

// DiscoveryError reports that no config file could be located.
type DiscoveryError struct {
	Kind DiscoveryKind
	Path string
}

func (e *DiscoveryError) Error() string {
	switch e.Kind {
	case NoConfigAtProvidedPath:
		return fmt.Sprintf("could not find file at 'config-path': %q", e.Path)
	default:
		return "could not find config file in $XDG_CONFIG_HOME or $HOME"
	}
}
