// Package config resolves a named environment out of a berth TOML document.
// Presets are merged into environments, the result is validated, Dockerfile
// paths are resolved next to the config file and the environment receives a
// content-derived container name. Every user-facing failure is a *ConfigError
// carrying byte spans into the original document so it can be rendered with
// a pointer into the source.
package config
