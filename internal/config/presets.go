package config

import (
	"fmt"
	"sort"
)

// layer is the mergeable content shared by environments and presets.
type layer struct {
	EntryCmd      string
	Image         string
	Dockerfile    string
	BuildContext  string
	EntryOptions  []string
	ExecCmds      []string
	ExecOptions   []string
	CreateOptions []string
	CpCmds        []string
}

func (e RawEnvironment) layer() layer {
	return layer{
		EntryCmd:      e.EntryCmd,
		Image:         e.Image,
		Dockerfile:    e.Dockerfile,
		BuildContext:  e.BuildContext,
		EntryOptions:  e.EntryOptions,
		ExecCmds:      e.ExecCmds,
		ExecOptions:   e.ExecOptions,
		CreateOptions: e.CreateOptions,
		CpCmds:        e.CpCmds,
	}
}

func (p RawPreset) layer() layer {
	return layer{
		EntryCmd:      p.EntryCmd,
		Image:         p.Image,
		Dockerfile:    p.Dockerfile,
		BuildContext:  p.BuildContext,
		EntryOptions:  p.EntryOptions,
		ExecCmds:      p.ExecCmds,
		ExecOptions:   p.ExecOptions,
		CreateOptions: p.CreateOptions,
		CpCmds:        p.CpCmds,
	}
}

// scalarFields are the fields that at most one source may supply.
var scalarFields = []struct {
	key string
	get func(layer) string
}{
	{"entry_cmd", func(l layer) string { return l.EntryCmd }},
	{"image", func(l layer) string { return l.Image }},
	{"dockerfile", func(l layer) string { return l.Dockerfile }},
	{"build_context", func(l layer) string { return l.BuildContext }},
}

// mergedEnvironment is an environment with its presets applied. The origin
// maps record which preset supplied a path field, "" meaning the environment
// itself.
type mergedEnvironment struct {
	layer
	dockerfileFrom   string
	buildContextFrom string
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// checkPresetsExist reports the first preset reference that names no preset.
func (d *Document) checkPresetsExist() error {
	for _, name := range sortedKeys(d.File.Environments) {
		env := d.File.Environments[name]
		for i, preset := range env.Presets {
			if _, ok := d.File.Presets[preset]; ok {
				continue
			}
			return d.newError(KindUnknownPreset,
				fmt.Sprintf("failed to find preset %q", preset),
				LabeledSpan{
					Span:  d.elementSpan("environment", name, "presets", i),
					Label: "Failed to find provided preset",
				})
		}
	}
	return nil
}

// checkUniqueFields enforces that each scalar field has at most one source
// among an environment and the presets it references.
func (d *Document) checkUniqueFields() error {
	for _, name := range sortedKeys(d.File.Environments) {
		env := d.File.Environments[name]
		if len(env.Presets) == 0 {
			continue
		}
		referenced := make(map[string]struct{}, len(env.Presets))
		for _, p := range env.Presets {
			referenced[p] = struct{}{}
		}
		presets := sortedKeys(referenced)

		for _, field := range scalarFields {
			var sources []Span
			if field.get(env.layer()) != "" {
				sources = append(sources, d.entrySpan("environment", name, field.key))
			}
			for _, p := range presets {
				if field.get(d.File.Presets[p].layer()) != "" {
					sources = append(sources, d.entrySpan("preset", p, field.key))
				}
			}
			if len(sources) < 2 {
				continue
			}
			labels := make([]LabeledSpan, 0, len(sources)+1)
			for i, s := range sources {
				labels = append(labels, LabeledSpan{Span: s, Label: fmt.Sprintf("instance %d", i+1)})
			}
			labels = append(labels, LabeledSpan{
				Span:  d.valueSpan("environment", name, "presets"),
				Label: fmt.Sprintf("Preset(s) causing duplicate '%s' field", field.key),
			})
			return d.newError(KindDuplicateFieldsFromPresets,
				fmt.Sprintf("environment %q receives '%s' from %d sources", name, field.key, len(sources)),
				labels...)
		}
	}
	return nil
}

// mergePresets applies every environment's presets in the order listed.
// Callers must run checkPresetsExist and checkUniqueFields first.
func (d *Document) mergePresets() map[string]mergedEnvironment {
	merged := make(map[string]mergedEnvironment, len(d.File.Environments))
	for name, env := range d.File.Environments {
		m := mergedEnvironment{layer: env.layer()}
		m.EntryOptions = cloneStrings(env.EntryOptions)
		m.ExecCmds = cloneStrings(env.ExecCmds)
		m.ExecOptions = cloneStrings(env.ExecOptions)
		m.CreateOptions = cloneStrings(env.CreateOptions)
		m.CpCmds = cloneStrings(env.CpCmds)

		for _, p := range env.Presets {
			preset := d.File.Presets[p].layer()
			if preset.EntryCmd != "" {
				m.EntryCmd = preset.EntryCmd
			}
			if preset.Image != "" {
				m.Image = preset.Image
			}
			if preset.Dockerfile != "" {
				m.Dockerfile = preset.Dockerfile
				m.dockerfileFrom = p
			}
			if preset.BuildContext != "" {
				m.BuildContext = preset.BuildContext
				m.buildContextFrom = p
			}
			m.EntryOptions = append(m.EntryOptions, preset.EntryOptions...)
			m.ExecCmds = append(m.ExecCmds, preset.ExecCmds...)
			m.ExecOptions = append(m.ExecOptions, preset.ExecOptions...)
			m.CreateOptions = append(m.CreateOptions, preset.CreateOptions...)
			m.CpCmds = append(m.CpCmds, preset.CpCmds...)
		}
		merged[name] = m
	}
	return merged
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
