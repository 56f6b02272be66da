package config

import (
	"fmt"
	"path/filepath"
)

// Environment is a fully resolved environment ready for the container
// lifecycle.
type Environment struct {
	// Name is the container name, berth-<OriginalName>-<16 hex digits>.
	Name         string
	OriginalName string
	// Image is always set; for Dockerfile environments it is derived from
	// the Dockerfile contents.
	Image        string
	Dockerfile   string
	BuildContext string
	EntryCmd     string

	EntryOptions  []string
	ExecCmds      []string
	ExecOptions   []string
	CreateOptions []string
	CpCmds        []string
}

// ContextDir is the directory handed to docker build.
func (e *Environment) ContextDir() string {
	if e.BuildContext != "" {
		return e.BuildContext
	}
	return filepath.Dir(e.Dockerfile)
}

// Resolve loads the config at path and resolves the environment called name.
func Resolve(path, name string, env Env) (*Environment, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return doc.Resolve(name, env)
}

// Resolve checks every environment in the document and then builds the one
// called name.
func (d *Document) Resolve(name string, env Env) (*Environment, error) {
	if err := d.checkPresetsExist(); err != nil {
		return nil, err
	}
	if err := d.checkUniqueFields(); err != nil {
		return nil, err
	}
	merged := d.mergePresets()
	if err := d.validate(merged); err != nil {
		return nil, err
	}

	m, ok := merged[name]
	if !ok {
		return nil, d.newError(KindEnvironmentSearch,
			fmt.Sprintf("no environment named %q", name),
			LabeledSpan{
				Span:  d.wholeDocument(),
				Label: fmt.Sprintf("Failed to find environment '%s' in config", name),
			})
	}
	return d.build(name, m, env)
}

func (d *Document) build(name string, m mergedEnvironment, env Env) (*Environment, error) {
	out := &Environment{
		OriginalName:  name,
		Image:         m.Image,
		EntryCmd:      m.EntryCmd,
		EntryOptions:  env.expandAll(m.EntryOptions),
		ExecCmds:      cloneStrings(m.ExecCmds),
		ExecOptions:   env.expandAll(m.ExecOptions),
		CreateOptions: env.expandAll(m.CreateOptions),
		CpCmds:        cloneStrings(m.CpCmds),
	}

	if m.Dockerfile != "" {
		path, image, err := d.resolveDockerfile(name, m, env)
		if err != nil {
			return nil, err
		}
		out.Dockerfile = path
		out.Image = image

		buildContext, err := d.resolveBuildContext(name, m, env)
		if err != nil {
			return nil, err
		}
		out.BuildContext = buildContext
	}

	out.Name = containerName(out)
	return out, nil
}
