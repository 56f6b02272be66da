package config

import (
	"github.com/pelletier/go-toml/v2"
)

type viewEnvironment struct {
	Image         string   `toml:"image,omitempty"`
	Dockerfile    string   `toml:"dockerfile,omitempty"`
	BuildContext  string   `toml:"build_context,omitempty"`
	EntryCmd      string   `toml:"entry_cmd"`
	EntryOptions  []string `toml:"entry_options,omitempty"`
	ExecCmds      []string `toml:"exec_cmds,omitempty"`
	ExecOptions   []string `toml:"exec_options,omitempty"`
	CreateOptions []string `toml:"create_options,omitempty"`
	CpCmds        []string `toml:"cp_cmds,omitempty"`
}

type viewDocument struct {
	Environment map[string]viewEnvironment `toml:"environment"`
}

// View renders the resolved environment as a config document containing
// only that environment. Derived images are shown as their Dockerfile.
func (e *Environment) View() (string, error) {
	v := viewEnvironment{
		Image:         e.Image,
		Dockerfile:    e.Dockerfile,
		BuildContext:  e.BuildContext,
		EntryCmd:      e.EntryCmd,
		EntryOptions:  e.EntryOptions,
		ExecCmds:      e.ExecCmds,
		ExecOptions:   e.ExecOptions,
		CreateOptions: e.CreateOptions,
		CpCmds:        e.CpCmds,
	}
	if e.Dockerfile != "" {
		v.Image = ""
	}
	out, err := toml.Marshal(viewDocument{
		Environment: map[string]viewEnvironment{e.OriginalName: v},
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
