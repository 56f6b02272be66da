// Package lifecycle drives a resolved environment's docker image and
// container: build when needed, create, start, provision, attach and stop.
package lifecycle

import (
	"context"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"go.uber.org/zap"

	"github.com/berth-dev/berth/internal/config"
	"github.com/berth-dev/berth/internal/telemetry"
)

// Manager operates on the container of a single environment. It is not safe
// for concurrent use.
type Manager struct {
	env       *config.Environment
	api       DockerAPI
	cmd       CommandRunner
	logger    *zap.Logger
	telemetry *telemetry.Provider
	progress  func(msg string) (done func())
}

// Option configures a Manager.
type Option func(*Manager)

// WithDockerAPI replaces the Engine API client.
func WithDockerAPI(api DockerAPI) Option {
	return func(m *Manager) { m.api = api }
}

// WithCommandRunner replaces the docker CLI runner.
func WithCommandRunner(r CommandRunner) Option {
	return func(m *Manager) { m.cmd = r }
}

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTelemetry records a span and a counter increment per docker operation.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(m *Manager) { m.telemetry = p }
}

// WithProgress installs an indicator shown around slow steps. The returned
// func is called when the step finishes.
func WithProgress(fn func(msg string) (done func())) Option {
	return func(m *Manager) { m.progress = fn }
}

// New returns a Manager for env. Without WithDockerAPI it connects to the
// daemon described by the environment and pings it.
func New(ctx context.Context, env *config.Environment, opts ...Option) (*Manager, error) {
	m := &Manager{env: env}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.telemetry == nil {
		m.telemetry = telemetry.Noop()
	}
	if m.progress == nil {
		m.progress = func(string) func() { return func() {} }
	}
	if m.cmd == nil {
		m.cmd = newExecRunner()
	}
	if m.api == nil {
		api, err := connectDocker(ctx)
		if err != nil {
			return nil, err
		}
		m.api = api
	}
	m.logger = m.logger.With(zap.String("container", env.Name))
	return m, nil
}

// Close releases the Engine API client.
func (m *Manager) Close() error {
	if m.api == nil {
		return nil
	}
	return m.api.Close()
}

// ContainerInfo returns the environment's container, or nil when absent.
func (m *Manager) ContainerInfo(ctx context.Context) (*container.Summary, error) {
	var found *container.Summary
	err := m.telemetry.Observe(ctx, "container.inspect", func(ctx context.Context) error {
		list, err := m.api.ContainerList(ctx, container.ListOptions{All: true, Filters: nameFilter(m.env.Name)})
		if err != nil {
			return &RuntimeError{Kind: KindContainerInfo, Container: m.env.Name, Err: err}
		}
		found = findByName(list, m.env.Name)
		return nil
	})
	return found, err
}

// DoesEnvironmentExist reports whether the container has been created.
func (m *Manager) DoesEnvironmentExist(ctx context.Context) (bool, error) {
	info, err := m.ContainerInfo(ctx)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// IsContainerRunning reports whether the container exists and is running.
func (m *Manager) IsContainerRunning(ctx context.Context) (bool, error) {
	info, err := m.ContainerInfo(ctx)
	if err != nil {
		return false, err
	}
	return info != nil && info.State == "running", nil
}

// DoesImageNeedBuilding is true for Dockerfile environments whose image is
// not present locally.
func (m *Manager) DoesImageNeedBuilding(ctx context.Context) (bool, error) {
	if m.env.Dockerfile == "" {
		return false, nil
	}
	var missing bool
	err := m.telemetry.Observe(ctx, "image.inspect", func(ctx context.Context) error {
		images, err := m.api.ImageList(ctx, image.ListOptions{Filters: referenceFilter(m.env.Image)})
		if err != nil {
			return &RuntimeError{Kind: KindImageInfo, Err: err}
		}
		missing = len(images) == 0
		return nil
	})
	return missing, err
}

// BuildImage builds the environment's Dockerfile into its derived image.
func (m *Manager) BuildImage(ctx context.Context) error {
	done := m.progress("Building image")
	defer done()

	return m.telemetry.Observe(ctx, "image.build", func(ctx context.Context) error {
		args := []string{"build", "-f", m.env.Dockerfile, "-t", m.env.Image, m.env.ContextDir()}
		if _, err := m.run(ctx, args); err != nil {
			return &RuntimeError{Kind: KindImageBuild, Err: err}
		}
		m.logger.Info("built image", zap.String("image", m.env.Image))
		return nil
	})
}

// EnsureContainerExists replaces any existing container with a fresh one
// that idles until commands are executed in it.
func (m *Manager) EnsureContainerExists(ctx context.Context) error {
	if err := m.DeleteContainerIfExists(ctx); err != nil {
		return err
	}
	return m.telemetry.Observe(ctx, "container.create", func(ctx context.Context) error {
		options, err := splitOptions(m.env.CreateOptions)
		if err != nil {
			return &RuntimeError{Kind: KindContainerCreate, Container: m.env.Name, Err: err}
		}
		args := []string{"create", "--name", m.env.Name}
		args = append(args, options...)
		args = append(args, m.env.Image, "tail", "-f", "/dev/null")
		if _, err := m.run(ctx, args); err != nil {
			return &RuntimeError{Kind: KindContainerCreate, Container: m.env.Name, Err: err}
		}
		m.logger.Info("created container", zap.String("image", m.env.Image))
		return nil
	})
}

// StartContainer starts the container. Starting a running container is a
// no-op on the daemon side.
func (m *Manager) StartContainer(ctx context.Context) error {
	return m.telemetry.Observe(ctx, "container.start", func(ctx context.Context) error {
		if err := m.api.ContainerStart(ctx, m.env.Name, container.StartOptions{}); err != nil {
			return &RuntimeError{Kind: KindContainerStart, Container: m.env.Name, Err: err}
		}
		m.logger.Info("started container")
		return nil
	})
}

// CopyFiles copies each `SRC DST` entry of cp_cmds from the host into the
// container.
func (m *Manager) CopyFiles(ctx context.Context) error {
	for _, entry := range m.env.CpCmds {
		src, dst, err := splitCopy(entry)
		if err != nil {
			return &RuntimeError{Kind: KindCommandFailed, Err: err}
		}
		err = m.telemetry.Observe(ctx, "container.copy", func(ctx context.Context) error {
			_, err := m.run(ctx, []string{"cp", src, m.env.Name + ":" + dst})
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ExecSetupCommands runs exec_cmds in order, stopping at the first failure.
func (m *Manager) ExecSetupCommands(ctx context.Context) error {
	options, err := splitOptions(m.env.ExecOptions)
	if err != nil {
		return &RuntimeError{Kind: KindCommandFailed, Err: err}
	}
	for _, raw := range m.env.ExecCmds {
		words, err := splitOptions([]string{raw})
		if err != nil {
			return &RuntimeError{Kind: KindCommandFailed, Err: err}
		}
		args := []string{"exec"}
		args = append(args, options...)
		args = append(args, m.env.Name)
		args = append(args, words...)
		err = m.telemetry.Observe(ctx, "container.exec", func(ctx context.Context) error {
			_, err := m.run(ctx, args)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// EnterEnvironment attaches the caller's terminal to entry_cmd inside the
// container. When the session ends cleanly and no other session remains
// attached, the container is stopped.
func (m *Manager) EnterEnvironment(ctx context.Context) error {
	options, err := splitOptions(m.env.EntryOptions)
	if err != nil {
		return &RuntimeError{Kind: KindCommandFailed, Err: err}
	}
	entry, err := splitOptions([]string{m.env.EntryCmd})
	if err != nil {
		return &RuntimeError{Kind: KindCommandFailed, Err: err}
	}
	args := []string{"exec"}
	args = append(args, options...)
	args = append(args, m.env.Name)
	args = append(args, entry...)

	quoted := "docker " + commandLine(args)
	m.logger.Info("entering container", zap.String("cmd", quoted))

	err = m.telemetry.Observe(ctx, "container.enter", func(ctx context.Context) error {
		res, err := m.cmd.Attach(ctx, args)
		if err != nil {
			return &RuntimeError{Kind: KindCommandFailed, Command: quoted, Err: err}
		}
		if reason, failed := entryFailure(res); failed {
			return &RuntimeError{Kind: KindEnteringContainer, Command: quoted, ExitCode: res.ExitCode, Reason: reason}
		}
		m.logger.Info("left container", zap.Int("exit_code", res.ExitCode), zap.Bool("signaled", res.Signaled))
		return nil
	})
	if err != nil {
		return err
	}

	running, err := m.IsContainerRunning(ctx)
	if err != nil || !running {
		return err
	}
	connected, err := m.IsAnyoneConnected(ctx)
	if err != nil {
		return err
	}
	if connected {
		m.logger.Info("leaving container running for other sessions")
		return nil
	}
	return m.StopContainerIfRunning(ctx)
}

// entryFailure maps the exit of the interactive session to a failure. Exit
// codes other than docker's own 125-127 belong to the user's shell.
func entryFailure(res CommandResult) (string, bool) {
	if res.Signaled {
		return "", false
	}
	switch res.ExitCode {
	case 125:
		return "Docker exec failed to run", true
	case 126:
		return "Command cannot execute", true
	case 127:
		return "Command not found", true
	}
	return "", false
}

// IsAnyoneConnected reports whether any terminal session besides the
// container's own is attached, judged by /dev/pts entries.
func (m *Manager) IsAnyoneConnected(ctx context.Context) (bool, error) {
	var count int
	err := m.telemetry.Observe(ctx, "container.sessions", func(ctx context.Context) error {
		res, err := m.run(ctx, []string{"exec", m.env.Name, "ls", "/dev/pts"})
		if err != nil {
			return err
		}
		count = countLines(string(res.Stdout))
		return nil
	})
	if err != nil {
		return false, err
	}
	// /dev/pts always holds ptmx and the pty of the probing exec itself.
	return count > 2, nil
}

func countLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// StopContainerIfRunning stops the container immediately when it runs.
func (m *Manager) StopContainerIfRunning(ctx context.Context) error {
	running, err := m.IsContainerRunning(ctx)
	if err != nil || !running {
		return err
	}
	return m.stopContainer(ctx)
}

func (m *Manager) stopContainer(ctx context.Context) error {
	return m.telemetry.Observe(ctx, "container.stop", func(ctx context.Context) error {
		timeout := 0
		if err := m.api.ContainerStop(ctx, m.env.Name, container.StopOptions{Timeout: &timeout}); err != nil {
			return &RuntimeError{Kind: KindContainerStop, Container: m.env.Name, Err: err}
		}
		m.logger.Info("stopped container")
		return nil
	})
}

// DeleteContainerIfExists removes the container when present, stopping it
// first when it runs.
func (m *Manager) DeleteContainerIfExists(ctx context.Context) error {
	info, err := m.ContainerInfo(ctx)
	if err != nil || info == nil {
		return err
	}
	if info.State == "running" {
		if err := m.stopContainer(ctx); err != nil {
			return err
		}
	}
	return m.telemetry.Observe(ctx, "container.remove", func(ctx context.Context) error {
		if err := m.api.ContainerRemove(ctx, m.env.Name, container.RemoveOptions{}); err != nil {
			return &RuntimeError{Kind: KindContainerRemove, Container: m.env.Name, Err: err}
		}
		m.logger.Info("removed container")
		return nil
	})
}

// CreateNewEnvironment builds the image when needed and provisions a fresh,
// running container.
func (m *Manager) CreateNewEnvironment(ctx context.Context) error {
	needsBuild, err := m.DoesImageNeedBuilding(ctx)
	if err != nil {
		return err
	}
	if needsBuild {
		if err := m.BuildImage(ctx); err != nil {
			return err
		}
	}
	if err := m.EnsureContainerExists(ctx); err != nil {
		return err
	}
	if err := m.StartContainer(ctx); err != nil {
		return err
	}
	if err := m.CopyFiles(ctx); err != nil {
		return err
	}
	return m.ExecSetupCommands(ctx)
}

// run executes a captured docker CLI command and maps non-zero exits to
// RuntimeErrors.
func (m *Manager) run(ctx context.Context, args []string) (CommandResult, error) {
	quoted := "docker " + commandLine(args)
	m.logger.Info("docker command", zap.String("cmd", quoted))

	res, err := m.cmd.Output(ctx, args)
	switch {
	case err != nil:
		m.logger.Error("docker command failed to start", zap.String("cmd", quoted), zap.Error(err))
		return res, &RuntimeError{Kind: KindCommandFailed, Command: quoted, Err: err}
	case res.Signaled:
		m.logger.Warn("docker command killed", zap.String("cmd", quoted))
		return res, &RuntimeError{Kind: KindCommandKilled, Command: quoted}
	case res.ExitCode != 0:
		m.logger.Warn("docker command exited non-zero",
			zap.String("cmd", quoted),
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", strings.TrimSpace(string(res.Stderr))))
		return res, &RuntimeError{Kind: KindCommandExitCode, Command: quoted, ExitCode: res.ExitCode, Stderr: string(res.Stderr)}
	}
	return res, nil
}
