package lifecycle

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"

	"github.com/berth-dev/berth/internal/config"
)

const testContainer = "berth-Env-0123456789abcdef"

// fakeDocker is an in-memory Engine API keyed by container name.
type fakeDocker struct {
	mu         sync.Mutex
	containers map[string]string
	images     map[string]bool
	calls      []string
	timeouts   []int

	listErr   error
	startErr  error
	stopErr   error
	removeErr error
	imageErr  error
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{containers: map[string]string{}, images: map[string]bool{}}
}

func (f *fakeDocker) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeDocker) Ping(context.Context) (types.Ping, error) {
	return types.Ping{}, nil
}

func (f *fakeDocker) ContainerList(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.containers))
	for name := range f.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []container.Summary
	for _, name := range names {
		s := container.Summary{Names: []string{"/" + name}}
		switch f.containers[name] {
		case "running":
			s.State = "running"
		case "created":
			s.State = "created"
		default:
			s.State = "exited"
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeDocker) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start " + id)
	if f.startErr != nil {
		return f.startErr
	}
	if _, ok := f.containers[id]; !ok {
		return errors.New("no such container")
	}
	f.containers[id] = "running"
	return nil
}

func (f *fakeDocker) ContainerStop(_ context.Context, id string, opts container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop " + id)
	if opts.Timeout != nil {
		f.timeouts = append(f.timeouts, *opts.Timeout)
	}
	if f.stopErr != nil {
		return f.stopErr
	}
	f.containers[id] = "exited"
	return nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("remove " + id)
	if f.removeErr != nil {
		return f.removeErr
	}
	if f.containers[id] == "running" {
		return errors.New("cannot remove a running container")
	}
	delete(f.containers, id)
	return nil
}

func (f *fakeDocker) ImageList(_ context.Context, opts image.ListOptions) ([]image.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("images")
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	var out []image.Summary
	for _, ref := range opts.Filters.Get("reference") {
		if f.images[ref] {
			out = append(out, image.Summary{RepoTags: []string{ref}})
		}
	}
	return out, nil
}

func (f *fakeDocker) Close() error { return nil }

func (f *fakeDocker) state(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers[name]
}

func (f *fakeDocker) countCalls(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// fakeRunner emulates the docker CLI against a fakeDocker.
type fakeRunner struct {
	docker    *fakeDocker
	commands  []string
	attached  []string
	ptsOutput string
	results   map[string]CommandResult

	attachResult CommandResult
	attachErr    error
}

func newFakeRunner(docker *fakeDocker) *fakeRunner {
	return &fakeRunner{
		docker:    docker,
		ptsOutput: "0\nptmx\n",
		results:   map[string]CommandResult{},
	}
}

func (r *fakeRunner) Output(_ context.Context, args []string) (CommandResult, error) {
	line := strings.Join(args, " ")
	r.commands = append(r.commands, line)
	if res, ok := r.results[line]; ok {
		return res, nil
	}
	switch args[0] {
	case "create":
		r.docker.mu.Lock()
		r.docker.containers[args[2]] = "created"
		r.docker.mu.Unlock()
	case "build":
		r.docker.mu.Lock()
		r.docker.images[args[4]] = true
		r.docker.mu.Unlock()
	case "exec":
		if strings.HasSuffix(line, "ls /dev/pts") {
			return CommandResult{Stdout: []byte(r.ptsOutput)}, nil
		}
	}
	return CommandResult{}, nil
}

func (r *fakeRunner) Attach(_ context.Context, args []string) (CommandResult, error) {
	r.attached = append(r.attached, strings.Join(args, " "))
	return r.attachResult, r.attachErr
}

// setupCommands returns the recorded commands minus /dev/pts probes.
func (r *fakeRunner) setupCommands() []string {
	var out []string
	for _, c := range r.commands {
		if strings.HasSuffix(c, "ls /dev/pts") {
			continue
		}
		out = append(out, c)
	}
	return out
}

func testEnvironment() *config.Environment {
	return &config.Environment{
		Name:         testContainer,
		OriginalName: "Env",
		Image:        "ubuntu",
		EntryCmd:     "bash",
		EntryOptions: []string{"-it"},
	}
}

func newTestManager(t *testing.T, env *config.Environment, docker *fakeDocker, runner *fakeRunner, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithDockerAPI(docker), WithCommandRunner(runner)}, opts...)
	m, err := New(context.Background(), env, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}
