package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUpCreatesMissingEnvironment(t *testing.T) {
	t.Parallel()

	env := testEnvironment()
	env.ExecCmds = []string{"touch /ready"}
	docker := newFakeDocker()
	runner := newFakeRunner(docker)
	m := newTestManager(t, env, docker, runner)

	if err := m.Run(context.Background(), m.Up, false); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(runner.attached) != 1 {
		t.Fatalf("attached = %q, want one session", runner.attached)
	}
	setup := runner.setupCommands()
	if len(setup) != 2 || !strings.HasPrefix(setup[0], "create ") || setup[1] != "exec "+testContainer+" touch /ready" {
		t.Fatalf("setup commands = %q", setup)
	}
	if got := docker.state(testContainer); got != "exited" {
		t.Fatalf("state = %q, want exited after the only session left", got)
	}
}

func TestUpStartsExistingContainerWithoutRecreating(t *testing.T) {
	t.Parallel()

	env := testEnvironment()
	env.ExecCmds = []string{"touch /ready"}
	docker := newFakeDocker()
	docker.containers[testContainer] = "exited"
	runner := newFakeRunner(docker)
	var progress []string
	m := newTestManager(t, env, docker, runner, WithProgress(func(msg string) func() {
		progress = append(progress, msg)
		return func() {}
	}))

	if err := m.Run(context.Background(), m.Up, false); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if setup := runner.setupCommands(); len(setup) != 0 {
		t.Fatalf("existing container was reprovisioned: %q", setup)
	}
	if docker.countCalls("start ") != 1 {
		t.Fatalf("start calls = %d, want 1", docker.countCalls("start "))
	}
	if docker.countCalls("remove ") != 0 {
		t.Fatalf("existing container was removed")
	}
	if len(progress) != 1 || progress[0] != "Starting container" {
		t.Fatalf("progress = %q", progress)
	}
}

func TestUpAttachesToRunningContainer(t *testing.T) {
	t.Parallel()

	docker := newFakeDocker()
	docker.containers[testContainer] = "running"
	runner := newFakeRunner(docker)
	runner.ptsOutput = "0\n1\nptmx\n"
	m := newTestManager(t, testEnvironment(), docker, runner)

	if err := m.Run(context.Background(), m.Up, false); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if docker.countCalls("start ") != 0 {
		t.Fatalf("running container was started again")
	}
	if got := docker.state(testContainer); got != "running" {
		t.Fatalf("state = %q, want running while another session remains", got)
	}
}

func TestBuildLeavesContainerStopped(t *testing.T) {
	t.Parallel()

	docker := newFakeDocker()
	runner := newFakeRunner(docker)
	m := newTestManager(t, testEnvironment(), docker, runner)

	if err := m.Run(context.Background(), m.Build, false); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := docker.state(testContainer); got != "exited" {
		t.Fatalf("state = %q, want exited", got)
	}
	if len(runner.attached) != 0 {
		t.Fatalf("build attached a session")
	}
}

func TestFlowFailureStopsContainer(t *testing.T) {
	t.Parallel()

	env := testEnvironment()
	env.ExecCmds = []string{"false"}
	docker := newFakeDocker()
	runner := newFakeRunner(docker)
	runner.results["exec "+testContainer+" false"] = CommandResult{ExitCode: 1}
	m := newTestManager(t, env, docker, runner)

	err := m.Run(context.Background(), m.Build, false)
	if !HasKind(err, KindCommandExitCode) {
		t.Fatalf("error = %v, want CommandExitCode", err)
	}
	if got := docker.state(testContainer); got != "exited" {
		t.Fatalf("state = %q, want exited after failure", got)
	}
}

func TestFlowFailureJoinsStopError(t *testing.T) {
	t.Parallel()

	env := testEnvironment()
	env.ExecCmds = []string{"false"}
	docker := newFakeDocker()
	docker.stopErr = errors.New("stuck")
	runner := newFakeRunner(docker)
	runner.results["exec "+testContainer+" false"] = CommandResult{ExitCode: 1}
	m := newTestManager(t, env, docker, runner)

	err := m.Run(context.Background(), m.Up, false)
	if !HasKind(err, KindCommandExitCode) || !HasKind(err, KindContainerStop) {
		t.Fatalf("error = %v, want both the setup and the stop failure", err)
	}
	if !strings.HasPrefix(err.Error(), "command `docker exec") {
		t.Fatalf("original error is not first: %q", err.Error())
	}
	if len(runner.attached) != 0 {
		t.Fatalf("entered the container after a setup failure")
	}
}

func TestCleanupRemovesContainerEvenOnFailure(t *testing.T) {
	t.Parallel()

	env := testEnvironment()
	env.ExecCmds = []string{"false"}
	docker := newFakeDocker()
	runner := newFakeRunner(docker)
	runner.results["exec "+testContainer+" false"] = CommandResult{ExitCode: 1}
	m := newTestManager(t, env, docker, runner)

	err := m.Run(context.Background(), m.Build, true)
	if !HasKind(err, KindCommandExitCode) {
		t.Fatalf("error = %v, want CommandExitCode", err)
	}
	if _, ok := docker.containers[testContainer]; ok {
		t.Fatalf("container still present after cleanup")
	}
}

func TestCleanupFailureIsReported(t *testing.T) {
	t.Parallel()

	docker := newFakeDocker()
	docker.removeErr = errors.New("in use")
	runner := newFakeRunner(docker)
	m := newTestManager(t, testEnvironment(), docker, runner)

	err := m.Run(context.Background(), m.Build, true)
	var rerr *RuntimeError
	if !errors.As(err, &rerr) || rerr.Kind != KindContainerRemove {
		t.Fatalf("error = %v, want ContainerRemove", err)
	}
}

func TestRunUsesBackgroundContextAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := cleanupContext(ctx); got.Err() != nil {
		t.Fatalf("cleanupContext returned a cancelled context")
	}
	live := context.Background()
	if got := cleanupContext(live); got != live {
		t.Fatalf("cleanupContext replaced a live context")
	}
}

func TestBuildReplacesRunningContainer(t *testing.T) {
	t.Parallel()

	docker := newFakeDocker()
	docker.containers[testContainer] = "running"
	runner := newFakeRunner(docker)
	m := newTestManager(t, testEnvironment(), docker, runner)

	if err := m.Run(context.Background(), m.Build, false); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if docker.countCalls("remove ") != 1 {
		t.Fatalf("remove calls = %d, want 1", docker.countCalls("remove "))
	}
	setup := runner.setupCommands()
	if len(setup) != 1 || !strings.HasPrefix(setup[0], "create ") {
		t.Fatalf("setup commands = %q", setup)
	}
	if got := docker.state(testContainer); got != "exited" {
		t.Fatalf("state = %q, want exited", got)
	}

	stopIdx, removeIdx := -1, -1
	for i, c := range docker.calls {
		if c == "stop "+testContainer && stopIdx < 0 {
			stopIdx = i
		}
		if c == "remove "+testContainer {
			removeIdx = i
		}
	}
	if stopIdx < 0 || removeIdx < stopIdx {
		t.Fatalf("calls = %q, want stop before remove", docker.calls)
	}
}
