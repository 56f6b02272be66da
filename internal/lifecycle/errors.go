package lifecycle

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a RuntimeError.
type ErrorKind int

const (
	KindDaemonConnect ErrorKind = iota + 1
	KindContainerInfo
	KindImageInfo
	KindContainerCreate
	KindContainerStart
	KindContainerStop
	KindContainerRemove
	KindImageBuild
	KindCommandExitCode
	KindCommandKilled
	KindCommandFailed
	KindEnteringContainer
)

func (k ErrorKind) String() string {
	switch k {
	case KindDaemonConnect:
		return "DaemonConnect"
	case KindContainerInfo:
		return "ContainerInfo"
	case KindImageInfo:
		return "ImageInfo"
	case KindContainerCreate:
		return "ContainerCreate"
	case KindContainerStart:
		return "ContainerStart"
	case KindContainerStop:
		return "ContainerStop"
	case KindContainerRemove:
		return "ContainerRemove"
	case KindImageBuild:
		return "ImageBuild"
	case KindCommandExitCode:
		return "CommandExitCode"
	case KindCommandKilled:
		return "CommandKilled"
	case KindCommandFailed:
		return "CommandFailed"
	case KindEnteringContainer:
		return "EnteringContainer"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// RuntimeError is a failure talking to docker.
type RuntimeError struct {
	Kind      ErrorKind
	Container string
	// Command is the shell-quoted docker invocation for CLI failures.
	Command  string
	ExitCode int
	Stderr   string
	Reason   string
	Err      error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindDaemonConnect:
		b.WriteString("failed to connect to the docker daemon")
	case KindContainerInfo:
		b.WriteString("failed to query containers")
	case KindImageInfo:
		b.WriteString("failed to query images")
	case KindContainerCreate:
		fmt.Fprintf(&b, "failed to create container %s", e.Container)
	case KindContainerStart:
		fmt.Fprintf(&b, "failed to start container %s", e.Container)
	case KindContainerStop:
		fmt.Fprintf(&b, "failed to stop container %s", e.Container)
	case KindContainerRemove:
		fmt.Fprintf(&b, "failed to remove container %s", e.Container)
	case KindImageBuild:
		b.WriteString("failed to build image")
	case KindCommandExitCode:
		fmt.Fprintf(&b, "command `%s` exited with status %d", e.Command, e.ExitCode)
		if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
			fmt.Fprintf(&b, ": %s", stderr)
		}
		return b.String()
	case KindCommandKilled:
		fmt.Fprintf(&b, "command `%s` was killed by a signal", e.Command)
	case KindCommandFailed:
		if e.Command != "" {
			fmt.Fprintf(&b, "command `%s` failed", e.Command)
		} else {
			b.WriteString("command failed")
		}
	case KindEnteringContainer:
		fmt.Fprintf(&b, "failed to enter container: %s", e.Reason)
	default:
		b.WriteString("docker error")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// HasKind reports whether any RuntimeError in err's tree has the given kind.
func HasKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	if rerr, ok := err.(*RuntimeError); ok && rerr.Kind == kind {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if HasKind(inner, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return HasKind(x.Unwrap(), kind)
	}
	return false
}
