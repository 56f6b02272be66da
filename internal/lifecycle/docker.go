package lifecycle

import (
	"context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// DockerAPI is the subset of the Engine API client used by the Manager.
type DockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	Close() error
}

// connectDocker builds a client from DOCKER_HOST and friends and verifies
// the daemon answers.
func connectDocker(ctx context.Context) (DockerAPI, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &RuntimeError{Kind: KindDaemonConnect, Err: err}
	}
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, &RuntimeError{Kind: KindDaemonConnect, Err: err}
	}
	return cli, nil
}

func nameFilter(name string) filters.Args {
	return filters.NewArgs(filters.Arg("name", "^/"+name+"$"))
}

func referenceFilter(ref string) filters.Args {
	return filters.NewArgs(filters.Arg("reference", ref))
}

// findByName returns the container whose name is exactly name. The daemon's
// name filter matches substrings, so results are checked again here.
func findByName(list []container.Summary, name string) *container.Summary {
	want := "/" + name
	for i := range list {
		for _, n := range list[i].Names {
			if n == want {
				return &list[i]
			}
		}
	}
	return nil
}
