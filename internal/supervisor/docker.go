package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	appErr "arena/pkg/errors"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

type dockerClient interface {
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
}

// DockerInstance restarts an existing container.
type DockerInstance struct {
	cli         dockerClient
	container   string
	stopTimeout time.Duration
}

// NewDockerInstance connects to the docker daemon from the environment.
func NewDockerInstance(containerName string, stopTimeout time.Duration) (*DockerInstance, error) {
	if containerName == "" {
		return nil, fmt.Errorf("container is required")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client failed: %w", err)
	}
	return newDockerInstance(cli, containerName, stopTimeout), nil
}

func newDockerInstance(cli dockerClient, containerName string, stopTimeout time.Duration) *DockerInstance {
	if stopTimeout <= 0 {
		stopTimeout = 10 * time.Second
	}
	return &DockerInstance{cli: cli, container: containerName, stopTimeout: stopTimeout}
}

func (d *DockerInstance) Logs(ctx context.Context, tail int) ([]byte, error) {
	opts := container.LogsOptions{ShowStdout: true, ShowStderr: true, Timestamps: true}
	if tail > 0 {
		opts.Tail = strconv.Itoa(tail)
	}
	logs, err := d.cli.ContainerLogs(ctx, d.container, opts)
	if err != nil {
		return nil, fmt.Errorf("container logs failed: %w", err)
	}
	defer logs.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, logs); err != nil {
		return out.Bytes(), fmt.Errorf("demux container logs failed: %w", err)
	}
	return out.Bytes(), nil
}

func (d *DockerInstance) Stop(ctx context.Context) error {
	timeout := int(d.stopTimeout.Seconds())
	if err := d.cli.ContainerStop(ctx, d.container, container.StopOptions{Timeout: &timeout}); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("stop container failed: %w", err)
	}
	return nil
}

func (d *DockerInstance) Start(ctx context.Context) error {
	err := d.cli.ContainerStart(ctx, d.container, container.StartOptions{})
	switch {
	case client.IsErrNotFound(err):
		return appErr.Wrapf(err, appErr.InstanceNotFound, "container %s not found", d.container)
	case err != nil:
		return fmt.Errorf("start container failed: %w", err)
	}
	return nil
}
