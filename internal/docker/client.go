package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
	"github.com/saltyorg/sdc/pkg/logger"
)

// Client wraps the Docker client with custom methods
type Client struct {
	cli    *client.Client
	logger *logger.Logger
}

// New creates a new Docker client wrapper
func New(host string, logger *logger.Logger) (*Client, error) {
	var opts []client.Opt

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	opts = append(opts, client.WithAPIVersionNegotiation())

	cli, err := client.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Client{
		cli:    cli,
		logger: logger,
	}, nil
}

// Close closes the Docker client connection
func (c *Client) Close() error {
	return c.cli.Close()
}

// Ping checks if Docker daemon is accessible
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.Ping(ctx, client.PingOptions{})
	return err
}

// ListManagedContainers returns all containers with saltbox_managed=true label
func (c *Client) ListManagedContainers(ctx context.Context) ([]container.Summary, error) {
	filters := make(client.Filters).Add("label", "com.github.saltbox.saltbox_managed=true")

	result, err := c.cli.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: filters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	return result.Items, nil
}

// ListAll returns every container the engine knows about, running or not.
// The hosts synchronizer uses this; it cares about network attachments
// rather than the saltbox_managed label.
func (c *Client) ListAll(ctx context.Context) ([]container.Summary, error) {
	result, err := c.cli.ContainerList(ctx, client.ContainerListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return result.Items, nil
}

// GetContainer returns detailed container information
func (c *Client) GetContainer(ctx context.Context, containerID string) (*client.ContainerInspectResult, error) {
	info, err := c.cli.ContainerInspect(ctx, containerID, client.ContainerInspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container %s: %w", containerID, err)
	}

	return &info, nil
}

// StartContainer starts a container by name or ID
func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	_, err := c.cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{})
	if err != nil {
		return fmt.Errorf("failed to start container %s: %w", containerID, err)
	}

	c.logger.Debug("Container started", "container", containerID)
	return nil
}

// StopContainer stops a container by name or ID
func (c *Client) StopContainer(ctx context.Context, containerID string, timeout int) error {
	_, err := c.cli.ContainerStop(ctx, containerID, client.ContainerStopOptions{
		Timeout: &timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to stop container %s: %w", containerID, err)
	}

	c.logger.Debug("Container stopped", "container", containerID)
	return nil
}

// BatchResult reports which ids in a batch engine call succeeded and which
// failed. One failure never blocks the rest of the batch; failed ids are
// left for the orchestrator to retry on a later iteration.
type BatchResult struct {
	Succeeded []string
	Failed    []string
}

// StartBatch starts every id in one orchestrator iteration.
func (c *Client) StartBatch(ctx context.Context, ids []string) BatchResult {
	var result BatchResult
	for _, id := range ids {
		if err := c.StartContainer(ctx, id); err != nil {
			c.logger.Error("batch start failed", "container", id, "error", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// StopBatch stops every id in one orchestrator iteration, using the given
// per-container timeout in seconds (defaulting to 10 when absent).
func (c *Client) StopBatch(ctx context.Context, ids []string, timeouts map[string]int) BatchResult {
	var result BatchResult
	for _, id := range ids {
		timeout := 10
		if t, ok := timeouts[id]; ok {
			timeout = t
		}
		if err := c.StopContainer(ctx, id, timeout); err != nil {
			c.logger.Error("batch stop failed", "container", id, "error", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// HasHealthCheck checks if a container has a health check configured
func (c *Client) HasHealthCheck(ctx context.Context, containerNameOrID string) (bool, error) {
	info, err := c.GetContainer(ctx, containerNameOrID)
	if err != nil {
		return false, err
	}

	return info.Container.Config.Healthcheck != nil, nil
}

// GetHealthStatus returns the health status of a container
// Returns: "healthy", "unhealthy", "starting", "none"
func (c *Client) GetHealthStatus(ctx context.Context, containerNameOrID string) (string, error) {
	info, err := c.GetContainer(ctx, containerNameOrID)
	if err != nil {
		return "", err
	}

	if info.Container.State.Health == nil {
		return "none", nil
	}

	return info.Container.State.Health.Status, nil
}

// IsContainerRunning checks if a container is currently running
func (c *Client) IsContainerRunning(ctx context.Context, containerNameOrID string) (bool, error) {
	info, err := c.GetContainer(ctx, containerNameOrID)
	if err != nil {
		return false, err
	}

	return info.Container.State.Running, nil
}

// GetContainerLogs retrieves container logs
func (c *Client) GetContainerLogs(ctx context.Context, containerID string) (string, error) {
	result, err := c.cli.ContainerLogs(ctx, containerID, client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "100",
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs for container %s: %w", containerID, err)
	}
	defer result.Close()

	data, err := io.ReadAll(result)
	if err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}

	return string(data), nil
}

// Events subscribes to the engine's native event stream, filtered to the
// classes that can change which containers belong in the managed hosts
// region: container starts and network disconnects. This replaces the
// subprocess-and-line-parsing approach of the shell-era hosts updater with
// the engine's own streaming API.
func (c *Client) Events(ctx context.Context) (<-chan EngineEvent, <-chan error) {
	out := make(chan EngineEvent)
	errc := make(chan error, 1)

	filters := make(client.Filters).
		Add("event", "start").
		Add("event", "disconnect")

	msgs, errs := c.cli.Events(ctx, client.EventsListOptions{Filters: filters})

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				out <- EngineEvent{
					Type:   string(msg.Type),
					Action: string(msg.Action),
					Actor:  msg.Actor.ID,
				}
			case err, ok := <-errs:
				if !ok {
					return
				}
				if err != nil {
					errc <- err
					return
				}
			}
		}
	}()

	return out, errc
}

// ListNetworkAttachments enumerates containers with a live IP on the named
// network and at least one non-empty alias — the exact population the
// hosts synchronizer mirrors into its managed region.
func (c *Client) ListNetworkAttachments(ctx context.Context, networkName string) ([]ContainerView, error) {
	summaries, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]ContainerView, 0, len(summaries))
	for _, s := range summaries {
		if s.NetworkSettings == nil {
			continue
		}

		endpoint, ok := s.NetworkSettings.Networks[networkName]
		if !ok || endpoint == nil || endpoint.IPAddress == "" {
			continue
		}

		aliases := nonEmptyAliases(endpoint.Aliases)
		if len(aliases) == 0 {
			continue
		}

		views = append(views, ContainerView{
			ID:      s.ID,
			Name:    containerName(s),
			Running: s.State == "running",
			Networks: []NetworkAttachment{
				{
					Network: networkName,
					IP:      endpoint.IPAddress,
					Aliases: aliases,
				},
			},
		})
	}

	return views, nil
}

func containerName(s container.Summary) string {
	if len(s.Names) == 0 {
		return s.ID
	}
	name := s.Names[0]
	if len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	return name
}

func nonEmptyAliases(aliases []string) []string {
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
