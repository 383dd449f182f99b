package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/moby/moby/api/types/container"
	dockerclient "github.com/moby/moby/client"
	"github.com/saltyorg/sdc/internal/docker"
	"github.com/saltyorg/sdc/internal/graph"
	"github.com/saltyorg/sdc/pkg/logger"
)

// pollInterval is the cooperative loop's tick: engine state is re-read, and
// a new batch issued, about once per second.
const pollInterval = 1 * time.Second

// DockerClient is the subset of docker.Client the orchestrator depends on.
// Extracted so tests can drive the cooperative loop against a fake engine
// instead of a real one, mirroring graph.DockerClient.
type DockerClient interface {
	ListManagedContainers(ctx context.Context) ([]container.Summary, error)
	StartBatch(ctx context.Context, ids []string) docker.BatchResult
	StopBatch(ctx context.Context, ids []string, timeouts map[string]int) docker.BatchResult
	HasHealthCheck(ctx context.Context, containerNameOrID string) (bool, error)
	GetHealthStatus(ctx context.Context, containerNameOrID string) (string, error)
	GetContainer(ctx context.Context, containerID string) (*dockerclient.ContainerInspectResult, error)
}

// Orchestrator manages container lifecycle operations with dependency awareness
type Orchestrator struct {
	docker  DockerClient
	builder *graph.Builder
	logger  *logger.Logger
}

// New creates a new orchestrator instance
func New(dockerClient DockerClient, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		docker:  dockerClient,
		builder: graph.NewBuilder(dockerClient, logger),
		logger:  logger,
	}
}

// StartContainersOptions configures container startup behavior
type StartContainersOptions struct {
	Timeout int      // Operation timeout in seconds
	Ignore  []string // Container names to skip
}

// StopContainersOptions configures container shutdown behavior
type StopContainersOptions struct {
	Timeout int      // Operation timeout in seconds
	Ignore  []string // Container names to skip
}

// StartResult contains the results of a start operation
type StartResult struct {
	Started     []string          // Names of containers that were started
	Skipped     []string          // Names of containers that were skipped
	Failed      []string          // Names of containers that failed to start
	SkipReasons map[string]string // Why each skipped container was skipped
}

// StopResult contains the results of a stop operation
type StopResult struct {
	Stopped     []string          // Names of containers that were stopped
	Skipped     []string          // Names of containers that were skipped
	Failed      []string          // Names of containers that failed to stop
	SkipReasons map[string]string // Why each skipped container was skipped
}

// skipReason describes why a node was marked unreachable by computeSkipped,
// distinguishing a direct missing dependency from a transitive one.
func skipReason(node *graph.Node) string {
	for _, parent := range node.Parents {
		if parent.IsPlaceholder {
			return fmt.Sprintf("depends on missing container %q", parent.Name)
		}
	}
	return "depends on a container that is itself unreachable"
}

// StartContainers runs a single-threaded cooperative loop that starts every
// managed container once its parents are started (and, where a parent gates
// on health, healthy), applying each node's startup delay. One iteration
// issues one batched engine start call; the job fails on timeout or when no
// progress is possible (a stuck cycle).
func (o *Orchestrator) StartContainers(ctx context.Context, opts StartContainersOptions) (*StartResult, error) {
	o.logger.Info("Starting container orchestration",
		"timeout", opts.Timeout,
		"ignore", opts.Ignore)

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.Timeout)*time.Second)
	defer cancel()

	containers, err := o.docker.ListManagedContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	o.logger.Info("Found managed containers", "count", len(containers))

	g, err := o.builder.Build(ctx, containers)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	if hasCycle, cycle := g.HasCycles(); hasCycle {
		o.logger.Error("Dependency cycle detected before startup began", "cycle", cycle)
		return nil, fmt.Errorf("dependency cycle detected: %v", cycle)
	}

	ignoreMap := make(map[string]bool, len(opts.Ignore))
	for _, name := range opts.Ignore {
		ignoreMap[name] = true
	}

	result := &StartResult{SkipReasons: make(map[string]string)}
	pending := make(map[string]*graph.Node)
	started := make(map[string]bool)
	skipped := make(map[string]bool)

	for name, node := range g.Nodes {
		if node.IsPlaceholder {
			continue
		}
		switch {
		case ignoreMap[name]:
			skipped[name] = true
			result.Skipped = append(result.Skipped, name)
			result.SkipReasons[name] = "ignored by request"
		case g.Skipped[name]:
			skipped[name] = true
			result.Skipped = append(result.Skipped, name)
			reason := skipReason(node)
			result.SkipReasons[name] = reason
			o.logger.Warn("Skipping container: depends on a missing container", "container", name, "reason", reason)
		default:
			pending[name] = node
		}
	}

	deadlines := make(map[string]time.Time)

	for len(pending) > 0 {
		select {
		case <-timeoutCtx.Done():
			for name := range pending {
				result.Failed = append(result.Failed, name)
			}
			o.logger.Error("Container startup timed out", "still_pending", len(pending))
			return result, fmt.Errorf("start orchestration timed out with %d containers pending", len(pending))
		default:
		}

		now := time.Now()
		var ready []string
		delayPending := false
		healthPending := false

		for name, node := range pending {
			satisfied, waitingOnHealth := o.parentsSatisfied(timeoutCtx, node, started, skipped)
			if !satisfied {
				if waitingOnHealth {
					healthPending = true
				}
				continue
			}

			if node.StartupDelay > 0 {
				deadline, seen := deadlines[name]
				if !seen {
					deadlines[name] = now.Add(time.Duration(node.StartupDelay) * time.Second)
					delayPending = true
					continue
				}
				if now.Before(deadline) {
					delayPending = true
					continue
				}
			}

			ready = append(ready, name)
		}

		if len(ready) == 0 {
			if !delayPending && !healthPending {
				for name := range pending {
					result.Failed = append(result.Failed, name)
				}
				o.logger.Error("Dependency cycle detected, cannot make progress", "stuck", len(pending))
				return result, fmt.Errorf("dependency cycle detected: %d containers cannot become ready", len(pending))
			}
			time.Sleep(pollInterval)
			continue
		}

		ids := make([]string, 0, len(ready))
		for _, name := range ready {
			ids = append(ids, pending[name].ID)
		}

		batch := o.docker.StartBatch(timeoutCtx, ids)
		succeeded := toSet(batch.Succeeded)

		for _, name := range ready {
			node := pending[name]
			if succeeded[node.ID] {
				started[name] = true
				result.Started = append(result.Started, name)
				delete(pending, name)
			}
			// Failed: leave in pending, retried next iteration.
		}

		time.Sleep(pollInterval)
	}

	o.logger.Info("Container startup complete",
		"started", len(result.Started),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed))

	return result, nil
}

// parentsSatisfied reports whether every parent of node is ready to be
// depended on: started (and healthy, if node gates on health and the parent
// declares a real healthcheck) or already skipped as placeholder-derived.
// The second return value reports whether the only blocker is an unmet
// health gate on an already-started parent — a transient condition, not a
// cycle.
func (o *Orchestrator) parentsSatisfied(ctx context.Context, node *graph.Node, started, skipped map[string]bool) (bool, bool) {
	waitingOnHealth := false

	for _, parent := range node.Parents {
		if parent.IsPlaceholder || skipped[parent.Name] {
			continue
		}
		if !started[parent.Name] {
			return false, false
		}
		if !node.WaitForHealthcheck {
			continue
		}

		hasHealthCheck, err := o.docker.HasHealthCheck(ctx, parent.Name)
		if err != nil || !hasHealthCheck {
			// No real healthcheck to gate on: release immediately.
			continue
		}

		status, err := o.docker.GetHealthStatus(ctx, parent.Name)
		if err != nil || status != "healthy" {
			waitingOnHealth = true
			return false, true
		}
	}

	return true, waitingOnHealth
}

// StopContainers runs the symmetric cooperative loop in reverse: a node is
// ready to stop once every child that is actually in scope has already been
// stopped. The caller's ignore set is pretreated as "already stopped" so
// parents of ignored containers aren't blocked waiting on them.
func (o *Orchestrator) StopContainers(ctx context.Context, opts StopContainersOptions) (*StopResult, error) {
	o.logger.Info("Stopping container orchestration",
		"timeout", opts.Timeout,
		"ignore", opts.Ignore)

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.Timeout)*time.Second)
	defer cancel()

	containers, err := o.docker.ListManagedContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	o.logger.Info("Found managed containers", "count", len(containers))

	g, err := o.builder.Build(ctx, containers)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	if hasCycle, cycle := g.HasCycles(); hasCycle {
		o.logger.Error("Dependency cycle detected before shutdown began", "cycle", cycle)
		return nil, fmt.Errorf("dependency cycle detected: %v", cycle)
	}

	ignoreMap := make(map[string]bool, len(opts.Ignore))
	for _, name := range opts.Ignore {
		ignoreMap[name] = true
	}

	result := &StopResult{SkipReasons: make(map[string]string)}
	pending := make(map[string]*graph.Node)
	stopped := make(map[string]bool)
	timeouts := make(map[string]int)

	for name, node := range g.Nodes {
		if node.IsPlaceholder {
			continue
		}
		if ignoreMap[name] {
			stopped[name] = true // treated as already stopped for child-satisfaction
			result.Skipped = append(result.Skipped, name)
			result.SkipReasons[name] = "ignored by request"
			continue
		}
		if g.Skipped[name] {
			// Same derivation C2 uses: this node depends, directly or
			// transitively, on a placeholder and was never started by this
			// orchestrator. Treat it as already stopped so its parents'
			// readiness isn't blocked waiting on it.
			stopped[name] = true
			result.Skipped = append(result.Skipped, name)
			result.SkipReasons[name] = skipReason(node)
			continue
		}
		pending[name] = node
		if node.StopTimeout != nil {
			timeouts[node.ID] = *node.StopTimeout
		} else {
			timeouts[node.ID] = 10
		}
	}

	for len(pending) > 0 {
		select {
		case <-timeoutCtx.Done():
			for name := range pending {
				result.Failed = append(result.Failed, name)
			}
			o.logger.Error("Container shutdown timed out", "still_pending", len(pending))
			return result, fmt.Errorf("stop orchestration timed out with %d containers pending", len(pending))
		default:
		}

		var ready []string
		for name, node := range pending {
			childrenSatisfied := true
			for _, child := range node.Children {
				if child.IsPlaceholder {
					continue
				}
				if !stopped[child.Name] {
					childrenSatisfied = false
					break
				}
			}
			if childrenSatisfied {
				ready = append(ready, name)
			}
		}

		if len(ready) == 0 {
			for name := range pending {
				result.Failed = append(result.Failed, name)
			}
			o.logger.Error("Dependency cycle detected, cannot make progress", "stuck", len(pending))
			return result, fmt.Errorf("dependency cycle detected: %d containers cannot become ready", len(pending))
		}

		ids := make([]string, 0, len(ready))
		for _, name := range ready {
			ids = append(ids, pending[name].ID)
		}

		batch := o.docker.StopBatch(timeoutCtx, ids, timeouts)
		succeeded := toSet(batch.Succeeded)

		for _, name := range ready {
			node := pending[name]
			if succeeded[node.ID] {
				stopped[name] = true
				result.Stopped = append(result.Stopped, name)
				delete(pending, name)
			}
		}

		time.Sleep(pollInterval)
	}

	o.logger.Info("Container shutdown complete",
		"stopped", len(result.Stopped),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed))

	return result, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
