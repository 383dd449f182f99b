// Package hostsync mirrors container network attachments into the managed
// region of a hosts file, keeping it current via the engine's event stream
// with a periodic resync as a backstop. It is the Go-native replacement for
// the shell-and-jq hosts updater: the engine's own streaming API stands in
// for `docker events`, and structured enumeration stands in for the
// docker|jq|sed pipeline.
package hostsync

import (
	"context"
	"time"

	"github.com/saltyorg/sdc/internal/config"
	"github.com/saltyorg/sdc/internal/docker"
	"github.com/saltyorg/sdc/pkg/logger"
	"github.com/saltyorg/sdc/pkg/metrics"
)

// state names the synchronizer's current activity, logged on transition.
type state string

const (
	stateIdle         state = "idle"
	stateDebouncing   state = "debouncing"
	stateUpdating     state = "updating"
	stateReconnecting state = "reconnecting"
)

// Syncer runs the hosts-file synchronization daemon.
type Syncer struct {
	docker *docker.Client
	cfg    config.HostsyncConfig
	logger *logger.Logger

	state state
}

// New creates a Syncer.
func New(dockerClient *docker.Client, cfg config.HostsyncConfig, logger *logger.Logger) *Syncer {
	return &Syncer{
		docker: dockerClient,
		cfg:    cfg,
		logger: logger,
		state:  stateIdle,
	}
}

// Run blocks until ctx is cancelled, driving the event-debounce loop, the
// periodic resync goroutine, and event-stream reconnection with backoff.
func (s *Syncer) Run(ctx context.Context) error {
	if err := ensureManagedSection(s.cfg.HostsFile); err != nil {
		s.logger.Warn("Could not ensure managed section exists", "error", err)
	}

	s.update(ctx, "startup")

	resyncDone := make(chan struct{})
	go func() {
		defer close(resyncDone)
		s.resyncLoop(ctx)
	}()

	s.eventLoop(ctx)

	<-resyncDone
	return nil
}

// resyncLoop forces a full update on a fixed schedule, independent of
// whether any event fired, as a backstop against a missed or misparsed
// event.
func (s *Syncer) resyncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.update(ctx, "periodic resync")
		}
	}
}

// eventLoop subscribes to the engine's event stream and debounces updates
// in response. On stream death it reconnects with exponential backoff; once
// the retry budget for a reconnection burst is exhausted it falls back to
// resync-only mode for a cooldown period rather than giving up permanently,
// since this daemon has no external supervisor to restart it.
func (s *Syncer) eventLoop(ctx context.Context) {
	const (
		baseBackoff   = 5 * time.Second
		maxBackoff    = 60 * time.Second
		maxRetries    = 5
		cooldownAfter = 5 * time.Minute
	)

	retry := 0

	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(stateReconnecting)
		events, errs := s.docker.Events(ctx)

		s.logger.Info("Monitoring for container start and network disconnect events")
		s.setState(stateIdle)

		debounce := newDebouncer(s.cfg.DebounceWindow, s.cfg.MaxDebounceWindow)

		sessionStart := time.Now()
		streamErr := s.consumeEvents(ctx, events, errs, debounce)
		debounce.stop()

		if ctx.Err() != nil {
			return
		}

		// A session that stayed up longer than the longest backoff counts as
		// a working connection and resets the retry budget.
		if time.Since(sessionStart) > maxBackoff {
			retry = 0
		}
		retry++
		if retry > maxRetries {
			s.logger.Warn("Event stream reconnection budget exhausted, falling back to resync-only mode",
				"cooldown", cooldownAfter)
			select {
			case <-ctx.Done():
				return
			case <-time.After(cooldownAfter):
			}
			retry = 0
			continue
		}

		backoff := baseBackoff * (1 << uint(retry-1))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		s.logger.Warn("Event stream ended, reconnecting",
			"attempt", retry, "backoff", backoff, "error", streamErr)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// consumeEvents drains one event-stream session until it ends, debouncing
// updates. It returns the stream error, if any, that ended the session.
func (s *Syncer) consumeEvents(ctx context.Context, events <-chan docker.EngineEvent, errs <-chan error, debounce *debouncer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.logger.Debug("Engine event received", "type", ev.Type, "action", ev.Action, "actor", ev.Actor)
			s.setState(stateDebouncing)
			debounce.trigger(func() { s.update(ctx, "event") })
		}
	}
}

func (s *Syncer) setState(st state) {
	s.state = st
}

// update performs one full enumerate-render-splice-validate-write cycle.
// Failures are logged and counted; they never crash the daemon, matching
// the original updater's behavior of skipping a bad update and trying
// again next cycle.
func (s *Syncer) update(ctx context.Context, reason string) {
	s.setState(stateUpdating)
	defer s.setState(stateIdle)

	views, err := s.docker.ListNetworkAttachments(ctx, s.cfg.Network)
	if err != nil {
		s.logger.Error("Failed to enumerate network attachments", "reason", reason, "error", err)
		metrics.HostsyncUpdatesTotal.WithLabelValues("error").Inc()
		return
	}

	// Back up the live file before touching it, so a missing-or-empty file
	// discovered either here or after a failed validation can be restored.
	if err := createBackup(s.cfg.HostsFile); err != nil {
		s.logger.Warn("Could not create hosts file backup, proceeding with caution", "reason", reason, "error", err)
	}

	data, err := readOrRestoreHostsFile(s.cfg.HostsFile)
	if err != nil {
		s.logger.Error("Failed to read hosts file", "reason", reason, "error", err)
		metrics.HostsyncUpdatesTotal.WithLabelValues("error").Inc()
		return
	}

	managed := renderManagedSection(views, s.cfg.Network, s.cfg.Suffix)
	updated, err := spliceManagedSection(string(data), managed)
	if err != nil {
		s.logger.Error("Failed to splice managed section", "reason", reason, "error", err)
		metrics.HostsyncUpdatesTotal.WithLabelValues("error").Inc()
		return
	}

	if updated == string(data) {
		s.logger.Debug("Hosts file already up to date", "reason", reason, "containers", len(managed))
		metrics.HostsyncUpdatesTotal.WithLabelValues("skipped").Inc()
		return
	}

	if err := validateHostsContent(updated); err != nil {
		s.logger.Error("Generated hosts file failed validation, not updating", "reason", reason, "error", err)
		metrics.HostsyncUpdatesTotal.WithLabelValues("error").Inc()
		if restored, restoreErr := restoreBackup(s.cfg.HostsFile); restoreErr != nil {
			s.logger.Error("Failed to restore hosts file from backup after validation failure", "error", restoreErr)
		} else if restored {
			s.logger.Warn("Restored hosts file from backup after validation failure")
		}
		return
	}

	if err := writeAtomic(s.cfg.HostsFile, updated); err != nil {
		s.logger.Error("Failed to write hosts file", "reason", reason, "error", err)
		metrics.HostsyncUpdatesTotal.WithLabelValues("error").Inc()
		return
	}

	s.logger.Info("Hosts file updated", "reason", reason, "containers", len(managed))
	metrics.HostsyncUpdatesTotal.WithLabelValues("success").Inc()
	metrics.HostsyncLastUpdateTimestamp.Set(float64(time.Now().Unix()))
}
