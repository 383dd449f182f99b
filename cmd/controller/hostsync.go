package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/saltyorg/sdc/internal/config"
	"github.com/saltyorg/sdc/internal/docker"
	"github.com/saltyorg/sdc/internal/hostsync"
	"github.com/saltyorg/sdc/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	hostsyncCfg     config.HostsyncConfig
	hostsyncCfgPath string
)

var hostsyncCmd = &cobra.Command{
	Use:   "hostsync",
	Short: "Run the hosts-file synchronizer daemon",
	Long: `Mirrors container network attachments into the managed region of a
hosts file, updating it on engine events and on a periodic resync.`,
	RunE: runHostsync,
}

func init() {
	defaults := config.DefaultHostsyncConfig()
	hostsyncCmd.Flags().StringVar(&hostsyncCfg.Network, "network", defaults.Network, "Network to mirror into the hosts file")
	hostsyncCmd.Flags().StringVar(&hostsyncCfg.Suffix, "suffix", defaults.Suffix, "Suffix appended to each alias")
	hostsyncCmd.Flags().StringVar(&hostsyncCfg.HostsFile, "hosts-file", defaults.HostsFile, "Path to the hosts file to manage")
	hostsyncCmd.Flags().DurationVar(&hostsyncCfg.ResyncInterval, "resync-interval", defaults.ResyncInterval, "Periodic full-resync interval")
	hostsyncCmd.Flags().DurationVar(&hostsyncCfg.DebounceWindow, "debounce-window", defaults.DebounceWindow, "Quiet window after an event before updating")
	hostsyncCmd.Flags().DurationVar(&hostsyncCfg.MaxDebounceWindow, "max-debounce-window", defaults.MaxDebounceWindow, "Maximum time to delay an update under a continuous event burst")
	hostsyncCmd.Flags().StringVar(&hostsyncCfgPath, "config", "", "Optional YAML config file")
	rootCmd.AddCommand(hostsyncCmd)
}

func runHostsync(cmd *cobra.Command, args []string) error {
	log, err := logger.New(logPretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	fileCfg, err := config.LoadFile(hostsyncCfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	merged := fileCfg.ApplyHostsync(config.DefaultHostsyncConfig())
	if cmd.Flags().Changed("network") {
		merged.Network = hostsyncCfg.Network
	}
	if cmd.Flags().Changed("suffix") {
		merged.Suffix = hostsyncCfg.Suffix
	}
	if cmd.Flags().Changed("hosts-file") {
		merged.HostsFile = hostsyncCfg.HostsFile
	}
	if cmd.Flags().Changed("resync-interval") {
		merged.ResyncInterval = hostsyncCfg.ResyncInterval
	}
	if cmd.Flags().Changed("debounce-window") {
		merged.DebounceWindow = hostsyncCfg.DebounceWindow
	}
	if cmd.Flags().Changed("max-debounce-window") {
		merged.MaxDebounceWindow = hostsyncCfg.MaxDebounceWindow
	}

	log.Info("Starting hosts synchronizer",
		"version", Version,
		"network", merged.Network,
		"hosts_file", merged.HostsFile,
		"resync_interval", merged.ResyncInterval)

	dockerHost := ""
	if fileCfg != nil {
		dockerHost = fileCfg.ApplyDocker(config.DockerConfig{}).Host
	}

	dockerClient, err := docker.New(dockerHost, log)
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	defer dockerClient.Close()

	syncer := hostsync.New(dockerClient, merged, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	return syncer.Run(ctx)
}
