// Command snapmetactl is the operator-facing CLI for the snapshot metadata
// engine: it opens a Store directly against the configured data directory,
// so it only ever talks to the same bbolt file the engine itself would —
// there is no separate daemon to go through for inspection or GC.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/snapmeta/pkg/config"
	"github.com/cuemby/snapmeta/pkg/log"
	"github.com/cuemby/snapmeta/pkg/registry"
	"github.com/cuemby/snapmeta/pkg/snapshot"
	"github.com/cuemby/snapmeta/pkg/storage"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "snapmetactl",
	Short:   "Inspect and operate a snapshot metadata store",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("snapmetactl %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("data-dir", "./snapmeta-data", "Store data directory")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides --data-dir and cluster/policy defaults)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(partitionCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadConfig resolves --config if given, otherwise synthesizes a Config
// from --data-dir with the engine's documented defaults and cluster support
// disabled (a bare CLI invocation has no peer to replicate against).
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.Load(path)
	}
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return &config.Config{
		Storage:               config.StorageConfig{Path: dataDir},
		ReaderTimerIntervalUS: config.DefaultReaderTimerIntervalUS,
		WriterTimerIntervalUS: config.DefaultWriterTimerIntervalUS,
		Policy:                config.PolicyConfig{Kind: "active_only"},
	}, nil
}

func buildPolicy(cfg *config.Config) snapshot.SnapshotPolicy {
	if cfg.Policy.Kind == "retain_n" && cfg.Policy.RetainN > 0 {
		return snapshot.RetainNPolicy{N: cfg.Policy.RetainN}
	}
	return snapshot.ActiveOnlyPolicy{}
}

// openRegistry opens the Store at the resolved config path, warm-loads
// every collection, and returns a Registry ready for command use. The
// caller is responsible for calling StopService, which also stops the
// executors and closes the Store.
func openRegistry(cmd *cobra.Command) (*registry.Registry, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewBoltStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := registry.New(cfg, store, buildPolicy(cfg))
	if err := reg.Init(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("warm-load registry: %w", err)
	}
	return reg, nil
}
