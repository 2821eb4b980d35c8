// Command framegraph is a small host embedding the frame-graph engine:
// it registers the built-in filter pack, runs an audio graph through
// the scheduler, and can mux the result into an AVI v2 container.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var threads int
	var maxCacheBytes int64

	root := &cobra.Command{
		Use:           "framegraph",
		Short:         "Frame-graph audio processing engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().IntVar(&threads, "threads", 0, "worker pool size (0 uses config or default)")
	root.PersistentFlags().Int64Var(&maxCacheBytes, "cache-bytes", 0, "shared frame cache byte budget (0 uses config or unbounded)")

	loadEngineConfig := func() (Config, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		if threads > 0 {
			cfg.Engine.Threads = threads
		}
		if maxCacheBytes > 0 {
			cfg.Engine.MaxCacheBytes = maxCacheBytes
		}
		return cfg, nil
	}

	root.AddCommand(newInspectCommand(loadEngineConfig))
	root.AddCommand(newRunCommand(loadEngineConfig))
	root.AddCommand(newMuxCommand(loadEngineConfig))
	return root
}
