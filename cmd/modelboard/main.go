// Package main is the entry point for the modelboard command.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/internal/config"
	"github.com/Faultbox/modelboard/internal/logger"
)

var version = "dev"

// cfg is the effective configuration, loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "modelboard",
	Short: "Inspect, preview and serve 3D models for review",
	Long: `modelboard resolves glTF/GLB, OBJ and STL models from files, URLs,
archives and data URIs, frames them with an orbit camera and renders
preview snapshots. The serve command runs the asset delivery service
(local files with byte ranges, and a cross-origin proxy).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := logger.Init(loggerOptions(cfg.Logging)); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		logger.Debug("config loaded", zap.String("path", config.ConfigPath()), zap.String("level", cfg.Logging.Level))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().AddFlagSet(config.FlagSet())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newSnapshotCmd())
	rootCmd.AddCommand(newConfigCmd())
}

func loggerOptions(l config.LoggingConfig) logger.Options {
	opts := logger.DefaultOptions()
	opts.Level = l.Level
	opts.Format = l.Format
	opts.File = logger.FileConfig{
		Path:       l.LogFile,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
	return opts
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
