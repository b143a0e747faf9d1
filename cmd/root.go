package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camarohq/hunter/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hunter",
	Short: "Classic car listing aggregator",
	Long:  "Polls marketplace feeds and auction sites for one model year, deduplicates listings across sources and runs, keeps a bounded catalog, and announces new finds.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
