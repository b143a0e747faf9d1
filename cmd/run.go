package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camarohq/hunter/internal/config"
	"github.com/camarohq/hunter/internal/engine"
	"github.com/camarohq/hunter/internal/relevance"
	"github.com/camarohq/hunter/internal/state"
)

var (
	runSources []string
	runDryRun  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch every source once and update the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := hunt(ctx, cfg, runSources, runDryRun)
		if err != nil {
			return err
		}
		return writeReport(os.Stdout, report)
	},
}

// hunt performs one locked run.
func hunt(ctx context.Context, c *config.Config, sources []string, dryRun bool) (*engine.Report, error) {
	if err := c.Validate("run"); err != nil {
		return nil, err
	}

	lock, err := state.AcquireLock(c.State.Dir, time.Duration(c.State.LockTTLSecs)*time.Second)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			zap.L().Warn("release run lock", zap.Error(err))
		}
	}()

	store, err := openStore(ctx, c)
	if err != nil {
		return nil, eris.Wrap(err, "open state store")
	}
	defer store.Close() //nolint:errcheck

	filter, err := relevance.New(c.Target)
	if err != nil {
		return nil, err
	}
	adapters, err := loadSources(c, newFetcher(c), filter, sources)
	if err != nil {
		return nil, eris.Wrap(err, "load sources")
	}
	opts, err := engineOptions(c, dryRun)
	if err != nil {
		return nil, err
	}

	e := engine.New(adapters, store, filter, newNotifier(c, c.Target), opts)
	return e.Run(ctx)
}

func writeReport(w io.Writer, report *engine.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func init() {
	runCmd.Flags().StringSliceVar(&runSources, "source", nil, "only run the named sources (repeatable)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "fetch and reconcile without persisting or notifying")
	rootCmd.AddCommand(runCmd)
}
