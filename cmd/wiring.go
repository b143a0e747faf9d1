package main

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/camarohq/hunter/internal/config"
	"github.com/camarohq/hunter/internal/engine"
	"github.com/camarohq/hunter/internal/fetcher"
	"github.com/camarohq/hunter/internal/notify"
	"github.com/camarohq/hunter/internal/relevance"
	"github.com/camarohq/hunter/internal/resilience"
	"github.com/camarohq/hunter/internal/source"
	"github.com/camarohq/hunter/internal/state"
	"github.com/camarohq/hunter/pkg/notion"
)

func openStore(ctx context.Context, c *config.Config) (state.Store, error) {
	return state.Open(ctx, state.Options{
		Driver:      c.State.Driver,
		Dir:         c.State.Dir,
		CatalogFile: c.State.CatalogFile,
		SeenFile:    c.State.SeenFile,
		DatabaseURL: c.State.DatabaseURL,
	})
}

func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgents:  c.Fetch.UserAgents,
		Timeout:     time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:  c.Fetch.MaxRetries,
		RatePerHost: rate.Limit(c.Fetch.RatePerHost),
		Burst:       c.Fetch.Burst,
		Breakers: resilience.NewBreakers(
			resilience.BreakerFromConfig(c.Fetch.BreakerThreshold, c.Fetch.BreakerResetSecs),
		),
	})
}

// loadSources builds the adapters to run. names, when given, narrows the
// configured set. Adapters always run in catalog order, and mirror sources
// stop on the first page with a listing filter accepts.
func loadSources(c *config.Config, f fetcher.Fetcher, filter *relevance.Filter, names []string) ([]source.Adapter, error) {
	catalog, err := source.LoadCatalog(c.Sources.File)
	if err != nil {
		return nil, err
	}
	reg, err := catalog.Build(f, c.Sources.Enabled, source.WithMatcher(filter.Matches))
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return reg.All(), nil
	}
	return reg.Select(names)
}

func newNotifier(c *config.Config, target relevance.Target) *notify.Multi {
	composer := notify.Composer{Target: target, DashboardURL: c.Notify.DashboardURL}

	var notionNotifier notify.Notifier
	if c.Notify.Notion.Token != "" && c.Notify.Notion.DatabaseID != "" {
		notionNotifier = notify.NewNotionNotifier(notion.NewClient(c.Notify.Notion.Token), c.Notify.Notion.DatabaseID)
	}

	return notify.NewMulti(
		notify.NewEmailNotifier(c.Notify.Email, composer, nil),
		notify.NewWebhookNotifier(c.Notify.Webhook, composer),
		notionNotifier,
	)
}

func engineOptions(c *config.Config, dryRun bool) (engine.Options, error) {
	order, err := engine.ParseOrder(c.Catalog.Order)
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Capacity:       c.Catalog.Capacity,
		Order:          order,
		Concurrency:    c.Engine.Concurrency,
		AdapterTimeout: time.Duration(c.Engine.AdapterTimeoutSecs) * time.Second,
		RunTimeout:     time.Duration(c.Engine.RunTimeoutSecs) * time.Second,
		Retry: resilience.FromConfig(
			c.Retry.MaxAttempts,
			c.Retry.InitialBackoffMs,
			c.Retry.MaxBackoffMs,
			c.Retry.Multiplier,
			c.Retry.JitterFraction,
		),
		DryRun: dryRun,
	}, nil
}
