/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package coordinator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/hortator-ai/conclave/internal/activity"
	"github.com/hortator-ai/conclave/internal/config"
	"github.com/hortator-ai/conclave/internal/db"
	"github.com/hortator-ai/conclave/internal/embedding"
	"github.com/hortator-ai/conclave/internal/ledger"
	"github.com/hortator-ai/conclave/internal/llm"
	"github.com/hortator-ai/conclave/internal/migrate"
	"github.com/hortator-ai/conclave/internal/semantic"
	"github.com/hortator-ai/conclave/internal/vectorstore"
)

// New wires a Coordinator from cfg. Databases are opened and migrated on
// the way; the returned close func releases them.
func New(ctx context.Context, cfg config.Config, log logr.Logger) (*Coordinator, func() error, error) {
	if cfg.Backend != config.BackendSemantic && cfg.Backend != config.BackendLedger {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	c := &Coordinator{
		Backend:      cfg.Backend,
		Mirror:       cfg.Mirror && cfg.Backend == config.BackendLedger,
		DefaultModel: cfg.LLM.DefaultModel,
		Activity:     activity.Discard,
		Log:          log.WithName("coordinator"),
		Health:       map[string]func(context.Context) error{},
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*Coordinator, func() error, error) {
		_ = closeAll()
		return nil, nil, err
	}

	if cfg.Backend == config.BackendSemantic || cfg.Mirror {
		emb, err := embedding.New(cfg.Embedding.Provider, cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimension)
		if err != nil {
			return fail(err)
		}
		if cfg.Embedding.CacheSize > 0 {
			emb = embedding.NewCached(emb, cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL)
		}
		index, err := vectorstore.New(cfg.VectorStore.Provider, cfg.VectorStore.Endpoint,
			vectorstore.WithCollection(cfg.VectorStore.Collection),
			vectorstore.WithEmbeddingDimension(emb.Dimension()),
			vectorstore.WithAPIKey(cfg.VectorStore.APIKey),
		)
		if err != nil {
			return fail(err)
		}
		c.Health["vectorstore"] = index.Health

		semLog := log.WithName("semantic")
		tasks := semantic.NewTasks(index, emb)
		tasks.Limit, tasks.Log = cfg.VectorStore.ListLimit, semLog
		bus := semantic.NewBus(index, emb)
		bus.Limit, bus.Log = cfg.VectorStore.InboxLimit, semLog
		states := semantic.NewStates(index, emb)
		states.Log = semLog

		c.Index, c.Messages = tasks, bus
		c.Tasks, c.Bus, c.States = tasks, bus, states
	}

	if cfg.NeedsDatabase() {
		ledgerDB, err := openMigrated(ctx, cfg.Ledger, log)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, ledgerDB.Close)
		c.Health["ledger"] = ledgerDB.PingContext

		if cfg.Backend == config.BackendLedger {
			c.Tasks = ledger.Tasks{DB: ledgerDB}
			c.Bus = ledger.Bus{DB: ledgerDB, Limit: cfg.VectorStore.InboxLimit}
			c.States = ledger.States{DB: ledgerDB}
		}
		if cfg.Activity.Enabled {
			actDB := ledgerDB
			if adb := cfg.ActivityDatabase(); adb != cfg.Ledger {
				if actDB, err = openMigrated(ctx, adb, log); err != nil {
					return fail(err)
				}
				closers = append(closers, actDB.Close)
				c.Health["activity"] = actDB.PingContext
			}
			c.Activity = activity.SQL{DB: actDB}
		}
	}

	client := llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey)
	client.HTTPClient = &http.Client{Timeout: cfg.LLM.Timeout}
	client.Referer, client.Title = cfg.LLM.Referer, cfg.LLM.Title
	client.Log = log.WithName("llm")
	c.LLM = client
	c.CallOptions = []llm.CallOption{
		llm.WithMaxRetries(cfg.LLM.MaxRetries),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
	}

	if cfg.LLM.PriceMap != "" {
		c.Prices = llm.NewPriceMap(cfg.LLM.PriceMap)
		if err := c.Prices.Refresh(ctx); err != nil {
			c.Log.Error(err, "Price map unavailable, asks will not carry a cost", "source", cfg.LLM.PriceMap)
		}
	}

	c.Log.Info("Coordinator ready", "backend", c.Backend, "mirror", c.Mirror,
		"vectorstore", cfg.VectorStore.Provider, "activity", cfg.Activity.Enabled)
	return c, closeAll, nil
}

func openMigrated(ctx context.Context, cfg db.Config, log logr.Logger) (*sql.DB, error) {
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	version, err := migrate.Migrate(ctx, conn, db.Dialect(cfg.Driver))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", db.Dialect(cfg.Driver), err)
	}
	log.V(1).Info("Database ready", "driver", db.Dialect(cfg.Driver), "schemaVersion", version)
	return conn, nil
}
