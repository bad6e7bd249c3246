package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/docsync/internal/ai"
	"github.com/docsync/internal/api"
	"github.com/docsync/internal/applier"
	"github.com/docsync/internal/classify"
	"github.com/docsync/internal/config"
	"github.com/docsync/internal/coordinator"
	"github.com/docsync/internal/database"
	"github.com/docsync/internal/jobqueue"
	"github.com/docsync/internal/notify"
	"github.com/docsync/internal/retry"
	"github.com/docsync/internal/session"
	"github.com/docsync/internal/syncer"
)

// ServeCommand returns the CLI command for starting the webhook server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the DocSync webhook server and job workers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the webhook server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	port := cfg.Server.Port
	if c.Int("port") > 0 {
		port = c.Int("port")
	}

	host, err := buildHost(cfg)
	if err != nil {
		return err
	}
	provider, generator, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	// Sessions live in Postgres when a database is reachable, so pending
	// approvals survive restarts. Without one the store is in-memory.
	var store session.Store
	pool, dbErr := database.NewPool(ctx)
	if dbErr != nil {
		log.Warn().Err(dbErr).Msg("no database available, using in-memory session store")
		store = session.NewMemoryStore()
	} else {
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		store = session.NewPostgresStore(pool)
		defer pool.Close()
	}

	coordOpts := []coordinator.Option{}
	var queue *jobqueue.JobQueue
	if cfg.Sync.Enabled {
		runner := syncer.New(host,
			ai.WithRetry(generator, ai.DefaultGenerationTimeout, retry.LLMConfig()),
			classify.New(provider),
			syncer.WithFiles(cfg.Sync.Files),
			syncer.WithNotifier(notify.New(cfg.Notify.WebhookURL)),
		)
		if pool != nil {
			queue, err = jobqueue.NewJobQueue(pool, runner)
			if err != nil {
				return err
			}
			coordOpts = append(coordOpts, coordinator.WithSyncRunner(queue))
		} else {
			// No queue without a database; syncs run inline.
			coordOpts = append(coordOpts, coordinator.WithSyncRunner(runner))
		}
	}

	coord := coordinator.New(store, host, generator, applier.New(host), coordOpts...)

	if queue != nil {
		if err := queue.Start(ctx); err != nil {
			return fmt.Errorf("failed to start job workers: %w", err)
		}
		defer queue.Stop(context.Background())
	}

	log.Info().
		Int("port", port).
		Str("host", host.Name()).
		Str("ai", cfg.General.DefaultAI).
		Msg("starting DocSync webhook server")

	server := api.NewServer(port, coord, cfg.Server.WebhookSecret)
	return server.Start()
}
