package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/docsync/internal/ai"
	"github.com/docsync/internal/classify"
	"github.com/docsync/internal/config"
	"github.com/docsync/internal/notify"
	"github.com/docsync/internal/retry"
	"github.com/docsync/internal/syncer"
)

// SyncCommand returns the CLI command for a one-off documentation sync
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Run the documentation sync for one merged pull request",
		ArgsUsage: "<owner/repo/number>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-classify",
				Usage: "Skip the AI significance check and rely on heuristics only",
			},
		},
		Action: runSync,
	}
}

func runSync(c *cli.Context) error {
	prID := c.Args().First()
	if prID == "" {
		return fmt.Errorf("pull request id is required, e.g. docsync sync owner/repo/42")
	}

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	host, err := buildHost(cfg)
	if err != nil {
		return err
	}
	provider, generator, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	classifier := classify.New(provider)
	if c.Bool("no-classify") {
		classifier = classify.New(nil)
	}

	s := syncer.New(host,
		ai.WithRetry(generator, ai.DefaultGenerationTimeout, retry.LLMConfig()),
		classifier,
		syncer.WithFiles(cfg.Sync.Files),
		syncer.WithNotifier(notify.New(cfg.Notify.WebhookURL)),
	)

	ref, err := s.Run(c.Context, prID, "")
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if ref == nil {
		fmt.Println("No documentation update needed.")
		return nil
	}
	fmt.Printf("Opened documentation pull request %s\n", ref.WebURL)
	return nil
}
