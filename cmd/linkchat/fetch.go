package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Scrape URLs and print the extracted text",
		Long: `Fetch runs the page scraper used by the chat API and prints one JSON
object per successfully scraped URL. Failed URLs are logged and skipped.

Examples:
  linkchat fetch https://example.com
  linkchat fetch --no-render https://a.test https://b.test`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFetchCmd,
	}
	cmd.Flags().Bool("no-render", false, "Never fall back to the headless browser")
	return cmd
}

func runFetchCmd(cmd *cobra.Command, args []string) error {
	noRender, err := cmd.Flags().GetBool("no-render")
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noRender {
		cfg.ScrapeRenderEnabled = false
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	results := buildFetcher(cfg, logger).FetchAll(cmd.Context(), args)
	logger.Debug("fetch finished", zap.Int("requested", len(args)), zap.Int("fetched", len(results)))

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	for _, result := range results {
		if err := encoder.Encode(result); err != nil {
			return err
		}
	}
	return nil
}
