// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/pdiddy/fhir-names/internal/fhir"
	"github.com/pdiddy/fhir-names/internal/names"
	"github.com/pdiddy/fhir-names/internal/search"
)

var listCmd = &cobra.Command{
	Use:   "list <family>",
	Short: "List every patient of one family search with their first name",
	Long: heredoc.Doc(`
		List pages through a single family-name search and prints each
		patient's first recorded name with their birth date, without
		selecting the name-variant that matched the search.
	`),
	Example: heredoc.Doc(`
		$ fhir-names list SMITH --max-pages 2
	`),
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := fhir.NewClient(cfg.Server, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	maxPages, _ := cmd.Flags().GetInt("max-pages")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	page, err := client.Search(ctx, search.NewRequest(args[0], noCache))
	if err != nil {
		return fmt.Errorf("searching %q: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	total := 0
	for n := 1; ; n++ {
		for _, p := range page.Patients {
			fmt.Fprintln(out, names.PatientWithBirthDate(p))
			total++
		}
		if !page.HasNext() || (maxPages > 0 && n >= maxPages) {
			break
		}
		page, err = client.NextPage(ctx, page)
		if err != nil {
			return fmt.Errorf("fetching %q page %d: %w", args[0], n+1, err)
		}
	}
	logger.Info().Str("family", args[0]).Int("patients", total).Msg("listing complete")
	return nil
}

func init() {
	listCmd.Flags().Int("max-pages", 0, "maximum pages to fetch (0 fetches all pages)")
	listCmd.Flags().Bool("no-cache", false, "ask the server to bypass its search cache")

	rootCmd.AddCommand(listCmd)
}
