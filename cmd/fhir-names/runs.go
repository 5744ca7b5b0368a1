// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/pdiddy/fhir-names/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List stored search runs or the matches of one run",
	Long: heredoc.Doc(`
		Runs reads the SQLite database written by "search --db". Without
		arguments it lists every stored run, newest first. With a run id it
		prints that run's matches in the order they were printed.
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("no database configured: pass --db or set store.path")
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		matches, err := st.Matches(ctx, args[0])
		if err != nil {
			return err
		}
		formatStoredMatches(matches, out)
		return nil
	}

	runs, err := st.Runs(ctx)
	if err != nil {
		return err
	}
	formatRuns(runs, out)
	return nil
}

func formatRuns(runs []store.RunInfo, w io.Writer) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-5s  %-8s  %s\n", "ID", "Started", "Pages", "NoCache", "Terms")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range runs {
		pages := "all"
		if r.PageLimit > 0 {
			pages = fmt.Sprint(r.PageLimit)
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-5s  %-8t  %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), pages, r.NoCache, strings.Join(r.Terms, ","))
	}
}

func formatStoredMatches(matches []store.StoredMatch, w io.Writer) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches stored for this run.")
		return
	}
	fmt.Fprintf(w, "%-4s  %-12s  %-4s  %-30s  %s\n", "Seq", "Term", "Page", "Name", "Birth date")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, m := range matches {
		name := "<no matching name>"
		if m.Matched {
			name = strings.TrimSpace(m.Given + " " + m.Family)
		}
		fmt.Fprintf(w, "%-4d  %-12s  %-4d  %-30s  %s\n", m.Seq, m.Term, m.Page, name, m.BirthDate)
	}
	fmt.Fprintf(w, "\n%d matches\n", len(matches))
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
