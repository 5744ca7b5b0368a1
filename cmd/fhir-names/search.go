// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/fhir-names/internal/fhir"
	"github.com/pdiddy/fhir-names/internal/names"
	"github.com/pdiddy/fhir-names/internal/search"
	"github.com/pdiddy/fhir-names/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search [family...]",
	Short: "Search patients by family name and print the matching names",
	Long: heredoc.Doc(`
		Search runs one Patient search per family-name term, sorted by given
		name, and follows the server's next links until the page limit is
		reached or the results run out. For every record it prints the first
		name-variant whose family contains the term, with the birth date.

		Terms come from the arguments, --term, and --terms-file (one per line,
		blank lines and # comments ignored). Terms are searched in order and
		duplicates are searched again.
	`),
	Example: heredoc.Doc(`
		$ fhir-names search Smith Brown --page-limit 1
		$ fhir-names search --terms-file surnames.txt --repeat 3 --stats
		$ fhir-names search Smith --output run.yaml --db runs.db
	`),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	terms, err := termsFromFlags(cmd, args)
	if err != nil {
		return err
	}

	client, err := fhir.NewClient(cfg.Server, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	repeat, _ := cmd.Flags().GetInt("repeat")
	if repeat < 1 {
		repeat = 1
	}
	showStats, _ := cmd.Flags().GetBool("stats")
	outPath, _ := cmd.Flags().GetString("output")
	quiet, _ := cmd.Flags().GetBool("quiet")

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	// The store sink and the collector change per read, so the Printer
	// prints through current.
	current := search.Discard
	sinks := []search.Sink{search.SinkFunc(func(m search.Match) error { return current.Print(m) })}
	if !quiet {
		sinks = append(sinks, search.TextSink{W: cmd.OutOrStdout()})
	}

	var rf *search.RunFile
	if outPath != "" {
		rf = search.NewRunFile(terms, search.RunFileConfig{
			BaseURL:   client.BaseURL(),
			PageLimit: cfg.Search.PageLimit,
		})
	}

	rec := search.NewRecorder()
	noCacheLast, _ := cmd.Flags().GetBool("no-cache-last")
	for i := 0; i < repeat; i++ {
		noCache := cfg.Search.NoCache || (noCacheLast && i == repeat-1)
		p := search.NewBuilder().
			AddTerms(terms...).
			PageLimit(cfg.Search.PageLimit).
			NoCache(noCache).
			Matcher(names.Matcher{IgnoreAccents: cfg.Search.IgnoreAccents}).
			Sink(search.MultiSink(sinks...)).
			Observe(search.NewLogObserver(logger), rec).
			Build(client)

		var readSinks []search.Sink
		collected := &search.Collector{}
		if rf != nil {
			readSinks = append(readSinks, collected)
		}
		if st != nil {
			runID, err := st.BeginRun(ctx, store.RunInfo{
				BaseURL:   client.BaseURL(),
				Terms:     p.Terms(),
				PageLimit: cfg.Search.PageLimit,
				NoCache:   noCache,
			})
			if err != nil {
				return err
			}
			readSinks = append(readSinks, st.Sink(ctx, runID))
			logger.Info().Str("run", runID).Int("read", i+1).Msg("recording run")
		}
		current = search.MultiSink(readSinks...)

		if err := p.Run(ctx); err != nil {
			return err
		}
		if rf != nil {
			rf.AddRead(noCache, collected.Matches())
		}
	}

	if showStats {
		search.FormatStats(rec.Stats(), cmd.ErrOrStderr())
	}

	if rf != nil {
		if err := search.WriteRunFile(outPath, rf); err != nil {
			return err
		}
		logger.Info().Str("path", outPath).Int("reads", len(rf.Reads)).Msg("wrote run file")
	}
	return nil
}

// termsFromFlags gathers terms from args, --term and --terms-file in that order.
func termsFromFlags(cmd *cobra.Command, args []string) ([]string, error) {
	terms := append([]string(nil), args...)
	flagTerms, _ := cmd.Flags().GetStringArray("term")
	terms = append(terms, flagTerms...)

	path, _ := cmd.Flags().GetString("terms-file")
	if path != "" {
		fromFile, err := search.ReadTermsFile(path)
		if err != nil {
			return nil, err
		}
		terms = append(terms, fromFile...)
	}
	if len(terms) == 0 {
		return nil, search.ErrNoTerms
	}
	return terms, nil
}

func init() {
	f := searchCmd.Flags()
	f.StringArray("term", nil, "family name to search on (repeatable)")
	f.String("terms-file", "", "file with one family name per line")
	f.Int("page-limit", 0, "maximum pages per term (0 or less fetches all pages)")
	f.Bool("no-cache", false, "ask the server to bypass its search cache")
	f.Bool("ignore-accents", false, "match family names regardless of accents")
	f.Int("repeat", 1, "number of times to run the whole search")
	f.Bool("no-cache-last", false, "bypass the server cache on the last repeat only")
	f.Bool("stats", false, "print per-term request statistics to stderr")
	f.StringP("output", "o", "", "write the run as YAML to this file")
	f.BoolP("quiet", "q", false, "do not print matches to stdout")

	viper.BindPFlag("search.page_limit", f.Lookup("page-limit"))
	viper.BindPFlag("search.no_cache", f.Lookup("no-cache"))
	viper.BindPFlag("search.ignore_accents", f.Lookup("ignore-accents"))

	rootCmd.AddCommand(searchCmd)
}
