package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chainreactions/screener/internal/model"
)

var (
	matchMinConfidence float64
	matchMaxResults    int
	matchForceRefresh  bool
	matchLocation      string
	matchJSON          bool
)

var matchCmd = &cobra.Command{
	Use:   "match NAME...",
	Short: "Match an organization name against the watchlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngineLoaded(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		query := strings.Join(args, " ")
		opts := model.Options{
			MinConfidence: matchMinConfidence,
			MaxResults:    matchMaxResults,
			ForceRefresh:  matchForceRefresh,
		}

		res, err := env.Engine.MatchSingle(ctx, query, matchLocation, opts)
		if err != nil {
			return err
		}

		if matchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		formatMatchResult(os.Stdout, res)
		return nil
	},
}

func init() {
	matchCmd.Flags().Float64Var(&matchMinConfidence, "min-confidence", 0, "confidence floor (default from config)")
	matchCmd.Flags().IntVar(&matchMaxResults, "max-results", 0, "max matches to return (default from config)")
	matchCmd.Flags().BoolVar(&matchForceRefresh, "force-refresh", false, "bypass the result cache")
	matchCmd.Flags().StringVar(&matchLocation, "location", "", "location hint for geographic scoring")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(matchCmd)
}

// formatMatchResult writes a tabular match result to out.
func formatMatchResult(out io.Writer, res *model.MatchResult) {
	src := "computed"
	if res.FromCache {
		src = "cached"
	}
	_, _ = fmt.Fprintf(out, "Query: %q (normalized %q, dataset v%d, %s, %dms)\n",
		res.Query, res.NormalizedQuery, res.DatasetVersion, src, res.TookMS)

	if len(res.Matches) == 0 {
		_, _ = fmt.Fprintln(out, "No matches.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tNAME\tCONFIDENCE\tTYPE\tCOUNTRY\tENTITY")
	for i, m := range res.Matches {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%.3f\t%s\t%s\t%s\n",
			i+1,
			truncateName(m.Name, 42),
			m.Confidence,
			m.MatchType,
			m.Country,
			m.EntityID,
		)
	}
	_ = w.Flush()
}

// truncateName shortens long names for compact table display.
func truncateName(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
