package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/chainreactions/screener/internal/model"
)

var (
	batchFile          string
	batchMinConfidence float64
	batchMaxResults    int
	batchJSON          bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [NAME]...",
	Short: "Match multiple organization names in one call",
	Long:  "Reads queries from arguments or a file (one per line) and matches them concurrently, reporting per-query outcomes in input order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		queries := args
		if batchFile != "" {
			fromFile, err := readQueriesFile(batchFile)
			if err != nil {
				return err
			}
			queries = append(queries, fromFile...)
		}
		if len(queries) == 0 {
			return eris.New("batch: no queries given; pass names as arguments or --file")
		}

		env, err := initEngineLoaded(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := model.Options{
			MinConfidence: batchMinConfidence,
			MaxResults:    batchMaxResults,
		}
		res, err := env.Engine.MatchBatch(ctx, queries, opts)
		if err != nil {
			return err
		}

		if batchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		formatBatchResult(os.Stdout, res)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one query per line")
	batchCmd.Flags().Float64Var(&batchMinConfidence, "min-confidence", 0, "confidence floor (default from config)")
	batchCmd.Flags().IntVar(&batchMaxResults, "max-results", 0, "max matches per query (default from config)")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(batchCmd)
}

// readQueriesFile loads one query per line, skipping blanks and comment
// lines starting with '#'.
func readQueriesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: read queries file")
	}
	var queries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, nil
}

// formatBatchResult writes one row per query plus a summary line.
func formatBatchResult(out io.Writer, res *model.BatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "QUERY\tMATCHES\tTOP\tCONFIDENCE\tERROR")
	for _, item := range res.Items {
		if item.Error != "" {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t%s\n", truncateName(item.Query, 32), item.Error)
			continue
		}
		top, conf := "-", "-"
		if item.Result.HasMatches() {
			top = truncateName(item.Result.Matches[0].Name, 36)
			conf = fmt.Sprintf("%.3f", item.Result.Matches[0].Confidence)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t\n",
			truncateName(item.Query, 32), len(item.Result.Matches), top, conf)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d succeeded, %d failed (%dms)\n", res.Succeeded, res.Failed, res.TookMS)
}
