package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cacheWarmupFile string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the in-process result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached match results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		env.Engine.ClearCache()
		_, _ = fmt.Fprintln(os.Stdout, "Cache cleared.")
		return nil
	},
}

var cacheWarmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Pre-compute results for a list of queries",
	Long:  "Runs each query through the engine at a paced rate so later lookups hit the cache.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		queries, err := readQueriesFile(cacheWarmupFile)
		if err != nil {
			return err
		}

		env, err := initEngineLoaded(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		warmed, err := env.Engine.Warmup(ctx, queries)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "Warmed %d of %d queries.\n", warmed, len(queries))
		return nil
	},
}

func init() {
	cacheWarmupCmd.Flags().StringVar(&cacheWarmupFile, "file", "", "file with one query per line (required)")
	_ = cacheWarmupCmd.MarkFlagRequired("file")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheWarmupCmd)
	rootCmd.AddCommand(cacheCmd)
}
