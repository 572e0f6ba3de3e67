package main

import (
	"fmt"
	"log/slog"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doc-structurer/internal/app"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/ingest"
	processor "github.com/joseph-ayodele/doc-structurer/internal/pipeline"
)

func convertDirCmd() *cobra.Command {
	var (
		f          convertFlags
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "convert-dir <dir>",
		Short: "Convert every PDF under a directory, one file at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if f.verbose {
				level = slog.LevelInfo
			}
			logger := app.NewLogger(cmd.ErrOrStderr(), level)

			common.LoadDotEnv()
			cfg := common.LoadConfig()
			if err := applyFlags(cfg, f); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cred, err := readCredential(cmd, cfg.LLM.Provider, f.apiKeyStdin)
			if err != nil {
				return err
			}
			defer cred.Release()

			dir := ingest.NewDirectory(app.NewProcessor(cfg, logger), logger)
			results, stats, err := dir.Convert(cmd.Context(), args[0], cred, ingest.Options{
				SkipHidden: skipHidden,
				OutDir:     f.out,
				Run: processor.Options{
					Provider: cfg.LLM.Provider,
					Template: cfg.LLM.Template,
				},
			})
			printResults(cmd, results)
			fmt.Fprintf(cmd.OutOrStdout(), "%d converted, %d duplicates, %d failed\n", stats.Succeeded, stats.Deduplicated, stats.Failed)
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Matched)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.out, "out-dir", "o", "", "directory for the .xlsx files (default: next to each PDF)")
	cmd.Flags().StringVar(&f.provider, "provider", "", "model provider: openai or gemini (default: LLM_PROVIDER)")
	cmd.Flags().StringVar(&f.model, "model", "", "model name override")
	cmd.Flags().StringVar(&f.template, "template", "", "layout: keyvalue or records (default: LLM_TEMPLATE)")
	cmd.Flags().StringVar(&f.schemaMode, "schema-mode", "", "lenient or strict (default: LLM_SCHEMA_MODE)")
	cmd.Flags().BoolVar(&f.apiKeyStdin, "api-key-stdin", false, "read the API key from the first line of stdin")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and dot directories")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log pipeline events to stderr")
	f.preview = "never"
	return cmd
}

func printResults(cmd *cobra.Command, results []ingest.FileResult) {
	if len(results) == 0 {
		return
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"File", "Output", "Rows", "Status"})
	for _, r := range results {
		status := "ok"
		switch {
		case r.Err != nil:
			status = common.UserMessage(r.Err)
		case r.Deduplicated:
			status = "duplicate"
		}
		table.Append([]string{r.Path, r.OutPath, fmt.Sprint(r.Rows), status})
	}
	table.Render()
}
