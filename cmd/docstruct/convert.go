package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/app"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
	"github.com/joseph-ayodele/doc-structurer/internal/export"
	processor "github.com/joseph-ayodele/doc-structurer/internal/pipeline"
)

type convertFlags struct {
	out         string
	provider    string
	model       string
	template    string
	schemaMode  string
	preview     string
	apiKeyStdin bool
	verbose     bool
}

func convertCmd() *cobra.Command {
	var f convertFlags
	cmd := &cobra.Command{
		Use:   "convert <pdf>",
		Short: "Extract a PDF, structure it with the selected model and write an .xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output .xlsx path (default: EXPORT_FILENAME in the current directory)")
	cmd.Flags().StringVar(&f.provider, "provider", "", "model provider: openai or gemini (default: LLM_PROVIDER)")
	cmd.Flags().StringVar(&f.model, "model", "", "model name override")
	cmd.Flags().StringVar(&f.template, "template", "", "layout: keyvalue or records (default: LLM_TEMPLATE)")
	cmd.Flags().StringVar(&f.schemaMode, "schema-mode", "", "lenient or strict (default: LLM_SCHEMA_MODE)")
	cmd.Flags().StringVar(&f.preview, "preview", "auto", "print the table: auto, always or never")
	cmd.Flags().BoolVar(&f.apiKeyStdin, "api-key-stdin", false, "read the API key from the first line of stdin")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log pipeline events to stderr")
	return cmd
}

func runConvert(cmd *cobra.Command, path string, f convertFlags) error {
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

	data, err := os.ReadFile(path)
	if err != nil {
		return common.InvalidInputError(fmt.Sprintf("Cannot read %s: %v", path, err))
	}
	out := outputPath(f.out, cfg.Export.Filename)

	p := app.NewProcessor(cfg, logger)
	res, err := p.Process(cmd.Context(), entity.Document{Filename: filepath.Base(path), Data: data}, cred, processor.Options{
		Provider:   cfg.LLM.Provider,
		Template:   cfg.LLM.Template,
		ExportName: filepath.Base(out),
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, res.Export.Bytes, 0o644); err != nil {
		return common.FormattingError(fmt.Sprintf("Cannot write %s.", out), err)
	}

	w := cmd.OutOrStdout()
	if showPreview(f.preview, w) {
		printPreview(w, res.Response.Table)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warn)
	}
	fmt.Fprintf(w, "wrote %s (%d rows, %s, %d pages, model %s)\n",
		out, res.Export.Rows, humanize.Bytes(uint64(len(res.Export.Bytes))), res.Pages, res.Response.Model)
	return nil
}

// applyFlags overlays command-line choices on the environment configuration.
func applyFlags(cfg *common.Config, f convertFlags) error {
	v := common.NewValidator()
	if f.provider != "" {
		p, ok := constants.CanonicalizeProvider(f.provider)
		if !ok {
			v.Add("provider", f.provider, "must be openai or gemini")
		}
		cfg.LLM.Provider = p
	}
	if f.template != "" {
		t, ok := constants.CanonicalizeTemplate(f.template)
		if !ok {
			v.Add("template", f.template, "must be one of "+strings.Join(constants.TemplatesAsStringSlice(), ", "))
		}
		cfg.LLM.Template = t
	}
	if f.schemaMode != "" {
		m, ok := constants.CanonicalizeSchemaMode(f.schemaMode)
		if !ok {
			v.Add("schema-mode", f.schemaMode, "must be lenient or strict")
		}
		cfg.LLM.SchemaMode = m
	}
	if f.model != "" {
		switch cfg.LLM.Provider {
		case constants.ProviderGemini:
			cfg.LLM.GeminiModel = f.model
		default:
			cfg.LLM.OpenAIModel = f.model
		}
	}
	switch f.preview {
	case "auto", "always", "never":
	default:
		v.Add("preview", f.preview, "must be auto, always or never")
	}
	return common.ValidateAndReturnError(v)
}

// readCredential takes the key from stdin when asked, otherwise from the provider's env var.
func readCredential(cmd *cobra.Command, provider constants.Provider, fromStdin bool) (*common.Credential, error) {
	env := common.APIKeyEnv(provider)
	if !fromStdin {
		cred := common.NewCredential(os.Getenv(env))
		if cred.Empty() {
			return nil, common.AuthenticationError(
				fmt.Sprintf("Please enter your API key to proceed: set %s or pass --api-key-stdin.", env), nil)
		}
		return cred, nil
	}

	if isTerminal(os.Stdin) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", env)
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, common.InvalidInputError("Cannot read the API key from stdin.")
	}
	cred := common.NewCredential(line)
	if cred.Empty() {
		return nil, common.AuthenticationError("Please enter your API key to proceed.", nil)
	}
	return cred, nil
}

func outputPath(flag, fallback string) string {
	if flag != "" {
		if ext := filepath.Ext(flag); !strings.EqualFold(ext, ".xlsx") {
			return strings.TrimSuffix(flag, ext) + ".xlsx"
		}
		return flag
	}
	return export.FileName(fallback)
}

func showPreview(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printPreview(w io.Writer, t entity.Table) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(t.Header(constants.ColumnComments))
	table.SetAutoWrapText(true)
	table.SetRowLine(true)
	for i := 0; i < t.Len(); i++ {
		table.Append(t.Record(i))
	}
	table.Render()
}
