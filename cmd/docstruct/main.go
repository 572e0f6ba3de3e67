package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doc-structurer/internal/common"
)

func main() {
	root := &cobra.Command{
		Use:           "docstruct",
		Short:         "Turn PDF documents into structured Excel spreadsheets with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(convertCmd(), convertDirCmd())

	if err := root.Execute(); err != nil {
		printError(err)
		os.Exit(exitCode(err))
	}
}

func printError(err error) {
	var ae *common.AppError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "error [%s]: %s\n", ae.Kind, ae.Message)
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

// exitCode gives each error kind its own status so scripts can branch on it.
func exitCode(err error) int {
	var ae *common.AppError
	if !errors.As(err, &ae) {
		return 1
	}
	switch ae.Kind {
	case common.KindInvalidInput:
		return 2
	case common.KindExtraction:
		return 3
	case common.KindAuthentication:
		return 4
	case common.KindRateLimit:
		return 5
	case common.KindModel:
		return 6
	case common.KindFormatting:
		return 7
	default:
		return 1
	}
}
