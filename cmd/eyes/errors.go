package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/eyes/internal/errors"
)

func errorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors [code]",
		Short: "List registered error codes",
		Long: `List every error code the runtime and the CLI can report, or describe
one code in detail.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				t, ok := errors.GetTemplate(args[0])
				if !ok {
					return errors.New(errors.CodeUsage).
						WithDetailf("no error is registered under %q", args[0]).
						WithSuggestion("Run 'eyes errors' to list the codes")
				}
				field(w, "code", args[0])
				field(w, "category", t.Category)
				field(w, "message", t.Message)
				field(w, "docs", t.DocURL)
				return nil
			}
			for _, code := range errors.GetAllCodes() {
				t, _ := errors.GetTemplate(code)
				fmt.Fprintf(w, "%s  %-9s %s\n", code, t.Category, t.Message)
			}
			return nil
		},
	}
	return cmd
}
