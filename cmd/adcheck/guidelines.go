package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fpang/ad-compliance-analyzer/internal/cli"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
)

var guidelinesCmd = &cobra.Command{
	Use:   "guidelines [PLATFORM]",
	Short: "List guideline files, or print one platform's guidelines",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGuidelines,
}

func runGuidelines(cmd *cobra.Command, args []string) error {
	app := cli.InitApp("guidelines")
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		for _, loc := range app.Resolver.GuidelineLocators() {
			fmt.Fprintln(out, loc.String())
		}
		return nil
	}

	loc := app.Resolver.GuidelineLocator(strings.TrimSpace(args[0]))
	text, err := storage.GetText(cmd.Context(), app.Storage.Objects, loc)
	if err != nil {
		return fmt.Errorf("guidelines for %s: %w", args[0], err)
	}
	_, err = fmt.Fprintln(out, text)
	return err
}
