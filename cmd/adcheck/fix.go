package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fpang/ad-compliance-analyzer/internal/cli"
)

var (
	analysisFlag    string
	contentFlag     string
	contentFileFlag string
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Revise ad copy to resolve the issues in a compliance report",
	Long: `Ask the model to revise ad copy given a compliance report, usually the
JSON printed by "adcheck analyze". The revised copy is printed as returned
by the model.`,
	Args: cobra.NoArgs,
	RunE: runFix,
}

func init() {
	f := fixCmd.Flags()
	f.StringVarP(&analysisFlag, "analysis", "a", "", "File holding the compliance report")
	f.StringVarP(&contentFlag, "content", "c", "", "Ad copy to revise")
	f.StringVar(&contentFileFlag, "content-file", "", "File holding the ad copy to revise")
	fixCmd.MarkFlagsMutuallyExclusive("content", "content-file")
	_ = fixCmd.MarkFlagRequired("analysis")
}

func runFix(cmd *cobra.Command, _ []string) error {
	analysis, err := readTextFile(analysisFlag)
	if err != nil {
		return err
	}

	content := contentFlag
	if contentFileFlag != "" {
		if content, err = readTextFile(contentFileFlag); err != nil {
			return err
		}
	}
	if content == "" {
		content = cli.PromptForText(bufio.NewReader(os.Stdin), os.Stderr, "Ad content", "")
	}
	if strings.TrimSpace(content) == "" {
		return errors.New("ad content is required")
	}

	app := cli.InitApp("fix")
	fixed, err := app.Service.Fix(cmd.Context(), analysis, content)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), fixed)
	return err
}

func readTextFile(path string) (string, error) {
	resolved, err := cli.ValidateAndResolveFile(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", resolved, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s is empty", resolved)
	}
	return text, nil
}
