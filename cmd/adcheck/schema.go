package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fpang/ad-compliance-analyzer/internal/assets"
	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
)

var promptSchemaFlag bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of a compliance report",
	Long: `Print the JSON Schema of the report "adcheck analyze" returns. With
--prompt, print the schema text embedded in the analysis prompt instead.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&promptSchemaFlag, "prompt", false, "Print the schema text sent to the model")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if promptSchemaFlag {
		_, err := fmt.Fprintln(out, assets.OutputSchema)
		return err
	}
	data, err := compliance.ReportSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
