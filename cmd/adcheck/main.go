// Package main is the adcheck command-line tool: analyze ads for policy
// compliance on Amazon Bedrock, request fixes, drive batch jobs, and stage
// assets, from a terminal or a CI pipeline.
//
// Configuration comes from the same environment variables the Lambdas use
// (S3_BUCKET, GUIDELINES_BUCKET, BEDROCK_MODEL_ID, STORAGE_BACKEND, ...).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "adcheck",
	Short: "Check ads against platform advertising guidelines",
	Long: `adcheck analyzes ad copy and creative against a platform's advertising
guidelines using a Claude model on Amazon Bedrock, and reports a structured
compliance verdict with issues and recommendations.

Examples:
  adcheck analyze --headline "Lose 10kg in a week" --image s3://assets/ad1.jpg
  adcheck analyze --request ad.json --fail-on-violation
  adcheck fix --analysis report.json --content "Lose 10kg in a week"
  adcheck batch create --items spring.json
  adcheck batch status adbatch-1a2b3c4d
  adcheck upload creatives.zip --presign 15m
  adcheck guidelines instagram
  adcheck schema`,
	SilenceUsage: true,
	Version:      fmt.Sprintf("%s (built %s)", commitHash, buildTime),
}

func init() {
	rootCmd.AddCommand(analyzeCmd, fixCmd, batchCmd, uploadCmd, guidelinesCmd, schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
