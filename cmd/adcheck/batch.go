package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/ad-compliance-analyzer/internal/cli"
	"github.com/fpang/ad-compliance-analyzer/internal/inference"
	"github.com/fpang/ad-compliance-analyzer/internal/jobs"
)

var (
	itemsFlag   string
	jobNameFlag string
	jobARNFlag  string
	outputFlag  string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run many ads through a Bedrock batch inference job",
}

var batchCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Stage items and submit a batch job",
	Long: `Stage every item of a batch request file and submit a Bedrock batch job.

The file holds {"job_name": "...", "items": [{"folder", "ad_id",
"ad_details", "images_data"}, ...]}. A bare array of items is accepted too.
A job name is generated when neither the file nor --name gives one.`,
	Args: cobra.NoArgs,
	RunE: runBatchCreate,
}

var batchStatusCmd = &cobra.Command{
	Use:   "status JOB_NAME",
	Short: "Show the status of a batch job",
	Long: `Show the status of a batch job. The job ARN is taken from --arn, or looked
up in the job registry (BATCH_JOBS_TABLE_NAME) by name.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchStatus,
}

var batchResultsCmd = &cobra.Command{
	Use:   "results JOB_NAME",
	Short: "Collect the results of a finished batch job",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchResults,
}

func init() {
	batchCreateCmd.Flags().StringVarP(&itemsFlag, "items", "i", "", "Batch request file")
	batchCreateCmd.Flags().StringVarP(&jobNameFlag, "name", "n", "", "Job name (overrides the file)")
	_ = batchCreateCmd.MarkFlagRequired("items")

	batchStatusCmd.Flags().StringVar(&jobARNFlag, "arn", "", "Job ARN (skips the registry lookup)")

	batchResultsCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write results to this file instead of stdout")

	batchCmd.AddCommand(batchCreateCmd, batchStatusCmd, batchResultsCmd)
}

func runBatchCreate(cmd *cobra.Command, _ []string) error {
	req, err := loadBatchRequest(itemsFlag)
	if err != nil {
		return err
	}
	if jobNameFlag != "" {
		req.JobName = jobNameFlag
	}
	if req.JobName == "" {
		req.JobName = jobs.GenerateID(jobs.BatchPrefix)
	}
	if !jobs.ValidName(req.JobName) {
		return fmt.Errorf("invalid job name %q", req.JobName)
	}

	app := cli.InitApp("batch create")
	arn, err := app.Service.CreateBatchJob(cmd.Context(), req.Items, req.JobName)
	if err != nil {
		return err
	}
	return cli.PrintJSON(cmd.OutOrStdout(), inference.BatchSubmitted{JobName: req.JobName, JobARN: arn})
}

// loadBatchRequest reads a batch request object, or a bare item array.
func loadBatchRequest(path string) (inference.BatchRequest, error) {
	var req inference.BatchRequest
	if err := cli.ReadJSONFile(path, &req); err != nil {
		var items []inference.BatchItem
		if cli.ReadJSONFile(path, &items) != nil {
			return req, err
		}
		req = inference.BatchRequest{Items: items}
	}
	if len(req.Items) == 0 {
		return req, fmt.Errorf("%s has no items", path)
	}
	return req, nil
}

func runBatchStatus(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	app := cli.InitApp("batch status")

	arn := jobARNFlag
	if arn == "" {
		if app.Jobs == nil {
			return errors.New("--arn is required without a job registry (BATCH_JOBS_TABLE_NAME)")
		}
		job, err := app.Jobs.GetBatchJob(cmd.Context(), jobName)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s not found in registry", jobName)
		}
		arn = job.ARN
	}

	status, err := app.Service.GetBatchJobStatus(cmd.Context(), arn)
	if err != nil {
		return err
	}
	log.Info().
		Str("jobName", jobName).
		Str("status", status.Status).
		Str("elapsed", cli.FormatElapsed(status.StartTime, status.EndTime, time.Now())).
		Msg("Batch job status")
	return cli.PrintJSON(cmd.OutOrStdout(), status)
}

func runBatchResults(cmd *cobra.Command, args []string) error {
	app := cli.InitApp("batch results")
	results, err := app.Service.GetBatchResults(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(results.Skipped) > 0 {
		log.Warn().Strs("skipped", results.Skipped).Msg("Some output files could not be decoded")
	}

	if outputFlag == "" {
		return cli.PrintJSON(cmd.OutOrStdout(), results)
	}
	f, err := os.Create(outputFlag)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputFlag, err)
	}
	defer f.Close()
	if err := cli.PrintJSON(f, results); err != nil {
		return fmt.Errorf("write %s: %w", outputFlag, err)
	}
	log.Info().Str("path", outputFlag).Int("results", len(results.Results)).Msg("Results written")
	return nil
}
