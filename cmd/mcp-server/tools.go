package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/inference"
	"github.com/fpang/ad-compliance-analyzer/internal/jobs"
)

const serverName = "ad-compliance-analyzer"

// analyzer is the compliance service behind the tools. Satisfied by *inference.Service.
type analyzer interface {
	Analyze(ctx context.Context, details compliance.AdDetails, images, video, audio compliance.MediaRefs) (*compliance.AnalysisResult, error)
	Fix(ctx context.Context, originalAnalysis, adContent string) (string, error)
	CreateBatchJob(ctx context.Context, items []inference.BatchItem, jobName string) (string, error)
	GetBatchJobStatus(ctx context.Context, jobARN string) (*inference.BatchJobStatus, error)
	GetBatchResults(ctx context.Context, jobName string) (*inference.BatchResults, error)
}

type analyzeArgs struct {
	AdDetails map[string]any `json:"ad_details" jsonschema:"ad metadata such as headline, body, and call to action; platform selects the guidelines and defaults to facebook"`
	Images    []string       `json:"images,omitempty" jsonschema:"images as s3://bucket/key locators or base64 data"`
	Video     []string       `json:"video,omitempty" jsonschema:"video locators"`
	Audio     []string       `json:"audio,omitempty" jsonschema:"audio locators"`
}

type fixArgs struct {
	OriginalAnalysis string `json:"original_analysis" jsonschema:"the compliance report to act on, usually the JSON returned by analyze_ad"`
	AdContent        string `json:"ad_content" jsonschema:"the ad copy to revise"`
}

type batchItemArgs struct {
	Folder    string         `json:"folder" jsonschema:"grouping label echoed into the results"`
	AdID      string         `json:"ad_id" jsonschema:"ad identifier echoed into the results"`
	AdDetails map[string]any `json:"ad_details" jsonschema:"ad metadata"`
	Images    []string       `json:"images_data,omitempty" jsonschema:"images as s3://bucket/key locators or base64 data"`
}

type createBatchArgs struct {
	JobName string          `json:"job_name,omitempty" jsonschema:"batch job name; generated when omitted"`
	Items   []batchItemArgs `json:"items" jsonschema:"ads to analyze"`
}

type batchStatusArgs struct {
	JobARN string `json:"job_arn" jsonschema:"ARN returned by create_batch_job"`
}

type batchResultsArgs struct {
	JobName string `json:"job_name" jsonschema:"name the batch job was created with"`
}

type tools struct {
	svc analyzer
}

func newServer(svc analyzer) *mcp.Server {
	t := &tools{svc: svc}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: commitHash,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_ad",
		Description: "Analyze one ad against its platform's advertising guidelines and return a structured compliance report",
	}, t.analyze)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "fix_ad",
		Description: "Revise ad copy so that it resolves the issues in a compliance report",
	}, t.fix)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_batch_job",
		Description: "Stage many ads and submit a Bedrock batch inference job analyzing them; returns the job ARN",
	}, t.createBatch)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_batch_job_status",
		Description: "Report the status of a batch job by ARN",
	}, t.batchStatus)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_batch_results",
		Description: "Collect the per-ad results of a finished batch job by name",
	}, t.batchResults)

	return server
}

func (t *tools) analyze(ctx context.Context, _ *mcp.CallToolRequest, args analyzeArgs) (*mcp.CallToolResult, any, error) {
	if len(args.AdDetails) == 0 {
		return nil, nil, errors.New("ad_details is required")
	}
	result, err := t.svc.Analyze(ctx, args.AdDetails, args.Images, args.Video, args.Audio)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(result)
}

func (t *tools) fix(ctx context.Context, _ *mcp.CallToolRequest, args fixArgs) (*mcp.CallToolResult, any, error) {
	if args.OriginalAnalysis == "" || args.AdContent == "" {
		return nil, nil, errors.New("original_analysis and ad_content are required")
	}
	fixed, err := t.svc.Fix(ctx, args.OriginalAnalysis, args.AdContent)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fixed), nil, nil
}

func (t *tools) createBatch(ctx context.Context, _ *mcp.CallToolRequest, args createBatchArgs) (*mcp.CallToolResult, any, error) {
	if len(args.Items) == 0 {
		return nil, nil, errors.New("items is required")
	}
	name := args.JobName
	if name == "" {
		name = jobs.GenerateID(jobs.BatchPrefix)
	}

	items := make([]inference.BatchItem, len(args.Items))
	for i, it := range args.Items {
		items[i] = inference.BatchItem{
			Folder:    it.Folder,
			AdID:      it.AdID,
			AdDetails: it.AdDetails,
			Images:    it.Images,
		}
	}

	arn, err := t.svc.CreateBatchJob(ctx, items, name)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("jobName", name).Str("jobArn", arn).Int("items", len(items)).Msg("Batch job submitted via MCP")
	return jsonResult(inference.BatchSubmitted{JobName: name, JobARN: arn})
}

func (t *tools) batchStatus(ctx context.Context, _ *mcp.CallToolRequest, args batchStatusArgs) (*mcp.CallToolResult, any, error) {
	if args.JobARN == "" {
		return nil, nil, errors.New("job_arn is required")
	}
	status, err := t.svc.GetBatchJobStatus(ctx, args.JobARN)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(status)
}

func (t *tools) batchResults(ctx context.Context, _ *mcp.CallToolRequest, args batchResultsArgs) (*mcp.CallToolResult, any, error) {
	if args.JobName == "" {
		return nil, nil, errors.New("job_name is required")
	}
	results, err := t.svc.GetBatchResults(ctx, args.JobName)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(results)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return textResult(string(body)), nil, nil
}
