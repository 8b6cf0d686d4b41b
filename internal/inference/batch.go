package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/jobs"
	"github.com/fpang/ad-compliance-analyzer/internal/jsonutil"
	"github.com/fpang/ad-compliance-analyzer/internal/metrics"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
	"github.com/fpang/ad-compliance-analyzer/internal/store"
)

// Batch storage layout, relative to the staging bucket.
const (
	batchInputPrefix  = "batch-inputs/"
	batchOutputPrefix = "batch-outputs/"

	contentTypeJSONL = "application/jsonl"
)

// BatchItem is one ad to analyze in a batch job.
type BatchItem struct {
	Folder    string               `json:"folder"`
	AdID      string               `json:"ad_id"`
	AdDetails compliance.AdDetails `json:"ad_details"`
	Images    compliance.MediaRefs `json:"images_data"`
}

// UnmarshalJSON accepts ad_id as a string or a number, matching how
// results echo it back.
func (b *BatchItem) UnmarshalJSON(data []byte) error {
	type plain BatchItem
	aux := struct {
		*plain
		AdID json.RawMessage `json:"ad_id"`
	}{plain: (*plain)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if t := strings.TrimSpace(string(aux.AdID)); strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
		return fmt.Errorf("ad_id must be a string or number, got %s", t)
	}
	b.AdID = rawString(aux.AdID)
	return nil
}

// batchLine is one line of the staged job input.
type batchLine struct {
	Prompt RequestBody `json:"prompt"`
	Folder string      `json:"folder"`
	AdID   string      `json:"ad_id"`
}

// BatchJobStatus is a point-in-time view of a batch job. Times and the
// failure reason are nil when Bedrock has not reported them.
type BatchJobStatus struct {
	Status        string     `json:"status"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	FailureReason *string    `json:"failure_reason"`
}

// BatchResult is the analysis of one ad read back from a job's output.
type BatchResult struct {
	Folder   string          `json:"folder"`
	AdID     string          `json:"ad_id"`
	Analysis json.RawMessage `json:"analysis"`
}

// BatchResults holds every valid result of a job plus the locators of
// output files that could not be read or decoded.
type BatchResults struct {
	Results []BatchResult `json:"results"`
	Skipped []string      `json:"skipped"`
}

// BatchInputLocator returns where the job input for jobName is staged.
func (s *Service) BatchInputLocator(jobName string) storage.Locator {
	return storage.Locator{Bucket: s.opts.Bucket, Key: batchInputPrefix + jobName + ".jsonl"}
}

// BatchOutputLocator returns the prefix under which Bedrock writes outputs for jobName.
func (s *Service) BatchOutputLocator(jobName string) storage.Locator {
	return storage.Locator{Bucket: s.opts.Bucket, Key: batchOutputPrefix + jobName + "/"}
}

// CreateBatchJob stages one input line per item and submits a batch job
// reading it. Nothing is submitted if any item cannot be prepared or the
// input cannot be staged. Returns the job ARN.
func (s *Service) CreateBatchJob(ctx context.Context, items []BatchItem, jobName string) (string, error) {
	arn, err := s.createBatchJob(ctx, items, jobName)
	if err != nil {
		return "", fmt.Errorf("error creating batch job: %w", err)
	}
	return arn, nil
}

func (s *Service) createBatchJob(ctx context.Context, items []BatchItem, jobName string) (string, error) {
	switch {
	case !jobs.ValidName(jobName):
		return "", fmt.Errorf("invalid job name %q", jobName)
	case len(items) == 0:
		return "", errors.New("no items")
	case s.batch == nil:
		return "", errors.New("batch client not configured")
	case s.opts.Bucket == "":
		return "", errors.New("staging bucket not configured")
	case s.opts.BatchRoleARN == "":
		return "", errors.New("batch role ARN not configured")
	}

	lines := make([]batchLine, 0, len(items))
	for i, item := range items {
		images, err := s.resolver.ResolveMedia(ctx, item.Images)
		if err != nil {
			return "", fmt.Errorf("item %d (%s/%s): %w", i, item.Folder, item.AdID, err)
		}
		lines = append(lines, batchLine{
			Prompt: newRequestBody(BuildAnalysisRequest(item.AdDetails, "", images, nil, nil)),
			Folder: item.Folder,
			AdID:   item.AdID,
		})
	}

	doc, err := jsonutil.MarshalLines(lines)
	if err != nil {
		return "", fmt.Errorf("encode job input: %w", err)
	}

	input := s.BatchInputLocator(jobName)
	output := s.BatchOutputLocator(jobName)
	if err := storage.UploadString(ctx, s.store, input, string(doc), contentTypeJSONL); err != nil {
		return "", fmt.Errorf("stage job input: %w", err)
	}
	log.Debug().Str("jobName", jobName).Str("input", input.String()).Int("bytes", len(doc)).Msg("Batch input staged")

	out, err := s.batch.CreateModelInvocationJob(ctx, &bedrock.CreateModelInvocationJobInput{
		JobName:            aws.String(jobName),
		ModelId:            aws.String(s.opts.BatchModelID),
		RoleArn:            aws.String(s.opts.BatchRoleARN),
		ClientRequestToken: aws.String(uuid.NewString()),
		InputDataConfig: &bedrocktypes.ModelInvocationJobInputDataConfigMemberS3InputDataConfig{
			Value: bedrocktypes.ModelInvocationJobS3InputDataConfig{
				S3Uri:         aws.String(input.String()),
				S3InputFormat: bedrocktypes.S3InputFormatJsonl,
			},
		},
		OutputDataConfig: &bedrocktypes.ModelInvocationJobOutputDataConfigMemberS3OutputDataConfig{
			Value: bedrocktypes.ModelInvocationJobS3OutputDataConfig{
				S3Uri: aws.String(output.String()),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("CreateModelInvocationJob: %w", err)
	}
	arn := aws.ToString(out.JobArn)

	log.Info().
		Str("jobName", jobName).
		Str("jobArn", arn).
		Str("model", s.opts.BatchModelID).
		Int("items", len(items)).
		Msg("Batch job submitted")
	s.recorder("batch_create").
		Metric("BatchItems", float64(len(items)), metrics.UnitCount).
		Property("jobName", jobName).
		Flush()

	if s.opts.Jobs != nil {
		err := s.opts.Jobs.PutBatchJob(ctx, &store.BatchJob{
			Name:      jobName,
			ARN:       arn,
			ModelID:   s.opts.BatchModelID,
			InputURI:  input.String(),
			OutputURI: output.String(),
			ItemCount: len(items),
			Status:    store.StatusSubmitted,
		})
		if err != nil {
			log.Warn().Err(err).Str("jobName", jobName).Msg("Failed to record batch job")
		}
	}
	return arn, nil
}

// GetBatchJobStatus reads the current state of a batch job once. It does
// not poll.
func (s *Service) GetBatchJobStatus(ctx context.Context, jobARN string) (*BatchJobStatus, error) {
	if s.batch == nil {
		return nil, errors.New("error getting batch job status: batch client not configured")
	}
	out, err := s.batch.GetModelInvocationJob(ctx, &bedrock.GetModelInvocationJobInput{
		JobIdentifier: aws.String(jobARN),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting batch job status: %w", err)
	}

	status := &BatchJobStatus{
		Status:    string(out.Status),
		StartTime: out.SubmitTime,
		EndTime:   out.EndTime,
	}
	if msg := aws.ToString(out.Message); msg != "" {
		status.FailureReason = &msg
	}
	return status, nil
}

// GetBatchResults reads every output file of jobName. Files that cannot be
// read or are not a JSON object are skipped and reported in Skipped; the
// rest are returned in listing order. A job with no output yields an empty
// result list. Only a failed listing or a cancelled context is fatal.
func (s *Service) GetBatchResults(ctx context.Context, jobName string) (*BatchResults, error) {
	prefix := s.BatchOutputLocator(jobName)
	objects, unreadable, err := storage.ListAndRead(ctx, s.store, prefix)
	if err != nil {
		return nil, fmt.Errorf("error getting batch results: %w", err)
	}

	out := &BatchResults{
		Results: make([]BatchResult, 0, len(objects)),
		Skipped: make([]string, 0, len(unreadable)),
	}
	for _, loc := range unreadable {
		out.Skipped = append(out.Skipped, loc.String())
	}
	for _, obj := range objects {
		var fields map[string]json.RawMessage
		err := json.Unmarshal(obj.Body, &fields)
		if err == nil && fields == nil {
			err = errors.New("output is null")
		}
		if err != nil {
			log.Warn().Err(err).Str("locator", obj.Locator.String()).Msg("Skipping malformed batch output file")
			out.Skipped = append(out.Skipped, obj.Locator.String())
			continue
		}
		out.Results = append(out.Results, BatchResult{
			Folder:   rawString(fields["folder"]),
			AdID:     rawString(fields["ad_id"]),
			Analysis: fields["analysis"],
		})
	}

	log.Info().
		Str("jobName", jobName).
		Int("files", len(objects)+len(unreadable)).
		Int("results", len(out.Results)).
		Int("skipped", len(out.Skipped)).
		Msg("Batch results collected")
	s.recorder("batch_results").
		Metric("BatchResults", float64(len(out.Results)), metrics.UnitCount).
		Metric("BatchSkippedFiles", float64(len(out.Skipped)), metrics.UnitCount).
		Property("jobName", jobName).
		Flush()
	return out, nil
}

// rawString renders a JSON string as its value and any other scalar as its
// literal text, so numeric ad IDs survive. Absent or null values are "".
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}
