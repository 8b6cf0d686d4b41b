// Package store persists batch inference job records so that a job submitted
// by one process can be looked up, updated, and collected by another.
//
// The package uses a single-table DynamoDB design: every record for a batch
// job shares the partition key BATCH#{jobName} and the metadata record uses
// the sort key META. A TTL attribute (expiresAt) auto-deletes records after
// BatchJobTTL.
package store

import (
	"context"
	"time"
)

// BatchJobTTL is the time-to-live for batch job records. Bedrock keeps batch
// job metadata for a limited period; records outlive it so results can still
// be located by name.
const BatchJobTTL = 30 * 24 * time.Hour

// Batch job status values reported by Bedrock's GetModelInvocationJob.
const (
	StatusSubmitted = "Submitted"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

// JobStore defines the persistence interface for batch job records.
//
// Get methods return (nil, nil) when the requested record does not exist.
// Put methods perform full-item replacement (upsert semantics).
type JobStore interface {
	// PutBatchJob creates or replaces a batch job record.
	PutBatchJob(ctx context.Context, job *BatchJob) error

	// GetBatchJob retrieves a batch job by name. Returns nil, nil if not found.
	GetBatchJob(ctx context.Context, jobName string) (*BatchJob, error)

	// UpdateBatchJobStatus updates status and failure reason without
	// overwriting other fields.
	UpdateBatchJobStatus(ctx context.Context, jobName, status, failureReason string) error

	// RecordBatchResults stores how many result files were collected and
	// how many were skipped as malformed.
	RecordBatchResults(ctx context.Context, jobName string, results, skipped int) error
}

// BatchJob is the registry record for one submitted batch inference job.
type BatchJob struct {
	Name          string `dynamodbav:"-" json:"jobName"`
	ARN           string `dynamodbav:"jobArn" json:"jobArn"`
	ModelID       string `dynamodbav:"modelId" json:"modelId"`
	InputURI      string `dynamodbav:"inputUri" json:"inputUri"`
	OutputURI     string `dynamodbav:"outputUri" json:"outputUri"`
	ItemCount     int    `dynamodbav:"itemCount" json:"itemCount"`
	Status        string `dynamodbav:"status" json:"status"`
	FailureReason string `dynamodbav:"failureReason,omitempty" json:"failureReason,omitempty"`
	ResultCount   int    `dynamodbav:"resultCount" json:"resultCount"`
	SkippedCount  int    `dynamodbav:"skippedCount" json:"skippedCount"`
	CreatedAt     int64  `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt     int64  `dynamodbav:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}
