// Package jobutil provides shared helpers for batch job lifecycle operations.
//
// SetJobError unifies the pattern used by the API and the batch event
// handler: log the failure once, then persist an error status.
package jobutil

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ErrorWriter persists a job error to the backing store, typically
// store.DynamoStore.UpdateBatchJobStatus with a Failed status.
type ErrorWriter func(ctx context.Context, jobName, errMsg string) error

// SetJobError logs the error and delegates persistence to the provided writer.
// A nil writer only logs.
func SetJobError(ctx context.Context, jobName, msg string, write ErrorWriter) error {
	log.Error().
		Str("jobName", jobName).
		Str("error", msg).
		Msg("Batch job failed")
	if write == nil {
		return nil
	}
	return write(ctx, jobName, msg)
}
