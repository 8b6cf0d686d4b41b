package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/inference"
	"github.com/fpang/ad-compliance-analyzer/internal/jobutil"
	"github.com/fpang/ad-compliance-analyzer/internal/lambdaboot"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
	"github.com/fpang/ad-compliance-analyzer/internal/store"
)

const stateChangeDetailType = "Batch Inference Job State Change"

// jobStateChange is the detail of a Bedrock batch job state change event.
type jobStateChange struct {
	JobName        string `json:"batchJobName"`
	JobARN         string `json:"batchJobArn"`
	ModelID        string `json:"batchModelId"`
	Status         string `json:"status"`
	FailureMessage string `json:"failureMessage"`
}

type resultCollector interface {
	GetBatchResults(ctx context.Context, jobName string) (*inference.BatchResults, error)
	BatchOutputLocator(jobName string) storage.Locator
}

type collectedEmitter interface {
	EmitBatchResultsCollected(ctx context.Context, jobName, jobARN string, results int, skipped []string) error
}

type processor struct {
	results resultCollector
	objects storage.ObjectStore
	jobs    store.JobStore   // nil without a job registry
	events  collectedEmitter // nil without an event bus
	// tag applies the cost-allocation tag to one output object; nil for
	// non-S3 storage.
	tag func(ctx context.Context, loc storage.Locator) error
}

func newProcessor(app *lambdaboot.App) *processor {
	p := &processor{
		results: app.Service,
		objects: app.Storage.Objects,
	}
	if app.Jobs != nil {
		p.jobs = app.Jobs
	}
	if app.Events != nil {
		p.events = app.Events
	}
	if client := app.Storage.S3; client != nil {
		p.tag = func(ctx context.Context, loc storage.Locator) error {
			return storage.TagObject(ctx, client, loc)
		}
	}
	return p
}

func (p *processor) handle(ctx context.Context, event events.CloudWatchEvent) error {
	if event.DetailType != stateChangeDetailType {
		log.Debug().Str("detailType", event.DetailType).Msg("Ignoring unrelated event")
		return nil
	}

	var change jobStateChange
	if err := json.Unmarshal(event.Detail, &change); err != nil {
		return fmt.Errorf("decode job state change: %w", err)
	}
	if change.JobName == "" {
		log.Warn().Str("eventId", event.ID).Msg("Job state change without a job name, skipping")
		return nil
	}

	log.Info().
		Str("jobName", change.JobName).
		Str("jobArn", change.JobARN).
		Str("status", change.Status).
		Msg("Batch job state change")

	switch change.Status {
	case store.StatusCompleted:
		return p.completed(ctx, change)
	case store.StatusFailed:
		return p.failed(ctx, change)
	default:
		p.updateStatus(ctx, change.JobName, change.Status, "")
		return nil
	}
}

func (p *processor) failed(ctx context.Context, change jobStateChange) error {
	msg := change.FailureMessage
	if msg == "" {
		msg = "batch job failed"
	}
	var write jobutil.ErrorWriter
	if p.jobs != nil {
		write = func(ctx context.Context, name, errMsg string) error {
			return p.jobs.UpdateBatchJobStatus(ctx, name, store.StatusFailed, errMsg)
		}
	}
	return jobutil.SetJobError(ctx, change.JobName, msg, write)
}

func (p *processor) completed(ctx context.Context, change jobStateChange) error {
	res, err := p.results.GetBatchResults(ctx, change.JobName)
	if err != nil {
		return err
	}

	p.updateStatus(ctx, change.JobName, store.StatusCompleted, "")
	if p.jobs != nil {
		if err := p.jobs.RecordBatchResults(ctx, change.JobName, len(res.Results), len(res.Skipped)); err != nil {
			log.Warn().Err(err).Str("jobName", change.JobName).Msg("Failed to record batch result counts")
		}
	}

	p.tagOutputs(ctx, change.JobName)

	if p.events != nil {
		if err := p.events.EmitBatchResultsCollected(ctx, change.JobName, change.JobARN, len(res.Results), res.Skipped); err != nil {
			log.Warn().Err(err).Str("jobName", change.JobName).Msg("Failed to emit batch results event")
		}
	}
	return nil
}

func (p *processor) updateStatus(ctx context.Context, jobName, status, reason string) {
	if p.jobs == nil {
		return
	}
	if err := p.jobs.UpdateBatchJobStatus(ctx, jobName, status, reason); err != nil {
		log.Warn().Err(err).Str("jobName", jobName).Str("status", status).Msg("Failed to update batch job status")
	}
}

// tagOutputs tags every output object of the job. Tagging failures are
// logged and never fail the event.
func (p *processor) tagOutputs(ctx context.Context, jobName string) {
	if p.tag == nil {
		return
	}
	locs, err := p.objects.List(ctx, p.results.BatchOutputLocator(jobName))
	if err != nil {
		log.Warn().Err(err).Str("jobName", jobName).Msg("Failed to list batch outputs for tagging")
		return
	}
	tagged := 0
	for _, loc := range locs {
		if err := p.tag(ctx, loc); err != nil {
			log.Warn().Err(err).Str("locator", loc.String()).Msg("Failed to tag batch output")
			continue
		}
		tagged++
	}
	log.Debug().Str("jobName", jobName).Int("tagged", tagged).Int("outputs", len(locs)).Msg("Batch outputs tagged")
}
