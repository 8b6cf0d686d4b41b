// Package events publishes compliance domain events to Amazon EventBridge.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
)

// Source is the EventBridge source of every event emitted here.
const Source = "ad-compliance-analyzer"

// Detail types.
const (
	DetailAnalysisCompleted     = "AnalysisCompleted"
	DetailBatchResultsCollected = "BatchResultsCollected"
)

// PutEventsAPI is the subset of the EventBridge client used by Emitter.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Emitter sends events to a single event bus.
type Emitter struct {
	client  PutEventsAPI
	busName string
}

// NewEmitter creates an Emitter. An empty busName targets the default bus.
func NewEmitter(client PutEventsAPI, busName string) *Emitter {
	return &Emitter{client: client, busName: busName}
}

// AnalysisCompleted is the detail of an AnalysisCompleted event.
type AnalysisCompleted struct {
	EventID          string                      `json:"eventId"`
	AdName           string                      `json:"adName,omitempty"`
	Platform         string                      `json:"platform"`
	Status           compliance.ComplianceStatus `json:"status"`
	IsApproved       bool                        `json:"isApproved"`
	ReviewNeeded     bool                        `json:"reviewNeeded"`
	ConfidenceScore  float64                     `json:"confidenceScore"`
	IssueCount       int                         `json:"issueCount"`
	RejectionReasons []string                    `json:"rejectionReasons,omitempty"`
	Timestamp        int64                       `json:"timestamp"`
}

// BatchResultsCollected is the detail of a BatchResultsCollected event.
type BatchResultsCollected struct {
	EventID   string   `json:"eventId"`
	JobName   string   `json:"jobName"`
	JobARN    string   `json:"jobArn,omitempty"`
	Results   int      `json:"results"`
	Skipped   []string `json:"skipped,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// EmitAnalysisCompleted publishes the verdict of one interactive analysis.
func (e *Emitter) EmitAnalysisCompleted(ctx context.Context, details compliance.AdDetails, result *compliance.AnalysisResult) error {
	return e.put(ctx, DetailAnalysisCompleted, AnalysisCompleted{
		EventID:          uuid.NewString(),
		AdName:           details.Name(),
		Platform:         details.Platform(),
		Status:           result.Compliance.Status,
		IsApproved:       result.OverallStatus.IsApproved,
		ReviewNeeded:     result.OverallStatus.ReviewNeeded,
		ConfidenceScore:  result.OverallStatus.ConfidenceScore,
		IssueCount:       len(result.Compliance.Issues),
		RejectionReasons: result.OverallStatus.RejectionReasons,
		Timestamp:        time.Now().Unix(),
	})
}

// EmitBatchResultsCollected publishes the outcome of collecting a batch job's results.
func (e *Emitter) EmitBatchResultsCollected(ctx context.Context, jobName, jobARN string, results int, skipped []string) error {
	return e.put(ctx, DetailBatchResultsCollected, BatchResultsCollected{
		EventID:   uuid.NewString(),
		JobName:   jobName,
		JobARN:    jobARN,
		Results:   results,
		Skipped:   skipped,
		Timestamp: time.Now().Unix(),
	})
}

func (e *Emitter) put(ctx context.Context, detailType string, detail any) error {
	body, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", detailType, err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(Source),
		DetailType: aws.String(detailType),
		Detail:     aws.String(string(body)),
	}
	if e.busName != "" {
		entry.EventBusName = aws.String(e.busName)
	}

	result, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		log.Error().Err(err).Str("detailType", detailType).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, r := range result.Entries {
			if r.ErrorCode != nil || r.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(r.ErrorCode)).
					Str("errorMessage", aws.ToString(r.ErrorMessage)).
					Str("detailType", detailType).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(r.ErrorCode), aws.ToString(r.ErrorMessage))
			}
		}
	}

	log.Debug().Str("detailType", detailType).Str("bus", e.busName).Msg("Event emitted to EventBridge")
	return nil
}
