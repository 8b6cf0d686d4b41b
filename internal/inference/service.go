// Package inference orchestrates ad compliance analysis on Amazon Bedrock:
// interactive analysis and fix requests through bedrockruntime, and batch
// analysis jobs staged in object storage and submitted through the Bedrock
// control plane.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/metrics"
	"github.com/fpang/ad-compliance-analyzer/internal/resolver"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
	"github.com/fpang/ad-compliance-analyzer/internal/store"
)

// Default model identifiers.
const (
	DefaultModelID      = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultBatchModelID = "anthropic.claude-3-haiku-20240307-v1:0"
)

// InvokeAPI is the subset of the Bedrock runtime client used for
// synchronous model calls.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BatchAPI is the subset of the Bedrock control plane client used for
// batch inference jobs.
type BatchAPI interface {
	CreateModelInvocationJob(ctx context.Context, params *bedrock.CreateModelInvocationJobInput, optFns ...func(*bedrock.Options)) (*bedrock.CreateModelInvocationJobOutput, error)
	GetModelInvocationJob(ctx context.Context, params *bedrock.GetModelInvocationJobInput, optFns ...func(*bedrock.Options)) (*bedrock.GetModelInvocationJobOutput, error)
}

// JobRecorder persists submitted batch jobs. Satisfied by *store.DynamoStore.
type JobRecorder interface {
	PutBatchJob(ctx context.Context, job *store.BatchJob) error
}

// VerdictEmitter publishes analysis verdicts. Satisfied by *events.Emitter.
type VerdictEmitter interface {
	EmitAnalysisCompleted(ctx context.Context, details compliance.AdDetails, result *compliance.AnalysisResult) error
}

// Options configures a Service. Zero values select defaults; Jobs and
// Verdicts are optional.
type Options struct {
	ModelID      string
	BatchModelID string
	// Bucket is where batch inputs are staged and outputs are written.
	Bucket       string
	BatchRoleARN string

	Jobs     JobRecorder
	Verdicts VerdictEmitter

	MetricsNamespace string
	// MetricsOut receives EMF lines. Defaults to stdout.
	MetricsOut io.Writer
}

// Service runs analyses against Bedrock. All clients are injected so tests
// can substitute fakes.
type Service struct {
	runtime  InvokeAPI
	batch    BatchAPI
	store    storage.ObjectStore
	resolver *resolver.Resolver
	opts     Options
}

// New creates a Service. batch may be nil when only interactive calls are used.
func New(runtime InvokeAPI, batch BatchAPI, objects storage.ObjectStore, res *resolver.Resolver, opts Options) *Service {
	if opts.ModelID == "" {
		opts.ModelID = DefaultModelID
	}
	if opts.BatchModelID == "" {
		opts.BatchModelID = DefaultBatchModelID
	}
	if opts.MetricsOut == nil {
		opts.MetricsOut = os.Stdout
	}
	return &Service{
		runtime:  runtime,
		batch:    batch,
		store:    objects,
		resolver: res,
		opts:     opts,
	}
}

// ModelID returns the interactive model identifier in use.
func (s *Service) ModelID() string { return s.opts.ModelID }

func (s *Service) recorder(operation string) *metrics.Recorder {
	return metrics.NewWithWriter(s.opts.MetricsNamespace, s.opts.MetricsOut).Dimension("Operation", operation)
}

// invoke sends messages to the interactive model and returns the text of
// the first content block.
func (s *Service) invoke(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(newRequestBody(messages))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	out, err := s.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.opts.ModelID),
		ContentType: aws.String(ContentTypeJSON),
		Accept:      aws.String(ContentTypeJSON),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("InvokeModel %s: %w", s.opts.ModelID, err)
	}

	var resp responseBody
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode response body: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", errors.New("response has no content")
	}

	log.Debug().
		Str("model", s.opts.ModelID).
		Int("requestBytes", len(body)).
		Int("responseLength", len(resp.Content[0].Text)).
		Dur("duration", time.Since(start)).
		Msg("Bedrock InvokeModel complete")
	return resp.Content[0].Text, nil
}
