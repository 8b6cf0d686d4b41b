package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/require"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/resolver"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
	"github.com/fpang/ad-compliance-analyzer/internal/store"
)

const (
	testBucket     = "ads"
	testGuidelines = "airuleasset"
	testRoleARN    = "arn:aws:iam::123456789012:role/bedrock-batch"
	testJobARN     = "arn:aws:bedrock:us-east-1:123456789012:model-invocation-job/abc123"
)

const compliantReport = `{
  "ad_details": {"name": "Promo", "description": "", "category": "", "targeting": "", "message": ""},
  "analysis": {
    "image_analysis": {"description": "clean", "concerns": [], "compliant": true},
    "text_analysis": {"description": "clean", "concerns": [], "compliant": true}
  },
  "compliance": {"status": "compliant", "issues": [], "recommendations": []},
  "overall_status": {"is_approved": true, "confidence_score": 0.92, "review_needed": false, "rejection_reasons": []}
}`

type fakeRuntime struct {
	inputs []*bedrockruntime.InvokeModelInput
	text   string
	err    error
}

func (f *fakeRuntime) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	body, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": f.text}},
	})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

// request decodes the body of the i-th InvokeModel call.
func (f *fakeRuntime) request(t *testing.T, i int) RequestBody {
	t.Helper()
	require.Greater(t, len(f.inputs), i, "InvokeModel was not called")
	var body RequestBody
	require.NoError(t, json.Unmarshal(f.inputs[i].Body, &body))
	return body
}

type fakeBatch struct {
	creates []*bedrock.CreateModelInvocationJobInput
	status  *bedrock.GetModelInvocationJobOutput
	err     error
}

func (f *fakeBatch) CreateModelInvocationJob(_ context.Context, in *bedrock.CreateModelInvocationJobInput, _ ...func(*bedrock.Options)) (*bedrock.CreateModelInvocationJobOutput, error) {
	f.creates = append(f.creates, in)
	if f.err != nil {
		return nil, f.err
	}
	return &bedrock.CreateModelInvocationJobOutput{JobArn: aws.String(testJobARN)}, nil
}

func (f *fakeBatch) GetModelInvocationJob(_ context.Context, _ *bedrock.GetModelInvocationJobInput, _ ...func(*bedrock.Options)) (*bedrock.GetModelInvocationJobOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

type fakeRecorder struct {
	jobs []*store.BatchJob
}

func (f *fakeRecorder) PutBatchJob(_ context.Context, job *store.BatchJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeVerdicts struct {
	results []*compliance.AnalysisResult
}

func (f *fakeVerdicts) EmitAnalysisCompleted(_ context.Context, _ compliance.AdDetails, r *compliance.AnalysisResult) error {
	f.results = append(f.results, r)
	return errors.New("bus unavailable")
}

// failingPutStore rejects every write.
type failingPutStore struct {
	storage.ObjectStore
}

func (failingPutStore) Put(context.Context, storage.Locator, []byte, string) error {
	return errors.New("access denied")
}

// failingGetStore rejects reads of one key.
type failingGetStore struct {
	storage.ObjectStore
	failKey string
}

func (f failingGetStore) Get(ctx context.Context, loc storage.Locator) ([]byte, error) {
	if loc.Key == f.failKey {
		return nil, errors.New("access denied")
	}
	return f.ObjectStore.Get(ctx, loc)
}

type harness struct {
	svc     *Service
	objects storage.ObjectStore
	runtime *fakeRuntime
	batch   *fakeBatch
	metrics *bytes.Buffer
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		objects: storage.NewLocalStore(t.TempDir()),
		runtime: &fakeRuntime{text: compliantReport},
		batch:   &fakeBatch{},
		metrics: &bytes.Buffer{},
	}
	if opts.Bucket == "" {
		opts.Bucket = testBucket
	}
	if opts.BatchRoleARN == "" {
		opts.BatchRoleARN = testRoleARN
	}
	opts.MetricsOut = h.metrics
	h.svc = New(h.runtime, h.batch, h.objects, resolver.New(h.objects, testGuidelines), opts)
	return h
}

func (h *harness) put(t *testing.T, bucket, key, body string) {
	t.Helper()
	require.NoError(t, h.objects.Put(context.Background(), storage.Locator{Bucket: bucket, Key: key}, []byte(body), "application/octet-stream"))
}

func lastText(msgs []Message) string {
	content := msgs[len(msgs)-1].Content
	return content[len(content)-1].Text
}
