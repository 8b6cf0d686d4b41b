package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
	"github.com/fpang/ad-compliance-analyzer/internal/resolver"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
	"github.com/fpang/ad-compliance-analyzer/internal/store"
)

func readStaged(t *testing.T, h *harness, jobName string) string {
	t.Helper()
	body, err := h.objects.Get(context.Background(), h.svc.BatchInputLocator(jobName))
	require.NoError(t, err)
	return string(body)
}

func TestCreateBatchJobStagesOneLinePerItem(t *testing.T) {
	recorder := &fakeRecorder{}
	h := newHarness(t, Options{Jobs: recorder})
	h.put(t, testBucket, "A/1.jpg", "image-a")

	items := []BatchItem{
		{Folder: "A", AdID: "1", AdDetails: compliance.AdDetails{"name": "First"}, Images: compliance.MediaRefs{"s3://ads/A/1.jpg"}},
		{Folder: "B", AdID: "2", AdDetails: compliance.AdDetails{"name": "Second"}, Images: compliance.MediaRefs{"QkJC"}},
	}
	arn, err := h.svc.CreateBatchJob(context.Background(), items, "job-1")
	require.NoError(t, err)
	assert.Equal(t, testJobARN, arn)

	lines := strings.Split(readStaged(t, h, "job-1"), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		var got batchLine
		require.NoError(t, json.Unmarshal([]byte(line), &got), "line %d", i)
		assert.Equal(t, items[i].Folder, got.Folder)
		assert.Equal(t, items[i].AdID, got.AdID)
		assert.Equal(t, AnthropicVersion, got.Prompt.AnthropicVersion)
		assert.Equal(t, MaxTokens, got.Prompt.MaxTokens)
		assert.Contains(t, lastText(got.Prompt.Messages), items[i].AdDetails.String())
	}

	var first batchLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("image-a")), first.Prompt.Messages[0].Content[0].Source.Data)

	require.Len(t, recorder.jobs, 1)
	assert.Equal(t, store.BatchJob{
		Name:      "job-1",
		ARN:       testJobARN,
		ModelID:   DefaultBatchModelID,
		InputURI:  "s3://ads/batch-inputs/job-1.jsonl",
		OutputURI: "s3://ads/batch-outputs/job-1/",
		ItemCount: 2,
		Status:    store.StatusSubmitted,
	}, *recorder.jobs[0])
	assert.Contains(t, h.metrics.String(), `"BatchItems":2`)
}

func TestCreateBatchJobSubmission(t *testing.T) {
	h := newHarness(t, Options{})
	items := []BatchItem{{Folder: "A", AdID: "1", AdDetails: compliance.AdDetails{}}}

	_, err := h.svc.CreateBatchJob(context.Background(), items, "job-1")
	require.NoError(t, err)

	require.Len(t, h.batch.creates, 1)
	in := h.batch.creates[0]
	assert.Equal(t, "job-1", aws.ToString(in.JobName))
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", aws.ToString(in.ModelId))
	assert.Equal(t, testRoleARN, aws.ToString(in.RoleArn))
	assert.NotEmpty(t, aws.ToString(in.ClientRequestToken))

	input, ok := in.InputDataConfig.(*bedrocktypes.ModelInvocationJobInputDataConfigMemberS3InputDataConfig)
	require.True(t, ok)
	assert.Equal(t, "s3://ads/batch-inputs/job-1.jsonl", aws.ToString(input.Value.S3Uri))

	output, ok := in.OutputDataConfig.(*bedrocktypes.ModelInvocationJobOutputDataConfigMemberS3OutputDataConfig)
	require.True(t, ok)
	assert.Equal(t, "s3://ads/batch-outputs/job-1/", aws.ToString(output.Value.S3Uri))
}

func TestCreateBatchJobStagingFailureSkipsSubmission(t *testing.T) {
	objects := failingPutStore{ObjectStore: storage.NewLocalStore(t.TempDir())}
	batch := &fakeBatch{}
	svc := New(&fakeRuntime{}, batch, objects, resolver.New(objects, testGuidelines), Options{
		Bucket:       testBucket,
		BatchRoleARN: testRoleARN,
		MetricsOut:   &strings.Builder{},
	})

	_, err := svc.CreateBatchJob(context.Background(), []BatchItem{{Folder: "A", AdID: "1"}}, "job-1")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "error creating batch job: "), err.Error())
	assert.Contains(t, err.Error(), "access denied")
	assert.Empty(t, batch.creates)
}

func TestCreateBatchJobMediaFailureSkipsSubmission(t *testing.T) {
	h := newHarness(t, Options{})
	items := []BatchItem{{Folder: "A", AdID: "1", Images: compliance.MediaRefs{"s3://ads/missing.jpg"}}}

	_, err := h.svc.CreateBatchJob(context.Background(), items, "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 0 (A/1)")
	assert.Empty(t, h.batch.creates)

	_, err = h.objects.Get(context.Background(), h.svc.BatchInputLocator("job-1"))
	assert.Error(t, err, "nothing should be staged")
}

func TestCreateBatchJobRejectsBadInput(t *testing.T) {
	h := newHarness(t, Options{})
	item := []BatchItem{{Folder: "A", AdID: "1"}}

	_, err := h.svc.CreateBatchJob(context.Background(), item, "")
	assert.ErrorContains(t, err, "invalid job name")

	_, err = h.svc.CreateBatchJob(context.Background(), item, "../escape")
	assert.ErrorContains(t, err, "invalid job name")

	_, err = h.svc.CreateBatchJob(context.Background(), nil, "job-1")
	assert.ErrorContains(t, err, "no items")
	assert.Empty(t, h.batch.creates)
}

func TestCreateBatchJobSubmitError(t *testing.T) {
	recorder := &fakeRecorder{}
	h := newHarness(t, Options{Jobs: recorder})
	h.batch.err = errors.New("ValidationException")

	_, err := h.svc.CreateBatchJob(context.Background(), []BatchItem{{Folder: "A", AdID: "1"}}, "job-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, h.batch.err)
	assert.Empty(t, recorder.jobs)
}

func TestGetBatchJobStatus(t *testing.T) {
	h := newHarness(t, Options{})
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ended := submitted.Add(time.Hour)
	h.batch.status = &bedrock.GetModelInvocationJobOutput{
		Status:     bedrocktypes.ModelInvocationJobStatusFailed,
		SubmitTime: &submitted,
		EndTime:    &ended,
		Message:    aws.String("Role cannot be assumed"),
	}

	got, err := h.svc.GetBatchJobStatus(context.Background(), testJobARN)
	require.NoError(t, err)
	assert.Equal(t, "Failed", got.Status)
	assert.Equal(t, &submitted, got.StartTime)
	assert.Equal(t, &ended, got.EndTime)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, "Role cannot be assumed", *got.FailureReason)
}

func TestGetBatchJobStatusInProgress(t *testing.T) {
	h := newHarness(t, Options{})
	submitted := time.Now()
	h.batch.status = &bedrock.GetModelInvocationJobOutput{
		Status:     bedrocktypes.ModelInvocationJobStatusInProgress,
		SubmitTime: &submitted,
	}

	got, err := h.svc.GetBatchJobStatus(context.Background(), testJobARN)
	require.NoError(t, err)
	assert.Equal(t, "InProgress", got.Status)
	assert.Nil(t, got.EndTime)
	assert.Nil(t, got.FailureReason)
}

func TestGetBatchJobStatusError(t *testing.T) {
	h := newHarness(t, Options{})
	h.batch.err = errors.New("ResourceNotFoundException")

	_, err := h.svc.GetBatchJobStatus(context.Background(), testJobARN)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "error getting batch job status: "), err.Error())
}

func TestGetBatchResultsEmpty(t *testing.T) {
	h := newHarness(t, Options{})

	got, err := h.svc.GetBatchResults(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, got.Results)
	assert.Empty(t, got.Results)
	assert.Empty(t, got.Skipped)
}

func TestGetBatchResultsSkipsMalformed(t *testing.T) {
	h := newHarness(t, Options{})
	h.put(t, testBucket, "batch-outputs/job-1/a.json.out", `{"folder":"A","ad_id":"1","analysis":{"compliance":{"status":"compliant"}}}`)
	h.put(t, testBucket, "batch-outputs/job-1/b.json.out", `not json at all`)
	h.put(t, testBucket, "batch-outputs/job-2/c.json.out", `{"folder":"C","ad_id":"3"}`)

	got, err := h.svc.GetBatchResults(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "A", got.Results[0].Folder)
	assert.Equal(t, "1", got.Results[0].AdID)
	assert.JSONEq(t, `{"compliance":{"status":"compliant"}}`, string(got.Results[0].Analysis))
	assert.Equal(t, []string{"s3://ads/batch-outputs/job-1/b.json.out"}, got.Skipped)

	assert.Contains(t, h.metrics.String(), `"BatchSkippedFiles":1`)
}

func TestGetBatchResultsSkipsNonObjectOutput(t *testing.T) {
	h := newHarness(t, Options{})
	h.put(t, testBucket, "batch-outputs/job-1/a.json.out", `null`)
	h.put(t, testBucket, "batch-outputs/job-1/b.json.out", `"just a string"`)
	h.put(t, testBucket, "batch-outputs/job-1/c.json.out", `{"folder":"C","ad_id":"3","analysis":{}}`)

	got, err := h.svc.GetBatchResults(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "C", got.Results[0].Folder)
	assert.Equal(t, []string{
		"s3://ads/batch-outputs/job-1/a.json.out",
		"s3://ads/batch-outputs/job-1/b.json.out",
	}, got.Skipped)
	assert.Contains(t, h.metrics.String(), `"BatchSkippedFiles":2`)
}

func TestGetBatchResultsSkipsUnreadableOutput(t *testing.T) {
	h := newHarness(t, Options{})
	h.put(t, testBucket, "batch-outputs/job-1/a.json.out", `{"folder":"A","ad_id":"1","analysis":{}}`)
	h.put(t, testBucket, "batch-outputs/job-1/b.json.out", `{"folder":"B","ad_id":"2","analysis":{}}`)
	objects := failingGetStore{ObjectStore: h.objects, failKey: "batch-outputs/job-1/a.json.out"}
	svc := New(h.runtime, h.batch, objects, resolver.New(objects, testGuidelines), Options{Bucket: testBucket, MetricsOut: h.metrics})

	got, err := svc.GetBatchResults(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "B", got.Results[0].Folder)
	assert.Equal(t, []string{"s3://ads/batch-outputs/job-1/a.json.out"}, got.Skipped)
}

func TestBatchItemAcceptsNumericAdID(t *testing.T) {
	var req BatchRequest
	require.NoError(t, json.Unmarshal([]byte(`{"items":[
		{"folder":"A","ad_id":1,"ad_details":{"headline":"Sale"},"images_data":["s3://ads/a.jpg"]},
		{"folder":"B","ad_id":"b-2"},
		{"folder":"C"}
	]}`), &req))
	require.Len(t, req.Items, 3)
	assert.Equal(t, "1", req.Items[0].AdID)
	assert.Equal(t, "A", req.Items[0].Folder)
	assert.Equal(t, "Sale", req.Items[0].AdDetails["headline"])
	assert.Equal(t, compliance.MediaRefs{"s3://ads/a.jpg"}, req.Items[0].Images)
	assert.Equal(t, "b-2", req.Items[1].AdID)
	assert.Equal(t, "", req.Items[2].AdID)

	var item BatchItem
	assert.Error(t, json.Unmarshal([]byte(`{"ad_id":{"x":1}}`), &item))
}

func TestGetBatchResultsNumericAdID(t *testing.T) {
	h := newHarness(t, Options{})
	h.put(t, testBucket, "batch-outputs/job-1/a.json.out", `{"folder":"A","ad_id":42,"analysis":null}`)

	got, err := h.svc.GetBatchResults(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "42", got.Results[0].AdID)
}

func TestRawString(t *testing.T) {
	assert.Equal(t, "", rawString(nil))
	assert.Equal(t, "", rawString(json.RawMessage("null")))
	assert.Equal(t, "A", rawString(json.RawMessage(`"A"`)))
	assert.Equal(t, "7", rawString(json.RawMessage(`7`)))
}
