package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	items   map[string]map[string]types.AttributeValue
	updates []*dynamodb.UpdateItemInput
	err     error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(key map[string]types.AttributeValue) string {
	pk := key["PK"].(*types.AttributeValueMemberS).Value
	sk := key["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, nil
}

func TestPutAndGetBatchJob(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDynamo()
	s := NewDynamoStore(ddb, "batch-jobs")

	job := &BatchJob{
		Name:      "adbatch-1",
		ARN:       "arn:aws:bedrock:us-east-1:123:model-invocation-job/abc",
		ModelID:   "anthropic.claude-3-haiku-20240307-v1:0",
		InputURI:  "s3://ads/batch-inputs/adbatch-1.jsonl",
		OutputURI: "s3://ads/batch-outputs/adbatch-1/",
		ItemCount: 3,
		Status:    StatusSubmitted,
	}
	require.NoError(t, s.PutBatchJob(ctx, job))
	assert.NotZero(t, job.CreatedAt)

	item := ddb.items["BATCH#adbatch-1|META"]
	require.NotNil(t, item)
	assert.Contains(t, item, "expiresAt")
	assert.NotContains(t, item, "Name")

	got, err := s.GetBatchJob(ctx, "adbatch-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *job, *got)
}

func TestGetBatchJobNotFound(t *testing.T) {
	s := NewDynamoStore(newFakeDynamo(), "batch-jobs")
	got, err := s.GetBatchJob(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateBatchJobStatus(t *testing.T) {
	ddb := newFakeDynamo()
	s := NewDynamoStore(ddb, "batch-jobs")

	require.NoError(t, s.UpdateBatchJobStatus(context.Background(), "adbatch-1", StatusFailed, "role not assumable"))
	require.Len(t, ddb.updates, 1)

	in := ddb.updates[0]
	assert.Equal(t, "BATCH#adbatch-1|META", itemKey(in.Key))
	assert.Equal(t, "status", in.ExpressionAttributeNames["#s"])
	assert.Equal(t, StatusFailed, in.ExpressionAttributeValues[":s"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "role not assumable", in.ExpressionAttributeValues[":f"].(*types.AttributeValueMemberS).Value)
}

func TestRecordBatchResults(t *testing.T) {
	ddb := newFakeDynamo()
	s := NewDynamoStore(ddb, "batch-jobs")

	require.NoError(t, s.RecordBatchResults(context.Background(), "adbatch-1", 4, 1))
	require.Len(t, ddb.updates, 1)
	vals := ddb.updates[0].ExpressionAttributeValues
	assert.Equal(t, "4", vals[":r"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "1", vals[":k"].(*types.AttributeValueMemberN).Value)
}

func TestStoreErrorsWrapped(t *testing.T) {
	ddb := newFakeDynamo()
	ddb.err = errors.New("throttled")
	s := NewDynamoStore(ddb, "batch-jobs")

	err := s.PutBatchJob(context.Background(), &BatchJob{Name: "adbatch-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put batch job adbatch-1")
	assert.ErrorIs(t, err, ddb.err)

	_, err = s.GetBatchJob(context.Background(), "adbatch-1")
	assert.ErrorIs(t, err, ddb.err)
}
