package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkBatchPrefix = "BATCH#"
	skMeta        = "META"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements JobStore using AWS DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// Compile-time interface check.
var _ JobStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// --- Internal helpers ---

func batchPK(jobName string) string {
	return pkBatchPrefix + jobName
}

func keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// expiresAt returns the Unix epoch timestamp for record expiration (now + BatchJobTTL).
func expiresAt() int64 {
	return time.Now().Add(BatchJobTTL).Unix()
}

// putItem marshals a domain object and writes it to DynamoDB with PK, SK, and TTL.
// The domain object should use dynamodbav:"-" for fields derived from PK/SK.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data any) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	// Key and TTL attributes overwrite any conflicting keys from the data.
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item from DynamoDB and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out any) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(pk, sk),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// --- Batch job operations ---

func (s *DynamoStore) PutBatchJob(ctx context.Context, job *BatchJob) error {
	if job.CreatedAt == 0 {
		job.CreatedAt = time.Now().Unix()
	}
	if err := s.putItem(ctx, batchPK(job.Name), skMeta, job); err != nil {
		return fmt.Errorf("put batch job %s: %w", job.Name, err)
	}

	log.Debug().
		Str("jobName", job.Name).
		Str("jobArn", job.ARN).
		Str("status", job.Status).
		Int("items", job.ItemCount).
		Msg("Batch job persisted")
	return nil
}

func (s *DynamoStore) GetBatchJob(ctx context.Context, jobName string) (*BatchJob, error) {
	var job BatchJob
	found, err := s.getItem(ctx, batchPK(jobName), skMeta, &job)
	if err != nil {
		return nil, fmt.Errorf("get batch job %s: %w", jobName, err)
	}
	if !found {
		log.Debug().Str("jobName", jobName).Bool("found", false).Msg("GetBatchJob: job not found")
		return nil, nil
	}

	job.Name = jobName
	return &job, nil
}

func (s *DynamoStore) UpdateBatchJobStatus(ctx context.Context, jobName, status, failureReason string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              keyOf(batchPK(jobName), skMeta),
		UpdateExpression: aws.String("SET #s = :s, failureReason = :f, updatedAt = :u"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status", // "status" is a DynamoDB reserved word
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: status},
			":f": &types.AttributeValueMemberS{Value: failureReason},
			":u": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("update batch job status %s -> %s: %w", jobName, status, err)
	}

	log.Debug().Str("jobName", jobName).Str("status", status).Msg("Batch job status updated")
	return nil
}

func (s *DynamoStore) RecordBatchResults(ctx context.Context, jobName string, results, skipped int) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              keyOf(batchPK(jobName), skMeta),
		UpdateExpression: aws.String("SET resultCount = :r, skippedCount = :k, updatedAt = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r": &types.AttributeValueMemberN{Value: strconv.Itoa(results)},
			":k": &types.AttributeValueMemberN{Value: strconv.Itoa(skipped)},
			":u": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("record batch results %s: %w", jobName, err)
	}

	log.Debug().Str("jobName", jobName).Int("results", results).Int("skipped", skipped).Msg("Batch results recorded")
	return nil
}
