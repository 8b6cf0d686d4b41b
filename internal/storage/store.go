// Package storage provides the object-storage collaborator used for ad asset
// retrieval and upload, guideline text, and batch job staging.
//
// ObjectStore is the injectable contract. S3Store backs it with Amazon S3;
// LocalStore backs it with a directory tree for local runs and tests.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectStore reads, writes, and lists objects addressed by Locator.
type ObjectStore interface {
	// Get returns the full object body.
	Get(ctx context.Context, loc Locator) ([]byte, error)

	// Put creates or replaces an object.
	Put(ctx context.Context, loc Locator, body []byte, contentType string) error

	// List returns the locators of every object whose key starts with
	// prefix.Key, in key order. Directory placeholder keys are omitted.
	List(ctx context.Context, prefix Locator) ([]Locator, error)
}

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Store implements ObjectStore using Amazon S3.
type S3Store struct {
	client S3API
}

// Compile-time interface check.
var _ ObjectStore = (*S3Store)(nil)

// NewS3Store wraps an S3 client. The client should be initialized from the
// shared AWS config.
func NewS3Store(client S3API) *S3Store {
	return &S3Store{client: client}
}

func (s *S3Store) Get(ctx context.Context, loc Locator) ([]byte, error) {
	log.Debug().Str("bucket", loc.Bucket).Str("key", loc.Key).Msg("Downloading from S3")
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s: %w", loc, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	return data, nil
}

func (s *S3Store) Put(ctx context.Context, loc Locator, body []byte, contentType string) error {
	log.Debug().
		Str("bucket", loc.Bucket).
		Str("key", loc.Key).
		Int("bytes", len(body)).
		Str("contentType", contentType).
		Msg("Uploading to S3")

	input := &s3.PutObjectInput{
		Bucket:  aws.String(loc.Bucket),
		Key:     aws.String(loc.Key),
		Body:    bytes.NewReader(body),
		Tagging: ProjectTagging(),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", loc, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix Locator) ([]Locator, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(prefix.Bucket),
		Prefix: aws.String(prefix.Key),
	})

	var out []Locator
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("S3 ListObjectsV2 %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, Locator{Bucket: prefix.Bucket, Key: key})
		}
	}

	log.Debug().Str("prefix", prefix.String()).Int("objects", len(out)).Msg("Listed S3 objects")
	return out, nil
}
