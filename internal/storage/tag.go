package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// projectTag is the URL-encoded S3 object tagging string for cost allocation.
const projectTag = "Project=ad-compliance-analyzer"

// ProjectTagging returns a pointer to the URL-encoded S3 object tagging string.
// Use as the Tagging field on PutObjectInput.
func ProjectTagging() *string {
	t := projectTag
	return &t
}

// TagObject applies the Project cost-allocation tag to an existing S3 object.
// Used for objects written by Bedrock batch jobs, which cannot be tagged at
// creation time.
func TagObject(ctx context.Context, client *s3.Client, loc Locator) error {
	_, err := client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		Tagging: &s3types.Tagging{
			TagSet: []s3types.Tag{
				{Key: aws.String("Project"), Value: aws.String("ad-compliance-analyzer")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutObjectTagging %s: %w", loc, err)
	}
	return nil
}

// GeneratePresignedURL creates a pre-signed GET URL for an S3 object.
func GeneratePresignedURL(ctx context.Context, presignClient *s3.PresignClient, loc Locator, expiry time.Duration) (string, error) {
	result, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
