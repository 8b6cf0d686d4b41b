package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Locator schemes. Locators are always rendered with SchemeS3 because that is
// what Bedrock batch jobs accept; SchemeStorage is accepted on input.
const (
	SchemeS3      = "s3://"
	SchemeStorage = "storage://"
)

// ErrInvalidLocator is returned for strings that are not bucket/key locators.
var ErrInvalidLocator = errors.New("invalid storage locator")

// Locator identifies one object (or, with a trailing slash, a prefix) in a bucket.
type Locator struct {
	Bucket string
	Key    string
}

// IsLocator reports whether s uses a storage locator scheme.
func IsLocator(s string) bool {
	return strings.HasPrefix(s, SchemeS3) || strings.HasPrefix(s, SchemeStorage)
}

// ParseLocator parses s3://bucket/key or storage://bucket/key.
func ParseLocator(s string) (Locator, error) {
	var rest string
	switch {
	case strings.HasPrefix(s, SchemeS3):
		rest = strings.TrimPrefix(s, SchemeS3)
	case strings.HasPrefix(s, SchemeStorage):
		rest = strings.TrimPrefix(s, SchemeStorage)
	default:
		return Locator{}, fmt.Errorf("%w: %q has no s3:// or storage:// scheme", ErrInvalidLocator, s)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Locator{}, fmt.Errorf("%w: %q has no bucket", ErrInvalidLocator, s)
	}
	return Locator{Bucket: bucket, Key: key}, nil
}

// String renders the locator as s3://bucket/key.
func (l Locator) String() string {
	return SchemeS3 + l.Bucket + "/" + l.Key
}

// Join returns a locator for key under the same bucket.
func (l Locator) Join(key string) Locator {
	prefix := strings.TrimSuffix(l.Key, "/")
	if prefix == "" {
		return Locator{Bucket: l.Bucket, Key: strings.TrimLeft(key, "/")}
	}
	return Locator{Bucket: l.Bucket, Key: prefix + "/" + strings.TrimLeft(key, "/")}
}
