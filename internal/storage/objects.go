package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Object is a stored object together with its body.
type Object struct {
	Locator Locator
	Body    []byte
}

// GetText reads an object as UTF-8 text.
func GetText(ctx context.Context, store ObjectStore, loc Locator) (string, error) {
	data, err := store.Get(ctx, loc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetBase64 reads an object and returns its body base64-encoded.
func GetBase64(ctx context.Context, store ObjectStore, loc Locator) (string, error) {
	data, err := store.Get(ctx, loc)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// UploadString stores content at loc with the given content type.
func UploadString(ctx context.Context, store ObjectStore, loc Locator, content, contentType string) error {
	return store.Put(ctx, loc, []byte(content), contentType)
}

// UploadFile reads r fully, sniffs its content type, stores it under
// bucket/key and returns the resulting locator.
func UploadFile(ctx context.Context, store ObjectStore, bucket, key string, r io.Reader) (Locator, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Locator{}, fmt.Errorf("read upload %s: %w", key, err)
	}

	loc := Locator{Bucket: bucket, Key: key}
	contentType := mimetype.Detect(data).String()
	if err := store.Put(ctx, loc, data, contentType); err != nil {
		return Locator{}, fmt.Errorf("error uploading file: %w", err)
	}

	log.Info().
		Str("locator", loc.String()).
		Str("contentType", contentType).
		Int("bytes", len(data)).
		Msg("File uploaded")
	return loc, nil
}

// ListAndRead lists every object under prefix and reads each one. Objects
// that fail to read are returned in unreadable, in listing order. A failed
// listing or a cancelled context is returned as an error.
func ListAndRead(ctx context.Context, store ObjectStore, prefix Locator) (objects []Object, unreadable []Locator, err error) {
	locs, err := store.List(ctx, prefix)
	if err != nil {
		return nil, nil, err
	}
	objects = make([]Object, 0, len(locs))
	for _, loc := range locs {
		body, err := store.Get(ctx, loc)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			log.Warn().Err(err).Str("locator", loc.String()).Msg("Failed to read listed object")
			unreadable = append(unreadable, loc)
			continue
		}
		objects = append(objects, Object{Locator: loc, Body: body})
	}
	return objects, unreadable, nil
}
