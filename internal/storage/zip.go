package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const zipMethodZstd uint16 = 93

// ErrZipEntryTooLarge is returned when an entry decompresses past maxZipEntryBytes.
var ErrZipEntryTooLarge = errors.New("zip entry too large")

// maxZipEntryBytes caps the decompressed size of a single zip entry.
var maxZipEntryBytes int64 = 100 << 20

// ExtractedFile is one zip entry after it has been uploaded.
type ExtractedFile struct {
	Locator Locator
	Content []byte
}

// ExtractZip uploads every regular entry of a zip archive to bucket, under
// keyPrefix, and returns the entries keyed by their archive name. macOS
// resource-fork entries (__MACOSX/, ._*), directories, and entries whose
// path leaves keyPrefix are skipped.
func ExtractZip(ctx context.Context, store ObjectStore, bucket, keyPrefix string, r io.ReaderAt, size int64) (map[string]ExtractedFile, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("error extracting zip contents: %w", err)
	}
	zr.RegisterDecompressor(zipMethodZstd, zstd.ZipDecompressor())

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	log.Debug().Strs("entries", names).Msg("Zip file contents")

	files := make(map[string]ExtractedFile)
	for _, f := range zr.File {
		if skipZipEntry(f.Name) {
			continue
		}

		content, err := readZipEntry(f)
		if err != nil {
			return nil, fmt.Errorf("error extracting zip contents: %s: %w", f.Name, err)
		}

		loc := Locator{Bucket: bucket, Key: path.Join(keyPrefix, f.Name)}
		if err := store.Put(ctx, loc, content, mimetype.Detect(content).String()); err != nil {
			return nil, fmt.Errorf("error extracting zip contents: %w", err)
		}
		files[f.Name] = ExtractedFile{Locator: loc, Content: content}
	}

	log.Info().
		Int("entries", len(zr.File)).
		Int("uploaded", len(files)).
		Str("bucket", bucket).
		Msg("Zip contents extracted")
	return files, nil
}

func skipZipEntry(name string) bool {
	clean := path.Clean(name)
	return strings.HasPrefix(name, "__MACOSX") ||
		strings.HasPrefix(path.Base(name), "._") ||
		strings.HasSuffix(name, "/") ||
		clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean)
}

// readZipEntry decompresses f, refusing entries that declare or produce
// more than maxZipEntryBytes.
func readZipEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(maxZipEntryBytes) {
		return nil, fmt.Errorf("%w: declares %d bytes, limit %d", ErrZipEntryTooLarge, f.UncompressedSize64, maxZipEntryBytes)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxZipEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxZipEntryBytes {
		return nil, fmt.Errorf("%w: limit %d", ErrZipEntryTooLarge, maxZipEntryBytes)
	}
	return data, nil
}
