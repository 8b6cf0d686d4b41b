package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		in      string
		want    Locator
		wantErr bool
	}{
		{"s3://airuleasset/guidelines/facebook.txt", Locator{"airuleasset", "guidelines/facebook.txt"}, false},
		{"storage://assets/ads/1.jpg", Locator{"assets", "ads/1.jpg"}, false},
		{"s3://bucket-only", Locator{"bucket-only", ""}, false},
		{"s3:///key", Locator{}, true},
		{"https://example.com/a.jpg", Locator{}, true},
		{"aGVsbG8=", Locator{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocator(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLocator)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocatorStringAndJoin(t *testing.T) {
	loc := Locator{Bucket: "ads", Key: "batch-outputs/job-1/"}
	assert.Equal(t, "s3://ads/batch-outputs/job-1/", loc.String())
	assert.Equal(t, "s3://ads/batch-outputs/job-1/out.json", loc.Join("out.json").String())
	assert.Equal(t, Locator{"ads", "x.txt"}, Locator{Bucket: "ads"}.Join("/x.txt"))

	parsed, err := ParseLocator("storage://ads/a/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "s3://ads/a/b.jpg", parsed.String())
	assert.True(t, IsLocator("storage://x/y"))
	assert.False(t, IsLocator("data:image/jpeg;base64,AAAA"))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, UploadString(ctx, store, Locator{"ads", "guidelines/facebook.txt"}, "no tobacco", "text/plain"))
	require.NoError(t, store.Put(ctx, Locator{"ads", "batch-outputs/j/b.json"}, []byte(`{"b":1}`), ""))
	require.NoError(t, store.Put(ctx, Locator{"ads", "batch-outputs/j/a.json"}, []byte(`{"a":1}`), ""))
	require.NoError(t, store.Put(ctx, Locator{"ads", "batch-outputs/other/c.json"}, []byte(`{}`), ""))

	text, err := GetText(ctx, store, Locator{"ads", "guidelines/facebook.txt"})
	require.NoError(t, err)
	assert.Equal(t, "no tobacco", text)

	objs, unreadable, err := ListAndRead(ctx, store, Locator{"ads", "batch-outputs/j/"})
	require.NoError(t, err)
	assert.Empty(t, unreadable)
	require.Len(t, objs, 2)
	assert.Equal(t, "batch-outputs/j/a.json", objs[0].Locator.Key)
	assert.Equal(t, `{"b":1}`, string(objs[1].Body))

	empty, err := store.List(ctx, Locator{"missing-bucket", "x/"})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = store.Get(ctx, Locator{"ads", "nope.txt"})
	assert.Error(t, err)

	_, err = store.Get(ctx, Locator{"ads", "../../etc/passwd"})
	assert.ErrorIs(t, err, ErrInvalidLocator)
}

func TestGetBase64(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	raw := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}
	require.NoError(t, store.Put(ctx, Locator{"ads", "img.jpg"}, raw, "image/jpeg"))

	got, err := GetBase64(ctx, store, Locator{"ads", "img.jpg"})
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), got)
}

func TestUploadFileReturnsLocator(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	loc, err := UploadFile(ctx, store, "ads", "uploads/copy.txt", strings.NewReader("Buy now"))
	require.NoError(t, err)
	assert.Equal(t, "s3://ads/uploads/copy.txt", loc.String())

	got, err := GetText(ctx, store, loc)
	require.NoError(t, err)
	assert.Equal(t, "Buy now", got)
}

func buildZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	w.RegisterCompressor(zipMethodZstd, func(out io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(out)
	})

	add := func(name, body string) {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	add("ad-1/copy.txt", "Summer sale")
	add("__MACOSX/ad-1/._copy.txt", "junk")
	add("ad-1/._hidden.txt", "junk")
	_, err := w.Create("ad-1/")
	require.NoError(t, err)

	zf, err := w.CreateHeader(&zip.FileHeader{Name: "ad-1/zstd.txt", Method: zipMethodZstd})
	require.NoError(t, err)
	_, err = zf.Write([]byte("compressed with zstd"))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractZip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	data := buildZip(t)

	files, err := ExtractZip(ctx, store, "ads", "uploads", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"ad-1/copy.txt", "ad-1/zstd.txt"}, names)

	assert.Equal(t, "s3://ads/uploads/ad-1/copy.txt", files["ad-1/copy.txt"].Locator.String())
	assert.Equal(t, "compressed with zstd", string(files["ad-1/zstd.txt"].Content))

	stored, err := GetText(ctx, store, files["ad-1/zstd.txt"].Locator)
	require.NoError(t, err)
	assert.Equal(t, "compressed with zstd", stored)
}

func TestExtractZipRejectsGarbage(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	data := []byte("not a zip")
	_, err := ExtractZip(context.Background(), store, "ads", "", bytes.NewReader(data), int64(len(data)))
	assert.ErrorContains(t, err, "error extracting zip contents")
}

func TestExtractZipRejectsOversizedEntry(t *testing.T) {
	prev := maxZipEntryBytes
	maxZipEntryBytes = 16
	defer func() { maxZipEntryBytes = prev }()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("ad-1/big.txt")
	require.NoError(t, err)
	_, err = f.Write(bytes.Repeat([]byte("a"), 1024))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	store := NewLocalStore(t.TempDir())
	data := buf.Bytes()
	_, err = ExtractZip(context.Background(), store, "ads", "uploads", bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrZipEntryTooLarge)

	listed, err := store.List(context.Background(), Locator{"ads", "uploads/"})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

// fakeS3 is an in-memory S3API that pages listings two keys at a time.
type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	getErr  error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+2, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func TestS3StoreListPaginates(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{
		"batch-outputs/j/":       nil,
		"batch-outputs/j/1.json": []byte("1"),
		"batch-outputs/j/2.json": []byte("2"),
		"batch-outputs/j/3.json": []byte("3"),
		"batch-outputs/k/4.json": []byte("4"),
	}}
	store := NewS3Store(fake)

	locs, err := store.List(context.Background(), Locator{"ads", "batch-outputs/j/"})
	require.NoError(t, err)
	require.Len(t, locs, 3)
	assert.Equal(t, "batch-outputs/j/1.json", locs[0].Key)
	assert.Equal(t, "batch-outputs/j/3.json", locs[2].Key)
	assert.Equal(t, "ads", locs[2].Bucket)
}

func TestS3StorePutTagsAndGet(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewS3Store(fake)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Locator{"ads", "batch-inputs/j.jsonl"}, []byte("{}\n{}"), "application/jsonl"))
	require.Len(t, fake.puts, 1)
	assert.Equal(t, projectTag, aws.ToString(fake.puts[0].Tagging))
	assert.Equal(t, "application/jsonl", aws.ToString(fake.puts[0].ContentType))

	got, err := store.Get(ctx, Locator{"ads", "batch-inputs/j.jsonl"})
	require.NoError(t, err)
	assert.Equal(t, "{}\n{}", string(got))

	fake.getErr = errors.New("access denied")
	_, err = store.Get(ctx, Locator{"ads", "batch-inputs/j.jsonl"})
	assert.ErrorContains(t, err, "S3 GetObject s3://ads/batch-inputs/j.jsonl")
}

// flakyGetStore fails reads of one key.
type flakyGetStore struct {
	ObjectStore
	failKey string
}

func (f flakyGetStore) Get(ctx context.Context, loc Locator) ([]byte, error) {
	if loc.Key == f.failKey {
		return nil, errors.New("access denied")
	}
	return f.ObjectStore.Get(ctx, loc)
}

func TestListAndReadReportsUnreadable(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStore(t.TempDir())
	require.NoError(t, local.Put(ctx, Locator{"ads", "out/a.json"}, []byte(`{}`), ""))
	require.NoError(t, local.Put(ctx, Locator{"ads", "out/b.json"}, []byte(`{}`), ""))
	store := flakyGetStore{ObjectStore: local, failKey: "out/a.json"}

	objs, unreadable, err := ListAndRead(ctx, store, Locator{"ads", "out/"})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "out/b.json", objs[0].Locator.Key)
	assert.Equal(t, []Locator{{"ads", "out/a.json"}}, unreadable)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = ListAndRead(cancelled, store, Locator{"ads", "out/"})
	assert.ErrorIs(t, err, context.Canceled)
}
