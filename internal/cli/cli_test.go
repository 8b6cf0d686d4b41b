package cli

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDurationShort(t *testing.T) {
	assert.Equal(t, "0:05", FormatDurationShort(5*time.Second))
	assert.Equal(t, "2:03", FormatDurationShort(123*time.Second))
	assert.Equal(t, "1:01:01", FormatDurationShort(time.Hour+time.Minute+time.Second))
}

func TestFormatElapsed(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	now := start.Add(10 * time.Minute)

	assert.Equal(t, "-", FormatElapsed(nil, nil, now))
	assert.Equal(t, "1:30", FormatElapsed(&start, &end, now))
	assert.Equal(t, "10:00", FormatElapsed(&start, nil, now))

	before := start.Add(-time.Minute)
	assert.Equal(t, "0:00", FormatElapsed(&start, nil, before))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestPromptForText(t *testing.T) {
	var out bytes.Buffer
	in := bufio.NewReader(strings.NewReader("Summer sale\n\n"))
	got := PromptForText(in, &out, "Ad content", "")
	assert.Equal(t, "Summer sale", got)
	assert.Equal(t, "Ad content: ", out.String())

	out.Reset()
	got = PromptForText(in, &out, "Platform", "facebook")
	assert.Equal(t, "facebook", got)
	assert.Equal(t, "Platform [facebook]: ", out.String())

	got = PromptForText(in, &out, "Platform", "facebook")
	assert.Equal(t, "facebook", got)

	got = PromptForText(bufio.NewReader(strings.NewReader("no newline")), &out, "Label", "")
	assert.Equal(t, "no newline", got)
}

func TestReadJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"spring"}`), 0o644))

	var v struct {
		Name string `json:"name"`
	}
	require.NoError(t, ReadJSONFile(path, &v))
	assert.Equal(t, "spring", v.Name)

	assert.ErrorContains(t, ReadJSONFile(filepath.Join(dir, "missing.json"), &v), "file not found")
	assert.ErrorContains(t, ReadJSONFile(dir, &v), "directory")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	assert.ErrorContains(t, ReadJSONFile(bad, &v), "decode")
}
