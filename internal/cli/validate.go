package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxRequestFileBytes bounds request files read from disk.
const maxRequestFileBytes = 20 << 20

// ValidateAndResolveFile checks that the path exists and is a regular file,
// then returns the absolute path.
func ValidateAndResolveFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory: %s", path)
	}
	if info.Size() > maxRequestFileBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", path, maxRequestFileBytes)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// ReadJSONFile validates path and decodes its JSON content into v.
func ReadJSONFile(path string, v any) error {
	resolved, err := ValidateAndResolveFile(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("read %s: %w", resolved, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", resolved, err)
	}
	return nil
}
