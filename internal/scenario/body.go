package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// LoadBody resolves the request body template from an inline string or a
// file. At most one may be set.
func LoadBody(inline, path string) (string, error) {
	path = strings.TrimSpace(path)
	if inline != "" && path != "" {
		return "", errors.New("body and body file cannot both be provided")
	}
	if path == "" {
		return inline, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("body file %q is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("body file: %w", err)
	}
	return string(data), nil
}
