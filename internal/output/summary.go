package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteSummary exports s to path as JSON or YAML, chosen by extension.
func WriteSummary(path string, s Summary) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(s, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		return fmt.Errorf("summary export: unsupported extension %q (use .json, .yaml or .yml)", ext)
	}
	if err != nil {
		return fmt.Errorf("summary export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("summary export: %w", err)
	}
	return nil
}
