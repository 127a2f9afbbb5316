package scenario_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/torosent/stampede/internal/scenario"
)

func TestLoadBody(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "payment.json")
	if err := os.WriteFile(file, []byte(`{"amount":{{amount}}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		inline  string
		path    string
		want    string
		wantErr bool
	}{
		{name: "empty"},
		{name: "inline", inline: `{"a":1}`, want: `{"a":1}`},
		{name: "file", path: file, want: `{"amount":{{amount}}}`},
		{name: "both", inline: "x", path: file, wantErr: true},
		{name: "missing file", path: filepath.Join(dir, "nope.json"), wantErr: true},
		{name: "directory", path: dir, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scenario.LoadBody(tt.inline, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadBody() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("LoadBody() = %q, want %q", got, tt.want)
			}
		})
	}
}
