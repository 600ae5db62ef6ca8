package inference

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadLabelsFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"id2label", "config.json", `{"model_type":"vit","id2label":{"2":"c","0":"a","1":"b"}}`},
		{"array", "labels.json", `["a","b","c"]`},
		{"lines", "labels.txt", "# imagenet\na\n\nb\nc\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			labels, err := LoadLabels(writeTemp(t, tc.file, tc.content))
			if err != nil {
				t.Fatalf("LoadLabels: %v", err)
			}
			if len(labels) != 3 || labels[0] != "a" || labels[2] != "c" {
				t.Fatalf("unexpected labels %v", labels)
			}
		})
	}
}

func TestLoadLabelsErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"sparse ids", "config.json", `{"id2label":{"0":"a","1":"b","5":"c"}}`},
		{"no id2label", "config.json", `{"model_type":"vit"}`},
		{"too few", "labels.json", `["a","b"]`},
		{"empty name", "labels.json", `["a","","c"]`},
		{"bad key", "config.json", `{"id2label":{"x":"a","1":"b","2":"c"}}`},
		{"json garbage", "labels.json", `a,b,c`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadLabels(writeTemp(t, tc.file, tc.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := LoadLabels(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
