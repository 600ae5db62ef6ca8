package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"vidisnap/internal/config"
)

// DefaultLabels is the label set written for generated test configs.
var DefaultLabels = []string{"tabby cat", "golden retriever", "sports car", "seashore", "volcano"}

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Staging and log directories exist and a labels file is written.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Model.ServerURL = "http://127.0.0.1:1"
	cfgVal.Model.LabelsPath = filepath.Join(base, "labels.json")
	cfgVal.Logging.Format = "json"
	cfgVal.Staging.MinFreeMiB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	WriteLabels(t, cfgVal.Model.LabelsPath, DefaultLabels)

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithLabels replaces the generated label set.
func WithLabels(labels ...string) ConfigOption {
	return func(b *configBuilder) {
		WriteLabels(b.t, b.cfg.Model.LabelsPath, labels)
	}
}

// WithModelServer points the config at a test inference server.
func WithModelServer(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Model.ServerURL = url
	}
}

// WithUploadLimit overrides the maximum accepted upload size.
func WithUploadLimit(limit int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.MaxBytes = limit
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		for _, name := range names {
			StubBinary(b.t, b.binDir(), name, "exit 0\n")
		}
		PrependPath(b.t, b.binDir())
	}
}

// WithStubScript installs name on PATH running the given shell body.
func WithStubScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		StubBinary(b.t, b.binDir(), name, body)
		PrependPath(b.t, b.binDir())
	}
}

func (b *configBuilder) binDir() string {
	dir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	return dir
}

// StubBinary writes an executable shell script named name into dir.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()
	target := filepath.Join(dir, name)
	script := []byte("#!/bin/sh\n" + body)
	if err := os.WriteFile(target, script, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// PrependPath puts dir at the front of PATH for the duration of the test.
func PrependPath(t testing.TB, dir string) {
	t.Helper()
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// WriteLabels writes labels as a Hugging Face style config.json id2label map.
func WriteLabels(t testing.TB, path string, labels []string) {
	t.Helper()
	id2label := make(map[string]string, len(labels))
	for i, label := range labels {
		id2label[strconv.Itoa(i)] = label
	}
	data, err := json.Marshal(map[string]any{"id2label": id2label})
	if err != nil {
		t.Fatalf("marshal labels: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir labels dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write labels: %v", err)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}

// WriteConfigFile marshals cfg to config.toml under the test base directory
// and returns its path.
func WriteConfigFile(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
