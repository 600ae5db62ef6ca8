package daemonrun

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidisnap/internal/inference"
	"vidisnap/internal/logging"
	"vidisnap/internal/pipeline"
	"vidisnap/internal/testsupport"
	"vidisnap/internal/upload"
)

func TestNewStackProcessesUpload(t *testing.T) {
	server := testsupport.NewModelServer(t, "vit", len(testsupport.DefaultLabels), 16)
	frame := filepath.Join(t.TempDir(), "frame.jpg")
	testsupport.WriteJPEG(t, frame, 20, 20)
	cfg := testsupport.NewConfig(t,
		testsupport.WithModelServer(server.URL),
		testsupport.WithStubScript("ffmpeg", fmt.Sprintf("for last; do :; done\ncp %q \"$last\"\n", frame)),
	)
	cfg.Model.Name = "vit"
	cfg.Model.ImageSize = 16
	cfg.Workers.Extraction = 3
	cfg.Workers.Inference = 1

	logger := logging.NewNop()
	store := testsupport.MustOpenHistory(t, cfg)
	stack, err := NewStack(cfg, logger, store)
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	if len(stack.Pools) != 2 || stack.Pools[0].Stats().Size != 3 || stack.Pools[1].Stats().Size != 1 {
		t.Fatalf("unexpected pools %+v", stack.Pools)
	}

	engine, err := inference.Load(context.Background(), LoadOptions(cfg, logger), stack.Backend)
	if err != nil {
		t.Fatalf("inference.Load: %v", err)
	}
	stack.Holder.Set(engine)

	resp, err := stack.Pipeline.Process(context.Background(), pipeline.Request{
		ID:    "stack-test",
		Video: upload.Video{Filename: "clip.webm", Body: bytes.NewReader([]byte("webm"))},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(resp.Labels) != inference.TopK || resp.Labels[0].Label != "volcano" {
		t.Fatalf("unexpected labels %+v", resp.Labels)
	}

	records, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 || records[0].RequestID != "stack-test" {
		t.Fatalf("expected one recorded request, got %+v", records)
	}
}

func TestNewStackWithoutHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stack, err := NewStack(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	_, err = stack.Pipeline.Process(context.Background(), pipeline.Request{
		ID:    "no-history",
		Video: upload.Video{Filename: "notes.txt", Body: strings.NewReader("x")},
	})
	if err == nil {
		t.Fatal("expected invalid format error")
	}
	if _, err := NewStack(nil, nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidisnap.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(data)) != fmt.Sprint(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}
}
