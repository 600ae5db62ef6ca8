package kserve_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"vidisnap/internal/inference"
	"vidisnap/internal/inference/kserve"
	"vidisnap/internal/testsupport"
)

func TestClientReadyAndMetadata(t *testing.T) {
	srv := testsupport.NewModelServer(t, "vit", 5, 8)
	client := kserve.NewClient(kserve.Config{BaseURL: srv.URL + "/", Model: "vit"})

	if err := client.Live(context.Background()); err != nil {
		t.Fatalf("Live: %v", err)
	}
	if err := client.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	meta, err := client.Metadata(context.Background())
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta.Name != "vit" || len(meta.Inputs) != 1 || len(meta.Outputs) != 1 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if got := meta.Inputs[0].Shape; len(got) != 4 || got[1] != 3 || got[2] != 8 {
		t.Fatalf("unexpected input shape: %v", got)
	}

	srv.SetReady(false)
	err = client.Ready(context.Background())
	if err == nil {
		t.Fatal("expected not-ready error")
	}
	if kserve.StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 status, got %d (%v)", kserve.StatusCode(err), err)
	}
}

func TestClientInfer(t *testing.T) {
	srv := testsupport.NewModelServer(t, "vit", 4, 2)
	client := kserve.NewClient(kserve.Config{BaseURL: srv.URL, Model: "vit"})

	input := inference.Tensor{Name: "pixel_values", Shape: []int64{1, 3, 2, 2}, Data: make([]float32, 12)}
	logits, err := client.Infer(context.Background(), input, "logits")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(logits) != 4 || logits[3] != 3 {
		t.Fatalf("unexpected logits: %v", logits)
	}
	if srv.InferCalls() != 1 {
		t.Fatalf("expected 1 infer call, got %d", srv.InferCalls())
	}
}

func TestClientInferSurfacesServerError(t *testing.T) {
	srv := testsupport.NewModelServer(t, "vit", 4, 2)
	client := kserve.NewClient(kserve.Config{BaseURL: srv.URL, Model: "vit"})

	input := inference.Tensor{Name: "pixel_values", Shape: []int64{1, 3, 1, 1}, Data: make([]float32, 3)}
	_, err := client.Infer(context.Background(), input, "logits")
	if err == nil {
		t.Fatal("expected error")
	}
	if kserve.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", kserve.StatusCode(err))
	}
	if !strings.Contains(err.Error(), "unexpected input size") {
		t.Fatalf("expected server message in error, got %v", err)
	}
}

func TestClientUnknownModel(t *testing.T) {
	srv := testsupport.NewModelServer(t, "vit", 4, 2)
	client := kserve.NewClient(kserve.Config{BaseURL: srv.URL, Model: "resnet"})

	if _, err := client.Metadata(context.Background()); kserve.StatusCode(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
