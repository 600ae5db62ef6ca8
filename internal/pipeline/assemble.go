package pipeline

import (
	"encoding/base64"
	"os"

	"vidisnap/internal/failure"
	"vidisnap/internal/inference"
	"vidisnap/internal/staging"
)

// Response is returned to the caller for a successful request.
type Response struct {
	Labels       inference.Result `json:"labels"`
	ThumbnailB64 string           `json:"thumbnail_b64"`
}

// Assemble packages labels with the frame encoded as standard base64.
func Assemble(labels inference.Result, frame staging.Artifact) (Response, error) {
	data, err := os.ReadFile(frame.Path)
	if err != nil {
		return Response{}, failure.Wrap(failure.KindEncoding, StageAssemble, "read frame", "", err)
	}
	return Response{
		Labels:       labels,
		ThumbnailB64: base64.StdEncoding.EncodeToString(data),
	}, nil
}
