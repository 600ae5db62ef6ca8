package inference

import "context"

// TensorSpec describes one model input or output.
type TensorSpec struct {
	Name     string  `json:"name"`
	Datatype string  `json:"datatype"`
	Shape    []int64 `json:"shape"`
}

// ModelMetadata is what a backend reports about the served model.
type ModelMetadata struct {
	Name     string       `json:"name"`
	Versions []string     `json:"versions,omitempty"`
	Platform string       `json:"platform,omitempty"`
	Inputs   []TensorSpec `json:"inputs"`
	Outputs  []TensorSpec `json:"outputs"`
}

// Tensor is a dense FP32 tensor in row-major order.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// Backend executes the classifier. Implementations must be safe for
// concurrent use.
type Backend interface {
	Ready(ctx context.Context) error
	Metadata(ctx context.Context) (ModelMetadata, error)
	Infer(ctx context.Context, input Tensor, output string) ([]float32, error)
}
