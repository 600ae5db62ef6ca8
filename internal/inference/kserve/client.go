// Package kserve talks to model servers that implement the KServe v2 REST
// inference protocol (OpenVINO Model Server, Triton, KServe, Seldon MLServer).
package kserve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vidisnap/internal/inference"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 4096
)

// Config captures the endpoint and model the client addresses.
type Config struct {
	BaseURL        string
	Model          string
	Version        string
	TimeoutSeconds int
}

// Client is a KServe v2 REST client bound to one model. It is safe for
// concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			Version:        strings.TrimSpace(cfg.Version),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var _ inference.Backend = (*Client)(nil)

type httpStatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

// StatusCode extracts the HTTP status from an error returned by the client.
func StatusCode(err error) int {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func (c *Client) modelPath(suffix string) string {
	path := "/v2/models/" + url.PathEscape(c.cfg.Model)
	if c.cfg.Version != "" {
		path += "/versions/" + url.PathEscape(c.cfg.Version)
	}
	return c.cfg.BaseURL + path + suffix
}

// Live checks the server-wide liveness endpoint.
func (c *Client) Live(ctx context.Context) error {
	return c.probe(ctx, "kserve live", c.cfg.BaseURL+"/v2/health/live")
}

// Ready reports whether the model is loaded and able to serve requests.
func (c *Client) Ready(ctx context.Context) error {
	return c.probe(ctx, "kserve ready", c.modelPath("/ready"))
}

func (c *Client) probe(ctx context.Context, op, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &httpStatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Metadata fetches the model's name, versions, and tensor specs.
func (c *Client) Metadata(ctx context.Context) (inference.ModelMetadata, error) {
	var meta inference.ModelMetadata
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelPath(""), nil)
	if err != nil {
		return meta, fmt.Errorf("kserve metadata: build request: %w", err)
	}
	if err := c.doJSON(req, "kserve metadata", &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

type inferTensor struct {
	Name     string    `json:"name"`
	Shape    []int64   `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type requestedOutput struct {
	Name string `json:"name"`
}

type inferRequest struct {
	ID      string            `json:"id,omitempty"`
	Inputs  []inferTensor     `json:"inputs"`
	Outputs []requestedOutput `json:"outputs,omitempty"`
}

type inferResponse struct {
	ModelName string        `json:"model_name"`
	ID        string        `json:"id"`
	Outputs   []inferTensor `json:"outputs"`
}

// Infer runs one forward pass and returns the named output's values.
func (c *Client) Infer(ctx context.Context, input inference.Tensor, output string) ([]float32, error) {
	payload := inferRequest{
		Inputs: []inferTensor{{
			Name:     input.Name,
			Shape:    input.Shape,
			Datatype: "FP32",
			Data:     input.Data,
		}},
	}
	if output != "" {
		payload.Outputs = []requestedOutput{{Name: output}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("kserve infer: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelPath("/infer"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("kserve infer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp inferResponse
	if err := c.doJSON(req, "kserve infer", &resp); err != nil {
		return nil, err
	}
	for _, out := range resp.Outputs {
		if output == "" || out.Name == output {
			return out.Data, nil
		}
	}
	return nil, fmt.Errorf("kserve infer: response has no output %q", output)
}

func (c *Client) doJSON(req *http.Request, op string, target any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			body = []byte(apiErr.Error)
		}
		return &httpStatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
