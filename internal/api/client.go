package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultClientTimeout = 15 * time.Second
	maxErrorBody         = 4096
)

// StatusError is returned when the daemon answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Detail)
}

// Client talks to a running VidiSnap daemon over HTTP.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for bind, which may be host:port or a full URL.
// A wildcard listen address is dialled on loopback. Timeout bounds the
// status calls only.
func NewClient(bind string, timeout time.Duration) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address is empty")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	if host, port, splitErr := net.SplitHostPort(base.Host); splitErr == nil {
		switch host {
		case "", "0.0.0.0", "::":
			base.Host = "127.0.0.1:" + port
		}
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the resolved daemon address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var payload HealthResponse
	err := c.getJSON(ctx, "/health", nil, &payload)
	return payload, err
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var payload StatusResponse
	err := c.getJSON(ctx, "/status", nil, &payload)
	return payload, err
}

// Requests fetches the most recent request history entries.
func (c *Client) Requests(ctx context.Context, limit int) (RequestsResponse, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var payload RequestsResponse
	err := c.getJSON(ctx, "/requests", values, &payload)
	return payload, err
}

// Process uploads body under filename to POST /process. The multipart body
// is streamed, so large videos are never buffered in memory. Uploads are not
// bound by the client timeout; use ctx for cancellation.
func (c *Client) Process(ctx context.Context, filename string, body io.Reader) (ProcessResponse, error) {
	pr, pw := io.Pipe()
	defer pr.Close()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	endpoint := c.base.ResolveReference(&url.URL{Path: "/process"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), pr)
	if err != nil {
		return ProcessResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	uploader := *c.http
	uploader.Timeout = 0
	resp, err := uploader.Do(req)
	if err != nil {
		return ProcessResponse{}, err
	}
	defer resp.Body.Close()

	var payload ProcessResponse
	if err := decodeResponse(resp, &payload); err != nil {
		return ProcessResponse{}, err
	}
	return payload, nil
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, target any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, target)
}

func decodeResponse(resp *http.Response, target any) error {
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var body ErrorResponse
		if json.Unmarshal(data, &body) == nil && body.Detail != "" {
			statusErr.Detail = body.Detail
		} else {
			statusErr.Detail = strings.TrimSpace(string(data))
		}
		return statusErr
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", resp.Request.URL.Path, err)
	}
	return nil
}
