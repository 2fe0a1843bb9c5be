// Package client is a small REST client for the heart insights API.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"heart-insights/internal/common"
	"heart-insights/internal/ml"
	"heart-insights/internal/patient"

	"github.com/go-resty/resty/v2"
)

// Client talks to one server and keeps the session id it was handed.
type Client struct {
	rest *resty.Client

	mu        sync.Mutex
	sessionID string
}

// New creates a client for base, e.g. http://localhost:8080.
func New(base string, timeout time.Duration) *Client {
	r := resty.New().SetBaseURL(strings.TrimRight(base, "/"))
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	return &Client{rest: r}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int      `json:"-"`
	Key     string   `json:"error"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("heart api: %d %s: %s", e.Status, e.Key, e.Message)
	}
	return fmt.Sprintf("heart api: status %d", e.Status)
}

// Warning is a soft range message attached to a prediction.
type Warning struct {
	Column  string `json:"column"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

type PredictResponse struct {
	Result     ml.PredictionResult `json:"result"`
	Verdict    string              `json:"verdict"`
	Confidence float64             `json:"confidence"`
	Warnings   []Warning           `json:"warnings"`
	ModelInfo  string              `json:"model_info"`
}

type RecommendationReport struct {
	Title  string `json:"title"`
	Report struct {
		Intro           string   `json:"intro"`
		Recommendations []string `json:"recommendations"`
		Empty           string   `json:"empty,omitempty"`
		Outro           string   `json:"outro"`
	} `json:"report"`
}

type ModelSummary struct {
	Name         string  `json:"name"`
	TestAccuracy float64 `json:"test_accuracy"`
	CVAccuracy   float64 `json:"cv_accuracy"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1"`
	TrainSeconds float64 `json:"train_seconds"`
}

type ModelsResponse struct {
	Active    string         `json:"active"`
	ModelInfo string         `json:"model_info"`
	Models    []ModelSummary `json:"models"`
}

// BatchResult is the scored CSV returned by the server.
type BatchResult struct {
	Rows int
	CSV  []byte
}

// SessionID returns the id the server assigned, if any.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID pins the session used by later requests.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *Client) request(ctx context.Context, locale string) *resty.Request {
	req := c.rest.R().SetContext(ctx).SetError(&APIError{})
	if id := c.SessionID(); id != "" {
		req.SetHeader(common.SessionHeader, id)
	}
	if locale != "" {
		req.SetQueryParam("locale", locale)
	}
	return req
}

func (c *Client) finish(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if id := resp.Header().Get(common.SessionHeader); id != "" {
		c.SetSessionID(id)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	apiErr.Status = resp.StatusCode()
	if apiErr.Message == "" {
		apiErr.Message = resp.String()
	}
	return apiErr
}

// Health reports the active model name.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
		Model  string `json:"model"`
	}
	resp, err := c.rest.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode(), Message: resp.String()}
	}
	return out.Model, nil
}

// Predict scores one record. The server stores it as the session's latest
// prediction.
func (c *Client) Predict(ctx context.Context, rec patient.Record, locale string) (*PredictResponse, error) {
	out := &PredictResponse{}
	resp, err := c.request(ctx, locale).SetBody(rec).SetResult(out).Post("/api/predict")
	if err := c.finish(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Recommendations returns advice for the session's latest prediction.
func (c *Client) Recommendations(ctx context.Context, locale string) (*RecommendationReport, error) {
	out := &RecommendationReport{}
	resp, err := c.request(ctx, locale).SetResult(out).Get("/api/recommendations")
	if err := c.finish(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Models lists the trained models and their scores.
func (c *Client) Models(ctx context.Context) (*ModelsResponse, error) {
	out := &ModelsResponse{}
	resp, err := c.request(ctx, "").SetResult(out).Get("/api/models")
	if err := c.finish(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Batch uploads a CSV and returns the scored file.
func (c *Client) Batch(ctx context.Context, csv io.Reader, locale string) (*BatchResult, error) {
	resp, err := c.request(ctx, locale).
		SetHeader("Content-Type", "text/csv").
		SetBody(csv).
		Post("/api/batch")
	if err := c.finish(resp, err); err != nil {
		return nil, err
	}
	rows, _ := strconv.Atoi(resp.Header().Get("X-Batch-Rows"))
	return &BatchResult{Rows: rows, CSV: resp.Body()}, nil
}
