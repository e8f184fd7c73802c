package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/providers"
)

const providerName = "fal"

// Options configures the fal.ai queue client.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client talks to the fal.ai queue API: submit a request, poll its status
// until it completes, then fetch the result. The three round trips are
// condensed into one blocking call so callers see the same shape as the
// synchronous adapters. Results arrive as URLs; the orchestrator downloads
// them during normalization.
//
// Reference-conditioned generation is not offered by the configured model;
// requesting it returns ErrUnsupported rather than silently dropping the
// references.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *infra.Logger
}

type submitRequest struct {
	Prompt              string  `json:"prompt"`
	ImageSize           string  `json:"image_size"`
	NumInferenceSteps   int     `json:"num_inference_steps"`
	GuidanceScale       float64 `json:"guidance_scale"`
	NumImages           int     `json:"num_images"`
	EnableSafetyChecker bool    `json:"enable_safety_checker"`
}

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type resultResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Image size identifiers the queue API understands, keyed by aspect ratio.
var imageSizeByAspect = map[string]string{
	"1:1":  "square_hd",
	"16:9": "landscape_16_9",
	"9:16": "portrait_16_9",
	"3:2":  "landscape_3_2",
	"2:3":  "portrait_3_2",
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	model := strings.Trim(strings.TrimSpace(opts.Model), "/")
	if model == "" {
		model = "fal-ai/flux/dev"
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		model:        model,
		pollInterval: pollInterval,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// GenerateFromText submits a generation request and blocks until the queued
// job completes. The per-call deadline comes from the caller's context.
func (c *Client) GenerateFromText(ctx context.Context, prompt string, sizing providers.Sizing) ([]providers.Image, error) {
	if c.apiKey == "" {
		return nil, c.failure("api key not configured", nil)
	}

	imageSize, ok := imageSizeByAspect[sizing.AspectRatio()]
	if !ok {
		imageSize = "landscape_16_9"
	}
	submitted, err := c.submit(ctx, submitRequest{
		Prompt:              prompt,
		ImageSize:           imageSize,
		NumInferenceSteps:   28,
		GuidanceScale:       3.5,
		NumImages:           1,
		EnableSafetyChecker: true,
	})
	if err != nil {
		return nil, err
	}

	if err := c.awaitCompletion(ctx, submitted); err != nil {
		return nil, err
	}

	return c.fetchResult(ctx, submitted)
}

// GenerateFromTextAndReferences reports the capability gap explicitly.
func (c *Client) GenerateFromTextAndReferences(ctx context.Context, prompt string, references [][]byte, sizing providers.Sizing) ([]providers.Image, error) {
	return nil, c.failure("reference images requested", providers.ErrUnsupported)
}

func (c *Client) submit(ctx context.Context, payload submitRequest) (*submitResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, c.failure("marshal request", err)
	}
	endpoint := c.baseURL + "/" + c.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.failure("create request", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	var submitted submitResponse
	if err := c.do(req, &submitted); err != nil {
		return nil, err
	}
	if submitted.StatusURL == "" || submitted.ResponseURL == "" {
		return nil, c.failure("submit response missing queue urls", nil)
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", submitted.RequestID).
		Msg("fal: request submitted")

	return &submitted, nil
}

func (c *Client) awaitCompletion(ctx context.Context, submitted *submitResponse) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, submitted.StatusURL, nil)
		if err != nil {
			return c.failure("create status request", err)
		}
		c.authorize(req)

		var status statusResponse
		if err := c.do(req, &status); err != nil {
			return err
		}
		switch status.Status {
		case "COMPLETED":
			return nil
		case "IN_QUEUE", "IN_PROGRESS":
		default:
			message := status.Status
			if status.Error != "" {
				message = fmt.Sprintf("%s: %s", status.Status, status.Error)
			}
			return c.failure("request "+submitted.RequestID+" failed upstream: "+message, nil)
		}

		select {
		case <-ctx.Done():
			return c.failure("polling aborted", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchResult(ctx context.Context, submitted *submitResponse) ([]providers.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, submitted.ResponseURL, nil)
	if err != nil {
		return nil, c.failure("create result request", err)
	}
	c.authorize(req)

	var result resultResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}

	var images []providers.Image
	for _, img := range result.Images {
		if img.URL == "" {
			continue
		}
		images = append(images, providers.Image{URL: img.URL})
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", submitted.RequestID).
		Int("images", len(images)).
		Msg("fal: generation finished")

	return images, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Key "+c.apiKey)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failure("invoke fal", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return c.failure(fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
		}
		return c.failure(fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.failure("decode response", err)
	}
	return nil
}

func (c *Client) failure(message string, err error) error {
	return &providers.GenerationError{
		Provider: providerName,
		Model:    c.model,
		Message:  message,
		Err:      err,
	}
}

var _ providers.Generator = (*Client)(nil)
