package seedream

import (
	"bytes"
	"context"
	"encoding/base64"
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

const providerName = "seedream"

// Options configures the ByteDance Ark Seedream client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client calls the Ark image generations endpoint. The upstream service is
// asynchronous on its side; this client issues one blocking, context-bound
// POST so the calling worker goroutine holds its pool slot for the full call,
// matching the other adapters.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type generationRequest struct {
	Model           string   `json:"model"`
	Prompt          string   `json:"prompt"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
	ResponseFormat  string   `json:"response_format"`
	ReferenceImages []string `json:"reference_images,omitempty"`
}

type generationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://ark-api.bytedance.com/api/v3"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "seedream-4.0"
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
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// GenerateFromText produces images from a text prompt.
func (c *Client) GenerateFromText(ctx context.Context, prompt string, sizing providers.Sizing) ([]providers.Image, error) {
	return c.generate(ctx, prompt, nil, sizing)
}

// GenerateFromTextAndReferences produces images steered by reference images,
// which Seedream accepts as inlined base64 payloads.
func (c *Client) GenerateFromTextAndReferences(ctx context.Context, prompt string, references [][]byte, sizing providers.Sizing) ([]providers.Image, error) {
	encoded := make([]string, len(references))
	for i, ref := range references {
		encoded[i] = base64.StdEncoding.EncodeToString(ref)
	}
	return c.generate(ctx, prompt, encoded, sizing)
}

func (c *Client) generate(ctx context.Context, prompt string, references []string, sizing providers.Sizing) ([]providers.Image, error) {
	if c.apiKey == "" {
		return nil, c.failure("api key not configured", nil)
	}

	width, height := sizing.Width, sizing.Height
	if width <= 0 || height <= 0 {
		width, height = 1024, 1024
	}
	payload := generationRequest{
		Model:           c.model,
		Prompt:          prompt,
		Width:           width,
		Height:          height,
		ResponseFormat:  "b64_json",
		ReferenceImages: references,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, c.failure("marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, c.failure("create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.failure("invoke ark", err)
	}
	defer resp.Body.Close()

	var result generationResponse
	if resp.StatusCode >= http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Error != nil {
			return nil, c.failure(fmt.Sprintf("status %d: %s", resp.StatusCode, result.Error.Message), nil)
		}
		return nil, c.failure(fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.failure("decode response", err)
	}

	var images []providers.Image
	for _, item := range result.Data {
		if item.B64JSON == "" {
			continue
		}
		images = append(images, providers.Image{B64: item.B64JSON})
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("images", len(images)).
		Int("references", len(references)).
		Msg("seedream: generation finished")

	return images, nil
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
