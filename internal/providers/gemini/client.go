package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/providers"
)

const providerName = "gemini"

// Upstream model identifiers for the two quality tiers. The registry decides
// which tier a job's model id maps to; one Client serves exactly one tier.
const (
	ModelFlash = "gemini-2.0-flash"
	ModelPro   = "gemini-2.0-pro"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client calls the Gemini generateContent API synchronously. Reference images
// are passed natively as inline data parts.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with a bounded timeout will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = ModelFlash
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
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured upstream model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateFromText produces images from a text prompt.
func (c *Client) GenerateFromText(ctx context.Context, prompt string, sizing providers.Sizing) ([]providers.Image, error) {
	return c.generate(ctx, prompt, nil)
}

// GenerateFromTextAndReferences produces images steered by reference images,
// which Gemini accepts as inline data parts alongside the prompt.
func (c *Client) GenerateFromTextAndReferences(ctx context.Context, prompt string, references [][]byte, sizing providers.Sizing) ([]providers.Image, error) {
	return c.generate(ctx, prompt, references)
}

func (c *Client) generate(ctx context.Context, prompt string, references [][]byte) ([]providers.Image, error) {
	if c.apiKey == "" {
		return nil, c.failure("api key not configured", nil)
	}

	parts := []geminiPart{{Text: prompt}}
	for _, ref := range references {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(ref),
		}})
	}

	payload := geminiGenerateContentRequest{
		Contents:         []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{ResponseMimeType: "image/png"},
	}

	var response geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model))
	if err := c.invoke(ctx, path, payload, &response); err != nil {
		return nil, err
	}

	var images []providers.Image
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			images = append(images, providers.Image{B64: part.InlineData.Data})
		}
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("images", len(images)).
		Int("references", len(references)).
		Msg("gemini: generation finished")

	return images, nil
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return c.failure("marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return c.failure("create request", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failure("invoke gemini", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return c.failure(fmt.Sprintf("status %d: %s", resp.StatusCode, apiErr.Error.Message), nil)
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
