package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported marks a capability a provider does not offer, such as
// reference-conditioned generation on an adapter without reference support.
var ErrUnsupported = errors.New("capability not supported")

// Sizing carries the requested output dimensions. Adapters that think in
// aspect ratios derive one from the pair.
type Sizing struct {
	Width  int
	Height int
}

// AspectRatio reduces the dimensions to a "w:h" ratio string, defaulting to
// 16:9 when dimensions are absent.
func (s Sizing) AspectRatio() string {
	if s.Width <= 0 || s.Height <= 0 {
		return "16:9"
	}
	d := gcd(s.Width, s.Height)
	return fmt.Sprintf("%d:%d", s.Width/d, s.Height/d)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Image is one generated output in whichever shape the provider produced:
// raw bytes, a base64 payload, or a fetchable URL. Exactly one field is set;
// the orchestrator normalizes all three to raw bytes.
type Image struct {
	Data []byte
	B64  string
	URL  string
}

// Generator is the capability interface every provider adapter implements.
// Both calls return images in provider order.
type Generator interface {
	GenerateFromText(ctx context.Context, prompt string, sizing Sizing) ([]Image, error)
	GenerateFromTextAndReferences(ctx context.Context, prompt string, references [][]byte, sizing Sizing) ([]Image, error)
}

// GenerationError is the uniform failure every adapter surfaces for auth,
// network, malformed-response, and provider-side rejections. Callers branch
// on error kind only, never on the provider.
type GenerationError struct {
	Provider string
	Model    string
	Message  string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Provider, e.Model, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Provider, e.Model, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
