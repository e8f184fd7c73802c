package providers

import (
	"fmt"

	"server/internal/domain"
)

// Model enumerates the generation models jobs may request. Selection is an
// exact match against this set; unrecognized identifiers are rejected
// instead of falling back to a default.
type Model string

const (
	ModelNanoBanana    Model = "nano_banana"
	ModelNanoBananaPro Model = "nano_banana_pro"
	ModelGeminiFlash   Model = "gemini_flash"
	ModelGeminiPro     Model = "gemini_pro"
	ModelSeedream      Model = "seedream"
	ModelFlux          Model = "flux"
)

// ParseModel validates a free-form model identifier.
func ParseModel(s string) (Model, error) {
	switch Model(s) {
	case ModelNanoBanana, ModelNanoBananaPro, ModelGeminiFlash, ModelGeminiPro, ModelSeedream, ModelFlux:
		return Model(s), nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownModel, s)
	}
}

// Registry maps model identifiers to adapter instances.
type Registry struct {
	entries map[Model]Generator
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Model]Generator)}
}

// Register binds a model identifier to an adapter. Later registrations for
// the same model win, which lets tests swap adapters in.
func (r *Registry) Register(model Model, generator Generator) {
	r.entries[model] = generator
}

// Resolve returns the adapter for a requested model identifier, or
// domain.ErrUnknownModel when the identifier is not enumerated or has no
// registered adapter.
func (r *Registry) Resolve(requested string) (Generator, Model, error) {
	model, err := ParseModel(requested)
	if err != nil {
		return nil, "", err
	}
	generator, ok := r.entries[model]
	if !ok {
		return nil, "", fmt.Errorf("%w: no adapter registered for %q", domain.ErrUnknownModel, requested)
	}
	return generator, model, nil
}
