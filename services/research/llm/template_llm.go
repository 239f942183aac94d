package llm

import (
	"context"
	"errors"
	"log/slog"
)

// ErrGenerationDisabled is returned by the template client for every call.
var ErrGenerationDisabled = errors.New("llm generation disabled")

// TemplateClient is the no-model backend. It fails every Generate call with
// ErrGenerationDisabled, which pushes callers onto their deterministic
// template paths. Used for air-gapped deployments and tests.
type TemplateClient struct{}

func NewTemplateClient() *TemplateClient {
	slog.Info("Initializing template client, generation disabled")
	return &TemplateClient{}
}

// Generate implements the LLMClient interface
func (t *TemplateClient) Generate(_ context.Context, _ string, _ GenerationParams) (string, error) {
	return "", ErrGenerationDisabled
}
