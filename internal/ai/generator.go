package ai

import "context"

// TextGenerator generates model output from a system prompt and user prompt.
// GenerateJSON asks the provider for a JSON-only response; study material
// generation depends on it, free-form chat uses GenerateText.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
