package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider is an Anthropic API provider.
type AnthropicProvider struct {
	Model  string
	apiKey string
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(model, apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		Model:  model,
		apiKey: apiKey,
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// IsConfigured checks if the API key is set.
func (a *AnthropicProvider) IsConfigured() bool {
	return a.apiKey != ""
}

// Complete sends the conversation to the Anthropic API and returns the
// concatenated text blocks of the response.
func (a *AnthropicProvider) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("Anthropic API key not configured")
	}

	params := make([]anthropic.MessageParam, 0, len(messages))
	for i, m := range messages {
		content := m.Content
		// The system context rides in front of the first user turn.
		if i == 0 && system != "" && m.Role == "user" {
			content = system + "\n\n---\n\n" + content
		}
		if m.Role == "assistant" {
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(content)))
		} else {
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
		}
	}

	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: 4096,
		Messages:  params,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
