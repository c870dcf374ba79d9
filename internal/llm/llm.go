// Package llm abstracts the text-completion capability used by advisory
// analysis and SQL generation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Message is one turn of a completion conversation.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Provider is the single abstract completion capability. Any concrete
// backend (hosted API, local model server) satisfies this signature.
type Provider interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
	IsConfigured() bool
}

// OllamaProvider is a local Ollama completion provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	log.Printf("Ollama model %q not found", o.Model)
	return false
}

// Complete sends the conversation to Ollama and returns the response text.
func (o *OllamaProvider) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	chat := make([]map[string]string, 0, len(messages)+1)
	if system != "" {
		chat = append(chat, map[string]string{"role": "system", "content": system})
	}
	for _, m := range messages {
		chat = append(chat, map[string]string{"role": m.Role, "content": m.Content})
	}

	body := map[string]any{
		"model":    o.Model,
		"messages": chat,
		"stream":   false,
		"options": map[string]any{
			"temperature": 0.3,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Message.Content, nil
}

// OpenAIProvider is an OpenAI API provider.
type OpenAIProvider struct {
	Model  string
	APIKey string
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(model, apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		Model:  model,
		APIKey: apiKey,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Complete sends the conversation to OpenAI and returns the response text.
func (o *OpenAIProvider) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	chat := make([]map[string]string, 0, len(messages)+1)
	if system != "" {
		chat = append(chat, map[string]string{"role": "system", "content": system})
	}
	for _, m := range messages {
		chat = append(chat, map[string]string{"role": m.Role, "content": m.Content})
	}

	body := map[string]any{
		"model":       o.Model,
		"messages":    chat,
		"max_tokens":  1024,
		"temperature": 0.3,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenAI API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}

	return result.Choices[0].Message.Content, nil
}

// Config selects and configures a completion provider.
type Config struct {
	Provider  string // "ollama", "openai" or "anthropic"
	Model     string
	APIKey    string
	OllamaURL string
}

// CreateProvider creates a completion provider from configuration. Returns
// nil when nothing usable is configured; advisory analysis falls back to
// deterministic keyword rules and SQL generation refuses to run.
func CreateProvider(cfg Config) Provider {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		p := NewOllamaProvider(cfg.Model, cfg.OllamaURL)
		if p.IsConfigured() {
			log.Printf("Using Ollama with model: %s", cfg.Model)
			return p
		}
		log.Println("Ollama not available")
	case "openai":
		p := NewOpenAIProvider(cfg.Model, cfg.APIKey)
		if p.IsConfigured() {
			log.Printf("Using OpenAI with model: %s", cfg.Model)
			return p
		}
		log.Println("OpenAI API key not set")
	case "anthropic":
		p := NewAnthropicProvider(cfg.Model, cfg.APIKey)
		if p.IsConfigured() {
			log.Printf("Using Anthropic with model: %s", cfg.Model)
			return p
		}
		log.Println("Anthropic API key not set")
	}

	log.Println("No completion provider configured")
	return nil
}
