package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/atelier/internal/config"
	"github.com/ashureev/atelier/internal/locale"
	"github.com/sashabaranov/go-openai"
)

// Backend produces an assistant reply for a validated request.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIBackend talks to any OpenAI-compatible chat completion API.
type OpenAIBackend struct {
	client         *openai.Client
	model          string
	maxTokens      int
	temperature    float32
	whatsAppNumber string
}

var _ Backend = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates a backend from the chat configuration.
func NewOpenAIBackend(cfg config.ChatConfig) *OpenAIBackend {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}

	return &OpenAIBackend{
		client:         openai.NewClientWithConfig(clientConfig),
		model:          model,
		maxTokens:      cfg.MaxTokens,
		temperature:    float32(cfg.Temperature),
		whatsAppNumber: cfg.WhatsAppNumber,
	}
}

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt(req, b.whatsAppNumber),
	})
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    messages,
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}

// SystemPrompt builds the instruction message for req: the localized assistant
// persona followed by the page hint.
func SystemPrompt(req Request, whatsAppNumber string) string {
	dict := locale.DictionaryFor(req.Language)

	var b strings.Builder
	b.WriteString(dict.T("assistant.system_prompt"))
	if whatsAppNumber != "" {
		fmt.Fprintf(&b, "\nWhatsApp: %s.", whatsAppNumber)
	}
	pc := req.PageContext
	if pc.Page != "" {
		fmt.Fprintf(&b, "\nThe visitor is on the %q page (%s), path %s: %s.", pc.Page, dict.Code(), pc.Path, pc.Context)
	}
	fmt.Fprintf(&b, "\nReply in language %q.", dict.Code())
	return b.String()
}
