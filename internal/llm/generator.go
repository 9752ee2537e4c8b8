// Package llm synthesizes answers from retrieved document passages.
package llm

import (
	"context"
	"fmt"
	"strings"

	"docuchat/internal/config"
	"docuchat/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const systemPrompt = `You answer questions using only the numbered context passages below.
If the passages do not contain the answer, say you do not know.
Do not use outside knowledge and do not mention the passages themselves.`

// Generator produces an answer to a question given supporting passages.
type Generator interface {
	Generate(ctx context.Context, question string, passages []models.SearchResult) (string, error)
}

// ChatGenerator answers questions with a chat model selected by provider.
type ChatGenerator struct {
	chatModel model.BaseChatModel
}

// NewChatGenerator builds a generator for the configured provider. Supported
// providers are openai, gemini and claude.
func NewChatGenerator(ctx context.Context, cfg *config.Config) (*ChatGenerator, error) {
	provider := cfg.Generation.Provider
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	modelName := cfg.Generation.Model
	if modelName == "" {
		modelName = provCfg.Model
	}

	var chatModel model.BaseChatModel
	var err error
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return &ChatGenerator{chatModel: chatModel}, nil
}

// Generate answers the question from the given passages.
func (g *ChatGenerator) Generate(ctx context.Context, question string, passages []models.SearchResult) (string, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: buildPrompt(question, passages)},
	}
	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

func buildPrompt(question string, passages []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("Context passages:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Chunk.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
