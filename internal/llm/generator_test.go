package llm

import (
	"context"
	"strings"
	"testing"

	"docuchat/internal/config"
	"docuchat/internal/models"
)

func TestBuildPromptNumbersPassagesInOrder(t *testing.T) {
	passages := []models.SearchResult{
		{Chunk: models.Chunk{Text: "Paris is the capital of France."}},
		{Chunk: models.Chunk{Text: "It lies on the Seine."}},
	}
	prompt := buildPrompt("What is the capital of France?", passages)

	first := strings.Index(prompt, "[1] Paris is the capital of France.")
	second := strings.Index(prompt, "[2] It lies on the Seine.")
	if first < 0 || second < 0 || second < first {
		t.Fatalf("passages missing or out of order:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Question: What is the capital of France?") {
		t.Fatalf("question missing from prompt:\n%s", prompt)
	}
	if !strings.HasPrefix(prompt, "Context passages:") {
		t.Fatalf("prompt should lead with the context block:\n%s", prompt)
	}
}

func TestNewChatGeneratorRejectsUnknownProvider(t *testing.T) {
	cfg := &config.Config{
		Providers:  map[string]config.ProviderConfig{"openai": {APIKey: "k"}},
		Generation: config.GenerationConfig{Provider: "llama"},
	}
	if _, err := NewChatGenerator(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unconfigured provider")
	}
}
