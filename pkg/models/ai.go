// Package models contains shared data models used across the storyforge codebase.
package models

import (
	"context"
	"errors"
)

// Errors a StoryProvider wraps so callers can classify failures without
// knowing which provider is configured.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// StoryProvider is the core interface that all LLM integrations must implement.
// Never call a specific provider directly; always inject this interface.
type StoryProvider interface {
	// GenerateStory asks the model for a complete branching story on the theme.
	GenerateStory(ctx context.Context, theme string) (*GeneratedStory, error)
	// Name returns the provider identifier (e.g., "openai", "ollama").
	Name() string
}

// GeneratedStory is the structured output expected from the model.
type GeneratedStory struct {
	Title    string         `json:"title"`
	RootNode *GeneratedNode `json:"rootNode"`
}

// GeneratedNode is one node of the nested tree produced by the model. Each
// option embeds the full subtree it leads to.
type GeneratedNode struct {
	Content         string            `json:"content"`
	IsEnding        bool              `json:"isEnding"`
	IsWinningEnding bool              `json:"isWinningEnding"`
	Options         []GeneratedOption `json:"options"`
}

type GeneratedOption struct {
	Text     string         `json:"text"`
	NextNode *GeneratedNode `json:"nextNode"`
}
