package mock

import (
	"context"

	"github.com/kiranshivaraju/storyforge/internal/ai"
	"github.com/kiranshivaraju/storyforge/pkg/models"
)

// MockProvider satisfies models.StoryProvider for testing.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, theme string) (*models.GeneratedStory, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) GenerateStory(ctx context.Context, theme string) (*models.GeneratedStory, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, theme)
	}
	return nil, ai.ErrInvalidResponse
}

// NewMockProvider returns a MockProvider that answers every theme with
// SampleStory.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, theme string) (*models.GeneratedStory, error) {
			return SampleStory(theme), nil
		},
	}
}

// SampleStory builds a small valid story of five nodes: a root with two
// choices, one of which branches again. It has one winning ending and two
// losing ones.
func SampleStory(theme string) *models.GeneratedStory {
	ending := func(content string, win bool) *models.GeneratedNode {
		return &models.GeneratedNode{Content: content, IsEnding: true, IsWinningEnding: win}
	}
	return &models.GeneratedStory{
		Title: "A Tale of " + theme,
		RootNode: &models.GeneratedNode{
			Content: "Your adventure about " + theme + " begins at a crossroads.",
			Options: []models.GeneratedOption{
				{
					Text: "Take the forest path",
					NextNode: &models.GeneratedNode{
						Content: "The forest grows dark. A light flickers ahead.",
						Options: []models.GeneratedOption{
							{Text: "Follow the light", NextNode: ending("You find the treasure.", true)},
							{Text: "Turn back", NextNode: ending("You are lost in the dark.", false)},
						},
					},
				},
				{Text: "Take the river path", NextNode: ending("The river sweeps you away.", false)},
			},
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ string) (*models.GeneratedStory, error) {
			return nil, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ string) (*models.GeneratedStory, error) {
			<-ctx.Done()
			return nil, ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements StoryProvider.
var _ models.StoryProvider = (*MockProvider)(nil)
