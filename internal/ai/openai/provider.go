// Package openai generates stories through any OpenAI-compatible chat
// completions endpoint: OpenAI itself, Ollama and vLLM.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kiranshivaraju/storyforge/pkg/models"
)

// ResponseFormat selects how the model is told to produce JSON.
type ResponseFormat string

const (
	// FormatJSONSchema sends the story schema as a strict structured output.
	FormatJSONSchema ResponseFormat = "json_schema"
	// FormatJSONObject only asks for a JSON object; the prompt carries the shape.
	FormatJSONObject ResponseFormat = "json_object"
)

// SystemPrompt instructs the model to write a complete story tree in one reply.
const SystemPrompt = `You are a creative story writer who builds "choose your own adventure" stories.
Write one complete branching story as JSON with this shape:

{
  "title": "story title",
  "rootNode": {
    "content": "the opening situation",
    "isEnding": false,
    "isWinningEnding": false,
    "options": [
      {"text": "the choice shown to the player", "nextNode": { "content": "...", "isEnding": false, "isWinningEnding": false, "options": [] }}
    ]
  }
}

Rules:
- The root node has 2 or 3 options.
- Every node that is not an ending has 2 or 3 options, each leading to a full nextNode.
- Ending nodes have "isEnding": true and an empty "options" list.
- At least one ending is a winning ending with "isEnding": true and "isWinningEnding": true.
- Losing endings have "isWinningEnding": false.
- Every path from the root is 3 to 4 levels deep.
- Keep each node's content to a few vivid sentences.

Return only the JSON object, without commentary or code fences.`

type Options struct {
	// Name is reported by Provider.Name, e.g. "openai" or "ollama".
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Format  ResponseFormat
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

// Provider implements models.StoryProvider with go-openai.
type Provider struct {
	client *goopenai.Client
	name   string
	model  string
	format ResponseFormat
}

func NewProvider(opts Options) *Provider {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	if opts.Format == "" {
		opts.Format = FormatJSONSchema
	}
	if opts.Name == "" {
		opts.Name = "openai"
	}
	return &Provider{
		client: goopenai.NewClientWithConfig(cfg),
		name:   opts.Name,
		model:  opts.Model,
		format: opts.Format,
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Model() string { return p.model }

func (p *Provider) GenerateStory(ctx context.Context, theme string) (*models.GeneratedStory, error) {
	req := goopenai.ChatCompletionRequest{
		Model: p.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: fmt.Sprintf("Create the story with this theme: %s", theme)},
		},
		ResponseFormat: p.responseFormat(),
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", models.ErrInvalidResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonLength {
		return nil, fmt.Errorf("%w: response truncated at the token limit", models.ErrInvalidResponse)
	}
	return ParseStory(choice.Message.Content)
}

func (p *Provider) responseFormat() *goopenai.ChatCompletionResponseFormat {
	if p.format == FormatJSONObject {
		return &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return &goopenai.ChatCompletionResponseFormat{
		Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
			Name:        "story",
			Description: "A complete branching choose-your-own-adventure story",
			Schema:      StorySchema(),
			Strict:      true,
		},
	}
}

// StorySchema describes models.GeneratedStory. Nodes nest through a $ref so
// the model can produce a tree of any depth.
func StorySchema() *jsonschema.Definition {
	node := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"content":         {Type: jsonschema.String, Description: "The narrative text of this step"},
			"isEnding":        {Type: jsonschema.Boolean},
			"isWinningEnding": {Type: jsonschema.Boolean},
			"options": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"text":     {Type: jsonschema.String, Description: "The choice shown to the player"},
						"nextNode": {Ref: "#/$defs/node"},
					},
					Required:             []string{"text", "nextNode"},
					AdditionalProperties: false,
				},
			},
		},
		Required:             []string{"content", "isEnding", "isWinningEnding", "options"},
		AdditionalProperties: false,
	}
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"title":    {Type: jsonschema.String},
			"rootNode": {Ref: "#/$defs/node"},
		},
		Required:             []string{"title", "rootNode"},
		AdditionalProperties: false,
		Defs:                 map[string]jsonschema.Definition{"node": node},
	}
}

// ParseStory decodes a model reply into a GeneratedStory. Markdown code
// fences around the JSON are tolerated.
func ParseStory(content string) (*models.GeneratedStory, error) {
	raw := stripFences(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty content", models.ErrInvalidResponse)
	}
	var story models.GeneratedStory
	if err := json.Unmarshal([]byte(raw), &story); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if story.RootNode == nil {
		return nil, fmt.Errorf("%w: missing rootNode", models.ErrInvalidResponse)
	}
	return &story, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// classify maps client errors onto the provider sentinel errors.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("chat completion: %w", err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("chat completion: %w", err)
	}
	// Anything else never reached the server: DNS, refused connection, TLS.
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.StoryProvider = (*Provider)(nil)
