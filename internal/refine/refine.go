// Package refine revises a MusicXML document toward a stated style using
// an OpenAI-compatible chat completions API. Refinement is strictly
// optional: callers treat every error from this package as a signal to
// skip the stage and continue with the original document.
package refine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Refiner revises a notation document's text serialization.
type Refiner interface {
	Refine(ctx context.Context, req Request) (*Result, error)
}

// Request carries the original document plus style guidance. CustomPrompt,
// when set, overrides the style tag.
type Request struct {
	MusicXML     string
	Style        string
	CustomPrompt string
}

// Result is the revised document plus what the model says it changed.
type Result struct {
	MusicXML     string   `json:"musicxml"`
	Improvements []string `json:"improvements"`
	Notes        string   `json:"notes"`
}

// Config holds client settings, sourced from the refinement and api
// configuration sections.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls the chat completions API.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

var _ Refiner = (*Client)(nil)

// NewClient creates a refinement client. A missing API key is an error
// here so the pipeline can record the skip reason up front.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("refinement API key not set (OPENAI_API_KEY or api.openai_api_key)")
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
	}, nil
}

const systemPrompt = `You are an expert music notation specialist and MusicXML editor. Your task is to refine and improve MusicXML notation to make it more readable, accurate, and musically appropriate.

Key areas to focus on:
1. Remove redundant rests and overlapping notes
2. Fix quantization errors and timing issues
3. Infer and add appropriate key signatures and time signatures
4. Add tempo markings and phrasing hints
5. Clean up notation for better readability
6. Ensure proper musical structure and flow

Always provide your response in the requested JSON format with the refined MusicXML content and a list of improvements made.`

var stylePrompts = map[string]string{
	"piano": `Refine this MusicXML for piano performance. Focus on:
- Clear hand separation and voice leading
- Appropriate fingerings and phrasing
- Piano-specific notation conventions
- Dynamic markings and articulation
- Pedal markings where appropriate`,
	"guitar": `Refine this MusicXML for guitar performance. Focus on:
- Tablature-friendly notation
- Chord symbols and fingerings
- Guitar-specific techniques (hammer-ons, pull-offs, etc.)
- Capo markings if needed
- Strumming patterns and rhythm`,
	"vocal": `Refine this MusicXML for vocal performance. Focus on:
- Clear melodic line
- Appropriate vocal range
- Lyric placement and phrasing
- Breath marks and articulation
- Dynamic markings for expression`,
	"general": `Refine this MusicXML for general use. Focus on:
- Clean, readable notation
- Proper musical structure
- Appropriate tempo and dynamics
- Clear phrasing and articulation
- Standard notation conventions`,
}

// Refine sends the document to the language model and parses the revised
// version out of the response.
func (c *Client) Refine(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	result, err := ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BuildPrompt assembles the user prompt. A custom prompt overrides the
// style tag; an unknown style falls back to general.
func BuildPrompt(req Request) string {
	base := req.CustomPrompt
	if base == "" {
		var ok bool
		base, ok = stylePrompts[req.Style]
		if !ok {
			base = stylePrompts["general"]
		}
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nPlease analyze and refine the following MusicXML content:\n\n")
	sb.WriteString(req.MusicXML)
	sb.WriteString(`

Please provide:
1. The refined MusicXML content
2. A list of improvements made
3. Any notes about the refinement process

Format your response as JSON with the following structure:
{
    "musicxml": "<refined MusicXML content>",
    "improvements": ["improvement 1", "improvement 2"],
    "notes": "Additional notes about the refinement"
}
`)
	return sb.String()
}

// ParseResponse extracts the refined document from the model response.
// JSON is the expected format; a raw MusicXML block in a free-form reply
// is accepted as a fallback.
func ParseResponse(content string) (*Result, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if strings.HasPrefix(trimmed, "{") {
		var result Result
		if err := json.Unmarshal([]byte(trimmed), &result); err == nil && result.MusicXML != "" {
			return &result, nil
		}
	}

	if xml := extractMusicXML(trimmed); xml != "" {
		return &Result{
			MusicXML: xml,
			Notes:    "parsed from non-JSON response",
		}, nil
	}

	return nil, errors.New("response contained no MusicXML document")
}

func extractMusicXML(content string) string {
	lower := strings.ToLower(content)
	start := strings.Index(lower, "<score-partwise")
	if start < 0 {
		return ""
	}
	const closeTag = "</score-partwise>"
	end := strings.Index(lower[start:], closeTag)
	if end < 0 {
		return ""
	}
	return content[start : start+end+len(closeTag)]
}
