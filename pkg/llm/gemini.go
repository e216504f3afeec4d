// Package llm wraps the Gemini API behind the typed completions the agent
// needs: thread summarization, field extraction, issue triage, and PR review.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/synapsehq/synapse/pkg/tracking"
	"github.com/synapsehq/synapse/pkg/types"
)

// ErrMalformedOutput reports model output that does not parse as the JSON
// shape the operation asked for. There is no retry or correction loop; the
// caller surfaces the failure.
var ErrMalformedOutput = errors.New("malformed model output")

// ThreadMessage is one Slack message handed to SummarizeThread.
type ThreadMessage struct {
	User string
	Text string
}

// generator is the completion backend. Keeping *genai.Client behind it
// makes the typed operations testable without network access.
type generator interface {
	generate(ctx context.Context, model, prompt string, config *genai.GenerateContentConfig) (string, int, error)
}

// Client exposes the agent's completions over Gemini. Every successful
// completion is reported to the tracker with its verbatim prompt and
// response, token count, and duration.
type Client struct {
	gen         generator
	model       string
	maxTokens   int32
	temperature float32
	tracker     tracking.Tracker
}

// Config holds Gemini settings. APIKey is required; the rest defaults.
type Config struct {
	APIKey      string
	Model       string  // default "gemini-3-pro"
	MaxTokens   int     // default 500
	Temperature float32 // default 0.3
	Tracker     tracking.Tracker
}

// New creates a Gemini-backed client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = "gemini-3-pro"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.Tracker == nil {
		cfg.Tracker = tracking.NopTracker{}
	}

	return &Client{
		gen:         &geminiGenerator{client: client},
		model:       cfg.Model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: cfg.Temperature,
		tracker:     cfg.Tracker,
	}, nil
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

// SummarizeThread produces a free-form summary of a Slack thread. A
// non-empty model overrides the default for this call only.
func (c *Client) SummarizeThread(ctx context.Context, messages []ThreadMessage, model string) (*types.ThreadSummary, error) {
	if model == "" {
		model = c.model
	}
	prompt := buildSummarizePrompt(messages)
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: c.maxTokens,
	}

	text, tokens, err := c.complete(ctx, model, prompt, systemSummarize, config)
	if err != nil {
		return nil, fmt.Errorf("generating summary: %w", err)
	}

	return &types.ThreadSummary{
		Summary:    text,
		Model:      model,
		TokenCount: tokens,
	}, nil
}

// ExtractThreadInfo pulls the channel id and thread timestamp out of a
// free-text request. Fields the model cannot find come back empty.
func (c *Client) ExtractThreadInfo(ctx context.Context, message string) (*types.ThreadInfo, error) {
	prompt := buildExtractPrompt(message)
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		MaxOutputTokens:  100,
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"channel":   {Type: genai.TypeString, Nullable: genai.Ptr(true)},
				"thread_ts": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
			},
		},
	}

	text, _, err := c.complete(ctx, c.model, prompt, systemExtract, config)
	if err != nil {
		return nil, fmt.Errorf("extracting thread info: %w", err)
	}

	var info types.ThreadInfo
	if err := decodeModelJSON(text, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// TriageIssues asks for a triage plan over a pre-formatted block of issues
// and decodes the JSON array the model returns.
func (c *Client) TriageIssues(ctx context.Context, issuesBlock string) ([]types.TriageSuggestion, error) {
	prompt := buildTriagePrompt(issuesBlock)
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		MaxOutputTokens:  1000,
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"issue_number":        {Type: genai.TypeInteger},
					"priority":            {Type: genai.TypeString},
					"suggested_labels":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"suggested_assignees": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"action_summary":      {Type: genai.TypeString},
				},
			},
		},
	}

	text, _, err := c.complete(ctx, c.model, prompt, systemTriage, config)
	if err != nil {
		return nil, fmt.Errorf("generating triage suggestions: %w", err)
	}

	var suggestions []types.TriageSuggestion
	if err := decodeModelJSON(text, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// ReviewPullRequest asks for a structured review of a pre-formatted PR
// summary block.
func (c *Client) ReviewPullRequest(ctx context.Context, prBlock string) (*types.Review, error) {
	prompt := buildReviewPrompt(prBlock)
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		MaxOutputTokens:  1000,
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"assessment":     {Type: genai.TypeString},
				"issues":         {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"suggestions":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"recommendation": {Type: genai.TypeString},
			},
		},
	}

	text, _, err := c.complete(ctx, c.model, prompt, systemReview, config)
	if err != nil {
		return nil, fmt.Errorf("generating review: %w", err)
	}

	var review types.Review
	if err := decodeModelJSON(text, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

// complete runs one instrumented completion.
func (c *Client) complete(ctx context.Context, model, prompt, system string, config *genai.GenerateContentConfig) (string, int, error) {
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	start := time.Now()
	text, tokens, err := c.gen.generate(ctx, model, prompt, config)
	if err != nil {
		return "", 0, err
	}
	c.tracker.LogLLMUsage(model, prompt, text, tokens, time.Since(start))
	return text, tokens, nil
}

func decodeModelJSON(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

type geminiGenerator struct {
	client *genai.Client
}

func (g *geminiGenerator) generate(ctx context.Context, model, prompt string, config *genai.GenerateContentConfig) (string, int, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", 0, fmt.Errorf("gemini generate failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", 0, fmt.Errorf("no response from gemini")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text += part.Text
		}
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return text, tokens, nil
}
