package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"looper/internal/models"
)

// Analysis is the structured diagnosis of a finished (or stuck) run.
type Analysis struct {
	Summary    string `json:"summary"`
	Diagnosis  string `json:"diagnosis"`
	NextAction string `json:"next_action"`
}

// Client wraps the Anthropic API for session analysis.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for session analysis.
func buildPrompt(sess *models.Session, events []models.Event) (system string, user string) {
	system = `You analyze the outcome of an autonomous agent loop session. You are given the final session state and the tail of its structured event log. Return ONLY a JSON object with these fields:
- "summary": 1-2 sentences describing how the run ended
- "diagnosis": why the run ended that way (completed cleanly, limit exhausted before completion, repeated agent failures, interruption), citing specific events
- "next_action": one concrete recommendation (e.g. resume with a higher iteration cap, unblock a checklist item, fix the failing agent invocation)

Rules:
- Base every claim on the provided state and events, never invent details
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Session state:\n")
	if data, err := json.MarshalIndent(sess, "", "  "); err == nil {
		sb.Write(data)
	}
	sb.WriteString("\n\nRecent events (oldest first):\n")
	for _, ev := range events {
		if data, err := json.Marshal(ev); err == nil {
			sb.Write(data)
			sb.WriteString("\n")
		}
	}
	user = sb.String()
	return
}

// AnalyzeSession sends the session state and log tail to the LLM and
// returns a structured diagnosis.
func (c *Client) AnalyzeSession(ctx context.Context, sess *models.Session, events []models.Event) (*Analysis, error) {
	systemPrompt, userPrompt := buildPrompt(sess, events)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	// Strip markdown fencing if present
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	return &analysis, nil
}
