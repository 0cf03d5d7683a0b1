// Package advisor asks an AI model for a recommendation on deferred merge
// conflicts. Suggestions are advisory only: they are shown to the operator
// next to the conflicting values and are never applied to the bundle without
// an explicit human choice.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/planweave/planweave/internal/merge"
)

const (
	// DefaultModel is the model used when PLANWEAVE_MODEL is not set.
	DefaultModel = "claude-sonnet-4-5-20250929"

	maxTokens = 1024
)

// Suggestion is the advisor's recommendation for one deferred conflict.
type Suggestion struct {
	// Pick is "ours", "theirs", "base", or "other".
	Pick string `json:"pick"`

	// Value is the recommended final value when Pick is "other".
	Value string `json:"value,omitempty"`

	// Rationale is the advisor's one-paragraph reasoning.
	Rationale string `json:"rationale"`
}

// Advisor wraps the Anthropic client.
type Advisor struct {
	client *anthropic.Client
	model  string
}

// Enabled reports whether an API key is configured. Callers skip the advisor
// entirely when it is not; a merge never requires network access.
func Enabled() bool {
	return os.Getenv("ANTHROPIC_API_KEY") != ""
}

// New creates an Advisor from the environment.
func New() (*Advisor, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	model := os.Getenv("PLANWEAVE_MODEL")
	if model == "" {
		model = DefaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Advisor{client: &client, model: model}, nil
}

// Suggest asks for a recommendation on one deferred conflict.
func (a *Advisor) Suggest(ctx context.Context, c *merge.Conflict) (*Suggestion, error) {
	prompt := buildPrompt(c)

	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	return parseSuggestion(responseText)
}

func buildPrompt(c *merge.Conflict) string {
	var b strings.Builder

	b.WriteString("You are reviewing a three-way merge conflict in a software plan document.\n")
	b.WriteString("Two collaborators edited the same section in different ways and automatic\n")
	b.WriteString("arbitration could not decide. Recommend a resolution.\n\n")

	fmt.Fprintf(&b, "Path: %s\n", c.Path)
	fmt.Fprintf(&b, "Base (common ancestor): %s\n", formatValue(c.Base))
	fmt.Fprintf(&b, "Ours: %s", formatValue(c.Ours))
	if c.OursOwner != "" {
		fmt.Fprintf(&b, " (edited by persona %s)", c.OursOwner)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Theirs: %s", formatValue(c.Theirs))
	if c.TheirsOwner != "" {
		fmt.Fprintf(&b, " (edited by persona %s)", c.TheirsOwner)
	}
	b.WriteString("\n\n")

	b.WriteString("Respond with JSON only, no markdown fences:\n")
	b.WriteString(`{"pick": "ours|theirs|base|other", "value": "only when pick is other", "rationale": "one short paragraph"}`)
	b.WriteString("\n")

	return b.String()
}

// parseSuggestion decodes the model's JSON, tolerating markdown code fences
// the model sometimes adds despite instructions.
func parseSuggestion(text string) (*Suggestion, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("failed to parse advisor response: %w", err)
	}

	switch s.Pick {
	case "ours", "theirs", "base", "other":
	default:
		return nil, fmt.Errorf("advisor returned unknown pick %q", s.Pick)
	}
	return &s, nil
}

func formatValue(v any) string {
	if v == nil {
		return "(absent)"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
