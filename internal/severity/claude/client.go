// Package claude implements severity.ModelProvider on top of the Anthropic
// API. The model sees symptoms and patient context and must reply with a
// strict JSON object; anything else is treated as an upstream failure.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/sehat/internal/patient"
	"github.com/linnemanlabs/sehat/internal/severity"
)

const responseTokens = 1024

// Client calls the Anthropic messages API for severity estimates.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a severity model client for the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Assess sends the symptoms and context to the model and parses its JSON
// verdict. Callers bound ctx with a timeout; a slow or failed call surfaces
// as an error, never as a guessed score.
func (c *Client) Assess(ctx context.Context, symptoms []string, pctx *patient.Context) (*severity.ModelResult, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: responseTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(symptoms, pctx))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic call: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return parseResult(block.Text)
		}
	}
	return nil, fmt.Errorf("no text content in model response")
}

const systemPrompt = `You are a medical triage severity estimator for a rural healthcare platform.
Given symptoms and patient context, estimate clinical urgency as an integer score from 0 (no urgency) to 100 (life-threatening).

Respond with ONLY a JSON object, no prose:
{"score": <int 0-100>, "reasoning": "<one short sentence>", "risk_factors": ["<factor>", ...], "red_flags": ["<symptom>", ...]}

You are not diagnosing disease. Score urgency only.`

func buildPrompt(symptoms []string, pctx *patient.Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Symptoms: %s\n", strings.Join(symptoms, ", "))

	if pctx != nil {
		if pctx.Age != nil {
			fmt.Fprintf(&b, "Age: %d\n", *pctx.Age)
		}
		if pctx.Gender != "" {
			fmt.Fprintf(&b, "Gender: %s\n", pctx.Gender)
		}
		if len(pctx.MedicalHistory) > 0 {
			fmt.Fprintf(&b, "Medical history: %s\n", strings.Join(pctx.MedicalHistory, ", "))
		}
		if pctx.IsPregnant != nil && *pctx.IsPregnant {
			b.WriteString("Patient is pregnant.\n")
		}
	}

	b.WriteString("Estimate the severity score.")
	return b.String()
}

// parseResult decodes the model's JSON verdict, tolerating surrounding text
// by locating the outermost braces.
func parseResult(text string) (*severity.ModelResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var res severity.ModelResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	if res.Score < 0 || res.Score > 100 {
		return nil, fmt.Errorf("model score %d out of range", res.Score)
	}
	return &res, nil
}
