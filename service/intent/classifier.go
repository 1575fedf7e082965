package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GenAIClassifier classifies commands using Google's Gemini API with a strict
// JSON response schema, so the model can only answer in the intent shape.
type GenAIClassifier struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGenAIClassifier creates a classifier backed by the Gemini API.
func NewGenAIClassifier(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GenAIClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("classifier API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIClassifier{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

const systemInstruction = `You classify user commands for a Solana wallet agent.
Map the command to exactly one action:
- "send": transfer SOL to an address. Requires amount and destination.
- "swap": convert one asset to another (e.g. SOL to USDC). Requires amount, source_asset, destination_asset.
- "check_balance": the user asks for their balance.
- "ask_address": the user asks for their own wallet address.
- "show_history": the user asks for recent transactions.
- "unknown": anything else.

Amounts are decimal strings in human units, exactly as stated by the user.
Asset symbols are upper-case (SOL, USDC). If a required parameter is missing,
set needs_more_info to true and ask for it in the message. Always fill the
message field with a short confirmation of what you understood.`

// intentSchema constrains the model output to the intent wire shape.
var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"action": {
			Type: genai.TypeString,
			Enum: []string{"send", "swap", "check_balance", "ask_address", "show_history", "unknown"},
		},
		"amount":            {Type: genai.TypeString},
		"destination":       {Type: genai.TypeString},
		"source_asset":      {Type: genai.TypeString},
		"destination_asset": {Type: genai.TypeString},
		"message":           {Type: genai.TypeString},
		"needs_more_info":   {Type: genai.TypeBoolean},
	},
	Required: []string{"action", "message", "needs_more_info"},
}

// Classify sends the user text to Gemini and decodes the structured result.
// The returned Intent always satisfies the package invariant; on any API or
// decoding failure an error is returned and the caller should fall back to
// an Unknown intent.
func (c *GenAIClassifier) Classify(ctx context.Context, text, contextAddress, contextBalance string) (*Intent, error) {
	prompt := fmt.Sprintf("Wallet address: %s\nWallet balance: %s SOL\nCommand: %s",
		contextAddress, contextBalance, text)

	temperature := float32(0.0)
	start := time.Now()
	result, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    intentSchema,
			Temperature:       &temperature,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}

	body := strings.TrimSpace(result.Text())
	if body == "" {
		return nil, fmt.Errorf("classifier returned an empty response")
	}

	var raw Intent
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("classifier returned malformed JSON: %w", err)
	}

	out := Normalize(&raw)
	c.logger.DebugContext(ctx, "classified command",
		"action", out.Action,
		"needs_more_info", out.NeedsMoreInfo,
		"duration", time.Since(start),
	)
	return out, nil
}
