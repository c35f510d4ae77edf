// Package assistant provides the LLM-backed chat and news summarization
// features.
package assistant

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/crypto-talks/platform/pkg/logger"
)

const defaultModel = "gemini-2.5-flash"

const summarySystemPrompt = `Create a precise, structured summary with the following guidelines:
- Extract the core message in one sentence
- Identify 2-3 critical insights or key developments
- Use clear, concise language
- Avoid unnecessary context or background information
- Focus on factual, actionable information
- Maintain a neutral, objective tone
- Do NOT start the summary with any introductory phrase like "Here is a summary" or "This article discusses"`

const chatSystemPrompt = `You are a cryptocurrency assistant that provides the latest prices, market trends and insights for coins.
If the user asks for the price of a coin, provide the current price.
If the user asks for trends, provide the top trending coins.
If the user asks for insights, provide market cap, volume, etc.
Use the available tools to ground every figure you quote.`

// Assistant drives the Gemini model for summaries and tool-grounded chat.
type Assistant struct {
	client *genai.Client
	model  string
	market MarketSource
	log    *logger.Logger
}

// Config holds assistant settings.
type Config struct {
	// Model overrides the default Gemini model name.
	Model string
}

// New creates an Assistant. The genai client reads its API key from the
// environment (GEMINI_API_KEY).
func New(ctx context.Context, cfg Config, market MarketSource, log *logger.Logger) (*Assistant, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize LLM client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	if log == nil {
		log = logger.NewDefault("assistant")
	}
	return &Assistant{client: client, model: model, market: market, log: log}, nil
}

// Summarize produces a short structured summary of a news article.
func (a *Assistant) Summarize(ctx context.Context, article string) (string, error) {
	if article == "" {
		return "", fmt.Errorf("article text is required")
	}

	prompt := fmt.Sprintf(
		"Summarize the following crypto news article with maximum precision. Highlight the most significant information:\n\n%s",
		article)

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(0.3)),
			MaxOutputTokens: 200,
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: summarySystemPrompt}},
			},
		})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	text := firstText(resp)
	if text == "" {
		return "Unable to generate summary.", nil
	}
	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return ""
	}
	return content.Parts[0].Text
}
