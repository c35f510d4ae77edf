package assistant

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// ChatMessage is one prior turn of a conversation. Role is "user" or
// "model".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const maxToolRounds = 5

// Chat answers the latest user message given the prior conversation. Tool
// calls requested by the model are resolved against the market source and
// fed back until the model produces text.
func (a *Assistant) Chat(ctx context.Context, history []ChatMessage, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("message is required")
	}

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{FunctionDeclarations: marketTools()}},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: chatSystemPrompt}},
		},
	}

	prior := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := msg.Role
		if role != "model" {
			role = "user"
		}
		prior = append(prior, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	chat, err := a.client.Chats.Create(ctx, a.model, config, prior)
	if err != nil {
		return "", fmt.Errorf("create chat session: %w", err)
	}

	part := &genai.Part{Text: message}
	for round := 0; round < maxToolRounds; round++ {
		resp, err := chat.Send(ctx, part)
		if err != nil {
			return "", fmt.Errorf("chat send: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("empty response from model")
		}

		first := resp.Candidates[0].Content.Parts[0]
		if first.FunctionCall == nil {
			return first.Text, nil
		}

		a.log.Debug("resolving tool call", "tool", first.FunctionCall.Name)
		part = &genai.Part{FunctionResponse: a.callTool(ctx, first.FunctionCall)}
	}
	return "", fmt.Errorf("model did not settle after %d tool rounds", maxToolRounds)
}
