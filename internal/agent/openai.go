package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const chatSystemPrompt = "You are a warm, concise personal diary companion. " +
	"Reply in the user's language and keep answers short."

const summarySystemPrompt = `You condense one day of a user's chat transcript into a diary entry.
Respond with a single JSON object with the fields:
"article" (the diary entry), "articleTitle", "moodKeywords" (comma separated),
"actionKeywords" (comma separated), "memoryPoint", "analyzeResult".
Respond with JSON only, no surrounding prose.`

// OpenAIClient implements Client directly against the OpenAI API, for
// deployments without a standalone agent service.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed agent client
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Chat produces an assistant reply for one inbound message
func (c *OpenAIClient) Chat(ctx context.Context, owner, message string, cc ChatContext) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt},
	}

	if len(cc.PriorSummaries) > 0 {
		var sb strings.Builder
		sb.WriteString("Recent daily summaries:\n")
		for _, s := range cc.PriorSummaries {
			fmt.Fprintf(&sb, "%s: %s\n", s.Date, s.Article)
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sb.String(),
		})
	}

	for _, m := range cc.PriorMessages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: m.Content,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		User:     owner,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}

	return resp.Choices[0].Message.Content, nil
}

// SummarizeDay condenses a packed day transcript into a summary
func (c *OpenAIClient) SummarizeDay(ctx context.Context, owner, packedText string) (*SummarizeResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: packedText},
		},
		User: owner,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	usage, _ := json.Marshal(resp.Usage)

	result := &SummarizeResult{
		Model:      resp.Model,
		TokenUsage: usage,
	}
	if err := json.Unmarshal([]byte(content), result); err != nil {
		// Model ignored the JSON instruction; keep the raw text as the
		// article rather than losing the day.
		result.Article = content
	}
	result.Model = resp.Model
	result.TokenUsage = usage

	return result, nil
}
