// Package agent defines the external conversation collaborator: the service
// that produces chat replies and condenses a day's transcript into an
// article.
package agent

import (
	"context"
	"encoding/json"
	"time"
)

// PriorMessage is one earlier user message handed to the agent as context
type PriorMessage struct {
	Ts      time.Time `json:"ts"`
	Content string    `json:"content"`
}

// PriorSummary is one earlier daily summary handed to the agent as context
type PriorSummary struct {
	Date    string `json:"date"`
	Title   string `json:"title,omitempty"`
	Article string `json:"article"`
}

// ChatContext carries conversational context for a chat call
type ChatContext struct {
	PriorMessages  []PriorMessage    `json:"preChat,omitempty"`
	PriorSummaries []PriorSummary    `json:"preDailySummary,omitempty"`
	Args           map[string]string `json:"args,omitempty"`
	TraceID        string            `json:"traceId,omitempty"`
}

// SummarizeResult is the agent's response to a daily summarize call
type SummarizeResult struct {
	Article        string          `json:"article"`
	ArticleTitle   string          `json:"articleTitle"`
	MoodKeywords   string          `json:"moodKeywords"`
	ActionKeywords string          `json:"actionKeywords"`
	MemoryPoint    string          `json:"memoryPoint"`
	AnalyzeResult  string          `json:"analyzeResult"`
	Model          string          `json:"model"`
	TokenUsage     json.RawMessage `json:"tokenUsageJson"`
}

// Client is the external agent collaborator
type Client interface {
	// Chat returns the assistant reply for one inbound message
	Chat(ctx context.Context, owner, message string, cc ChatContext) (string, error)
	// SummarizeDay condenses a packed day transcript into a summary
	SummarizeDay(ctx context.Context, owner, packedText string) (*SummarizeResult, error)
}
