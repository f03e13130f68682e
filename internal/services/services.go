package services

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/memoapp/memo-backend/internal/agent"
	"github.com/memoapp/memo-backend/internal/config"
	"github.com/memoapp/memo-backend/internal/repository"
	"github.com/memoapp/memo-backend/internal/serializer"
)

// Services holds all service instances
type Services struct {
	Chat      *ChatService
	Summarize *SummarizeService

	Transcripts repository.TranscriptStore
	Summaries   repository.SummaryStore

	slots *serializer.KeyedSerializer
}

// Close stops accepting new chat turns and waits for queued turns to finish
func (s *Services) Close() {
	s.slots.Close()
}

// NewServices creates and wires all services
func NewServices(
	cfg *config.Config,
	transcripts repository.TranscriptStore,
	summaries repository.SummaryStore,
	agentClient agent.Client,
	log *logrus.Logger,
) (*Services, error) {
	loc, err := time.LoadLocation(cfg.Summarize.Timezone)
	if err != nil {
		return nil, err
	}

	slots := serializer.New(serializer.DefaultQueueSize)

	chat := NewChatService(
		transcripts,
		summaries,
		agentClient,
		slots,
		time.Duration(cfg.Agent.ChatTimeoutSec)*time.Second,
		cfg.Agent.FallbackReply,
		log,
	)

	summarize := NewSummarizeService(
		transcripts,
		summaries,
		agentClient,
		loc,
		cfg.Summarize.Workers,
		log,
	)

	return &Services{
		Chat:        chat,
		Summarize:   summarize,
		Transcripts: transcripts,
		Summaries:   summaries,
		slots:       slots,
	}, nil
}
