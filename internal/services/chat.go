package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/memoapp/memo-backend/internal/agent"
	"github.com/memoapp/memo-backend/internal/repository"
	"github.com/memoapp/memo-backend/internal/serializer"
)

const (
	priorMessageLimit = 100
	priorSummaryLimit = 7
)

// ChatService orchestrates one conversation turn: append the user message,
// call the agent under a timeout, append the assistant reply. All three
// steps run on the owner's serializer slot, so turns for the same owner
// never interleave; the store's optimistic version check is a second line
// of defense, not the ordering mechanism.
type ChatService struct {
	transcripts repository.TranscriptStore
	summaries   repository.SummaryStore
	agent       agent.Client
	slots       *serializer.KeyedSerializer
	chatTimeout time.Duration
	fallback    string
	log         *logrus.Logger
}

// NewChatService creates a new chat orchestration service
func NewChatService(
	transcripts repository.TranscriptStore,
	summaries repository.SummaryStore,
	agentClient agent.Client,
	slots *serializer.KeyedSerializer,
	chatTimeout time.Duration,
	fallback string,
	log *logrus.Logger,
) *ChatService {
	return &ChatService{
		transcripts: transcripts,
		summaries:   summaries,
		agent:       agentClient,
		slots:       slots,
		chatTimeout: chatTimeout,
		fallback:    fallback,
		log:         log,
	}
}

// Handle processes one inbound message in a fresh session and returns the
// assistant reply synchronously.
func (s *ChatService) Handle(ctx context.Context, owner, text string, now time.Time) (string, error) {
	session, err := s.transcripts.CreateSession(ctx, owner, now)
	if err != nil {
		return "", err
	}
	return s.runTurn(ctx, owner, session.SessionID, text, now)
}

// HandleInSession processes one inbound message in an existing session.
// Live connections keep one session for their lifetime and call this per
// message.
func (s *ChatService) HandleInSession(ctx context.Context, owner, sessionID, text string, now time.Time) (string, error) {
	return s.runTurn(ctx, owner, sessionID, text, now)
}

// HandleAsync schedules one turn in a fresh session and delivers the reply
// out of band. Used by push-style entry points that must acknowledge
// immediately.
func (s *ChatService) HandleAsync(ctx context.Context, owner, text string, now time.Time, deliver func(reply string, err error)) {
	err := s.slots.Submit(owner, func() {
		session, err := s.transcripts.CreateSession(ctx, owner, now)
		if err != nil {
			deliver("", err)
			return
		}
		reply, err := s.turn(ctx, owner, session.SessionID, text, now)
		deliver(reply, err)
	})
	if err != nil {
		deliver("", err)
	}
}

// StartSession opens a session for a live connection
func (s *ChatService) StartSession(ctx context.Context, owner string, now time.Time) (*repository.Session, error) {
	return s.transcripts.CreateSession(ctx, owner, now)
}

// EndSession closes a live connection's session
func (s *ChatService) EndSession(ctx context.Context, sessionID string, now time.Time) error {
	return s.transcripts.CloseSession(ctx, sessionID, now)
}

// runTurn executes the turn on the owner's slot and waits for the result
func (s *ChatService) runTurn(ctx context.Context, owner, sessionID, text string, now time.Time) (string, error) {
	type result struct {
		reply string
		err   error
	}
	done := make(chan result, 1)

	err := s.slots.Submit(owner, func() {
		reply, err := s.turn(ctx, owner, sessionID, text, now)
		done <- result{reply: reply, err: err}
	})
	if err != nil {
		return "", err
	}

	r := <-done
	return r.reply, r.err
}

// turn runs on the owner's slot. Storage failures propagate; agent failures
// degrade to the fallback reply so the turn always completes with exactly
// two appended messages.
func (s *ChatService) turn(ctx context.Context, owner, sessionID, text string, now time.Time) (string, error) {
	// Gather context before the current message lands in the transcript.
	cc := s.buildContext(ctx, owner)

	if err := s.transcripts.AppendMessage(ctx, sessionID, "user", text, now); err != nil {
		return "", err
	}

	reply := s.agentReply(ctx, owner, text, cc)

	if err := s.transcripts.AppendMessage(ctx, sessionID, "assistant", reply, time.Now()); err != nil {
		return "", err
	}

	return reply, nil
}

func (s *ChatService) agentReply(ctx context.Context, owner, text string, cc agent.ChatContext) string {
	callCtx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()

	reply, err := s.agent.Chat(callCtx, owner, text, cc)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"owner":    owner,
			"trace_id": cc.TraceID,
		}).WithError(err).Error("agent chat failed, using fallback reply")
		return s.fallback
	}
	return reply
}

// buildContext gathers prior chat and summary context for the agent.
// Context fetching is best effort; a failed lookup degrades to less context,
// never to a failed turn.
func (s *ChatService) buildContext(ctx context.Context, owner string) agent.ChatContext {
	cc := agent.ChatContext{TraceID: uuid.New().String()}

	priorMsgs, err := s.transcripts.RecentUserMessages(ctx, owner, priorMessageLimit)
	if err != nil {
		s.log.WithField("owner", owner).WithError(err).Warn("failed to load prior messages")
	}
	for _, m := range priorMsgs {
		cc.PriorMessages = append(cc.PriorMessages, agent.PriorMessage{Ts: m.Ts, Content: m.Content})
	}

	priorSums, err := s.summaries.ListByOwner(ctx, owner, priorSummaryLimit)
	if err != nil {
		s.log.WithField("owner", owner).WithError(err).Warn("failed to load prior summaries")
	}
	for _, ds := range priorSums {
		cc.PriorSummaries = append(cc.PriorSummaries, agent.PriorSummary{
			Date:    ds.SummaryDate.Format("2006-01-02"),
			Title:   ds.ArticleTitle,
			Article: ds.Article,
		})
	}

	return cc
}
