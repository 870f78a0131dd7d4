package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/agentclient"
	"github.com/dashboards-assistant/internal/visualization"
)

// maxConversationTurns bounds the chat history kept per conversation.
const maxConversationTurns = 20

// Query is one user question routed through the assistant.
type Query struct {
	Question       string `json:"question"`
	Index          string `json:"index,omitempty"`
	DataSourceID   string `json:"dataSourceId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Result is the assistant's answer to a query.
type Result struct {
	Intent         Intent                   `json:"intent"`
	Answer         string                   `json:"answer,omitempty"`
	ChartSpec      *visualization.ChartSpec `json:"chartSpec,omitempty"`
	ConversationID string                   `json:"conversationId,omitempty"`
	Cached         bool                     `json:"cached"`
}

// AgentNames identifies the agents the service dispatches to.
type AgentNames struct {
	Summary string
	Chat    string
}

// Service routes questions by intent.
type Service struct {
	agents     *agentclient.Client
	agentNames AgentNames
	classifier *IntentClassifier
	builder    *visualization.Builder
	answers    *ristretto.Cache[string, string]
	answerTTL  time.Duration
	logger     *zap.Logger

	mu            sync.Mutex
	conversations map[string][]turn
}

type turn struct {
	question string
	answer   string
}

// NewService creates the assistant query router.
func NewService(agents *agentclient.Client, names AgentNames, classifier *IntentClassifier, builder *visualization.Builder, answerTTL time.Duration, logger *zap.Logger) (*Service, error) {
	answers, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 1e5,
		MaxCost:     16 * 1024 * 1024,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create answer cache: %w", err)
	}
	if answerTTL == 0 {
		answerTTL = 5 * time.Minute
	}

	return &Service{
		agents:        agents,
		agentNames:    names,
		classifier:    classifier,
		builder:       builder,
		answers:       answers,
		answerTTL:     answerTTL,
		logger:        logger.Named("assistant"),
		conversations: make(map[string][]turn),
	}, nil
}

// Close releases the answer cache.
func (s *Service) Close() {
	s.answers.Close()
}

// Answer classifies the question and dispatches it to the matching agent.
func (s *Service) Answer(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.Question) == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	intent := s.classifier.Classify(ctx, q.Question)
	s.logger.Debug("Routing question",
		zap.String("intent", string(intent)),
		zap.String("index", q.Index))

	switch intent {
	case IntentVisualization:
		return s.answerVisualization(ctx, q)
	case IntentSummary:
		return s.answerSummary(ctx, q)
	default:
		return s.answerChat(ctx, q)
	}
}

func (s *Service) answerVisualization(ctx context.Context, q Query) (*Result, error) {
	if q.Index == "" {
		return nil, fmt.Errorf("visualization questions require an index")
	}
	spec, err := s.builder.Build(ctx, q.Question, q.Index, q.DataSourceID)
	if err != nil {
		return nil, err
	}
	return &Result{Intent: IntentVisualization, ChartSpec: spec}, nil
}

func (s *Service) answerSummary(ctx context.Context, q Query) (*Result, error) {
	key := answerKey(q.Question, q.Index, q.DataSourceID)
	if answer, found := s.answers.Get(key); found {
		s.logger.Debug("Answer cache hit", zap.String("key", key))
		return &Result{Intent: IntentSummary, Answer: answer, Cached: true}, nil
	}

	params := map[string]string{"question": q.Question}
	if q.Index != "" {
		params["index"] = q.Index
	}
	resp, err := s.agents.Execute(ctx, s.agentNames.Summary, params)
	if err != nil {
		return nil, fmt.Errorf("summary agent failed: %w", err)
	}
	answer, ok := resp.FirstResult()
	if !ok {
		return nil, fmt.Errorf("summary agent returned no result")
	}

	s.answers.SetWithTTL(key, answer, int64(len(answer)), s.answerTTL)
	return &Result{Intent: IntentSummary, Answer: answer}, nil
}

func (s *Service) answerChat(ctx context.Context, q Query) (*Result, error) {
	convID := q.ConversationID
	if convID == "" {
		convID = uuid.New().String()
	}

	params := map[string]string{"question": q.Question}
	if history := s.historyFor(convID); history != "" {
		params["context"] = history
	}

	resp, err := s.agents.Execute(ctx, s.agentNames.Chat, params)
	if err != nil {
		return nil, fmt.Errorf("chat agent failed: %w", err)
	}
	answer, ok := resp.FirstResult()
	if !ok {
		return nil, fmt.Errorf("chat agent returned no result")
	}

	s.remember(convID, q.Question, answer)
	return &Result{Intent: IntentChat, Answer: answer, ConversationID: convID}, nil
}

// historyFor serializes prior turns for the chat agent's context window.
func (s *Service) historyFor(convID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.conversations[convID]
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString("user: ")
		b.WriteString(t.question)
		b.WriteString("\nassistant: ")
		b.WriteString(t.answer)
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Service) remember(convID, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.conversations[convID], turn{question: question, answer: answer})
	if len(turns) > maxConversationTurns {
		turns = turns[len(turns)-maxConversationTurns:]
	}
	s.conversations[convID] = turns
}

// answerKey hashes the normalized question with its index scope.
func answerKey(question, index, dataSourceID string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized + "|" + index + "|" + dataSourceID))
	return "answer:" + hex.EncodeToString(sum[:])
}
