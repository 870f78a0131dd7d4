// Package assistant routes natural-language questions to the summary,
// visualization, or chat agents and caches repeated summary answers.
package assistant

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/agentclient"
)

// Intent is the classified purpose of a user question.
type Intent string

const (
	IntentSummary       Intent = "SUMMARY"
	IntentVisualization Intent = "VISUALIZATION"
	IntentChat          Intent = "CHAT"
)

// IntentClassifier classifies questions, preferring cheap literal matches
// over an agent call and falling back to heuristics when the agent is
// unavailable.
type IntentClassifier struct {
	agents    *agentclient.Client
	agentName string
	logger    *zap.Logger

	requestCount atomic.Int64
	fastPathHits atomic.Int64
}

// NewIntentClassifier creates a classifier backed by the named agent.
func NewIntentClassifier(agents *agentclient.Client, agentName string, logger *zap.Logger) *IntentClassifier {
	return &IntentClassifier{
		agents:    agents,
		agentName: agentName,
		logger:    logger.Named("intent"),
	}
}

// Classify determines the intent of a question.
func (ic *IntentClassifier) Classify(ctx context.Context, question string) Intent {
	ic.requestCount.Add(1)

	msg := strings.TrimSpace(question)
	if len(msg) < 2 {
		return IntentChat
	}

	// Fast path for obvious cases (no agent call needed)
	lower := strings.ToLower(msg)
	for _, greeting := range []string{"hi", "hello", "hey", "thanks", "thank you", "bye", "goodbye"} {
		if lower == greeting || lower == greeting+"!" || lower == greeting+"." {
			ic.fastPathHits.Add(1)
			return IntentChat
		}
	}
	for _, kw := range []string{"chart", "plot", "graph", "visualize", "visualise", "histogram", "bar chart", "pie chart", "time series"} {
		if strings.Contains(lower, kw) {
			ic.fastPathHits.Add(1)
			return IntentVisualization
		}
	}

	intent, err := ic.classifyWithAgent(ctx, msg)
	if err != nil {
		ic.logger.Warn("Agent classification failed, using fallback", zap.Error(err))
		return ic.fallbackClassify(msg)
	}

	ic.logger.Debug("Agent classified intent", zap.String("intent", string(intent)))
	return intent
}

func (ic *IntentClassifier) classifyWithAgent(ctx context.Context, question string) (Intent, error) {
	resp, err := ic.agents.Execute(ctx, ic.agentName, map[string]string{
		"question": question,
	})
	if err != nil {
		return "", err
	}

	result, _ := resp.FirstResult()
	switch strings.ToUpper(strings.TrimSpace(result)) {
	case "SUMMARY":
		return IntentSummary, nil
	case "VISUALIZATION":
		return IntentVisualization, nil
	default:
		return IntentChat, nil
	}
}

// fallbackClassify provides a rule-based result when the agent is down.
func (ic *IntentClassifier) fallbackClassify(question string) Intent {
	lower := strings.ToLower(question)

	for _, kw := range []string{"summarize", "summarise", "summary", "how many", "count of", "top ", "average", "errors in", "what happened"} {
		if strings.Contains(lower, kw) {
			return IntentSummary
		}
	}
	if strings.Contains(lower, "?") &&
		(strings.HasPrefix(lower, "what") ||
			strings.HasPrefix(lower, "which") ||
			strings.HasPrefix(lower, "how")) {
		return IntentSummary
	}

	return IntentChat
}

// Stats returns classification counters.
func (ic *IntentClassifier) Stats() (total, fastPath int64) {
	return ic.requestCount.Load(), ic.fastPathHits.Load()
}
