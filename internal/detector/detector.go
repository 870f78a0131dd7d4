package detector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/agentclient"
	"github.com/dashboards-assistant/internal/jsonx"
	"github.com/dashboards-assistant/internal/searchclient"
)

// Detector runs index-type classification through the detection agent.
type Detector struct {
	search    *searchclient.Registry
	agents    *agentclient.Client
	agentName string
	cache     *Cache
	logger    *zap.Logger
}

// New creates a detector using the named agent configuration.
func New(search *searchclient.Registry, agents *agentclient.Client, agentName string, cache *Cache, logger *zap.Logger) *Detector {
	return &Detector{
		search:    search,
		agents:    agents,
		agentName: agentName,
		cache:     cache,
		logger:    logger.Named("detector"),
	}
}

// Cache exposes the detection cache for stats and lifecycle handling.
func (d *Detector) Cache() *Cache {
	return d.cache
}

// DetectIndexType reports whether an index's content is log-related.
// Any internal failure (transport, decode) surfaces as a single wrapped
// error; a negative classification is not an error.
func (d *Detector) DetectIndexType(ctx context.Context, index, dataSourceID string) (bool, error) {
	related, err := d.detect(ctx, index, dataSourceID)
	if err != nil {
		return false, fmt.Errorf("Error in detectIndexType: %w", err)
	}
	return related, nil
}

// detect mirrors the upstream call sequence: both backend fetches happen
// before the cache is consulted, so a cache hit still costs two search
// calls. Kept that way deliberately; see the cache-hit test.
func (d *Detector) detect(ctx context.Context, index, dataSourceID string) (bool, error) {
	client, err := d.search.For(dataSourceID)
	if err != nil {
		return false, err
	}

	mapping, err := client.GetMapping(ctx, index)
	if err != nil {
		return false, err
	}
	samples, err := client.SampleDocuments(ctx, index)
	if err != nil {
		return false, err
	}

	schema := string(mapping)
	sampleData, err := jsonx.MarshalToString(samples)
	if err != nil {
		return false, err
	}

	if entry, found := d.cache.Get(ctx, index, dataSourceID); found {
		d.logger.Debug("Detection cache hit",
			zap.String("index", index),
			zap.String("data_source", dataSourceID),
			zap.Bool("is_related", entry.IsRelated))
		return entry.IsRelated, nil
	}

	resp, err := d.agents.Execute(ctx, d.agentName, map[string]string{
		"schema":     schema,
		"sampleData": sampleData,
	})
	if err != nil {
		return false, err
	}

	result, ok := resp.FirstResult()
	if !ok {
		return false, fmt.Errorf("agent returned no inference result")
	}

	// Anything that is not an object (null, false, 0, "") carries no
	// verdict: report not related and skip the cache. Object payloads
	// are cached wholesale, isRelated: false included.
	var raw interface{}
	if err := jsonx.UnmarshalFromString(result, &raw); err != nil {
		return false, fmt.Errorf("failed to parse agent result: %w", err)
	}
	if _, ok := raw.(map[string]interface{}); !ok {
		return false, nil
	}

	var entry IndexCacheData
	if err := jsonx.UnmarshalFromString(result, &entry); err != nil {
		return false, fmt.Errorf("failed to parse agent result: %w", err)
	}

	d.cache.Set(ctx, entry, index, dataSourceID)
	d.logger.Debug("Detection cache write",
		zap.String("index", index),
		zap.String("data_source", dataSourceID),
		zap.Bool("is_related", entry.IsRelated),
		zap.String("reason", entry.Reason))
	d.logger.Debug("Detection cache contents", zap.Any("entries", d.cache.Dump()))

	return entry.IsRelated, nil
}
