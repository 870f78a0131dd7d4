// Package visualization turns natural-language questions into chart
// specifications via the visualization agent, and stores saved
// visualizations for the dashboard.
package visualization

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/agentclient"
	"github.com/dashboards-assistant/internal/detector"
	"github.com/dashboards-assistant/internal/jsonx"
	"github.com/dashboards-assistant/internal/searchclient"
)

// ChartSpec is a generated chart specification (vega-lite shaped).
type ChartSpec struct {
	Mark     json.RawMessage            `json:"mark"`
	Encoding map[string]EncodingChannel `json:"encoding"`
	Title    string                     `json:"title,omitempty"`
}

// EncodingChannel binds one visual channel to an index field.
type EncodingChannel struct {
	Field     string `json:"field,omitempty"`
	Type      string `json:"type,omitempty"`
	Aggregate string `json:"aggregate,omitempty"`
	TimeUnit  string `json:"timeUnit,omitempty"`
}

// Builder generates chart specs for an index.
type Builder struct {
	search    *searchclient.Registry
	agents    *agentclient.Client
	agentName string
	detector  *detector.Detector
	logger    *zap.Logger
}

// NewBuilder creates a chart spec builder.
func NewBuilder(search *searchclient.Registry, agents *agentclient.Client, agentName string, det *detector.Detector, logger *zap.Logger) *Builder {
	return &Builder{
		search:    search,
		agents:    agents,
		agentName: agentName,
		detector:  det,
		logger:    logger.Named("viz-builder"),
	}
}

// Build asks the visualization agent for a chart spec answering the
// question over the given index, then validates every encoded field
// against the index mapping.
func (b *Builder) Build(ctx context.Context, question, index, dataSourceID string) (*ChartSpec, error) {
	client, err := b.search.For(dataSourceID)
	if err != nil {
		return nil, err
	}

	mapping, err := client.GetMapping(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mapping: %w", err)
	}

	params := map[string]string{
		"question": question,
		"index":    index,
		"schema":   string(mapping),
	}

	// Log-related indices usually want a time axis; the hint is advisory,
	// so a detection failure does not fail the build.
	if isLog, err := b.detector.DetectIndexType(ctx, index, dataSourceID); err != nil {
		b.logger.Warn("Index type detection failed, building without hint",
			zap.String("index", index),
			zap.Error(err))
	} else if isLog {
		params["hint"] = "the index contains log data; prefer a time-based x axis"
	}

	resp, err := b.agents.Execute(ctx, b.agentName, params)
	if err != nil {
		return nil, fmt.Errorf("visualization agent failed: %w", err)
	}
	result, ok := resp.FirstResult()
	if !ok {
		return nil, fmt.Errorf("visualization agent returned no result")
	}

	var spec ChartSpec
	if err := jsonx.UnmarshalFromString(result, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse chart spec: %w", err)
	}
	if len(spec.Encoding) == 0 {
		return nil, fmt.Errorf("chart spec has no encodings")
	}

	fields, err := mappingFields(mapping)
	if err != nil {
		return nil, err
	}
	for channel, enc := range spec.Encoding {
		if enc.Field == "" {
			continue
		}
		if !fields[enc.Field] {
			return nil, fmt.Errorf("chart spec encodes unknown field %q on channel %q", enc.Field, channel)
		}
	}

	return &spec, nil
}

// mappingFields flattens a mapping response into the set of dotted field
// paths it defines.
func mappingFields(mapping json.RawMessage) (map[string]bool, error) {
	var parsed map[string]struct {
		Mappings struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"mappings"`
	}
	if err := jsonx.Unmarshal(mapping, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse mapping: %w", err)
	}

	fields := make(map[string]bool)
	for _, index := range parsed {
		collectFields("", index.Mappings.Properties, fields)
	}
	return fields, nil
}

func collectFields(prefix string, properties map[string]json.RawMessage, out map[string]bool) {
	for name, raw := range properties {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		out[path] = true

		var nested struct {
			Properties map[string]json.RawMessage `json:"properties"`
		}
		if err := jsonx.Unmarshal(raw, &nested); err == nil && len(nested.Properties) > 0 {
			collectFields(path, nested.Properties, out)
		}
	}
}
