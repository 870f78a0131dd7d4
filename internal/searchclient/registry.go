package searchclient

import (
	"fmt"

	"go.uber.org/zap"
)

// Registry resolves data-source ids to search clients. The empty-string id
// is the default cluster; an absent data-source id normalizes to it.
type Registry struct {
	clients map[string]*Client
}

// NewRegistry builds one client per configured endpoint.
func NewRegistry(endpoints map[string]string, logger *zap.Logger) (*Registry, error) {
	if endpoints[""] == "" {
		return nil, fmt.Errorf("no default search endpoint configured")
	}
	clients := make(map[string]*Client, len(endpoints))
	for id, base := range endpoints {
		clients[id] = New(Config{BaseURL: base}, logger)
	}
	return &Registry{clients: clients}, nil
}

// For returns the client for a data-source id.
func (r *Registry) For(dataSourceID string) (*Client, error) {
	c, ok := r.clients[dataSourceID]
	if !ok {
		return nil, fmt.Errorf("unknown data source %q", dataSourceID)
	}
	return c, nil
}

// Default returns the default cluster's client.
func (r *Registry) Default() *Client {
	return r.clients[""]
}
