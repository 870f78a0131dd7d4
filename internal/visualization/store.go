package visualization

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/jsonx"
)

// savedVizKey is the redis hash holding all saved visualizations.
const savedVizKey = "assistant:saved-viz"

// ErrNotFound is returned when a saved visualization does not exist.
var ErrNotFound = fmt.Errorf("saved visualization not found")

// SavedVisualization is a persisted, user-titled chart.
type SavedVisualization struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Question     string    `json:"question"`
	Index        string    `json:"index"`
	DataSourceID string    `json:"dataSourceId"`
	Spec         ChartSpec `json:"spec"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store persists saved visualizations.
type Store interface {
	Save(ctx context.Context, viz *SavedVisualization) error
	Get(ctx context.Context, id string) (*SavedVisualization, error)
	List(ctx context.Context) ([]*SavedVisualization, error)
	Delete(ctx context.Context, id string) error
}

// RedisHashes is the subset of redis hash commands the store uses.
// *redis.Client satisfies it; tests inject a fake.
type RedisHashes interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
}

// NewStore returns a redis-backed store, or an in-process one when no
// redis client is configured.
func NewStore(redisClient RedisHashes, logger *zap.Logger) Store {
	if redisClient == nil {
		return newMemoryStore()
	}
	return &redisStore{
		client: redisClient,
		logger: logger.Named("saved-viz"),
	}
}

type redisStore struct {
	client RedisHashes
	logger *zap.Logger
}

func (s *redisStore) Save(ctx context.Context, viz *SavedVisualization) error {
	now := time.Now().UTC()
	if viz.ID == "" {
		viz.ID = uuid.New().String()
		viz.CreatedAt = now
	}
	viz.UpdatedAt = now

	data, err := jsonx.Marshal(viz)
	if err != nil {
		return fmt.Errorf("failed to marshal visualization: %w", err)
	}
	if err := s.client.HSet(ctx, savedVizKey, viz.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save visualization: %w", err)
	}

	s.logger.Debug("Saved visualization",
		zap.String("id", viz.ID),
		zap.String("title", viz.Title))
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (*SavedVisualization, error) {
	data, err := s.client.HGet(ctx, savedVizKey, id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load visualization: %w", err)
	}

	var viz SavedVisualization
	if err := jsonx.Unmarshal(data, &viz); err != nil {
		return nil, fmt.Errorf("failed to decode visualization: %w", err)
	}
	return &viz, nil
}

func (s *redisStore) List(ctx context.Context) ([]*SavedVisualization, error) {
	entries, err := s.client.HGetAll(ctx, savedVizKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list visualizations: %w", err)
	}

	out := make([]*SavedVisualization, 0, len(entries))
	for id, data := range entries {
		var viz SavedVisualization
		if err := jsonx.UnmarshalFromString(data, &viz); err != nil {
			s.logger.Warn("Skipping undecodable saved visualization",
				zap.String("id", id),
				zap.Error(err))
			continue
		}
		out = append(out, &viz)
	}
	return out, nil
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, savedVizKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete visualization: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// memoryStore keeps saved visualizations in-process. Used in development
// and tests when redis is not configured.
type memoryStore struct {
	mu   sync.RWMutex
	vizs map[string]*SavedVisualization
}

func newMemoryStore() *memoryStore {
	return &memoryStore{vizs: make(map[string]*SavedVisualization)}
}

func (s *memoryStore) Save(_ context.Context, viz *SavedVisualization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if viz.ID == "" {
		viz.ID = uuid.New().String()
		viz.CreatedAt = now
	}
	viz.UpdatedAt = now

	copied := *viz
	s.vizs[viz.ID] = &copied
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*SavedVisualization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	viz, ok := s.vizs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *viz
	return &copied, nil
}

func (s *memoryStore) List(_ context.Context) ([]*SavedVisualization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*SavedVisualization, 0, len(s.vizs))
	for _, viz := range s.vizs {
		copied := *viz
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vizs[id]; !ok {
		return ErrNotFound
	}
	delete(s.vizs, id)
	return nil
}
