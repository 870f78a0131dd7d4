package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/assistant"
	"github.com/dashboards-assistant/internal/detector"
	"github.com/dashboards-assistant/internal/events"
	"github.com/dashboards-assistant/internal/jsonx"
	"github.com/dashboards-assistant/internal/searchclient"
	"github.com/dashboards-assistant/internal/visualization"
)

// maxBodyBytes caps request bodies the API will decode.
const maxBodyBytes = 1 << 20

// Server wires the assistant components into the HTTP API.
type Server struct {
	search    *searchclient.Registry
	detector  *detector.Detector
	assistant *assistant.Service
	builder   *visualization.Builder
	store     visualization.Store
	publisher *events.Publisher
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// New creates the API server.
func New(search *searchclient.Registry, det *detector.Detector, svc *assistant.Service, builder *visualization.Builder, store visualization.Store, publisher *events.Publisher, logger *zap.Logger) *Server {
	return &Server{
		search:    search,
		detector:  det,
		assistant: svc,
		builder:   builder,
		store:     store,
		publisher: publisher,
		logger:    logger.Named("server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetupRoutes registers all API routes on the router.
func (s *Server) SetupRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/assistant/query", s.handleQuery).Methods(http.MethodPost)
	api.HandleFunc("/assistant/index-type/{index}", s.handleIndexType).Methods(http.MethodGet)
	api.HandleFunc("/assistant/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/assistant/cache", s.handleCacheClear).Methods(http.MethodDelete)

	api.HandleFunc("/assistant/visualizations", s.handleCreateVisualization).Methods(http.MethodPost)
	api.HandleFunc("/assistant/visualizations", s.handleListVisualizations).Methods(http.MethodGet)
	api.HandleFunc("/assistant/visualizations/{id}", s.handleGetVisualization).Methods(http.MethodGet)
	api.HandleFunc("/assistant/visualizations/{id}", s.handleDeleteVisualization).Methods(http.MethodDelete)

	api.HandleFunc("/assistant/chat/ws", s.handleChatWS).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.search.Default().Health(r.Context()); err != nil {
		s.logger.Warn("Search backend unhealthy", zap.Error(err))
		status = "degraded"
	}
	respondJSON(w, s.logger, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q assistant.Query
	if err := decodeBody(r, &q); err != nil {
		respondError(w, s.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.assistant.Answer(r.Context(), q)
	if err != nil {
		s.logger.Error("Query failed",
			zap.String("user", GetUserID(r.Context())),
			zap.Error(err))
		respondError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}

	s.publisher.PublishQuery(string(result.Intent), result.Cached)
	respondJSON(w, s.logger, http.StatusOK, result)
}

// indexTypeResponse is the detection API body.
type indexTypeResponse struct {
	Index        string `json:"index"`
	DataSourceID string `json:"dataSourceId"`
	IsRelated    bool   `json:"isRelated"`
}

func (s *Server) handleIndexType(w http.ResponseWriter, r *http.Request) {
	index := mux.Vars(r)["index"]
	dataSourceID := r.URL.Query().Get("dataSourceId")

	isRelated, err := s.detector.DetectIndexType(r.Context(), index, dataSourceID)
	if err != nil {
		s.logger.Error("Detection failed",
			zap.String("index", index),
			zap.Error(err))
		respondError(w, s.logger, http.StatusBadGateway, err.Error())
		return
	}

	s.publisher.PublishDetection(index, dataSourceID, isRelated)
	respondJSON(w, s.logger, http.StatusOK, indexTypeResponse{
		Index:        index,
		DataSourceID: dataSourceID,
		IsRelated:    isRelated,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses := s.detector.Cache().Stats()
	respondJSON(w, s.logger, http.StatusOK, map[string]interface{}{
		"entries": s.detector.Cache().Len(),
		"hits":    hits,
		"misses":  misses,
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.detector.Cache().Clear()
	s.logger.Info("Detection cache cleared", zap.String("user", GetUserID(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

// createVisualizationRequest builds and saves a chart in one call.
type createVisualizationRequest struct {
	Title        string `json:"title"`
	Question     string `json:"question"`
	Index        string `json:"index"`
	DataSourceID string `json:"dataSourceId"`
}

func (s *Server) handleCreateVisualization(w http.ResponseWriter, r *http.Request) {
	var req createVisualizationRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, s.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Question == "" || req.Index == "" {
		respondError(w, s.logger, http.StatusBadRequest, "title, question and index are required")
		return
	}

	spec, err := s.builder.Build(r.Context(), req.Question, req.Index, req.DataSourceID)
	if err != nil {
		s.logger.Error("Visualization build failed", zap.Error(err))
		respondError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}

	viz := &visualization.SavedVisualization{
		Title:        req.Title,
		Question:     req.Question,
		Index:        req.Index,
		DataSourceID: req.DataSourceID,
		Spec:         *spec,
	}
	if err := s.store.Save(r.Context(), viz); err != nil {
		respondError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, s.logger, http.StatusCreated, viz)
}

func (s *Server) handleListVisualizations(w http.ResponseWriter, r *http.Request) {
	vizs, err := s.store.List(r.Context())
	if err != nil {
		respondError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, s.logger, http.StatusOK, vizs)
}

func (s *Server) handleGetVisualization(w http.ResponseWriter, r *http.Request) {
	viz, err := s.store.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, visualization.ErrNotFound) {
		respondError(w, s.logger, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		respondError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, s.logger, http.StatusOK, viz)
}

func (s *Server) handleDeleteVisualization(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, visualization.ErrNotFound) {
		respondError(w, s.logger, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		respondError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody reads a size-capped JSON request body.
func decodeBody(r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return jsonx.Unmarshal(data, v)
}
