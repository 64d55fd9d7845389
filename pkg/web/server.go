package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/changelens/impact-engine/pkg/impact"
	"github.com/changelens/impact-engine/pkg/logging"
	"github.com/changelens/impact-engine/pkg/metrics"
	"github.com/changelens/impact-engine/pkg/model"
	"github.com/changelens/impact-engine/pkg/pubsub"
	"github.com/changelens/impact-engine/pkg/risk"
	"github.com/changelens/impact-engine/pkg/runner"
	"github.com/changelens/impact-engine/pkg/score"
	"github.com/changelens/impact-engine/pkg/store"
)

// Options holds the per-request bounds and scoring configuration the
// handlers apply.
type Options struct {
	MaxDepth      int
	MaxPaths      int
	MaxLength     int
	QueryDeadline time.Duration
	Weights       score.Weights
	Thresholds    risk.Thresholds
}

// GraphReader is the read side of the store the handlers serve from.
type GraphReader interface {
	Get(repoID, branch string) (*model.Graph, error)
	GetVersion(repoID, branch string, version int64) (*model.Graph, error)
}

// Server exposes the engine over HTTP: graph submission and retrieval,
// impact and criticality queries, and SSE progress streams.
type Server struct {
	router    *mux.Router
	store     GraphReader
	runner    *runner.Runner
	publisher pubsub.Publisher
	opts      Options
}

// NewPublisher creates the SSE publisher with the topic buffering the UI
// expects: new subscribers immediately receive the latest build state and
// the latest published snapshot.
func NewPublisher() pubsub.Publisher {
	p := pubsub.NewSSEPublisher()
	p.ConfigureTopic("build_status", pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false, // Only send current state
	})
	p.ConfigureTopic("graph_published", pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})
	return p
}

// NewServer creates a new web server.
func NewServer(st GraphReader, rn *runner.Runner, publisher pubsub.Publisher, opts Options) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		store:     st,
		runner:    rn,
		publisher: publisher,
		opts:      opts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/build_status", s.handleSubscribe("build_status")).Methods("GET")
	s.router.HandleFunc("/api/subscribe/graph_published", s.handleSubscribe("graph_published")).Methods("GET")

	// API routes - more specific routes must come first
	s.router.HandleFunc("/api/graphs/{repo}/{branch}/stats", s.handleGraphStats).Methods("GET")
	s.router.HandleFunc("/api/graphs/{repo}/{branch}/impact", s.handleImpact).Methods("POST")
	s.router.HandleFunc("/api/graphs/{repo}/{branch}/criticality", s.handleCriticality).Methods("GET")
	s.router.HandleFunc("/api/graphs/{repo}/{branch}/paths", s.handlePaths).Methods("GET")
	s.router.HandleFunc("/api/graphs/{repo}/{branch}", s.handleSubmitGraph).Methods("POST")
	s.router.HandleFunc("/api/graphs/{repo}/{branch}", s.handleGetGraph).Methods("GET")
}

// Handler returns the router wrapped with request-id logging.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting web server", "addr", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.Handler())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// graphFor loads the snapshot addressed by the request, honoring an
// optional ?version=N query parameter.
func (s *Server) graphFor(w http.ResponseWriter, r *http.Request) (*model.Graph, bool) {
	vars := mux.Vars(r)
	repo, branch := vars["repo"], vars["branch"]

	var (
		g   *model.Graph
		err error
	)
	if versionStr := r.URL.Query().Get("version"); versionStr != "" {
		version, perr := strconv.ParseInt(versionStr, 10, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid version parameter")
			return nil, false
		}
		g, err = s.store.GetVersion(repo, branch, version)
	} else {
		g, err = s.store.Get(repo, branch)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return g, true
}

// queryContext bounds a read query by the configured deadline.
func (s *Server) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.opts.QueryDeadline <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), s.opts.QueryDeadline)
}

type submitRequest struct {
	Records []model.FileFacts `json:"records"`
}

type submitResponse struct {
	Version     int64             `json:"version"`
	SnapshotID  string            `json:"snapshotId"`
	NodeCount   int               `json:"nodeCount"`
	EdgeCount   int               `json:"edgeCount"`
	Approximate bool              `json:"approximate"`
	Rejected    []builderRejected `json:"rejected"`
}

// builderRejected mirrors builder.Rejected without re-exporting the
// package type in the wire contract.
type builderRejected struct {
	FilePath string `json:"filePath"`
	Reason   string `json:"reason"`
}

func (s *Server) handleSubmitGraph(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	repo, branch := vars["repo"], vars["branch"]

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	res, err := s.runner.Run(r.Context(), repo, branch, req.Records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := submitResponse{
		Version:     res.Graph.Version,
		SnapshotID:  res.Graph.SnapshotID,
		NodeCount:   res.Graph.NodeCount(),
		EdgeCount:   res.Graph.EdgeCount(),
		Approximate: res.Graph.Approximate,
		Rejected:    make([]builderRejected, 0, len(res.Rejected)),
	}
	for _, rej := range res.Rejected {
		resp.Rejected = append(resp.Rejected, builderRejected{FilePath: rej.FilePath, Reason: rej.Reason})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	g, ok := s.graphFor(w, r)
	if !ok {
		return
	}
	data, err := model.MarshalNodeLink(g)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	g, ok := s.graphFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, metrics.Stats(g, 5))
}

type impactRequest struct {
	ChangedIDs []string `json:"changedIds"`
	MaxDepth   int      `json:"maxDepth,omitempty"`
}

type impactResponse struct {
	*impact.Result
	RiskLevel        risk.Band `json:"riskLevel"`
	AffectedServices []string  `json:"affectedServices"`
	Recommendations  []string  `json:"recommendations"`
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	g, ok := s.graphFor(w, r)
	if !ok {
		return
	}

	var req impactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.ChangedIDs) == 0 {
		writeError(w, http.StatusBadRequest, "changedIds must not be empty")
		return
	}
	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = s.opts.MaxDepth
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	result, err := impact.Compute(ctx, g, req.ChangedIDs, maxDepth)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	assessment := runner.Assess(g, req.ChangedIDs, result, s.opts.Weights, s.opts.Thresholds)
	writeJSON(w, http.StatusOK, impactResponse{
		Result:           result,
		RiskLevel:        assessment.Band,
		AffectedServices: assessment.AffectedServices,
		Recommendations:  assessment.Recommendations,
	})
}

type criticalityEntry struct {
	ID string `json:"id"`
	score.Criticality
	Band risk.Band `json:"band"`
}

func (s *Server) handleCriticality(w http.ResponseWriter, r *http.Request) {
	g, ok := s.graphFor(w, r)
	if !ok {
		return
	}

	scores, err := score.ScoreAll(g, nil, s.opts.Weights)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries := make([]criticalityEntry, 0, len(scores))
	for id, c := range scores {
		entries = append(entries, criticalityEntry{
			ID:          id,
			Criticality: c,
			Band:        s.opts.Thresholds.Classify(c.Score),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ID < entries[j].ID
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": entries})
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	g, ok := s.graphFor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	source, target := q.Get("source"), q.Get("target")
	if source == "" || target == "" {
		writeError(w, http.StatusBadRequest, "source and target parameters are required")
		return
	}
	maxPaths := s.opts.MaxPaths
	if v := q.Get("maxPaths"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid maxPaths parameter")
			return
		}
		maxPaths = n
	}
	maxLength := s.opts.MaxLength
	if v := q.Get("maxLength"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid maxLength parameter")
			return
		}
		maxLength = n
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	result, err := impact.FindPaths(ctx, g, source, target, maxPaths, maxLength)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSubscribe streams a topic over SSE until the client disconnects.
func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*") // CORS support

		// Send initial comment to establish connection (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		// Stream events
		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.Warn("error writing SSE event", "topic", topic, "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}
