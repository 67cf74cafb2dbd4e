package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

type Router struct {
	retrieval      ports.RetrievalService
	feedback       ports.FeedbackService
	queue          ports.FeedbackQueue
	metricsHandler http.Handler
}

func NewRouter(
	retrieval ports.RetrievalService,
	feedback ports.FeedbackService,
	queue ports.FeedbackQueue,
	metricsHandler http.Handler,
) *Router {
	return &Router{
		retrieval:      retrieval,
		feedback:       feedback,
		queue:          queue,
		metricsHandler: metricsHandler,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/feedback", rt.submitFeedback)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query        string `json:"query"`
		TopK         int    `json:"top_k"`
		SourceFilter string `json:"source_filter"`
		OfficialOnly bool   `json:"official_only"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	result, err := rt.retrieval.Retrieve(r.Context(), req.Query, domain.RetrieveOptions{
		TopK:         req.TopK,
		SourceFilter: req.SourceFilter,
		Context:      domain.QueryContext{OfficialOnly: req.OfficialOnly},
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) submitFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var event domain.RewardEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if event.DecisionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "decision_id is required"})
		return
	}
	// Stats are keyed by (tile, arm) and kept forever, so unknown keys
	// must be rejected at the boundary.
	if event.Tile < 0 || event.Tile >= domain.TileCount {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tile out of range"})
		return
	}
	if !domain.ValidArm(event.Arm) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown arm"})
		return
	}

	// With a queue configured the reward is applied asynchronously by the
	// worker; otherwise it is shaped and applied in-process.
	if rt.queue != nil {
		if err := rt.queue.PublishReward(r.Context(), event); err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	if err := rt.feedback.Submit(r.Context(), event); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
