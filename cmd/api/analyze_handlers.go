package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"repolens/internal/analyze"
	"repolens/internal/eventstream"
	"repolens/internal/review"
)

func (s *apiServer) newAnalyzer() *analyze.Analyzer {
	a := analyze.New(s.engine)
	if s.newProvider != nil {
		a.NewProvider = s.newProvider
	}
	a.MaxFiles = s.cfg.MaxFiles
	a.Budget = s.cfg.CorpusBudget
	a.Store = s.store
	if s.artifacts != nil {
		a.Artifacts = s.artifacts
	}
	return a
}

// handleAnalyze streams the whole-repository audit as newline-delimited
// tagged events over chunked HTTP.
func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	sw := eventstream.NewWriter(w)
	defer sw.Close()

	// First bytes go out before the body is even read, so the client can
	// tell a live connection from a hung one. The writer flushes per event.
	if err := sw.Emit(eventstream.System("connection established")); err != nil {
		return
	}

	var req analyze.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.RepoURL) == "" {
		_ = sw.Emit(eventstream.Fatal("invalid request: repo_url is required"))
		return
	}
	req.Token = firstNonEmpty(req.Token, s.cfg.GitHubToken)

	if err := s.newAnalyzer().Run(r.Context(), req, sw); err != nil {
		// Emitter failure: the client went away. Nothing left to tell it.
		log.Printf("analyze stream ended early: %v", err)
	}
}

// handleReview streams per-file reviews for an explicit path list.
func (s *apiServer) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	sw := eventstream.NewWriter(w)
	defer sw.Close()
	if err := sw.Emit(eventstream.System("connection established")); err != nil {
		return
	}

	var req review.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.RepoURL) == "" {
		_ = sw.Emit(eventstream.Fatal("invalid request: repo_url is required"))
		return
	}
	req.Token = firstNonEmpty(req.Token, s.cfg.GitHubToken)

	rv := review.New(s.engine)
	if s.newProvider != nil {
		rv.NewProvider = s.newProvider
	}
	if err := rv.Run(r.Context(), req, sw); err != nil {
		log.Printf("review stream ended early: %v", err)
	}
}

// handleGetRun returns a persisted run: /api/runs/{run_id}.
func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" {
		http.Error(w, "run_id required", http.StatusBadRequest)
		return
	}
	run, ok := s.store.Get(r.Context(), runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(run)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
