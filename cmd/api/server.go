package main

import (
	"net/http"

	"repolens/internal/analyze"
	"repolens/internal/artifactstore"
	"repolens/internal/config"
	"repolens/internal/llmclient"
	"repolens/internal/runstore"
)

// apiServer wires the streaming analysis endpoints and HTTP helpers.
type apiServer struct {
	cfg       *config.Config
	engine    llmclient.Engine
	store     *runstore.Store
	artifacts *artifactstore.S3Store

	// newProvider overrides the GitHub client factory; tests point it at a
	// fake host.
	newProvider func(repoURL, token string) (analyze.Provider, error)
}

func newAPIServer(cfg *config.Config, engine llmclient.Engine, store *runstore.Store, artifacts *artifactstore.S3Store) *apiServer {
	return &apiServer{cfg: cfg, engine: engine, store: store, artifacts: artifacts}
}

func buildMux(s *apiServer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/analyze/ws", s.handleAnalyzeWS)
	mux.HandleFunc("/api/review", s.handleReview)
	mux.HandleFunc("/api/runs/", s.handleGetRun)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
