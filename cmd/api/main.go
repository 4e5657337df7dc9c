package main

import (
	"context"
	"log"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"repolens/internal/artifactstore"
	"repolens/internal/config"
	"repolens/internal/llmclient"
	"repolens/internal/runstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	engine, err := buildEngine(context.Background(), cfg)
	if err != nil {
		log.Fatalf("init analysis engine: %v", err)
	}
	log.Printf("analysis engine: %s", engine.Name())

	store := runstore.NewFromEnv(cfg.RunStorePath)

	var artifacts *artifactstore.S3Store
	if cfg.Artifact.Enabled {
		artifacts, err = artifactstore.NewS3Store(artifactstore.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			log.Printf("artifact store disabled: %v", err)
			artifacts = nil
		}
	}

	s := newAPIServer(cfg, engine, store, artifacts)
	h := withCORS(buildMux(s))

	log.Printf("Starting API server on %s", cfg.Port)
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}

func buildEngine(ctx context.Context, cfg *config.Config) (llmclient.Engine, error) {
	if cfg.GeminiAPIKey != "" {
		return llmclient.NewGeminiEngine(ctx, cfg.GeminiAPIKey, "")
	}
	return llmclient.NewGroqEngine(cfg.GroqAPIKey, ""), nil
}

// withCORS allows the browser UI, served from a different origin, to reach
// the streaming endpoints.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
