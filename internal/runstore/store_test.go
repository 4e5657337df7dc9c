package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileBackedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	s := New(path)

	run := Run{
		ID:         "run-1",
		RepoURL:    "https://github.com/octo/demo",
		StartedAt:  time.Now().Add(-time.Minute).UTC(),
		FinishedAt: time.Now().UTC(),
		Tasks: []TaskResult{
			{ID: "summary", Title: "Project Summary", Status: "complete", Content: "a web app"},
			{ID: "errors", Title: "Error Handling Trends", Status: "error", Error: "engine timeout"},
		},
	}
	require.NoError(t, s.Save(context.Background(), run))

	// A fresh store must read it back from disk.
	s2 := New(path)
	got, ok := s2.Get(context.Background(), "run-1")
	require.True(t, ok, "run not found after reload")
	require.Equal(t, run.RepoURL, got.RepoURL)
	require.Len(t, got.Tasks, 2)
	require.Equal(t, "error", got.Tasks[1].Status)
	require.Equal(t, "engine timeout", got.Tasks[1].Error)
}

func TestSaveRequiresID(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "runs.json"))
	require.Error(t, s.Save(context.Background(), Run{}))
}

func TestGetMissing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "runs.json"))
	if _, ok := s.Get(context.Background(), "nope"); ok {
		t.Fatal("unexpected hit")
	}
}
