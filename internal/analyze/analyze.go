package analyze

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"repolens/internal/corpus"
	"repolens/internal/eventstream"
	"repolens/internal/githubapi"
	"repolens/internal/llmclient"
	"repolens/internal/repotree"
	"repolens/internal/runstore"
	"repolens/internal/sequencer"
)

// Provider is the slice of the hosting API the pipeline needs: directory
// listings and file content. *githubapi.Client satisfies it; tests use fakes.
type Provider interface {
	ListDir(ctx context.Context, path string) ([]githubapi.Entry, error)
	FetchContent(ctx context.Context, path string) (string, error)
}

// Request identifies what to analyze.
type Request struct {
	RepoURL string `json:"repo_url"`
	Token   string `json:"token,omitempty"`
}

// snapshotCap bounds the content echoed in processing_file events; the full
// text still goes into the corpus.
const snapshotCap = 500

// Analyzer runs the whole-repository audit pipeline and reports everything
// through a single event stream.
type Analyzer struct {
	NewProvider func(repoURL, token string) (Provider, error)
	Engine      llmclient.Engine
	MaxFiles    int
	Budget      int

	// Optional posterity hooks; nil disables them.
	Store     *runstore.Store
	Artifacts ArtifactSink
}

// ArtifactSink receives the built corpus and the final report for a run.
type ArtifactSink interface {
	Put(ctx context.Context, runID, name string, content []byte) error
}

func New(engine llmclient.Engine) *Analyzer {
	return &Analyzer{
		NewProvider: func(repoURL, token string) (Provider, error) {
			return githubapi.NewFromRepoURL(repoURL, token)
		},
		Engine:   engine,
		MaxFiles: repotree.DefaultMaxFiles,
		Budget:   corpus.DefaultBudget,
	}
}

// Run drives the pipeline: discover paths, fetch each file sequentially
// (progress per file), build the bounded corpus, then run the task sequence.
// Failures local to one folder, file, or task are reported as events and
// contained; only structural failures (bad request, rate limit during
// discovery, empty corpus) produce a terminal error event. Run never returns
// an error for pipeline failures, only when the emitter itself dies.
func (a *Analyzer) Run(ctx context.Context, req Request, emit eventstream.Emitter) error {
	fatal := func(format string, args ...any) error {
		msg := fmt.Sprintf(format, args...)
		log.Printf("analyze: fatal: %s", msg)
		return emit.Emit(eventstream.Fatal(msg))
	}

	provider, err := a.NewProvider(req.RepoURL, req.Token)
	if err != nil {
		return fatal("invalid repository: %v", err)
	}
	if err := emit.Emit(eventstream.System("analyzing " + req.RepoURL)); err != nil {
		return err
	}

	// Discovery. Progress lines become system events.
	var emitErr error
	sysNotify := func(msg string) {
		if emitErr == nil {
			emitErr = emit.Emit(eventstream.System(msg))
		}
	}
	walker := repotree.NewWalker(provider)
	walker.MaxFiles = a.MaxFiles
	walker.Notify = sysNotify

	root := repotree.NewFolder("", "")
	files, err := walker.DiscoverAllPaths(ctx, []*repotree.Node{root})
	if emitErr != nil {
		return emitErr
	}
	if err != nil {
		var rl *githubapi.RateLimitError
		if errors.As(err, &rl) {
			return fatal("%v", rl)
		}
		return fatal("repository discovery failed: %v", err)
	}
	if len(files) == 0 {
		return fatal("no files found in repository")
	}
	if err := emit.Emit(eventstream.System(fmt.Sprintf("discovered %d files", len(files)))); err != nil {
		return err
	}

	paths := make([]string, len(files))
	sizes := make(map[string]int, len(files))
	for i, f := range files {
		paths[i] = f.Path
		sizes[f.Path] = f.Size
	}

	// Sequential fetch keeps progress events meaningful and bounds the
	// provider request volume. A file the listing already reported empty is
	// "" without another round-trip.
	builder := &corpus.Builder{Budget: a.Budget, Notify: sysNotify}
	fetch := func(ctx context.Context, path string) (string, error) {
		var content string
		if sizes[path] != 0 {
			c, err := provider.FetchContent(ctx, path)
			if err != nil {
				return "", err
			}
			content = c
		}
		if emitErr == nil {
			emitErr = emit.Emit(eventstream.ProcessingFile(path, snapshot(content)))
		}
		return content, nil
	}
	built, err := builder.Build(ctx, paths, fetch)
	if emitErr != nil {
		return emitErr
	}
	if err != nil {
		if errors.Is(err, corpus.ErrEmpty) {
			return fatal("no repository files could be fetched; nothing to analyze")
		}
		return fatal("building analysis context failed: %v", err)
	}

	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	a.putArtifact(ctx, runID, "corpus.txt", []byte(built.Text))

	seq := &sequencer.Sequencer{Engine: a.Engine, Tasks: sequencer.DefaultTasks()}
	started := time.Now()
	results, err := seq.Run(ctx, built.Text, emit)
	if err != nil {
		return err
	}

	a.persist(ctx, runID, req.RepoURL, started, results)
	return emit.Emit(eventstream.System("analysis complete"))
}

func (a *Analyzer) persist(ctx context.Context, runID, repoURL string, started time.Time, results []sequencer.Result) {
	if a.Store == nil {
		return
	}
	run := runstore.Run{
		ID:         runID,
		RepoURL:    repoURL,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	var report []byte
	for _, res := range results {
		tr := runstore.TaskResult{ID: res.ID, Title: res.Title, Status: "complete", Content: res.Content}
		if res.Err != nil {
			tr.Status = "error"
			tr.Error = res.Err.Error()
		}
		run.Tasks = append(run.Tasks, tr)
		report = append(report, []byte("## "+res.Title+"\n\n"+res.Content+"\n\n")...)
	}
	if err := a.Store.Save(ctx, run); err != nil {
		log.Printf("analyze: persist run %s: %v", runID, err)
	}
	a.putArtifact(ctx, runID, "report.md", report)
}

func (a *Analyzer) putArtifact(ctx context.Context, runID, name string, content []byte) {
	if a.Artifacts == nil {
		return
	}
	if err := a.Artifacts.Put(ctx, runID, name, content); err != nil {
		log.Printf("analyze: artifact %s/%s: %v", runID, name, err)
	}
}

func snapshot(content string) string {
	if len(content) <= snapshotCap {
		return content
	}
	return content[:snapshotCap]
}
