package review

import (
	"context"
	"fmt"
	"log"
	"sync"

	"repolens/internal/analyze"
	"repolens/internal/eventstream"
	"repolens/internal/githubapi"
	"repolens/internal/llmclient"
)

// Request names explicit files to review; no corpus is assembled, so fetch
// order does not matter and the fetch phase may fan out.
type Request struct {
	RepoURL string   `json:"repo_url"`
	Paths   []string `json:"paths"`
	Token   string   `json:"token,omitempty"`
}

const defaultWorkers = 4

// Reviewer reviews each requested file as its own task. Files are fetched
// concurrently (bounded fan-out, results delivered over a channel to a single
// aggregator, so no shared mutable state); engine calls stay strictly
// sequential to keep the event stream single-writer.
type Reviewer struct {
	NewProvider func(repoURL, token string) (analyze.Provider, error)
	Engine      llmclient.Engine
	Workers     int
}

func New(engine llmclient.Engine) *Reviewer {
	return &Reviewer{
		NewProvider: func(repoURL, token string) (analyze.Provider, error) {
			return githubapi.NewFromRepoURL(repoURL, token)
		},
		Engine:  engine,
		Workers: defaultWorkers,
	}
}

type fetched struct {
	idx     int
	content string
	err     error
}

func (r *Reviewer) Run(ctx context.Context, req Request, emit eventstream.Emitter) error {
	if len(req.Paths) == 0 {
		return emit.Emit(eventstream.Fatal("no files requested for review"))
	}
	provider, err := r.NewProvider(req.RepoURL, req.Token)
	if err != nil {
		return emit.Emit(eventstream.Fatal(fmt.Sprintf("invalid repository: %v", err)))
	}
	if err := emit.Emit(eventstream.System(fmt.Sprintf("reviewing %d files from %s", len(req.Paths), req.RepoURL))); err != nil {
		return err
	}

	contents := r.fetchAll(ctx, provider, req.Paths)

	for i, path := range req.Paths {
		taskID := "review:" + path
		if err := emit.Emit(eventstream.TaskStart(taskID, "Review: "+path)); err != nil {
			return err
		}
		f := contents[i]
		if f.err != nil {
			log.Printf("review: fetch %s: %v", path, f.err)
			if err := emit.Emit(eventstream.TaskEnd(taskID, f.err)); err != nil {
				return err
			}
			continue
		}

		var emitErr error
		_, taskErr := r.Engine.GenerateStream(ctx, reviewPrompt(path, f.content), func(chunk string) {
			if emitErr != nil {
				return
			}
			emitErr = emit.Emit(eventstream.TaskChunk(taskID, chunk))
		})
		if emitErr != nil {
			return emitErr
		}
		if err := emit.Emit(eventstream.TaskEnd(taskID, taskErr)); err != nil {
			return err
		}
	}
	return emit.Emit(eventstream.System("review complete"))
}

// fetchAll resolves every path with a bounded worker pool and returns results
// indexed by input position.
func (r *Reviewer) fetchAll(ctx context.Context, provider analyze.Provider, paths []string) []fetched {
	workers := r.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int)
	results := make(chan fetched, len(paths))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				content, err := provider.FetchContent(ctx, paths[idx])
				results <- fetched{idx: idx, content: content, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := range paths {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]fetched, len(paths))
	for i := range out {
		out[i] = fetched{idx: i, err: ctx.Err()}
		if out[i].err == nil {
			out[i].err = fmt.Errorf("fetch for %q did not complete", paths[i])
		}
	}
	for f := range results {
		out[f.idx] = f
	}
	return out
}

func reviewPrompt(path, content string) string {
	return "You are a meticulous code reviewer. Review the following file. " +
		"Point out bugs, unclear naming, and risky patterns, then show a corrected version of any section you would change.\n\n" +
		"// FILE: " + path + "\n" + content
}
