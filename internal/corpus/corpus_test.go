package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func fetchFrom(files map[string]string) FetchFunc {
	return func(_ context.Context, path string) (string, error) {
		content, ok := files[path]
		if !ok {
			return "", fmt.Errorf("no such file %q", path)
		}
		return content, nil
	}
}

func TestBuildRecordFormat(t *testing.T) {
	b := NewBuilder()
	c, err := b.Build(context.Background(), []string{"main.go"},
		fetchFrom(map[string]string{"main.go": "package main"}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := "// FILE: main.go\npackage main\n\n---\n\n"
	if c.Text != want {
		t.Fatalf("record format:\ngot  %q\nwant %q", c.Text, want)
	}
	if c.IncludedCount != 1 {
		t.Fatalf("included count %d", c.IncludedCount)
	}
}

func TestBudgetStopsAtFirstOverflow(t *testing.T) {
	files := map[string]string{
		"a.txt": strings.Repeat("a", 10),
		"b.txt": strings.Repeat("b", 10),
	}
	var log []string
	b := &Builder{Budget: 15, Notify: func(m string) { log = append(log, m) }}
	c, err := b.Build(context.Background(), []string{"a.txt", "b.txt"}, fetchFrom(files))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.IncludedCount != 1 {
		t.Fatalf("included %d files, want 1", c.IncludedCount)
	}
	if strings.Contains(c.Text, "b.txt") {
		t.Fatal("file past the budget was included")
	}
	if len(log) != 1 || !strings.Contains(log[0], "1 of 2 files") {
		t.Fatalf("missing budget notice: %v", log)
	}
}

func TestBudgetDeterministic(t *testing.T) {
	files := map[string]string{}
	var paths []string
	for i := 0; i < 20; i++ {
		p := fmt.Sprintf("f%02d.txt", i)
		files[p] = strings.Repeat("x", 100)
		paths = append(paths, p)
	}
	b := &Builder{Budget: 550}
	var first Corpus
	for run := 0; run < 5; run++ {
		c, err := b.Build(context.Background(), paths, fetchFrom(files))
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if c.IncludedCount != 5 {
			t.Fatalf("run %d: included %d, want 5", run, c.IncludedCount)
		}
		if run == 0 {
			first = c
		} else if c.Text != first.Text {
			t.Fatalf("run %d produced a different corpus", run)
		}
	}
}

func TestFirstFileAlwaysIncluded(t *testing.T) {
	files := map[string]string{"huge.txt": strings.Repeat("z", 1000)}
	b := &Builder{Budget: 10}
	c, err := b.Build(context.Background(), []string{"huge.txt"}, fetchFrom(files))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.IncludedCount != 1 {
		t.Fatalf("oversized first file excluded: %d", c.IncludedCount)
	}
}

func TestFetchFailureBecomesPlaceholder(t *testing.T) {
	files := map[string]string{"ok.go": "package ok"}
	var log []string
	b := NewBuilder()
	b.Notify = func(m string) { log = append(log, m) }
	c, err := b.Build(context.Background(), []string{"broken.go", "ok.go"}, fetchFrom(files))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.IncludedCount != 1 {
		t.Fatalf("included %d, want 1", c.IncludedCount)
	}
	if !strings.Contains(c.Text, "// FILE: broken.go\n[unavailable:") {
		t.Fatalf("missing placeholder:\n%s", c.Text)
	}
	if len(log) == 0 || !strings.Contains(log[0], "broken.go") {
		t.Fatalf("missing fetch notice: %v", log)
	}
}

func TestAllFailuresIsFatal(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build(context.Background(), []string{"a", "b"}, fetchFrom(nil))
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
