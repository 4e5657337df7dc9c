package corpus

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty means not a single file could be fetched. Analysis has nothing to
// work with, so this is fatal and must be raised before any task starts.
var ErrEmpty = errors.New("corpus: no files could be fetched")

// DefaultBudget is the character cap on the assembled corpus.
const DefaultBudget = 750_000

// FetchFunc resolves one path to its text content.
type FetchFunc func(ctx context.Context, path string) (string, error)

// Corpus is the concatenated, delimited file text handed to the engine,
// immutable once built.
type Corpus struct {
	Text          string
	IncludedCount int
}

// Builder assembles file contents into one bounded corpus. Notify, when set,
// receives the budget and error notices.
type Builder struct {
	Budget int
	Notify func(msg string)
}

func NewBuilder() *Builder {
	return &Builder{Budget: DefaultBudget}
}

func (b *Builder) notify(format string, args ...any) {
	if b.Notify != nil {
		b.Notify(fmt.Sprintf(format, args...))
	}
}

// Build fetches paths in order and appends a delimited record per file.
// Sizing is deterministic and order-dependent: once the running content total
// plus the next file would exceed the budget, that file and everything after
// it is excluded. The first fetchable file is always included even if it
// alone blows the budget. Fetch failures append a placeholder record so the
// engine knows the file exists but was unreadable.
func (b *Builder) Build(ctx context.Context, paths []string, fetch FetchFunc) (Corpus, error) {
	budget := b.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	var sb strings.Builder
	included := 0
	total := 0

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return Corpus{}, err
		}
		content, err := fetch(ctx, path)
		if err != nil {
			b.notify("could not fetch %s: %v", path, err)
			writeRecord(&sb, path, fmt.Sprintf("[unavailable: %v]", err))
			continue
		}
		if included > 0 && total+len(content) > budget {
			b.notify("context budget reached; %d of %d files included", included, len(paths))
			break
		}
		writeRecord(&sb, path, content)
		total += len(content)
		included++
	}

	if included == 0 {
		return Corpus{}, ErrEmpty
	}
	return Corpus{Text: sb.String(), IncludedCount: included}, nil
}

func writeRecord(sb *strings.Builder, path, content string) {
	sb.WriteString("// FILE: ")
	sb.WriteString(path)
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n\n---\n\n")
}
