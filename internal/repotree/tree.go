package repotree

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"repolens/internal/githubapi"
)

type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Node is one file or folder in the repository tree. A folder starts
// unexpanded; Expand fills Children and flips Expanded exactly once. The two
// states are explicit rather than overloading a nil slice, since an expanded
// empty folder is a legitimate result.
type Node struct {
	Path     string
	Name     string
	Kind     Kind
	Size     int
	Expanded bool
	Children []*Node
}

func NewFolder(path, name string) *Node {
	return &Node{Path: path, Name: name, Kind: KindFolder}
}

func NewFile(path, name string, size int) *Node {
	return &Node{Path: path, Name: name, Kind: KindFile, Size: size}
}

// Lister is the directory-listing side of the provider.
type Lister interface {
	ListDir(ctx context.Context, path string) ([]githubapi.Entry, error)
}

// DefaultMaxFiles caps discovery so a huge repository cannot run the walk
// unbounded.
const DefaultMaxFiles = 500

// Walker expands folders on demand and discovers file paths. Notify, when
// set, receives human-readable progress and warning lines.
type Walker struct {
	Lister   Lister
	MaxFiles int
	Notify   func(msg string)
}

func NewWalker(l Lister) *Walker {
	return &Walker{Lister: l, MaxFiles: DefaultMaxFiles}
}

func (w *Walker) notify(format string, args ...any) {
	if w.Notify != nil {
		w.Notify(fmt.Sprintf(format, args...))
	}
}

// Expand lists folder's children and attaches them sorted, folders before
// files then lexicographic by name. Already-expanded folders are a no-op; the
// provider is never asked twice. On failure the folder stays unexpanded and
// the error is returned for the caller to contain.
func (w *Walker) Expand(ctx context.Context, folder *Node) error {
	if folder.Kind != KindFolder {
		return fmt.Errorf("repotree: expand on non-folder %q", folder.Path)
	}
	if folder.Expanded {
		return nil
	}
	entries, err := w.Lister.ListDir(ctx, folder.Path)
	if err != nil {
		return err
	}
	children := make([]*Node, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case githubapi.KindFolder:
			children = append(children, NewFolder(e.Path, e.Name))
		case githubapi.KindFile:
			children = append(children, NewFile(e.Path, e.Name, e.Size))
		default:
			// Symlinks, submodules and the like have no content to analyze.
		}
	}
	sort.SliceStable(children, func(i, j int) bool {
		if children[i].Kind != children[j].Kind {
			return children[i].Kind == KindFolder
		}
		return children[i].Name < children[j].Name
	})
	folder.Children = children
	folder.Expanded = true
	return nil
}

// FileRef is one discovered file: its path plus the size the listing already
// reported, so later fetch decisions need no extra provider call.
type FileRef struct {
	Path string
	Size int
}

// DiscoverAllPaths walks every folder reachable from roots depth-first and
// returns the discovered files. One inaccessible directory is skipped
// with a warning; a rate-limit error aborts, since retrying every remaining
// folder would only dig the hole deeper. The walk checks ctx between
// expansions so a cancelled caller stops promptly.
func (w *Walker) DiscoverAllPaths(ctx context.Context, roots []*Node) ([]FileRef, error) {
	maxFiles := w.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	var paths []FileRef
	stack := make([]*Node, len(roots))
	copy(stack, roots)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Kind == KindFile {
			paths = append(paths, FileRef{Path: n.Path, Size: n.Size})
			if len(paths) >= maxFiles {
				w.notify("file cap reached (%d files); stopping discovery", maxFiles)
				return paths, nil
			}
			continue
		}

		if !n.Expanded {
			w.notify("scanning directory: %s", displayPath(n.Path))
			if err := w.Expand(ctx, n); err != nil {
				var rl *githubapi.RateLimitError
				if errors.As(err, &rl) {
					return paths, rl
				}
				if errors.Is(err, githubapi.ErrNotFound) {
					w.notify("skipping %s: not found", displayPath(n.Path))
				} else {
					w.notify("skipping %s: %v", displayPath(n.Path), err)
				}
				continue
			}
		}
		// Push in reverse so traversal visits children in sorted order.
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return paths, nil
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
