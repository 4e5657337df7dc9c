package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound marks a path the provider reports as missing (HTTP 404).
// The tree walker skips these and keeps going.
var ErrNotFound = errors.New("path not found")

// RateLimitError is distinguished from a generic fetch failure so callers can
// tell the user how to get unstuck instead of showing an opaque 403.
type RateLimitError struct {
	Path string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded while fetching %q; supply a personal access token to raise the limit", e.Path)
}

// EntryKind mirrors the provider's "type" field.
type EntryKind string

const (
	KindFile   EntryKind = "file"
	KindFolder EntryKind = "dir"
)

// Entry is one row of a directory listing.
type Entry struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Kind EntryKind `json:"type"`
	Size int       `json:"size"`
}

const (
	defaultBaseURL = "https://api.github.com"
	callTimeout    = 15 * time.Second
	listingCacheN  = 512
)

// Client talks to the GitHub contents API for one owner/repo@ref. Calls are
// independent and safe to run concurrently; directory listings are cached so
// re-expanding a folder inside one session costs nothing.
type Client struct {
	http    *http.Client
	baseURL string
	owner   string
	repo    string
	ref     string
	token   string

	listings *lru.Cache[string, []Entry]
}

func New(owner, repo, token string) (*Client, error) {
	owner = strings.TrimSpace(owner)
	repo = strings.TrimSpace(repo)
	if owner == "" || repo == "" {
		return nil, errors.New("githubapi: owner and repo are required")
	}
	cache, err := lru.New[string, []Entry](listingCacheN)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:     &http.Client{Timeout: callTimeout},
		baseURL:  defaultBaseURL,
		owner:    owner,
		repo:     repo,
		token:    strings.TrimSpace(token),
		listings: cache,
	}, nil
}

// NewFromRepoURL accepts the browser form, e.g. https://github.com/owner/repo.
func NewFromRepoURL(repoURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil {
		return nil, fmt.Errorf("githubapi: invalid repo url %q: %w", repoURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("githubapi: cannot derive owner/repo from %q", repoURL)
	}
	return New(parts[0], strings.TrimSuffix(parts[1], ".git"), token)
}

// SetBaseURL points the client at a different API host. Tests use this.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// SetRef pins listings and fetches to a branch, tag, or commit SHA instead
// of the repository's default branch.
func (c *Client) SetRef(ref string) {
	c.ref = strings.TrimSpace(ref)
}

func (c *Client) contentsURL(path string) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, strings.TrimPrefix(path, "/"))
	if c.ref != "" {
		u += "?ref=" + url.QueryEscape(c.ref)
	}
	return u
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentsURL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("githubapi: fetch %q: %w", path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("githubapi: %q: %w", path, ErrNotFound)
	}
	if isRateLimited(resp) {
		resp.Body.Close()
		return nil, &RateLimitError{Path: path}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("githubapi: %q: unexpected status %s: %s", path, resp.Status, string(body))
	}
	return resp, nil
}

func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden &&
		strings.TrimSpace(resp.Header.Get("x-ratelimit-remaining")) == "0"
}

// ListDir returns the entries directly under path ("" for the repo root).
func (c *Client) ListDir(ctx context.Context, path string) ([]Entry, error) {
	key := c.owner + "/" + c.repo + "@" + c.ref + ":" + path
	if cached, ok := c.listings.Get(key); ok {
		return cached, nil
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("githubapi: list %q: decode: %w", path, err)
	}
	c.listings.Add(key, entries)
	return entries, nil
}

type fileResponse struct {
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	Size     int    `json:"size"`
	Type     string `json:"type"`
}

// FetchContent retrieves one file's raw text. The provider sends base64 with
// embedded newlines; anything else it declares is an error, never silently
// substituted content. A zero-size file decodes to "" without looking at the
// payload.
func (c *Client) FetchContent(ctx context.Context, path string) (string, error) {
	resp, err := c.get(ctx, path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var f fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return "", fmt.Errorf("githubapi: fetch %q: decode: %w", path, err)
	}
	if f.Type != "" && f.Type != "file" {
		return "", fmt.Errorf("githubapi: %q is a %s, not a file", path, f.Type)
	}
	if f.Size == 0 {
		return "", nil
	}
	if f.Encoding != "base64" {
		return "", fmt.Errorf("githubapi: %q: unsupported encoding %q", path, f.Encoding)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(f.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("githubapi: %q: base64 decode: %w", path, err)
	}
	return string(raw), nil
}
