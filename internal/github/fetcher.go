package github

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/bull/minirag/internal/source"
)

const DefaultRef = "main"

// MetaCommit is the metadata key for the latest commit touching the base path.
const MetaCommit = "commit"

// FetchedDoc represents a text or markdown file fetched from GitHub
type FetchedDoc struct {
	Path    string // Relative path within the base directory
	Content string // Raw file content
	SHA     string // File's Git blob SHA
	URL     string // GitHub raw URL
}

// Fetcher lists and fetches documents under one repository directory.
// It implements source.Source.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	ref      string
	logger   *slog.Logger
}

// NewFetcher creates a fetcher for owner/repo at basePath. Empty ref means DefaultRef.
func NewFetcher(client *Client, owner, repo, basePath, ref string, logger *slog.Logger) *Fetcher {
	if ref == "" {
		ref = DefaultRef
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
		ref:      ref,
		logger:   logger,
	}
}

// ParseRepo splits "owner/repo[/base/path]" into its parts.
func ParseRepo(name string) (owner, repo, basePath string, err error) {
	parts := strings.SplitN(strings.Trim(name, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid repository %q, want owner/repo[/path]", name)
	}
	if len(parts) == 3 {
		basePath = parts[2]
	}
	return parts[0], parts[1], basePath, nil
}

func isDoc(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".md" || ext == ".markdown" || ext == ".txt"
}

// Documents fetches every text and markdown file under the base path.
// Markdown is converted to plain text the same way local files are.
func (f *Fetcher) Documents(ctx context.Context) ([]source.Document, error) {
	commit, err := f.GetLatestCommitSHA(ctx)
	if err != nil {
		f.logger.Warn("Could not resolve latest commit", "repo", f.owner+"/"+f.repo, "error", err)
	}

	paths, err := f.ListDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	f.logger.Info("Found documents", "repo", f.owner+"/"+f.repo, "count", len(paths))

	docs := make([]source.Document, 0, len(paths))
	for _, p := range paths {
		fetched, err := f.FetchDoc(ctx, p)
		if err != nil {
			return nil, err
		}

		doc := source.Document{
			ID: fetched.Path,
			Metadata: map[string]string{
				source.MetaPath: fetched.Path,
				source.MetaURL:  fetched.URL,
				source.MetaSHA:  fetched.SHA,
			},
		}
		if commit != "" {
			doc.Metadata[MetaCommit] = commit
		}

		if strings.ToLower(path.Ext(p)) == ".txt" {
			doc.Text = fetched.Content
			doc.Metadata[source.MetaFormat] = "text"
		} else {
			text, title, err := source.MarkdownText([]byte(fetched.Content))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			doc.Text = text
			doc.Metadata[source.MetaFormat] = "markdown"
			if title != "" {
				doc.Metadata[source.MetaTitle] = title
			}
		}

		f.logger.Debug("Fetched document", "path", p, "size", len(fetched.Content))
		docs = append(docs, doc)
	}
	return docs, nil
}

// ListDocs recursively lists all document files in the repository directory
func (f *Fetcher) ListDocs(ctx context.Context) ([]string, error) {
	return f.listDocsRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listDocsRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var docs []string

	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx,
		f.owner,
		f.repo,
		fullPath,
		&github.RepositoryContentGetOptions{Ref: f.ref},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		name := item.GetName()
		if name == "" {
			continue
		}
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if isDoc(name) {
				docs = append(docs, itemRelPath)
			}
		case "dir":
			subDocs, err := f.listDocsRecursive(ctx, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}

	return docs, nil
}

// FetchDoc fetches the content of a specific file
func (f *Fetcher) FetchDoc(ctx context.Context, relativePath string) (*FetchedDoc, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(
		ctx,
		f.owner,
		f.repo,
		fullPath,
		&github.RepositoryContentGetOptions{Ref: f.ref},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}

	rawURL := fmt.Sprintf(
		"https://raw.githubusercontent.com/%s/%s/%s/%s",
		f.owner,
		f.repo,
		f.ref,
		fullPath,
	)

	return &FetchedDoc{
		Path:    relativePath,
		Content: content,
		SHA:     fileContent.GetSHA(),
		URL:     rawURL,
	}, nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit affecting the base path
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.owner,
		f.repo,
		&github.CommitsListOptions{
			SHA:         f.ref,
			Path:        f.basePath,
			ListOptions: github.ListOptions{PerPage: 1},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.basePath)
	}
	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}
	return *commits[0].SHA, nil
}
