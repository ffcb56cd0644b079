// Package source loads documents as plain text for ingestion.
package source

import (
	"context"
	"errors"
)

// ErrUnsupportedFormat is returned for files whose extension has no loader.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Metadata keys set by loaders.
const (
	MetaPath      = "path"
	MetaTitle     = "title"
	MetaFormat    = "format"
	MetaPageCount = "page_count"
	MetaURL       = "url"
	MetaSHA       = "sha"
)

// Document is the plain text of one source document.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Source yields documents to ingest.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// Static is a Source over documents already in memory.
type Static []Document

func (s Static) Documents(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Multi concatenates the documents of several sources in order.
type Multi []Source

func (m Multi) Documents(ctx context.Context) ([]Document, error) {
	var all []Document
	for _, s := range m {
		docs, err := s.Documents(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
	}
	return all, nil
}
