package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Files loads documents from file paths. Directories are walked recursively and
// only files with a supported extension are kept; a file named explicitly with
// an unsupported extension is an error.
type Files struct {
	Paths []string
}

// NewFiles creates a file source over paths.
func NewFiles(paths ...string) *Files {
	return &Files{Paths: paths}
}

// Supported reports whether path has a loader.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".md", ".markdown", ".pdf":
		return true
	}
	return false
}

func (s *Files) Documents(ctx context.Context) ([]Document, error) {
	var files []string
	for _, p := range s.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && Supported(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
		slices.Sort(found)
		files = append(files, found...)
	}

	docs := make([]Document, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadFile reads one file into a Document whose ID is the file name.
func LoadFile(path string) (Document, error) {
	doc := Document{
		ID:       filepath.Base(path),
		Metadata: map[string]string{MetaPath: path},
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".text":
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("read %s: %w", path, err)
		}
		doc.Text = string(data)
		doc.Metadata[MetaFormat] = "text"

	case ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return Document{}, fmt.Errorf("read %s: %w", path, err)
		}
		text, title, err := MarkdownText(data)
		if err != nil {
			return Document{}, fmt.Errorf("%s: %w", path, err)
		}
		doc.Text = text
		doc.Metadata[MetaFormat] = "markdown"
		if title != "" {
			doc.Metadata[MetaTitle] = title
		}

	case ".pdf":
		text, pages, err := PDFText(path)
		if err != nil {
			return Document{}, fmt.Errorf("%s: %w", path, err)
		}
		doc.Text = text
		doc.Metadata[MetaFormat] = "pdf"
		doc.Metadata[MetaPageCount] = strconv.Itoa(pages)

	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	return doc, nil
}
