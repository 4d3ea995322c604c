// Package source reads scraped course and forum content into documents.
package source

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"virtualta/internal/domain"
)

// Format names a raw JSON layout.
type Format string

const (
	FormatCourse    Format = "course"
	FormatDiscourse Format = "discourse"
)

type courseItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Image   string `json:"image"`
}

// courseEntry is either a flat page ({title, content}) or a section
// ({section_title, items: [...]}).
type courseEntry struct {
	courseItem
	SectionTitle string       `json:"section_title"`
	Items        []courseItem `json:"items"`
}

type discourseItem struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Image   string `json:"image"`
}

// Expand resolves glob patterns (doublestar syntax, e.g. data/**/*.json)
// into a sorted, de-duplicated list of files. A pattern without glob
// metacharacters must name an existing file.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// LoadFiles reads every file in order and concatenates the documents.
func LoadFiles(format Format, paths []string) ([]domain.Document, error) {
	var docs []domain.Document
	for _, p := range paths {
		loaded, err := LoadFile(format, p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}

func LoadFile(format Format, path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	switch format {
	case FormatCourse:
		docs, err = ParseCourse(data)
	case FormatDiscourse:
		docs, err = ParseDiscourse(data)
	default:
		return nil, fmt.Errorf("unknown source format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return docs, nil
}

// ParseCourse accepts both course layouts. Sectioned items are prefixed
// with their section and item titles.
func ParseCourse(data []byte) ([]domain.Document, error) {
	var entries []courseEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	var docs []domain.Document
	for _, e := range entries {
		if e.SectionTitle == "" && len(e.Items) == 0 {
			if strings.TrimSpace(e.Content) == "" {
				continue
			}
			docs = append(docs, domain.Document{
				Content:  e.Content,
				Metadata: e.metadata(),
			})
			continue
		}

		for _, item := range e.Items {
			if strings.TrimSpace(item.Content) == "" {
				continue
			}
			text := strings.TrimSpace(e.SectionTitle + "\n" + item.Title + "\n" + item.Content)
			docs = append(docs, domain.Document{
				Content:  text,
				Metadata: item.metadata(),
			})
		}
	}
	return docs, nil
}

func ParseDiscourse(data []byte) ([]domain.Document, error) {
	var items []discourseItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Content) == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Content: it.Content,
			Metadata: domain.Metadata{
				Title:  it.Title,
				Source: it.URL,
				Image:  it.Image,
			},
		})
	}
	return docs, nil
}

func (c courseItem) metadata() domain.Metadata {
	src := c.URL
	if src == "" {
		src = c.Source
	}
	return domain.Metadata{Title: c.Title, Source: src, Image: c.Image}
}
