// Package extract converts uploaded files into plain text, dispatching on
// the lower-cased filename extension.
package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
)

// Func extracts plain text from raw file bytes.
type Func func(data []byte) (string, error)

// Registry maps extensions (".pdf") to extractors.
type Registry struct {
	handlers map[string]Func
}

// NewRegistry returns a registry with every built-in format registered.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Func)}
	r.Register(".pdf", PDF)
	r.Register(".docx", DOCX)
	r.Register(".txt", Text)
	r.Register(".md", Markdown)
	r.Register(".markdown", Markdown)
	r.Register(".html", HTML)
	r.Register(".htm", HTML)
	return r
}

// Register adds or replaces the handler for ext.
func (r *Registry) Register(ext string, fn Func) {
	r.handlers[strings.ToLower(ext)] = fn
}

// Supported lists registered extensions in sorted order.
func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.handlers))
	for ext := range r.handlers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract returns the text of data, or an UnsupportedFormat error when
// filename has no registered extension. Handler failures, including
// panics inside third-party parsers, become ExtractionFailed.
func (r *Registry) Extract(filename string, data []byte) (text string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := r.handlers[ext]
	if !ok {
		return "", apperr.New(apperr.UnsupportedFormat, "unsupported file type %q", ext)
	}

	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = apperr.Wrap(apperr.ExtractionFailed, fmt.Errorf("%v", rec), "malformed "+strings.TrimPrefix(ext, ".")+" file")
		}
	}()

	text, err = fn(data)
	if err != nil {
		if apperr.KindOf(err) != "" {
			return "", err
		}
		return "", apperr.Wrap(apperr.ExtractionFailed, err, "malformed "+strings.TrimPrefix(ext, ".")+" file")
	}
	return text, nil
}
