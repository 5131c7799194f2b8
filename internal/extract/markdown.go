package extract

import (
	"html"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// Markdown renders the document to HTML and keeps only the readable text.
func Markdown(data []byte) (string, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	rendered := markdown.ToHTML(data, p, nil)
	stripped := bluemonday.StrictPolicy().SanitizeBytes(rendered)
	return normalizeLines(html.UnescapeString(string(stripped))), nil
}
