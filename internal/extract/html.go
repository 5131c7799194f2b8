package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, div, br, hr, li, tr, td, th, h1, h2, h3, h4, h5, h6, blockquote, pre, section, article, header, footer, table, ul, ol, dd, dt"

var multiSpaces = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)

// HTML возвращает видимый текст страницы без тегов и атрибутов.
func HTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, head, template, svg").Remove()
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return normalizeLines(doc.Text()), nil
}

// normalizeLines collapses runs of blanks inside each line and drops empty lines.
func normalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(multiSpaces.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
