package extract

import (
	"bytes"
	"math"
	"strings"

	"rsc.io/pdf"
)

// PDF извлекает текст постранично; пустые страницы пропускаются.
func PDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text := pageText(p.Content().Text)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

// pageText склеивает глифы страницы: новая строка при смене базовой линии,
// пробел при заметном горизонтальном разрыве.
func pageText(glyphs []pdf.Text) string {
	var sb strings.Builder
	var prev *pdf.Text
	for i := range glyphs {
		t := &glyphs[i]
		// удаляем нулевые байты
		s := strings.ReplaceAll(t.S, "\x00", "")
		if s == "" {
			continue
		}
		if prev != nil {
			size := math.Max(t.FontSize, 1)
			switch {
			case math.Abs(t.Y-prev.Y) > size/2:
				sb.WriteString("\n")
			case t.X-(prev.X+prev.W) > size*0.15 && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(s, " "):
				sb.WriteString(" ")
			}
		}
		sb.WriteString(s)
		prev = t
	}

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
