package util

import (
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"
)

// Timestamped генерирует имя файла с меткой времени. Каталоги из name отбрасываются.
func Timestamped(name string, now time.Time) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		base = "upload"
	}
	return fmt.Sprintf("%s__%s", now.Format("20060102_150405.000"), base)
}

// TruncateRunes — безопасное усечение по рунам
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	return string(rs[:n])
}

// Preview укорачивает текст для логов и помечает обрезку многоточием.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return TruncateRunes(s, n) + "…"
}
