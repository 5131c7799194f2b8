package extract

import (
	"bytes"
	"unicode/utf8"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text decodes data as UTF-8.
func Text(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", apperr.New(apperr.ExtractionFailed, "file is not valid UTF-8")
	}
	return string(data), nil
}
