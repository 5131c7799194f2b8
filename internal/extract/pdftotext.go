package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// PDFToTextTimeout bounds a single pdftotext run.
var PDFToTextTimeout = time.Minute

// PDFToText извлекает текст утилитой pdftotext из poppler-utils.
// Страницы разделены \f; пустые страницы пропускаются.
func PDFToText(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "vectorbrain-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), PDFToTextTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdftotext", "-enc", "UTF-8", tmp.Name(), "-")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var pages []string
	for _, p := range strings.Split(string(out), "\f") {
		p = strings.TrimSpace(p)
		if p != "" {
			pages = append(pages, p)
		}
	}
	return strings.Join(pages, "\n"), nil
}

// PDFToTextAvailable reports whether pdftotext is on PATH.
func PDFToTextAvailable() bool {
	_, err := exec.LookPath("pdftotext")
	return err == nil
}
