package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const mimePDF = "application/pdf"

// maxPromptChars keeps very long contracts within a single model request.
const maxPromptChars = 120_000

// IsImage reports whether the input should be sent to the model as an image.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

// PlainText extracts text from a PDF document.
func PlainText(in Input) (string, error) {
	if !strings.EqualFold(in.ContentType, mimePDF) {
		return "", fmt.Errorf("text extraction unsupported for %s", in.ContentType)
	}
	text, err := extractPDF(in.Content)
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w", in.FileName, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return truncateUTF8(text, maxPromptChars), nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
