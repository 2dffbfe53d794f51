package contracts

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadBytes is the hard size ceiling for contract documents.
const MaxUploadBytes = 10 << 20

// AllowedContentTypes is the upload allow-list.
var AllowedContentTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
}

// Upload is a document that passed intake. Only Validate produces one.
type Upload struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Validate checks an incoming document against the allow-list and the size ceiling.
// The declared type must be allow-listed (generic or empty declarations defer to sniffing)
// and the sniffed type must be allow-listed too; the sniffed type becomes canonical.
func Validate(fileName, declaredType string, content []byte) (Upload, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return Upload{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if len(content) == 0 {
		return Upload{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if len(content) > MaxUploadBytes {
		return Upload{}, fmt.Errorf("%w: file exceeds %d bytes", ErrPayloadTooLarge, MaxUploadBytes)
	}

	declared := normalizeMediaType(declaredType)
	if declared != "" && declared != "application/octet-stream" && !isAllowed(declared) {
		return Upload{}, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, declared)
	}

	detected := mimetype.Detect(content)
	canonical := ""
	for _, allowed := range AllowedContentTypes {
		if detected.Is(allowed) {
			canonical = canonicalType(allowed)
			break
		}
	}
	if canonical == "" {
		return Upload{}, fmt.Errorf("%w: detected %s", ErrUnsupportedMediaType, detected.String())
	}

	return Upload{FileName: fileName, ContentType: canonical, Content: content}, nil
}

func normalizeMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(raw); err == nil {
		return strings.ToLower(parsed)
	}
	return strings.ToLower(raw)
}

func isAllowed(contentType string) bool {
	for _, allowed := range AllowedContentTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

func canonicalType(contentType string) string {
	if contentType == "image/jpg" {
		return "image/jpeg"
	}
	return contentType
}
