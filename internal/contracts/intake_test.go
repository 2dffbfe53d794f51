package contracts

import (
	"bytes"
	"errors"
	"testing"
)

var (
	pdfBytes  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	gifBytes  = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00!")
	exeBytes  = append([]byte("MZ\x90\x00\x03\x00\x00\x00\x04\x00\x00\x00\xff\xff\x00\x00"), bytes.Repeat([]byte{0}, 64)...)
)

func TestValidateAcceptsAllowListedDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		declared string
		content  []byte
		want     string
	}{
		{name: "pdf", declared: "application/pdf", content: pdfBytes, want: "application/pdf"},
		{name: "png", declared: "image/png", content: pngBytes, want: "image/png"},
		{name: "jpg alias", declared: "image/jpg", content: jpegBytes, want: "image/jpeg"},
		{name: "gif", declared: "image/gif", content: gifBytes, want: "image/gif"},
		{name: "octet-stream defers to sniffing", declared: "application/octet-stream", content: pdfBytes, want: "application/pdf"},
		{name: "declared with params", declared: "application/PDF; charset=binary", content: pdfBytes, want: "application/pdf"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			up, err := Validate("doc", tt.declared, tt.content)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if up.ContentType != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, up.ContentType)
			}
			if !bytes.Equal(up.Content, tt.content) {
				t.Fatalf("content must be forwarded unchanged")
			}
		})
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fileName string
		declared string
		content  []byte
		want     error
	}{
		{name: "exe declared", fileName: "setup.exe", declared: "application/x-msdownload", content: exeBytes, want: ErrUnsupportedMediaType},
		{name: "exe disguised as pdf", fileName: "contract.pdf", declared: "application/pdf", content: exeBytes, want: ErrUnsupportedMediaType},
		{name: "text", fileName: "notes.txt", declared: "text/plain", content: []byte("hello"), want: ErrUnsupportedMediaType},
		{name: "too large", fileName: "big.pdf", declared: "application/pdf", content: append(append([]byte{}, pdfBytes...), make([]byte, MaxUploadBytes)...), want: ErrPayloadTooLarge},
		{name: "empty", fileName: "empty.pdf", declared: "application/pdf", content: nil, want: ErrInvalidInput},
		{name: "no name", fileName: " ", declared: "application/pdf", content: pdfBytes, want: ErrInvalidInput},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Validate(tt.fileName, tt.declared, tt.content); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateAcceptsExactlyTheCeiling(t *testing.T) {
	content := make([]byte, MaxUploadBytes)
	copy(content, pdfBytes)
	if _, err := Validate("max.pdf", "application/pdf", content); err != nil {
		t.Fatalf("expected ceiling-sized file to pass, got %v", err)
	}
}
