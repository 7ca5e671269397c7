package util

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// photoMIMEs are the content types accepted for stop photos, keyed by the
// sniffed type.
var photoMIMEs = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// DetectMIME sniffs the first 512 bytes of r and rewinds it.
func DetectMIME(r io.ReadSeeker) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	return http.DetectContentType(buffer[:n]), nil
}

func IsPhotoMIME(mimeType string) bool {
	_, ok := photoMIMEs[strings.ToLower(strings.TrimSpace(mimeType))]
	return ok
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(filename))), ".")
}

// ExtensionAllowed reports whether the extension of filename is in allowed.
// Entries may be written with or without a leading dot.
func ExtensionAllowed(filename string, allowed []string) bool {
	ext := Extension(filename)
	if ext == "" {
		return false
	}
	for _, candidate := range allowed {
		if strings.TrimPrefix(strings.ToLower(strings.TrimSpace(candidate)), ".") == ext {
			return true
		}
	}
	return false
}
