package util

import (
	"net/http"
	"path"
	"strings"
	"unicode"

	"bus-stop-inventory/pkg/apierror"
)

// maxOriginalNameRunes bounds the original_filename column.
const maxOriginalNameRunes = 255

// unsafeNameChars are replaced because the original name ends up in a
// Content-Disposition header and in CSV exports.
const unsafeNameChars = `<>:"|?*;`

// OriginalPhotoName cleans the client-supplied upload name so it can be kept
// as the photo's display name. Directory parts sent by some browsers are
// dropped. The file on disk never uses this name.
func OriginalPhotoName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimSpace(path.Base(strings.TrimSpace(name)))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", apierror.BadRequest("filename cannot be empty", "file")
	}

	var b strings.Builder
	b.Grow(len(name))
	count := 0
	for _, r := range name {
		if count == maxOriginalNameRunes {
			break
		}
		switch {
		case r == unicode.ReplacementChar, unicode.IsControl(r), isInvisibleUnicode(r):
			continue
		case strings.ContainsRune(unsafeNameChars, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
		count++
	}

	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" {
		return "", apierror.New("INVALID_FILENAME", "filename is invalid after sanitization", name, http.StatusBadRequest)
	}
	if strings.HasPrefix(cleaned, ".") {
		return "", apierror.New("INVALID_FILENAME", "hidden filenames are not allowed", cleaned, http.StatusBadRequest)
	}

	return cleaned, nil
}

// isInvisibleUnicode reports zero-width and other format characters that
// would make two names look identical.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF':
		return true
	}
	return unicode.Is(unicode.Cf, r)
}
