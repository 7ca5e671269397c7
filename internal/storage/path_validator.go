package storage

import (
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"bus-stop-inventory/pkg/apierror"
)

// Stored photo paths are "<stop code>/<generated name>". Segments never
// start with a dot, which keeps temp uploads and the thumbnail cache
// unreachable through a stored path.
var safeSegment = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// maxDepth is stop directory plus file.
const maxDepth = 2

// PathValidator maps stored relative photo paths onto the upload root.
type PathValidator struct {
	rootAbs string
}

func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("upload root cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}

	return &PathValidator{rootAbs: rootAbs}, nil
}

func (v *PathValidator) RootAbs() string {
	return v.rootAbs
}

// ResolvePath returns the absolute location of a stored path. An empty path
// or "/" is the root itself.
func (v *PathValidator) ResolvePath(stored string) (string, error) {
	rel := strings.Trim(strings.TrimSpace(stored), "/")
	if rel == "" {
		return v.rootAbs, nil
	}

	segments := strings.Split(rel, "/")
	for _, segment := range segments {
		if segment == ".." {
			return "", apierror.New("PATH_TRAVERSAL", "path traversal attempt detected", stored, http.StatusForbidden)
		}
	}
	if len(segments) > maxDepth {
		return "", apierror.New("INVALID_PATH", "photo path is too deep", stored, http.StatusBadRequest)
	}
	for _, segment := range segments {
		if !safeSegment.MatchString(segment) {
			return "", apierror.New("INVALID_PATH", "photo path contains invalid characters", stored, http.StatusBadRequest)
		}
	}

	resolved := filepath.Join(append([]string{v.rootAbs}, segments...)...)
	if !isWithinRoot(v.rootAbs, resolved) {
		return "", apierror.New("PATH_TRAVERSAL", "resolved path is outside upload root", stored, http.StatusForbidden)
	}
	return resolved, nil
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	rel, err := filepath.Rel(rootAbs, candidateAbs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
