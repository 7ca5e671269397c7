package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"bus-stop-inventory/pkg/apierror"
)

// Storage keeps uploaded photos on local disk under a single root. Every
// client-supplied path is resolved through the validator first.
type Storage struct {
	validator     *PathValidator
	thumbnailRoot string
}

func (s *Storage) RootAbs() string {
	return s.validator.RootAbs()
}

func New(root string) (*Storage, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &Storage{
		validator:     validator,
		thumbnailRoot: filepath.Join(validator.RootAbs(), ".thumbnails"),
	}, nil
}

func (s *Storage) Resolve(clientPath string) (string, error) {
	return s.validator.ResolvePath(clientPath)
}

func (s *Storage) Stat(clientPath string) (fs.FileInfo, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return nil, err
	}

	return os.Stat(resolved)
}

// Save streams r into clientPath, refusing content larger than limit bytes.
// The file only appears at its final path once fully written.
func (s *Storage) Save(clientPath string, r io.Reader, limit int64) (int64, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(resolved), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, copyErr := io.Copy(tmp, io.LimitReader(r, limit+1))
	closeErr := tmp.Close()
	if copyErr != nil {
		return 0, fmt.Errorf("write upload: %w", copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close upload: %w", closeErr)
	}
	if written > limit {
		return 0, apierror.New("FILE_TOO_LARGE", fmt.Sprintf("file exceeds %d bytes", limit), "", http.StatusRequestEntityTooLarge)
	}
	if written == 0 {
		return 0, apierror.BadRequest("file is empty", "")
	}

	if err := os.Rename(tmpPath, resolved); err != nil {
		return 0, fmt.Errorf("store upload: %w", err)
	}
	return written, nil
}

func (s *Storage) Open(clientPath string) (*os.File, fs.FileInfo, error) {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, nil, err
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, nil, apierror.BadRequest("path points to a directory", clientPath)
	}

	return file, info, nil
}

// Remove deletes clientPath and its cached thumbnails. A file that is
// already gone is not an error.
func (s *Storage) Remove(clientPath string) error {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return err
	}

	if err := os.Remove(resolved); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", clientPath, err)
	}

	matches, _ := filepath.Glob(filepath.Join(s.thumbnailRoot, thumbnailPrefix(resolved)+"*"))
	for _, match := range matches {
		_ = os.Remove(match)
	}
	return nil
}

// RemoveAll deletes a directory tree such as all photos of one stop.
func (s *Storage) RemoveAll(clientPath string) error {
	resolved, err := s.Resolve(clientPath)
	if err != nil {
		return err
	}
	if resolved == s.RootAbs() {
		return apierror.New("PATH_TRAVERSAL", "refusing to remove storage root", clientPath, http.StatusForbidden)
	}

	if err := os.RemoveAll(resolved); err != nil {
		return fmt.Errorf("remove %q: %w", clientPath, err)
	}

	return nil
}
