package service

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/util"
	"bus-stop-inventory/pkg/apierror"
)

const photoResource = "photo"

type PhotoConfig struct {
	MaxUploadSize     int64
	AllowedExtensions []string
	ThumbnailSize     int
}

// PhotoUpload is one multipart file handed over by the handler.
type PhotoUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
	IsMain   bool
}

type PhotoService struct {
	photos PhotoStore
	stops  StopStore
	files  PhotoFiles
	audit  *AuditService
	cfg    PhotoConfig
}

func NewPhotoService(photos PhotoStore, stops StopStore, files PhotoFiles, audit *AuditService, cfg PhotoConfig) *PhotoService {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 10 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{"jpg", "jpeg", "png", "webp"}
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = 320
	}
	return &PhotoService{photos: photos, stops: stops, files: files, audit: audit, cfg: cfg}
}

func (s *PhotoService) ListByStop(ctx context.Context, stopRef string) ([]model.Photo, error) {
	stop, err := resolveStop(ctx, s.stops, stopRef)
	if err != nil {
		return nil, err
	}
	return s.photos.ListByStop(ctx, stop.ID)
}

// Upload validates the extension, size and sniffed content type before the
// file is written under the stop's directory with a generated name.
func (s *PhotoService) Upload(ctx context.Context, actor model.AuditActor, stopRef string, upload PhotoUpload) (*model.Photo, error) {
	stop, err := resolveStop(ctx, s.stops, stopRef)
	if err != nil {
		return nil, err
	}

	original, err := util.OriginalPhotoName(upload.Filename)
	if err != nil {
		return nil, err
	}
	if !util.ExtensionAllowed(original, s.cfg.AllowedExtensions) {
		return nil, apierror.BadRequest("file type not allowed",
			"allowed: "+strings.Join(s.cfg.AllowedExtensions, ", "))
	}
	if upload.Size > s.cfg.MaxUploadSize {
		return nil, apierror.New("FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadSize), "", http.StatusRequestEntityTooLarge)
	}

	mimeType, err := util.DetectMIME(upload.Content)
	if err != nil {
		return nil, fmt.Errorf("inspect upload: %w", err)
	}
	if !util.IsPhotoMIME(mimeType) {
		return nil, apierror.BadRequest("file content is not a supported image", mimeType)
	}

	filename := uuid.NewString() + "." + util.Extension(original)
	relPath := path.Join(stop.StopCode, filename)

	size, err := s.files.Save(relPath, upload.Content, s.cfg.MaxUploadSize)
	if err != nil {
		return nil, err
	}

	photo := &model.Photo{
		StopID:           stop.ID,
		Filename:         filename,
		OriginalFilename: original,
		FilePath:         relPath,
		FileSize:         size,
		MimeType:         mimeType,
		IsMain:           upload.IsMain,
		UploaderName:     actor.Name,
	}
	if actor.UserID != "" {
		uploadedBy := actor.UserID
		photo.UploadedBy = &uploadedBy
	}

	if err := s.photos.Create(ctx, photo); err != nil {
		if removeErr := s.files.Remove(relPath); removeErr != nil {
			slog.Warn("failed to remove orphaned upload", "path", relPath, "error", removeErr)
		}
		return nil, err
	}

	s.audit.LogCreate(ctx, actor, photoResource, fmt.Sprint(photo.ID), map[string]any{
		"stop_id":   stop.StopCode,
		"filename":  filename,
		"file_size": size,
		"is_main":   photo.IsMain,
	})
	return photo, nil
}

func (s *PhotoService) Open(ctx context.Context, id int64) (*model.Photo, *os.File, fs.FileInfo, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	file, info, err := s.files.Open(photo.FilePath)
	if err != nil {
		return nil, nil, nil, missingFile(err)
	}
	return photo, file, info, nil
}

func (s *PhotoService) Thumbnail(ctx context.Context, id int64) (*os.File, fs.FileInfo, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	file, info, err := s.files.Thumbnail(photo.FilePath, s.cfg.ThumbnailSize)
	if err != nil {
		return nil, nil, missingFile(err)
	}
	return file, info, nil
}

// SetMain makes the photo the main one of its stop.
func (s *PhotoService) SetMain(ctx context.Context, actor model.AuditActor, id int64) error {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if photo.IsMain {
		return nil
	}

	if err := s.photos.SetMain(ctx, id); err != nil {
		return err
	}

	s.audit.LogUpdate(ctx, actor, photoResource, fmt.Sprint(id),
		map[string]any{"is_main": false}, map[string]any{"is_main": true})
	return nil
}

func (s *PhotoService) Delete(ctx context.Context, actor model.AuditActor, id int64) error {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.photos.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.files.Remove(photo.FilePath); err != nil {
		slog.Warn("failed to remove photo file", "photo_id", id, "path", photo.FilePath, "error", err)
	}

	s.audit.LogDelete(ctx, actor, photoResource, fmt.Sprint(id), map[string]any{
		"filename": photo.Filename,
		"stop_id":  photo.StopID,
	})
	return nil
}

func missingFile(err error) error {
	if os.IsNotExist(err) {
		return model.ErrPhotoNotFound
	}
	return err
}
