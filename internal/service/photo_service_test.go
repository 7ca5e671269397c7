package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newPhotoService(t *testing.T) (*fixture, *PhotoService, *storage.MockStorage) {
	t.Helper()

	f := newFixture(t)
	files := new(storage.MockStorage)
	svc := NewPhotoService(f.photos, f.stops, files, f.audit, PhotoConfig{MaxUploadSize: 1 << 20})
	createStop(t, f, anonymousClient(), "1 Main St")
	return f, svc, files
}

func TestPhotoService_Upload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("success stores under the stop directory", func(t *testing.T) {
		f, svc, files := newPhotoService(t)
		inspector := f.addUser(t, "inspector@example.com", "secret123", model.RoleInspector)

		files.On("Save",
			mock.MatchedBy(func(p string) bool { return strings.HasPrefix(p, "BS-001/") && strings.HasSuffix(p, ".png") }),
			mock.Anything, int64(1<<20),
		).Return(int64(len(pngHeader)), nil)

		photo, err := svc.Upload(ctx, actorFor(inspector), "BS-001", PhotoUpload{
			Filename: "front view.PNG",
			Size:     int64(len(pngHeader)),
			Content:  bytes.NewReader(pngHeader),
			IsMain:   true,
		})
		require.NoError(t, err)
		assert.Equal(t, "image/png", photo.MimeType)
		assert.Equal(t, "front view.PNG", photo.OriginalFilename)
		assert.NotEqual(t, photo.OriginalFilename, photo.Filename)
		assert.Equal(t, "BS-001/"+photo.Filename, photo.FilePath)
		assert.Equal(t, inspector.Name, photo.UploaderName)
		assert.True(t, photo.IsMain)
		files.AssertExpectations(t)

		entries := f.auditStore.Entries()
		last := entries[len(entries)-1]
		assert.Equal(t, "photo", last.ResourceType)
		assert.Equal(t, model.AuditCreate, last.Action)
	})

	t.Run("fail on disallowed extension", func(t *testing.T) {
		_, svc, files := newPhotoService(t)

		_, err := svc.Upload(ctx, anonymousClient(), "BS-001", PhotoUpload{
			Filename: "payload.exe",
			Size:     3,
			Content:  bytes.NewReader([]byte("MZ\x90")),
		})
		requireAPIError(t, err, "BAD_REQUEST", http.StatusBadRequest)
		files.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fail on disguised content", func(t *testing.T) {
		_, svc, files := newPhotoService(t)

		_, err := svc.Upload(ctx, anonymousClient(), "BS-001", PhotoUpload{
			Filename: "photo.jpg",
			Size:     20,
			Content:  bytes.NewReader([]byte("#!/bin/sh\nrm -rf /\n")),
		})
		requireAPIError(t, err, "BAD_REQUEST", http.StatusBadRequest)
		files.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fail on oversized upload", func(t *testing.T) {
		_, svc, _ := newPhotoService(t)

		_, err := svc.Upload(ctx, anonymousClient(), "BS-001", PhotoUpload{
			Filename: "huge.jpg",
			Size:     2 << 20,
			Content:  bytes.NewReader(pngHeader),
		})
		requireAPIError(t, err, "FILE_TOO_LARGE", http.StatusRequestEntityTooLarge)
	})

	t.Run("unknown stop", func(t *testing.T) {
		_, svc, _ := newPhotoService(t)

		_, err := svc.Upload(ctx, anonymousClient(), "BS-404", PhotoUpload{Filename: "a.png", Content: bytes.NewReader(pngHeader)})
		assert.ErrorIs(t, err, model.ErrStopNotFound)
	})
}

func TestPhotoService_MainAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f, svc, files := newPhotoService(t)
	files.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(int64(len(pngHeader)), nil)

	upload := func(isMain bool) *model.Photo {
		photo, err := svc.Upload(ctx, anonymousClient(), "BS-001", PhotoUpload{
			Filename: "p.png",
			Size:     int64(len(pngHeader)),
			Content:  bytes.NewReader(pngHeader),
			IsMain:   isMain,
		})
		require.NoError(t, err)
		return photo
	}

	first := upload(true)
	second := upload(false)

	require.NoError(t, svc.SetMain(ctx, anonymousClient(), second.ID))
	photos, err := svc.ListByStop(ctx, "BS-001")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, second.ID, photos[0].ID)
	assert.True(t, photos[0].IsMain)
	assert.False(t, photos[1].IsMain)

	before := len(f.auditStore.Entries())
	require.NoError(t, svc.SetMain(ctx, anonymousClient(), second.ID))
	assert.Len(t, f.auditStore.Entries(), before)

	files.On("Remove", first.FilePath).Return(errors.New("disk gone"))
	require.NoError(t, svc.Delete(ctx, anonymousClient(), first.ID))

	_, _, _, err = svc.Open(ctx, first.ID)
	assert.ErrorIs(t, err, model.ErrPhotoNotFound)

	entries := f.auditStore.Entries()
	assert.Equal(t, model.AuditDelete, entries[len(entries)-1].Action)
}

func TestPhotoService_Open(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f, svc, files := newPhotoService(t)

	photo := &model.Photo{StopID: 1, Filename: "a.png", FilePath: "BS-001/a.png", MimeType: "image/png"}
	require.NoError(t, f.photos.Create(ctx, photo))

	t.Run("missing file maps to not found", func(t *testing.T) {
		files.On("Open", "BS-001/a.png").Return(nil, nil, os.ErrNotExist).Once()

		_, _, _, err := svc.Open(ctx, photo.ID)
		assert.ErrorIs(t, err, model.ErrPhotoNotFound)
	})

	t.Run("thumbnail uses configured size", func(t *testing.T) {
		tmp, err := os.CreateTemp(t.TempDir(), "thumb-*.jpg")
		require.NoError(t, err)
		defer tmp.Close()
		info, err := tmp.Stat()
		require.NoError(t, err)

		files.On("Thumbnail", "BS-001/a.png", 320).Return(tmp, info, nil).Once()

		file, gotInfo, err := svc.Thumbnail(ctx, photo.ID)
		require.NoError(t, err)
		assert.Equal(t, tmp, file)
		assert.Equal(t, info.Name(), gotInfo.Name())
	})
}
