package storage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-stop-inventory/pkg/apierror"
)

func TestStorageSaveOpenRemove(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	size, err := store.Save("BS-001/photo.jpg", strings.NewReader("hello world"), 1024)
	require.NoError(t, err)
	require.Equal(t, int64(11), size)

	file, info, err := store.Open("BS-001/photo.jpg")
	require.NoError(t, err)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	require.Equal(t, "hello world", string(content))
	require.Equal(t, int64(11), info.Size())

	require.NoError(t, store.Remove("BS-001/photo.jpg"))
	_, err = store.Stat("BS-001/photo.jpg")
	require.Error(t, err)

	require.NoError(t, store.Remove("BS-001/photo.jpg"), "removing a missing file is not an error")
}

func TestStorageSaveEnforcesLimit(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("BS-001/big.jpg", strings.NewReader(strings.Repeat("x", 20)), 10)
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.HTTPStatus)

	_, err = store.Stat("BS-001/big.jpg")
	require.Error(t, err, "oversized uploads must not be kept")

	_, err = store.Save("BS-001/empty.jpg", strings.NewReader(""), 10)
	require.Error(t, err)
}

func TestStorageRemoveAllRefusesRoot(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("BS-002/a.jpg", strings.NewReader("a"), 10)
	require.NoError(t, err)

	require.Error(t, store.RemoveAll("/"))
	require.NoError(t, store.RemoveAll("BS-002"))
	_, err = store.Stat("BS-002")
	require.Error(t, err)
}

func TestStorageThumbnail(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for x := 0; x < 400; x++ {
		for y := 0; y < 200; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	_, err = store.Save("BS-003/photo.png", &buf, 1<<20)
	require.NoError(t, err)

	thumb, _, err := store.Thumbnail("BS-003/photo.png", 100)
	require.NoError(t, err)
	decoded, format, err := image.Decode(thumb)
	require.NoError(t, thumb.Close())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())

	cached, _, err := store.Thumbnail("BS-003/photo.png", 100)
	require.NoError(t, err)
	require.NoError(t, cached.Close())

	t.Run("not an image", func(t *testing.T) {
		_, err := store.Save("BS-003/notes.jpg", strings.NewReader("plain text"), 1024)
		require.NoError(t, err)

		_, _, err = store.Thumbnail("BS-003/notes.jpg", 100)
		var apiErr *apierror.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnsupportedMediaType, apiErr.HTTPStatus)
	})
}

func TestScaledDimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		width  int
		height int
		size   int
		wantW  int
		wantH  int
	}{
		{name: "landscape", width: 800, height: 400, size: 200, wantW: 200, wantH: 100},
		{name: "portrait", width: 300, height: 600, size: 300, wantW: 150, wantH: 300},
		{name: "never enlarges", width: 50, height: 40, size: 320, wantW: 50, wantH: 40},
		{name: "thin strip keeps one pixel", width: 1000, height: 1, size: 10, wantW: 10, wantH: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ScaledDimensions(tt.width, tt.height, tt.size)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}
