package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io/fs"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"bus-stop-inventory/pkg/apierror"
)

// Thumbnail returns a JPEG no larger than size pixels on its longest side,
// generating and caching it on first use. A cached thumbnail older than its
// source is regenerated.
func (s *Storage) Thumbnail(clientPath string, size int) (*os.File, fs.FileInfo, error) {
	if size <= 0 {
		return nil, nil, apierror.BadRequest("invalid thumbnail size", strconv.Itoa(size))
	}

	source, info, err := s.Open(clientPath)
	if err != nil {
		return nil, nil, err
	}
	defer source.Close()

	if err := os.MkdirAll(s.thumbnailRoot, 0o755); err != nil {
		return nil, nil, err
	}

	thumbPath := s.thumbnailPath(source.Name(), size)
	if thumbInfo, err := os.Stat(thumbPath); err == nil && !thumbInfo.ModTime().Before(info.ModTime()) {
		if thumbFile, openErr := os.Open(thumbPath); openErr == nil {
			return thumbFile, thumbInfo, nil
		}
	}

	src, _, err := image.Decode(source)
	if err != nil {
		return nil, nil, apierror.New("UNSUPPORTED_TYPE", "cannot decode image", err.Error(), http.StatusUnsupportedMediaType)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, nil, apierror.New("UNSUPPORTED_TYPE", "invalid image dimensions", clientPath, http.StatusUnsupportedMediaType)
	}

	if err := writeThumbnail(src, bounds, thumbPath, size); err != nil {
		return nil, nil, err
	}
	_ = os.Chtimes(thumbPath, time.Now().UTC(), info.ModTime())

	thumbFile, err := os.Open(thumbPath)
	if err != nil {
		return nil, nil, err
	}
	thumbInfo, err := thumbFile.Stat()
	if err != nil {
		_ = thumbFile.Close()
		return nil, nil, err
	}
	return thumbFile, thumbInfo, nil
}

func writeThumbnail(src image.Image, bounds image.Rectangle, thumbPath string, size int) error {
	width, height := ScaledDimensions(bounds.Dx(), bounds.Dy(), size)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	writer, err := os.OpenFile(thumbPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	encodeErr := jpeg.Encode(writer, dst, &jpeg.Options{Quality: 95})
	closeErr := writer.Close()
	if encodeErr != nil {
		return encodeErr
	}
	return closeErr
}

// ScaledDimensions fits width x height into a size x size box keeping the
// aspect ratio. Images are never enlarged.
func ScaledDimensions(width int, height int, size int) (int, int) {
	maxDim := max(width, height)

	scale := float64(size) / float64(maxDim)
	if scale > 1 {
		scale = 1
	}

	targetWidth := max(int(math.Round(float64(width)*scale)), 1)
	targetHeight := max(int(math.Round(float64(height)*scale)), 1)
	return targetWidth, targetHeight
}

func thumbnailPrefix(resolvedPath string) string {
	hash := sha256.Sum256([]byte(resolvedPath))
	return hex.EncodeToString(hash[:8])
}

func (s *Storage) thumbnailPath(resolvedPath string, size int) string {
	return filepath.Join(s.thumbnailRoot, thumbnailPrefix(resolvedPath)+"-"+strconv.Itoa(size)+".jpg")
}
