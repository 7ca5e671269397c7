package handler

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/service"
	"bus-stop-inventory/pkg/apierror"
)

// multipartMemory is how much of a form is buffered before spilling to disk.
const multipartMemory = 8 << 20

type PhotoHandler struct {
	service       *service.PhotoService
	maxUploadSize int64
}

func NewPhotoHandler(service *service.PhotoService, maxUploadSize int64) *PhotoHandler {
	return &PhotoHandler{service: service, maxUploadSize: maxUploadSize}
}

func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Room for the multipart framing and the is_main field.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isPayloadTooLarge(err) {
			writeError(w, apierror.New("FILE_TOO_LARGE", "request body exceeds MAX_UPLOAD_SIZE", "MAX_UPLOAD_SIZE", http.StatusRequestEntityTooLarge))
			return
		}
		writeError(w, apierror.New("BAD_REQUEST", "invalid multipart body", err.Error(), http.StatusBadRequest))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "multipart field 'file' is required", "file", http.StatusBadRequest))
		return
	}
	defer file.Close()

	isMain := parseOptionalBool(r.FormValue("is_main"))

	photo, err := h.service.Upload(r.Context(), actorFromRequest(r), chi.URLParam(r, "stopCode"), service.PhotoUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
		IsMain:   isMain != nil && *isMain,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, photo, nil)
}

func isPayloadTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}

func (h *PhotoHandler) ListByStop(w http.ResponseWriter, r *http.Request) {
	photos, err := h.service.ListByStop(r.Context(), chi.URLParam(r, "stopCode"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, photos, nil)
}

func (h *PhotoHandler) File(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	photo, file, info, err := h.service.Open(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	filename := photo.OriginalFilename
	if filename == "" {
		filename = photo.Filename
	}
	w.Header().Set("Content-Type", photo.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	http.ServeContent(w, r, photo.Filename, info.ModTime(), file)
}

func (h *PhotoHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	file, info, err := h.service.Thumbnail(r.Context(), id)
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "UNSUPPORTED_TYPE" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		writeError(w, err)
		return
	}
	defer file.Close()

	filename := path.Base(info.Name())
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

func (h *PhotoHandler) SetMain(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.SetMain(r.Context(), actorFromRequest(r), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: "main photo updated"}, nil)
}

func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), actorFromRequest(r), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: "photo deleted"}, nil)
}
