package handler

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/service"
)

type ReportHandler struct {
	service *service.ReportService
}

func NewReportHandler(service *service.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, dashboard, nil)
}

// Export streams the filtered stops as a CSV attachment. The export is
// audited before the first byte is written.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.ExportFilter{
		Format:    strings.TrimSpace(query.Get("format")),
		District:  strings.TrimSpace(query.Get("district")),
		Status:    strings.TrimSpace(query.Get("status")),
		Condition: strings.TrimSpace(query.Get("condition")),
	}

	stops, err := h.service.PrepareExport(r.Context(), actorFromRequest(r), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := h.service.ExportFilename("csv")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)

	if err := service.WriteCSV(w, stops); err != nil {
		slog.Warn("csv export interrupted", "filename", filename, "error", err)
	}
}
