package handler

import (
	"net/http"
	"strings"
	"time"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/service"
	"bus-stop-inventory/pkg/apierror"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	from, err := parseTimeParam(query.Get("date_from"), "date_from")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseTimeParam(query.Get("date_to"), "date_to")
	if err != nil {
		writeError(w, err)
		return
	}

	items, meta, err := h.service.Query(r.Context(), model.AuditQuery{
		UserID:       strings.TrimSpace(query.Get("user_id")),
		Action:       strings.TrimSpace(query.Get("action")),
		ResourceType: strings.TrimSpace(query.Get("resource_type")),
		From:         from,
		To:           to,
		Page:         parseIntOrDefault(query.Get("page"), 1),
		Limit:        parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items, &meta)
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates. A plain
// date_to covers the whole day.
func parseTimeParam(raw string, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		if name == "date_to" {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	return nil, apierror.Validation(map[string]string{name: "must be an RFC 3339 timestamp or YYYY-MM-DD date"})
}
