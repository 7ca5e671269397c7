package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/service"
)

type StopHandler struct {
	service *service.StopService
}

func NewStopHandler(service *service.StopService) *StopHandler {
	return &StopHandler{service: service}
}

func (h *StopHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	stops, meta, err := h.service.List(r.Context(), model.StopQuery{
		Search:         strings.TrimSpace(query.Get("search")),
		District:       strings.TrimSpace(query.Get("district")),
		Status:         strings.TrimSpace(query.Get("status")),
		Condition:      strings.TrimSpace(query.Get("condition")),
		HasElectricity: parseOptionalBool(query.Get("has_electricity")),
		HasBin:         parseOptionalBool(query.Get("has_bin")),
		MeetsStandards: parseOptionalBool(query.Get("meets_standards")),
		SortBy:         strings.TrimSpace(query.Get("sort_by")),
		SortDesc:       strings.EqualFold(strings.TrimSpace(query.Get("sort_order")), "desc"),
		Page:           parseIntOrDefault(query.Get("page"), 1),
		Limit:          parseIntOrDefault(query.Get("limit"), 20),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stops, &meta)
}

// All returns every stop without paging, for the map view.
func (h *StopHandler) All(w http.ResponseWriter, r *http.Request) {
	stops, err := h.service.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stops, nil)
}

func (h *StopHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stats, nil)
}

func (h *StopHandler) Districts(w http.ResponseWriter, r *http.Request) {
	districts, err := h.service.Districts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, districts, nil)
}

func (h *StopHandler) Get(w http.ResponseWriter, r *http.Request) {
	stop, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stop, nil)
}

func (h *StopHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, history, nil)
}

func (h *StopHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateStopRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	stop, err := h.service.Create(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, stop, nil)
}

func (h *StopHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.UpdateStopRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	stop, err := h.service.Update(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stop, nil)
}

func (h *StopHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFromRequest(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: "bus stop deleted"}, nil)
}

func (h *StopHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	var payload model.InspectionRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, err)
			return
		}
	}

	stop, err := h.service.RecordInspection(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), payload.NextInspectionDate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stop, nil)
}
