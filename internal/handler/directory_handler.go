package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/service"
)

// DirectoryHandler serves the district and route lists that feed the stop
// forms.
type DirectoryHandler struct {
	service *service.DirectoryService
}

func NewDirectoryHandler(service *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

func (h *DirectoryHandler) ListDistricts(w http.ResponseWriter, r *http.Request) {
	activeOnly := parseOptionalBool(r.URL.Query().Get("active_only"))

	districts, err := h.service.ListDistricts(r.Context(), activeOnly != nil && *activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, districts, nil)
}

func (h *DirectoryHandler) CreateDistrict(w http.ResponseWriter, r *http.Request) {
	var payload model.DistrictRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	district, err := h.service.CreateDistrict(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, district, nil)
}

func (h *DirectoryHandler) UpdateDistrict(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.DistrictRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	district, err := h.service.UpdateDistrict(r.Context(), actorFromRequest(r), id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, district, nil)
}

func (h *DirectoryHandler) DeleteDistrict(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.DeleteDistrict(r.Context(), actorFromRequest(r), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: "district deleted"}, nil)
}

func (h *DirectoryHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	activeOnly := parseOptionalBool(r.URL.Query().Get("active_only"))

	routes, err := h.service.ListRoutes(r.Context(), activeOnly != nil && *activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, routes, nil)
}

func (h *DirectoryHandler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var payload model.RouteRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	route, err := h.service.CreateRoute(r.Context(), actorFromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, route, nil)
}

func (h *DirectoryHandler) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.RouteRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	route, err := h.service.UpdateRoute(r.Context(), actorFromRequest(r), id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, route, nil)
}

func (h *DirectoryHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.DeleteRoute(r.Context(), actorFromRequest(r), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: "route deleted"}, nil)
}
