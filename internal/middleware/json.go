package middleware

import (
	"encoding/json"
	"net/http"

	"bus-stop-inventory/internal/model"
)

// writeFailure writes the standard error envelope for responses produced
// before a handler runs.
func writeFailure(w http.ResponseWriter, status int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{Success: false, Error: apiErr})
}
