package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"bus-stop-inventory/internal/model"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			slog.Error("panic recovered",
				"error", fmt.Sprintf("%v", recovered),
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			writeFailure(w, http.StatusInternalServerError, &model.APIError{
				Code:    "INTERNAL_ERROR",
				Message: "Unexpected server error",
			})
		}()

		next.ServeHTTP(w, r)
	})
}
