package handler

import (
	"net/http"

	"bus-stop-inventory/internal/middleware"
	"bus-stop-inventory/internal/model"
)

// actorFromRequest describes the caller for the audit trail. Requests that
// passed no authentication stage yield an anonymous actor.
func actorFromRequest(r *http.Request) model.AuditActor {
	ip := middleware.ClientIP(r)
	userAgent := r.UserAgent()

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return model.AuditActor{IP: ip, UserAgent: userAgent}
	}
	return identity.Actor(ip, userAgent)
}
