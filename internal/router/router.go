package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bus-stop-inventory/internal/config"
	"bus-stop-inventory/internal/handler"
	"bus-stop-inventory/internal/metrics"
	"bus-stop-inventory/internal/middleware"
	"bus-stop-inventory/internal/policy"
	"bus-stop-inventory/internal/ratelimit"
)

// Photo transfers get their own deadline instead of REQUEST_TIMEOUT.
const (
	streamMaxDuration = 10 * time.Minute
	streamIdleTimeout = 30 * time.Second
)

type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Stops     *handler.StopHandler
	Photos    *handler.PhotoHandler
	Reports   *handler.ReportHandler
	Audit     *handler.AuditHandler
	Directory *handler.DirectoryHandler
}

func New(
	cfg *config.Config,
	m *metrics.Metrics,
	limiter *ratelimit.Limiter,
	authenticator *middleware.Authenticator,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(m))
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	security := middleware.NewPipeline(m,
		middleware.HostCheck(cfg.AllowedHosts),
		middleware.SignatureFilter(),
		middleware.NewRateLimitStage(limiter, m),
	)
	r.Use(security.Handler)

	r.Get("/health", h.Health.Check)
	if cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// guard builds the per-route admission chain: a valid access token
	// followed by the capability check.
	guard := func(capability policy.Capability) func(http.Handler) http.Handler {
		return middleware.NewPipeline(m, authenticator.RequireAuth(), middleware.Authorize(capability)).Handler
	}

	r.Route("/api", func(api chi.Router) {
		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(cfg.RequestTimeout))

			timed.Route("/auth", func(auth chi.Router) {
				auth.Post("/login", h.Auth.Login)
				auth.Post("/refresh", h.Auth.Refresh)
				auth.With(middleware.NewPipeline(m, authenticator.OptionalAuth()).Handler).Post("/logout", h.Auth.Logout)
				auth.With(guard(policy.AuthSession)).Post("/logout-all", h.Auth.LogoutAll)
				auth.With(guard(policy.AuthSession)).Get("/me", h.Auth.Me)
				auth.With(guard(policy.AuthSession)).Get("/sessions", h.Auth.Sessions)
			})

			timed.Route("/users", func(users chi.Router) {
				users.Use(guard(policy.UsersManage))
				users.Get("/", h.Users.List)
				users.Post("/", h.Users.Create)
				users.Get("/{id}", h.Users.Get)
				users.Put("/{id}", h.Users.Update)
				users.Delete("/{id}", h.Users.Delete)
				users.Post("/{id}/unlock", h.Users.Unlock)
				users.Post("/{id}/reset-password", h.Users.ResetPassword)
			})

			timed.Route("/stops", func(stops chi.Router) {
				stops.With(guard(policy.StopsRead)).Get("/", h.Stops.List)
				stops.With(guard(policy.StopsRead)).Get("/all", h.Stops.All)
				stops.With(guard(policy.StopsRead)).Get("/stats", h.Stops.Stats)
				stops.With(guard(policy.StopsRead)).Get("/districts", h.Stops.Districts)
				stops.With(guard(policy.StopsRead)).Get("/{id}", h.Stops.Get)
				stops.With(guard(policy.StopsRead)).Get("/{id}/history", h.Stops.History)
				stops.With(guard(policy.StopsWrite)).Post("/", h.Stops.Create)
				stops.With(guard(policy.StopsWrite)).Put("/{id}", h.Stops.Update)
				stops.With(guard(policy.StopsDelete)).Delete("/{id}", h.Stops.Delete)
				stops.With(guard(policy.StopsInspect)).Post("/{id}/inspection", h.Stops.Inspect)
			})

			timed.Route("/reports", func(reports chi.Router) {
				reports.With(guard(policy.ReportsRead)).Get("/dashboard", h.Reports.Dashboard)
				reports.With(guard(policy.ReportsExport)).Get("/export", h.Reports.Export)
				reports.With(guard(policy.AuditRead)).Get("/audit-log", h.Audit.List)
			})

			timed.Route("/directories", func(dirs chi.Router) {
				dirs.With(guard(policy.StopsRead)).Get("/districts", h.Directory.ListDistricts)
				dirs.With(guard(policy.DirectoriesManage)).Post("/districts", h.Directory.CreateDistrict)
				dirs.With(guard(policy.DirectoriesManage)).Put("/districts/{id}", h.Directory.UpdateDistrict)
				dirs.With(guard(policy.DirectoriesManage)).Delete("/districts/{id}", h.Directory.DeleteDistrict)
				dirs.With(guard(policy.StopsRead)).Get("/routes", h.Directory.ListRoutes)
				dirs.With(guard(policy.DirectoriesManage)).Post("/routes", h.Directory.CreateRoute)
				dirs.With(guard(policy.DirectoriesManage)).Put("/routes/{id}", h.Directory.UpdateRoute)
				dirs.With(guard(policy.DirectoriesManage)).Delete("/routes/{id}", h.Directory.DeleteRoute)
			})
		})

		api.Route("/photos", func(photos chi.Router) {
			photos.Group(func(timed chi.Router) {
				timed.Use(middleware.Timeout(cfg.RequestTimeout))
				timed.With(guard(policy.PhotosWrite)).Post("/upload/{stopCode}", h.Photos.Upload)
				timed.With(guard(policy.PhotosRead)).Get("/stop/{stopCode}", h.Photos.ListByStop)
				timed.With(guard(policy.PhotosWrite)).Put("/{id}/set-main", h.Photos.SetMain)
				timed.With(guard(policy.PhotosWrite)).Delete("/{id}", h.Photos.Delete)
			})

			photos.Group(func(streamed chi.Router) {
				streamed.Use(middleware.StreamingTimeout(streamMaxDuration, streamIdleTimeout))
				streamed.With(guard(policy.PhotosRead)).Get("/{id}/file", h.Photos.File)
				streamed.With(guard(policy.PhotosRead)).Get("/{id}/thumbnail", h.Photos.Thumbnail)
			})
		})
	})

	return r
}
