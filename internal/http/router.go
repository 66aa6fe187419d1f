package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"moracollect-api/internal/handlers"
	"moracollect-api/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Records     service.RecordService
	Catalog     service.CatalogService
	Leaderboard service.LeaderboardService
	Profiles    service.ProfileService
	Verifier    TokenVerifier
	Docs        *handlers.DocsHandler // optional

	ProjectID      string
	AllowedOrigins []string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.AllowedOrigins))

	health := handlers.NewHealthHandler(deps.ProjectID)
	records := handlers.NewRecordsHandler(deps.Records)
	catalog := handlers.NewCatalogHandler(deps.Catalog)
	leaderboard := handlers.NewLeaderboardHandler(deps.Leaderboard)
	profile := handlers.NewProfileHandler(deps.Profiles)

	r.Get("/healthz", health.Healthz)
	if deps.Docs != nil {
		r.Method(http.MethodGet, "/docs", deps.Docs)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(Auth(deps.Verifier))

		r.Get("/ping", health.Ping)

		r.Post("/upload-url", records.UploadURL)
		r.Post("/register", records.Register)
		r.Get("/my-records", records.ListMine)
		r.Delete("/my-records/{recordID}", records.DeleteMine)

		r.Get("/scripts", catalog.Scripts)
		r.Get("/prompts", catalog.Prompts)

		r.Method(http.MethodGet, "/leaderboard", leaderboard)

		r.Get("/profile", profile.Get)
		r.Post("/profile", profile.Update)
		r.Post("/profile/avatar/upload-url", profile.AvatarUploadURL)
		r.Post("/profile/avatar", profile.CommitAvatar)
	})

	return r
}
