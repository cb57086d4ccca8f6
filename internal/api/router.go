package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/api/handlers"
	"github.com/swing-coach/backend/internal/api/middleware"
	"github.com/swing-coach/backend/internal/coaching"
	"github.com/swing-coach/backend/internal/config"
	"github.com/swing-coach/backend/internal/storage"
)

type Deps struct {
	Config   *config.Config
	Coaching *coaching.Service
	Database handlers.Pinger
	Storage  storage.Storage
	Limiter  *middleware.RateLimiter
	Log      *zap.Logger
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	log := d.Log

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(cors.Handler(middleware.CORSHandler(d.Config.CORSOrigins)))

	videoHandler := handlers.NewVideoHandler(d.Coaching, d.Config.MaxUploadBytes, log)
	sectionHandler := handlers.NewSectionHandler(d.Coaching, log)
	mediaHandler := handlers.NewMediaHandler(d.Coaching, d.Config.MaxUploadBytes, log)
	reservationHandler := handlers.NewReservationHandler(d.Coaching, log)
	healthHandler := handlers.NewHealthHandler(d.Database, d.Storage.Kind(), log)

	// The local backend serves its own objects; signed URLs point elsewhere.
	if files, ok := d.Storage.(http.Handler); ok {
		r.Mount("/media", http.StripPrefix("/media", files))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		// Uploads carry their own size limit.
		r.Post("/videos", videoHandler.Upload)
		r.Post("/videos/{id}/thumbnail", videoHandler.AttachThumbnail)
		r.Post("/section-images", mediaHandler.UploadSectionImage)

		// Routes that call a speech or text engine
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(d.Config.MaxUploadBytes))
			if d.Limiter != nil {
				r.Use(d.Limiter.Handler)
			}
			r.Post("/transcribe-audio", mediaHandler.Transcribe)
			r.Post("/sections/{id}/comment", sectionHandler.Comment)
			r.Post("/sections/{id}/analyze", sectionHandler.Analyze)
			r.Post("/sections/{id}/advices", sectionHandler.AddAdvice)
			r.Post("/section-groups/{id}/feedback", sectionHandler.SaveFeedback)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(d.Config.MaxJSONBytes))

			// Videos
			r.Get("/videos", videoHandler.List)
			r.Get("/videos/{id}", videoHandler.Get)
			r.Delete("/videos/{id}", videoHandler.Delete)
			r.Post("/videos/{id}/thumbnail/regenerate", videoHandler.RegenerateThumbnail)
			r.Post("/videos/{id}/section-groups", videoHandler.EnsureGroup)

			// Section groups
			r.Get("/section-groups/{id}", sectionHandler.GetGroup)
			r.Get("/section-groups/{id}/sections", sectionHandler.List)
			r.Post("/section-groups/{id}/sections", sectionHandler.Create)
			r.Get("/section-groups/{id}/feedback", sectionHandler.GetFeedback)

			// Sections
			r.Get("/sections/{id}", sectionHandler.Get)
			r.Put("/sections/{id}", sectionHandler.Update)
			r.Delete("/sections/{id}", sectionHandler.Delete)
			r.Get("/sections/{id}/advices", sectionHandler.ListAdvices)
			r.Delete("/advices/{id}", sectionHandler.DeleteAdvice)

			// Media
			r.Post("/capture-frame", mediaHandler.CaptureFrame)
			r.Get("/media-url", mediaHandler.ResolveURL)

			// Reservations
			r.Post("/reservations", reservationHandler.Create)
			r.Get("/reservations/{id}", reservationHandler.Get)
			r.Post("/reservations/{id}/status", reservationHandler.Transition)
		})
	})

	return r
}
