package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Dosada05/elo-arena/docs"
	"github.com/Dosada05/elo-arena/handlers"
	"github.com/Dosada05/elo-arena/middleware"
)

type Handlers struct {
	Project    *handlers.ProjectHandler
	Battle     *handlers.BattleHandler
	Tournament *handlers.TournamentHandler
	Export     *handlers.ExportHandler
	WebSocket  *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	// Metrics serves /metrics when set.
	Metrics     http.Handler
	HTTPMetrics *middleware.HTTPMetrics
	Logger      *slog.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger, opts.HTTPMetrics))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(docs.OpenAPI)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authenticate := middleware.Authenticate(opts.JWTSecret, opts.Logger)

	router.Route("/projects", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/", h.Project.ListHandler)
		r.Post("/", h.Project.CreateHandler)

		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", h.Project.GetHandler)
			r.Patch("/", h.Project.UpdateHandler)
			r.Delete("/", h.Project.DeleteHandler)

			r.Get("/items", h.Project.ListItemsHandler)
			r.Post("/items", h.Project.AddItemsHandler)
			r.Get("/items/{itemID}", h.Project.GetItemHandler)
			r.Get("/items/{itemID}/history", h.Project.GetItemHandler)
			r.Patch("/items/{itemID}", h.Project.RenameItemHandler)
			r.Delete("/items/{itemID}", h.Project.RemoveItemHandler)

			r.Get("/rankings", h.Project.RankingsHandler)
			r.Get("/history", h.Project.HistoryHandler)
			r.Get("/stats", h.Project.StatsHandler)

			r.Get("/pair", h.Battle.PairHandler)
			r.Get("/pair/replacement", h.Battle.ReplacementHandler)
			r.Post("/battles", h.Battle.SubmitHandler)

			r.Get("/export", h.Export.ExportHandler)
			r.Post("/export/archive", h.Export.ArchiveHandler)
			r.Delete("/export/archive/{archiveName}", h.Export.DeleteArchiveHandler)

			r.Route("/tournaments", func(r chi.Router) {
				r.Get("/", h.Tournament.ListHandler)
				r.Post("/", h.Tournament.CreateHandler)
				r.Get("/{tournamentID}", h.Tournament.GetByIDHandler)
				r.Get("/{tournamentID}/bracket", h.Tournament.BracketHandler)
				r.Get("/{tournamentID}/next", h.Tournament.NextMatchHandler)
				r.Post("/{tournamentID}/matches", h.Tournament.SubmitMatchHandler)
			})
		})
	})

	router.Route("/ws", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/projects/{projectID}", h.WebSocket.ServeProjectWs)
		r.Get("/projects/{projectID}/tournaments/{tournamentID}", h.WebSocket.ServeTournamentWs)
	})
}
