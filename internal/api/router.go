package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kdimtricp/elbowtrack/web"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", app.HomeHandler)
	r.Get("/ping", PingHandler)

	fileServer := http.FileServer(http.FS(web.Static()))
	r.Handle("/static/*", http.StripPrefix("/static", fileServer))

	r.Route("/api", func(r chi.Router) {
		r.Get("/pose/config", app.PoseConfigHandler)

		r.Post("/recordings", app.ReplayRecordingHandler)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", app.StartSessionHandler)
			r.Get("/", app.ListSessionsHandler)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetSessionHandler)
				r.Delete("/", app.EndSessionHandler)
				r.Post("/frames", app.FrameHandler)
				r.Get("/overlay.png", app.OverlayHandler)
				r.Post("/snapshots", app.SnapshotHandler)
				r.Get("/events", app.EventsHandler)
				r.Get("/panel", app.PanelHandler)
			})
		})
	})

	return r
}
