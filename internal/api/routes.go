package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/submissions/{submissionId}/files/{fileId}/conversion", func(w http.ResponseWriter, r *http.Request) {
			h.ConversionStatus(w, r, chi.URLParam(r, "submissionId"), chi.URLParam(r, "fileId"))
		})
		r.Route("/runs", func(r chi.Router) {
			r.Post("/process-files", h.RunProcessFiles)
			r.Post("/submit-to-fes", h.RunSubmitToFes)
			r.Post("/delayed/{serviceLevel}", func(w http.ResponseWriter, r *http.Request) {
				h.RunDelayed(w, r, chi.URLParam(r, "serviceLevel"))
			})
		})
	})

	return r
}
