package exam

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleRecruiter))

		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)

		r.Post("/{id}/sections", h.AddSection)
		r.Delete("/{id}/sections/{sectionId}", h.DeleteSection)
		r.Post("/{id}/sections/{sectionId}/questions", h.AddQuestion)

		r.Post("/{id}/publish", h.Publish)
		r.Post("/{id}/archive", h.Archive)
	})

	return r
}
