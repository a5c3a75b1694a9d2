package invitation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/accept", h.Accept)
	r.Post("/{id}/reject", h.Reject)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleRecruiter))

		r.Post("/exams/{examId}", h.Create)
		r.Get("/exams/{examId}", h.ListByExam)
	})

	return r
}
