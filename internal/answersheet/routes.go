package answersheet

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/{id}", h.ReadAttempt)
	r.Post("/{id}/submit", h.SubmitAttempt)
	r.Get("/exams/{examId}", h.ListExamAttempts)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleCandidate))

		r.Post("/exams/{examId}/start", h.StartAttempt)
		r.Post("/{id}/sections/{sectionId}/start", h.StartSection)
		r.Put("/sessions/{sessionId}/answers", h.SaveAnswer)
		r.Post("/sessions/{sessionId}/close", h.CloseSection)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleRecruiter))

		r.Put("/answers/{answerId}/revise", h.ReviseAnswer)
	})

	return r
}
