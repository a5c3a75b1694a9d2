package exam

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saulo-duarte/recrutai-lambda/internal/config"
)

type Handler struct {
	service ExamService
}

func NewHandler(service ExamService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	var dto CreateExamDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	e, err := h.service.CreateExam(r.Context(), dto)
	if err != nil {
		log.WithError(err).Error("Failed to create exam")
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusCreated, e)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.GetExam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, e)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	exams, err := h.service.ListMyExams(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, exams)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var dto UpdateExamDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	e, err := h.service.UpdateExam(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, e)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteExam(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddSection(w http.ResponseWriter, r *http.Request) {
	var dto CreateSectionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	section, err := h.service.AddSection(r.Context(), chi.URLParam(r, "id"), dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusCreated, section)
}

func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteSection(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	var dto CreateQuestionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	q, err := h.service.AddQuestion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"), dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusCreated, q)
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, e)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Archive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var pending *PendingAttemptsError
		if errors.As(err, &pending) {
			config.JSON(w, http.StatusConflict, map[string]interface{}{
				"error":          "exam has pending attempts",
				"days_remaining": pending.DaysRemaining,
			})
			return
		}
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, e)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "exam not found", http.StatusNotFound)
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidID):
		http.Error(w, "invalid id", http.StatusBadRequest)
	case errors.Is(err, ErrExamNotDraft), errors.Is(err, ErrExamNotPublished):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrEmptySections),
		errors.Is(err, ErrSectionWithoutQuestions),
		errors.Is(err, ErrWeightMismatch):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
