package answersheet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saulo-duarte/recrutai-lambda/internal/config"
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
)

type Handler struct {
	service AnswerSheetService
}

func NewHandler(service AnswerSheetService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	resp, err := h.service.StartAttempt(r.Context(), chi.URLParam(r, "examId"))
	if err != nil {
		log.WithError(err).Warn("Failed to start attempt")
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) ReadAttempt(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ReadAttempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.SubmitAttempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

func (h *Handler) StartSection(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.StartSection(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sectionId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) SaveAnswer(w http.ResponseWriter, r *http.Request) {
	var dto SaveAnswerDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.QuestionRef == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.SaveAnswer(r.Context(), chi.URLParam(r, "sessionId"), dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

func (h *Handler) CloseSection(w http.ResponseWriter, r *http.Request) {
	var dto CloseSectionDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	resp, err := h.service.CloseSection(r.Context(), chi.URLParam(r, "sessionId"), dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

func (h *Handler) ReviseAnswer(w http.ResponseWriter, r *http.Request) {
	var dto ReviseAnswerDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ReviseAnswer(r.Context(), chi.URLParam(r, "answerId"), dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

func (h *Handler) ListExamAttempts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListExamAttempts(r.Context(), chi.URLParam(r, "examId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, exam.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidID):
		http.Error(w, "invalid id", http.StatusBadRequest)
	case errors.Is(err, ErrExamNotPublished),
		errors.Is(err, ErrAlreadyStarted),
		errors.Is(err, ErrSheetClosed),
		errors.Is(err, ErrSessionClosed),
		errors.Is(err, ErrSessionOpen),
		errors.Is(err, ErrSectionNotInExam):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNotEnrolled):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
