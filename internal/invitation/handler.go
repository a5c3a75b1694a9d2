package invitation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/saulo-duarte/recrutai-lambda/internal/config"
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
)

type Handler struct {
	service InvitationService
}

func NewHandler(service InvitationService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	var dto CreateInvitationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.Email == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Create(r.Context(), chi.URLParam(r, "examId"), dto)
	if err != nil {
		log.WithError(err).Error("Failed to create invitation")
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) ListByExam(w http.ResponseWriter, r *http.Request) {
	responses, err := h.service.ListByExam(r.Context(), chi.URLParam(r, "examId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, responses)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	var dto AcceptInvitationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.Token == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Accept(r.Context(), dto.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	config.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"))
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
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrAlreadyInvited),
		errors.Is(err, ErrExamArchived),
		errors.Is(err, ErrInvitationNotPending):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvitationExpired):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
