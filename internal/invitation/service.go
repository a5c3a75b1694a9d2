package invitation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
	"github.com/saulo-duarte/recrutai-lambda/internal/config"
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
	"github.com/saulo-duarte/recrutai-lambda/internal/user"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidID            = errors.New("invalid id format")
	ErrExamArchived         = errors.New("exam is archived")
	ErrAlreadyInvited       = errors.New("candidate is already invited to this exam")
	ErrNotInvited           = errors.New("candidate is not invited to this exam")
	ErrInvitationExpired    = errors.New("invitation has expired")
	ErrInvitationRejected   = errors.New("invitation was rejected")
	ErrInvitationNotPending = errors.New("invitation is no longer pending")
	ErrInvalidToken         = errors.New("invalid invitation token")
)

type InvitationService interface {
	Create(ctx context.Context, examID string, dto CreateInvitationDTO) (*InvitationResponse, error)
	ListByExam(ctx context.Context, examID string) ([]InvitationResponse, error)
	Accept(ctx context.Context, token string) (*InvitationResponse, error)
	Reject(ctx context.Context, id string) (*InvitationResponse, error)

	// Enroll resolves the candidate's invitation for an exam, accepting a
	// still-pending one. Called by the answer-sheet engine when an attempt
	// starts.
	Enroll(ctx context.Context, examID uuid.UUID, email string, now time.Time) (*Invitation, error)

	// ForceRejectPending rejects every pending invitation of an exam.
	// Called by exam archival.
	ForceRejectPending(ctx context.Context, examID uuid.UUID) error
}

type invitationService struct {
	repo     InvitationRepository
	examRepo exam.ExamRepository
	userRepo user.UserRepository
	now      func() time.Time
}

func NewService(repo InvitationRepository, examRepo exam.ExamRepository, userRepo user.UserRepository) InvitationService {
	return NewServiceWithClock(repo, examRepo, userRepo, time.Now)
}

// NewServiceWithClock injects the clock used for expiry checks.
func NewServiceWithClock(repo InvitationRepository, examRepo exam.ExamRepository, userRepo user.UserRepository, now func() time.Time) InvitationService {
	return &invitationService{
		repo:     repo,
		examRepo: examRepo,
		userRepo: userRepo,
		now:      now,
	}
}

func (s *invitationService) toResponse(inv *Invitation) *InvitationResponse {
	return &InvitationResponse{
		Invitation: *inv,
		Expired:    inv.Pending() && inv.Expired(s.now()),
	}
}

func (s *invitationService) Create(ctx context.Context, examID string, dto CreateInvitationDTO) (*InvitationResponse, error) {
	log := config.WithContext(ctx)

	claims, err := auth.GetUserClaimsFromContext(ctx)
	if err != nil {
		return nil, ErrUnauthorized
	}

	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, ErrInvalidID
	}
	e, err := s.examRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID.String() != claims.UserID {
		return nil, ErrUnauthorized
	}
	if e.Status == exam.StatusArchived {
		return nil, ErrExamArchived
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))
	if _, err := s.repo.FindByExamAndEmail(e.ID, email); err == nil {
		return nil, ErrAlreadyInvited
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	inv := &Invitation{
		ID:                uuid.New(),
		ExamID:            e.ID,
		Email:             email,
		ExpirationInHours: dto.ExpirationInHours,
	}
	if inv.ExpirationInHours <= 0 {
		inv.ExpirationInHours = 72
	}

	token, err := config.Encrypt(fmt.Sprintf("%s:%s", inv.ID, email))
	if err != nil {
		log.WithError(err).Error("Failed to seal invitation token")
		return nil, err
	}
	inv.Token = token

	if err := s.repo.Create(inv); err != nil {
		log.WithError(err).Error("Failed to create invitation")
		return nil, err
	}

	log.WithFields(logrus.Fields{"invitation_id": inv.ID, "exam_id": e.ID}).
		Info("Invitation created successfully")
	return s.toResponse(inv), nil
}

func (s *invitationService) ListByExam(ctx context.Context, examID string) ([]InvitationResponse, error) {
	log := config.WithContext(ctx)

	claims, err := auth.GetUserClaimsFromContext(ctx)
	if err != nil {
		return nil, ErrUnauthorized
	}

	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, ErrInvalidID
	}
	e, err := s.examRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID.String() != claims.UserID {
		return nil, ErrUnauthorized
	}

	invitations, err := s.repo.ListByExam(e.ID)
	if err != nil {
		log.WithError(err).Error("Failed to list invitations")
		return nil, err
	}

	responses := make([]InvitationResponse, 0, len(invitations))
	for i := range invitations {
		responses = append(responses, *s.toResponse(&invitations[i]))
	}
	return responses, nil
}

func (s *invitationService) Accept(ctx context.Context, token string) (*InvitationResponse, error) {
	log := config.WithContext(ctx)

	claims, err := auth.GetUserClaimsFromContext(ctx)
	if err != nil {
		return nil, ErrUnauthorized
	}
	candidate, err := s.userRepo.FindByID(uuid.MustParse(claims.UserID))
	if err != nil {
		return nil, err
	}

	plain, err := config.Decrypt(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	parts := strings.SplitN(plain, ":", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidToken
	}
	invID, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, ErrInvalidToken
	}

	inv, err := s.repo.FindByID(invID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(inv.Email, candidate.Email) {
		log.WithField("invitation_id", inv.ID).Warn("Invitation email does not match the candidate")
		return nil, ErrUnauthorized
	}
	if inv.Expired(s.now()) {
		return nil, ErrInvitationExpired
	}

	applied, err := s.repo.SetAcceptedIfPending(inv.ID, true)
	if err != nil {
		log.WithError(err).Error("Failed to accept invitation")
		return nil, err
	}
	if !applied {
		return nil, ErrInvitationNotPending
	}

	accepted := true
	inv.Accepted = &accepted
	log.WithField("invitation_id", inv.ID).Info("Invitation accepted")
	return s.toResponse(inv), nil
}

func (s *invitationService) Reject(ctx context.Context, id string) (*InvitationResponse, error) {
	log := config.WithContext(ctx)

	claims, err := auth.GetUserClaimsFromContext(ctx)
	if err != nil {
		return nil, ErrUnauthorized
	}
	candidate, err := s.userRepo.FindByID(uuid.MustParse(claims.UserID))
	if err != nil {
		return nil, err
	}

	invID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	inv, err := s.repo.FindByID(invID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(inv.Email, candidate.Email) {
		return nil, ErrUnauthorized
	}

	applied, err := s.repo.SetAcceptedIfPending(inv.ID, false)
	if err != nil {
		log.WithError(err).Error("Failed to reject invitation")
		return nil, err
	}
	if !applied {
		return nil, ErrInvitationNotPending
	}

	rejected := false
	inv.Accepted = &rejected
	log.WithField("invitation_id", inv.ID).Info("Invitation rejected")
	return s.toResponse(inv), nil
}

func (s *invitationService) Enroll(ctx context.Context, examID uuid.UUID, email string, now time.Time) (*Invitation, error) {
	log := config.WithContext(ctx)

	inv, err := s.repo.FindByExamAndEmail(examID, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotInvited
		}
		return nil, err
	}

	if inv.Accepted != nil {
		if !*inv.Accepted {
			return nil, ErrInvitationRejected
		}
		return inv, nil
	}

	if inv.Expired(now) {
		return nil, ErrInvitationExpired
	}

	// Starting an attempt counts as accepting a pending invitation.
	if _, err := s.repo.SetAcceptedIfPending(inv.ID, true); err != nil {
		log.WithError(err).Error("Failed to accept invitation on attempt start")
		return nil, err
	}
	accepted := true
	inv.Accepted = &accepted
	return inv, nil
}

func (s *invitationService) ForceRejectPending(ctx context.Context, examID uuid.UUID) error {
	log := config.WithContext(ctx)

	if err := s.repo.RejectAllPending(examID); err != nil {
		log.WithError(err).Error("Failed to reject pending invitations")
		return err
	}
	log.WithField("exam_id", examID).Info("Pending invitations rejected")
	return nil
}
