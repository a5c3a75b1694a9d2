package invitation

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("invitation not found")

type InvitationRepository interface {
	Create(i *Invitation) error
	FindByID(id uuid.UUID) (*Invitation, error)
	FindByExamAndEmail(examID uuid.UUID, email string) (*Invitation, error)
	ListByExam(examID uuid.UUID) ([]Invitation, error)
	Update(i *Invitation) error

	// SetAcceptedIfPending records the accept/reject decision only when
	// the invitation is still pending. Returns whether it was applied.
	SetAcceptedIfPending(id uuid.UUID, accepted bool) (bool, error)
	RejectAllPending(examID uuid.UUID) error
}

type invitationRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

func (r *invitationRepository) Create(i *Invitation) error {
	return r.db.Create(i).Error
}

func (r *invitationRepository) FindByID(id uuid.UUID) (*Invitation, error) {
	var inv Invitation
	if err := r.db.First(&inv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepository) FindByExamAndEmail(examID uuid.UUID, email string) (*Invitation, error) {
	var inv Invitation
	err := r.db.First(&inv, "exam_id = ? AND email = ?", examID, email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepository) ListByExam(examID uuid.UUID) ([]Invitation, error) {
	var invitations []Invitation
	if err := r.db.
		Where("exam_id = ?", examID).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *invitationRepository) Update(i *Invitation) error {
	return r.db.Save(i).Error
}

func (r *invitationRepository) SetAcceptedIfPending(id uuid.UUID, accepted bool) (bool, error) {
	res := r.db.Model(&Invitation{}).
		Where("id = ? AND accepted IS NULL", id).
		Update("accepted", accepted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *invitationRepository) RejectAllPending(examID uuid.UUID) error {
	return r.db.Model(&Invitation{}).
		Where("exam_id = ? AND accepted IS NULL", examID).
		Update("accepted", false).Error
}
