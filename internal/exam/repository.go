package exam

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("exam not found")

type ExamRepository interface {
	Create(e *Exam) error
	FindByID(id uuid.UUID) (*Exam, error)
	ListByOwner(ownerID uuid.UUID) ([]Exam, error)
	Update(e *Exam) error
	Delete(id uuid.UUID) error

	AddSection(s *Section) error
	DeleteSection(id uuid.UUID) error
	AddQuestion(q *SectionQuestion) error
	FindSectionByID(id uuid.UUID) (*Section, error)

	// UpdateStatusIf flips Status from -> to only when the stored status
	// still equals from. Returns whether the update was applied.
	UpdateStatusIf(id uuid.UUID, from, to ExamStatus) (bool, error)
}

type examRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) Create(e *Exam) error {
	return r.db.Create(e).Error
}

func (r *examRepository) FindByID(id uuid.UUID) (*Exam, error) {
	var e Exam
	err := r.db.
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&e, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *examRepository) ListByOwner(ownerID uuid.UUID) ([]Exam, error) {
	var exams []Exam
	if err := r.db.
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

func (r *examRepository) Update(e *Exam) error {
	return r.db.Save(e).Error
}

func (r *examRepository) Delete(id uuid.UUID) error {
	return r.db.Select("Sections", "Sections.Questions").Delete(&Exam{ID: id}).Error
}

func (r *examRepository) AddSection(s *Section) error {
	return r.db.Create(s).Error
}

func (r *examRepository) DeleteSection(id uuid.UUID) error {
	return r.db.Delete(&Section{}, "id = ?", id).Error
}

func (r *examRepository) AddQuestion(q *SectionQuestion) error {
	return r.db.Create(q).Error
}

func (r *examRepository) FindSectionByID(id uuid.UUID) (*Section, error) {
	var s Section
	err := r.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&s, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *examRepository) UpdateStatusIf(id uuid.UUID, from, to ExamStatus) (bool, error) {
	res := r.db.Model(&Exam{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
