package answersheet

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("answer sheet not found")

type AnswerSheetRepository interface {
	CreateSheet(sheet *AnswerSheet) error
	FindSheetByID(id uuid.UUID) (*AnswerSheet, error)
	FindSheetByExamAndCandidate(examID, candidateID uuid.UUID) (*AnswerSheet, error)
	ListSheetsByExam(examID uuid.UUID) ([]AnswerSheet, error)
	ListOpenSheetsByExam(examID uuid.UUID) ([]AnswerSheet, error)
	// CloseSheet sets the end date only while it is still unset, so
	// concurrent closers apply the transition at most once. Returns
	// whether this call won.
	CloseSheet(id uuid.UUID, endDate time.Time) (bool, error)
	SetSheetScore(id uuid.UUID, score float64) error

	CreateSession(session *SectionSession) error
	FindSessionByID(id uuid.UUID) (*SectionSession, error)
	FindSessionBySheetAndSection(sheetID, sectionID uuid.UUID) (*SectionSession, error)
	ListOpenSessionsBySheet(sheetID uuid.UUID) ([]SectionSession, error)
	// CloseSession has the same at-most-once contract as CloseSheet.
	CloseSession(id uuid.UUID, endDate time.Time) (bool, error)

	FindAnswer(sessionID uuid.UUID, questionRef string) (*Answer, error)
	FindAnswerByID(id uuid.UUID) (*Answer, error)
	SaveAnswer(a *Answer) error
	SetAnswerAIResult(id uuid.UUID, score float64, feedback string) error
	SetAnswerRevisedResult(id uuid.UUID, score float64, feedback string) error
}

type answerSheetRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) AnswerSheetRepository {
	return &answerSheetRepository{db: db}
}

func (r *answerSheetRepository) CreateSheet(sheet *AnswerSheet) error {
	return r.db.Create(sheet).Error
}

func (r *answerSheetRepository) FindSheetByID(id uuid.UUID) (*AnswerSheet, error) {
	var sheet AnswerSheet
	err := r.db.
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("start_date ASC") }).
		Preload("Sections.Answers").
		First(&sheet, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sheet, nil
}

func (r *answerSheetRepository) FindSheetByExamAndCandidate(examID, candidateID uuid.UUID) (*AnswerSheet, error) {
	var sheet AnswerSheet
	err := r.db.First(&sheet, "exam_id = ? AND candidate_id = ?", examID, candidateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sheet, nil
}

func (r *answerSheetRepository) ListSheetsByExam(examID uuid.UUID) ([]AnswerSheet, error) {
	var sheets []AnswerSheet
	if err := r.db.
		Preload("Sections").
		Preload("Sections.Answers").
		Where("exam_id = ?", examID).
		Order("start_date ASC").
		Find(&sheets).Error; err != nil {
		return nil, err
	}
	return sheets, nil
}

func (r *answerSheetRepository) ListOpenSheetsByExam(examID uuid.UUID) ([]AnswerSheet, error) {
	var sheets []AnswerSheet
	if err := r.db.
		Where("exam_id = ? AND end_date IS NULL", examID).
		Find(&sheets).Error; err != nil {
		return nil, err
	}
	return sheets, nil
}

func (r *answerSheetRepository) CloseSheet(id uuid.UUID, endDate time.Time) (bool, error) {
	res := r.db.Model(&AnswerSheet{}).
		Where("id = ? AND end_date IS NULL", id).
		Update("end_date", endDate)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *answerSheetRepository) SetSheetScore(id uuid.UUID, score float64) error {
	return r.db.Model(&AnswerSheet{}).
		Where("id = ?", id).
		Update("ai_score", score).Error
}

func (r *answerSheetRepository) CreateSession(session *SectionSession) error {
	return r.db.Create(session).Error
}

func (r *answerSheetRepository) FindSessionByID(id uuid.UUID) (*SectionSession, error) {
	var session SectionSession
	err := r.db.Preload("Answers").First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *answerSheetRepository) FindSessionBySheetAndSection(sheetID, sectionID uuid.UUID) (*SectionSession, error) {
	var session SectionSession
	err := r.db.First(&session, "answer_sheet_id = ? AND section_id = ?", sheetID, sectionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *answerSheetRepository) ListOpenSessionsBySheet(sheetID uuid.UUID) ([]SectionSession, error) {
	var sessions []SectionSession
	if err := r.db.
		Where("answer_sheet_id = ? AND end_date IS NULL", sheetID).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *answerSheetRepository) CloseSession(id uuid.UUID, endDate time.Time) (bool, error) {
	res := r.db.Model(&SectionSession{}).
		Where("id = ? AND end_date IS NULL", id).
		Update("end_date", endDate)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *answerSheetRepository) FindAnswer(sessionID uuid.UUID, questionRef string) (*Answer, error) {
	var a Answer
	err := r.db.First(&a, "section_session_id = ? AND question_ref = ?", sessionID, questionRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *answerSheetRepository) FindAnswerByID(id uuid.UUID) (*Answer, error) {
	var a Answer
	if err := r.db.First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *answerSheetRepository) SaveAnswer(a *Answer) error {
	return r.db.Save(a).Error
}

func (r *answerSheetRepository) SetAnswerAIResult(id uuid.UUID, score float64, feedback string) error {
	return r.db.Model(&Answer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"ai_score": score, "ai_feedback": feedback}).Error
}

func (r *answerSheetRepository) SetAnswerRevisedResult(id uuid.UUID, score float64, feedback string) error {
	return r.db.Model(&Answer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"revised_score": score, "revised_feedback": feedback}).Error
}
