package answersheet

import (
	"time"

	"github.com/google/uuid"
)

type AnswerSheet struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExamID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_sheet_exam_candidate" json:"exam_id"`
	CandidateID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_sheet_exam_candidate" json:"candidate_id"`
	StartDate   time.Time  `gorm:"not null" json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Deadline    *time.Time `json:"deadline"`
	AIScore     *float64   `json:"ai_score,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Sections []SectionSession `gorm:"foreignKey:AnswerSheetID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
}

// Open reports whether the sheet is still in progress.
func (s *AnswerSheet) Open() bool {
	return s.EndDate == nil
}

// Expired reports whether the deadline has passed while the sheet is
// still open. An expired sheet is closed lazily on the next read.
func (s *AnswerSheet) Expired(now time.Time) bool {
	return s.Open() && s.Deadline != nil && s.Deadline.Before(now)
}

type SectionSession struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AnswerSheetID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_session_sheet_section" json:"answer_sheet_id"`
	SectionID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_session_sheet_section" json:"section_id"`
	StartDate     time.Time  `gorm:"not null" json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Answers []Answer `gorm:"foreignKey:SectionSessionID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

func (s *SectionSession) Open() bool {
	return s.EndDate == nil
}

type Answer struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SectionSessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_answer_session_question" json:"section_session_id"`
	QuestionRef      string    `gorm:"type:text;not null;uniqueIndex:idx_answer_session_question" json:"question_ref"`
	Content          string    `gorm:"type:text" json:"content"`
	AIScore          *float64  `json:"ai_score,omitempty"`
	AIFeedback       *string   `gorm:"type:text" json:"ai_feedback,omitempty"`
	RevisedScore     *float64  `json:"revised_score,omitempty"`
	RevisedFeedback  *string   `gorm:"type:text" json:"revised_feedback,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
