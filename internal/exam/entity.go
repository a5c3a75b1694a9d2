package exam

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Exam struct {
	ID                        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerID                   uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title                     string     `gorm:"type:text;not null" json:"title"`
	Description               string     `gorm:"type:text" json:"description,omitempty"`
	Status                    ExamStatus `gorm:"type:text;not null;default:DRAFT" json:"status"`
	DurationInHours           int        `gorm:"not null;default:1" json:"duration_in_hours"`
	SubmissionDeadlineInHours int        `gorm:"not null;default:24" json:"submission_deadline_in_hours"`
	ShowScore                 bool       `gorm:"not null;default:false" json:"show_score"`
	CreatedAt                 time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Sections []Section `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
}

type Section struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExamID          uuid.UUID `gorm:"type:uuid;not null;index" json:"exam_id"`
	Title           string    `gorm:"type:text;not null" json:"title"`
	Weight          float64   `gorm:"not null" json:"weight"`
	Position        int       `gorm:"not null;default:0" json:"position"`
	DurationInHours *int      `json:"duration_in_hours,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`

	Questions []SectionQuestion `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

type SectionQuestion struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SectionID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"section_id"`
	QuestionRef string         `gorm:"type:text;not null" json:"question_ref"`
	Statement   string         `gorm:"type:text;not null" json:"statement"`
	Rubric      string         `gorm:"type:text" json:"rubric,omitempty"`
	Weight      float64        `gorm:"not null;default:1" json:"weight"`
	Position    int            `gorm:"not null;default:0" json:"position"`
	Options     datatypes.JSON `gorm:"type:jsonb" json:"options,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
