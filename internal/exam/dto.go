package exam

import "gorm.io/datatypes"

type CreateExamDTO struct {
	Title                     string `json:"title"`
	Description               string `json:"description"`
	DurationInHours           int    `json:"duration_in_hours"`
	SubmissionDeadlineInHours int    `json:"submission_deadline_in_hours"`
	ShowScore                 bool   `json:"show_score"`
}

type UpdateExamDTO struct {
	Title                     *string `json:"title"`
	Description               *string `json:"description"`
	DurationInHours           *int    `json:"duration_in_hours"`
	SubmissionDeadlineInHours *int    `json:"submission_deadline_in_hours"`
	ShowScore                 *bool   `json:"show_score"`
}

type CreateSectionDTO struct {
	Title           string              `json:"title"`
	Weight          float64             `json:"weight"`
	Position        int                 `json:"position"`
	DurationInHours *int                `json:"duration_in_hours"`
	Questions       []CreateQuestionDTO `json:"questions"`
}

type CreateQuestionDTO struct {
	QuestionRef string         `json:"question_ref"`
	Statement   string         `json:"statement"`
	Rubric      string         `json:"rubric"`
	Weight      float64        `json:"weight"`
	Position    int            `json:"position"`
	Options     datatypes.JSON `json:"options"`
}
