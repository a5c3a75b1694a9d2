package answersheet

import (
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
)

type SaveAnswerDTO struct {
	QuestionRef string `json:"question_ref"`
	Content     string `json:"content"`
}

type CloseSectionDTO struct {
	// Optional final answer saved right before the section closes.
	FinalAnswer *SaveAnswerDTO `json:"final_answer"`
}

type ReviseAnswerDTO struct {
	RevisedScore    float64 `json:"revised_score"`
	RevisedFeedback string  `json:"revised_feedback"`
}

type AnswerResponse struct {
	ID              uuid.UUID `json:"id"`
	QuestionRef     string    `json:"question_ref"`
	Content         string    `json:"content"`
	AIScore         *float64  `json:"ai_score,omitempty"`
	AIFeedback      *string   `json:"ai_feedback,omitempty"`
	RevisedScore    *float64  `json:"revised_score,omitempty"`
	RevisedFeedback *string   `json:"revised_feedback,omitempty"`
}

type SectionSessionResponse struct {
	ID        uuid.UUID        `json:"id"`
	SectionID uuid.UUID        `json:"section_id"`
	StartDate time.Time        `json:"start_date"`
	EndDate   *time.Time       `json:"end_date"`
	Answers   []AnswerResponse `json:"answers,omitempty"`
}

type SheetResponse struct {
	ID          uuid.UUID                `json:"id"`
	ExamID      uuid.UUID                `json:"exam_id"`
	CandidateID uuid.UUID                `json:"candidate_id"`
	StartDate   time.Time                `json:"start_date"`
	EndDate     *time.Time               `json:"end_date"`
	Deadline    *time.Time               `json:"deadline"`
	AIScore     *float64                 `json:"ai_score,omitempty"`
	Sections    []SectionSessionResponse `json:"sections,omitempty"`
}

// ExamAttemptsResponse is the recruiter/candidate view of an exam with
// its attempts nested, the deepest read shape the API exposes.
type ExamAttemptsResponse struct {
	ExamID    uuid.UUID       `json:"exam_id"`
	Title     string          `json:"title"`
	Status    exam.ExamStatus `json:"status"`
	ShowScore bool            `json:"show_score"`
	Sheets    []SheetResponse `json:"sheets"`
}

func toAnswerResponse(a *Answer) AnswerResponse {
	return AnswerResponse{
		ID:              a.ID,
		QuestionRef:     a.QuestionRef,
		Content:         a.Content,
		AIScore:         a.AIScore,
		AIFeedback:      a.AIFeedback,
		RevisedScore:    a.RevisedScore,
		RevisedFeedback: a.RevisedFeedback,
	}
}

func toSessionResponse(s *SectionSession) SectionSessionResponse {
	resp := SectionSessionResponse{
		ID:        s.ID,
		SectionID: s.SectionID,
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
	}
	for i := range s.Answers {
		resp.Answers = append(resp.Answers, toAnswerResponse(&s.Answers[i]))
	}
	return resp
}

func toSheetResponse(sheet *AnswerSheet) *SheetResponse {
	resp := &SheetResponse{
		ID:          sheet.ID,
		ExamID:      sheet.ExamID,
		CandidateID: sheet.CandidateID,
		StartDate:   sheet.StartDate,
		EndDate:     sheet.EndDate,
		Deadline:    sheet.Deadline,
		AIScore:     sheet.AIScore,
	}
	for i := range sheet.Sections {
		resp.Sections = append(resp.Sections, toSessionResponse(&sheet.Sections[i]))
	}
	return resp
}
