package answersheet_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/recrutai-lambda/internal/answersheet"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
)

var scoreFields = []string{"ai_score", "ai_feedback", "revised_score", "revised_feedback"}

func scoredSheetResponse() *answersheet.SheetResponse {
	score := 0.85
	feedback := "Strong grasp of the fundamentals"
	revised := 0.9
	revisedFeedback := "Adjusted after manual review"
	end := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	return &answersheet.SheetResponse{
		ID:          uuid.New(),
		ExamID:      uuid.New(),
		CandidateID: uuid.New(),
		StartDate:   end.Add(-2 * time.Hour),
		EndDate:     &end,
		AIScore:     &score,
		Sections: []answersheet.SectionSessionResponse{
			{
				ID:        uuid.New(),
				SectionID: uuid.New(),
				StartDate: end.Add(-2 * time.Hour),
				EndDate:   &end,
				Answers: []answersheet.AnswerResponse{
					{
						ID:              uuid.New(),
						QuestionRef:     "q1",
						Content:         "Indexes trade write cost for read speed",
						AIScore:         &score,
						AIFeedback:      &feedback,
						RevisedScore:    &revised,
						RevisedFeedback: &revisedFeedback,
					},
					{
						ID:          uuid.New(),
						QuestionRef: "q2",
						Content:     "Left blank",
						AIScore:     &score,
						AIFeedback:  &feedback,
					},
				},
			},
		},
	}
}

func TestRedactForRole(t *testing.T) {
	t.Run("CandidateWithHiddenScores", func(t *testing.T) {
		original := scoredSheetResponse()
		redacted := answersheet.RedactForRole(original, auth.RoleCandidate, false)

		data, err := json.Marshal(redacted)
		if err != nil {
			t.Fatalf("Failed to marshal redacted response: %v", err)
		}
		for _, field := range scoreFields {
			if bytes.Contains(data, []byte(field)) {
				t.Errorf("Redacted payload still contains %q: %s", field, data)
			}
		}

		if redacted.Sections[0].Answers[0].Content != original.Sections[0].Answers[0].Content {
			t.Error("Redaction must preserve answer content")
		}
		if redacted.EndDate == nil || !redacted.EndDate.Equal(*original.EndDate) {
			t.Error("Redaction must preserve lifecycle timestamps")
		}
	})

	t.Run("InputNotMutated", func(t *testing.T) {
		original := scoredSheetResponse()
		_ = answersheet.RedactForRole(original, auth.RoleCandidate, false)

		if original.AIScore == nil {
			t.Error("Redaction mutated the sheet score of the input")
		}
		if original.Sections[0].Answers[0].AIScore == nil || original.Sections[0].Answers[0].RevisedFeedback == nil {
			t.Error("Redaction mutated answer fields of the input")
		}
	})

	t.Run("RecruiterSeesEverything", func(t *testing.T) {
		original := scoredSheetResponse()
		got := answersheet.RedactForRole(original, auth.RoleRecruiter, false)
		if got != original {
			t.Error("Recruiter reads should pass through unredacted")
		}
	})

	t.Run("ShowScoreDisclosesToCandidate", func(t *testing.T) {
		original := scoredSheetResponse()
		got := answersheet.RedactForRole(original, auth.RoleCandidate, true)
		if got != original {
			t.Error("Candidate reads with show_score enabled should pass through unredacted")
		}
	})
}

func TestRedactExamAttempts(t *testing.T) {
	resp := &answersheet.ExamAttemptsResponse{
		ExamID:    uuid.New(),
		Title:     "Backend Engineer Screening",
		ShowScore: false,
		Sheets:    []answersheet.SheetResponse{*scoredSheetResponse(), *scoredSheetResponse()},
	}

	redacted := answersheet.RedactExamAttempts(resp, auth.RoleCandidate)

	data, err := json.Marshal(redacted)
	if err != nil {
		t.Fatalf("Failed to marshal redacted response: %v", err)
	}
	for _, field := range scoreFields {
		if bytes.Contains(data, []byte(field)) {
			t.Errorf("Redacted exam payload still contains %q", field)
		}
	}
	if resp.Sheets[0].AIScore == nil {
		t.Error("Redaction mutated the input sheets")
	}
}
