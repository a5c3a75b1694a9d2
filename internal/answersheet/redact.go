package answersheet

import "github.com/saulo-duarte/recrutai-lambda/internal/auth"

// RedactForRole strips AI and revised scores and feedback from a sheet
// response, at every nesting depth, when the requester is a candidate
// and the owning exam does not disclose scores. Any other requester, or
// an exam with show_score enabled, sees the payload unchanged.
//
// The policy is keyed off the owning exam's flag, never the flag of an
// unrelated exam. Works on a copy; the input is never mutated.
func RedactForRole(resp *SheetResponse, role string, examShowScore bool) *SheetResponse {
	if resp == nil {
		return nil
	}
	if role != auth.RoleCandidate || examShowScore {
		return resp
	}

	out := *resp
	out.AIScore = nil
	out.Sections = make([]SectionSessionResponse, len(resp.Sections))
	for i := range resp.Sections {
		out.Sections[i] = *RedactSessionForRole(&resp.Sections[i], role, examShowScore)
	}
	return &out
}

// RedactSessionForRole applies the same policy to a single section-session
// response, so session-level reads (start, close) pass through the gate
// even when grading landed between the close and the re-read.
func RedactSessionForRole(resp *SectionSessionResponse, role string, examShowScore bool) *SectionSessionResponse {
	if resp == nil {
		return nil
	}
	if role != auth.RoleCandidate || examShowScore {
		return resp
	}

	out := *resp
	out.Answers = make([]AnswerResponse, len(resp.Answers))
	for i := range resp.Answers {
		out.Answers[i] = *RedactAnswerForRole(&resp.Answers[i], role, examShowScore)
	}
	return &out
}

// RedactAnswerForRole is the per-answer gate.
func RedactAnswerForRole(resp *AnswerResponse, role string, examShowScore bool) *AnswerResponse {
	if resp == nil {
		return nil
	}
	if role != auth.RoleCandidate || examShowScore {
		return resp
	}

	out := *resp
	out.AIScore = nil
	out.AIFeedback = nil
	out.RevisedScore = nil
	out.RevisedFeedback = nil
	return &out
}

// RedactExamAttempts applies RedactForRole to every sheet nested under
// an exam read.
func RedactExamAttempts(resp *ExamAttemptsResponse, role string) *ExamAttemptsResponse {
	if resp == nil {
		return nil
	}
	if role != auth.RoleCandidate || resp.ShowScore {
		return resp
	}

	out := *resp
	out.Sheets = make([]SheetResponse, len(resp.Sheets))
	for i := range resp.Sheets {
		out.Sheets[i] = *RedactForRole(&resp.Sheets[i], role, resp.ShowScore)
	}
	return &out
}
