package grading

// Result is what the model returns for a single answer.
type Result struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type GradeRequest struct {
	Statement     string `json:"statement"`
	Rubric        string `json:"rubric"`
	AnswerContent string `json:"answer_content"`
}
