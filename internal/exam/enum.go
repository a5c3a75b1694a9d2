package exam

type ExamStatus string

const (
	StatusDraft     ExamStatus = "DRAFT"
	StatusPublished ExamStatus = "PUBLISHED"
	StatusArchived  ExamStatus = "ARCHIVED"
)

var AllStatuses = []ExamStatus{
	StatusDraft,
	StatusPublished,
	StatusArchived,
}

func (s ExamStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Transitions are one-way: DRAFT -> PUBLISHED -> ARCHIVED, no skipping.
func (s ExamStatus) CanTransitionTo(next ExamStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusPublished
	case StatusPublished:
		return next == StatusArchived
	default:
		return false
	}
}
