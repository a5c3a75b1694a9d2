package exam

import (
	"errors"
	"math"
)

var (
	ErrEmptySections           = errors.New("exam has no sections")
	ErrSectionWithoutQuestions = errors.New("section has no questions")
	ErrWeightMismatch          = errors.New("section weights must sum to exactly 1")
)

// weightEpsilon absorbs float rounding when section weights are summed.
const weightEpsilon = 1e-9

// ValidatePublishable checks the invariants required to publish an exam:
// at least one section, every section with at least one question, and
// section weights summing to exactly 1.
func ValidatePublishable(sections []Section) error {
	if len(sections) == 0 {
		return ErrEmptySections
	}

	sum := 0.0
	for _, s := range sections {
		if len(s.Questions) == 0 {
			return ErrSectionWithoutQuestions
		}
		sum += s.Weight
	}

	if math.Abs(sum-1) > weightEpsilon {
		return ErrWeightMismatch
	}
	return nil
}
