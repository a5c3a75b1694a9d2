package answersheet

import "time"

// ComputeDeadline returns the hard deadline for an attempt: the anchor
// event plus the exam's submission window. The anchor is the accepting
// invitation's creation time, or the exam's creation time when the
// candidate has no invitation. Computed once, at sheet creation.
func ComputeDeadline(anchor time.Time, windowHours int) time.Time {
	return anchor.Add(time.Duration(windowHours) * time.Hour)
}
