package exam

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
	"github.com/saulo-duarte/recrutai-lambda/internal/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrExamNotFound     = ErrNotFound
	ErrUnauthorized     = errors.New("unauthorized")
	ErrExamNotDraft     = errors.New("exam is no longer a draft")
	ErrExamNotPublished = errors.New("exam is not published")
	ErrInvalidID        = errors.New("invalid id format")
)

// PendingAttemptsError blocks archival while candidates still have open
// attempts whose deadline has not passed.
type PendingAttemptsError struct {
	DaysRemaining int
}

func (e *PendingAttemptsError) Error() string {
	return fmt.Sprintf("exam has pending attempts, last deadline in %d day(s)", e.DaysRemaining)
}

// AttemptGate is the slice of the answer-sheet service the exam state
// machine needs. Implemented by the answersheet package, wired in the
// container.
type AttemptGate interface {
	// OpenDeadlines returns the deadlines of every answer sheet of the
	// exam that is still open (end date unset) and has a deadline.
	OpenDeadlines(ctx context.Context, examID uuid.UUID) ([]time.Time, error)
	// CloseOutstanding force-closes every still-open sheet and creates an
	// already-submitted empty sheet for enrolled candidates that never
	// started, so archival leaves no attempt open-ended.
	CloseOutstanding(ctx context.Context, examID uuid.UUID) error
}

// InvitationGate lets archival reject the invitations still pending.
type InvitationGate interface {
	ForceRejectPending(ctx context.Context, examID uuid.UUID) error
}

type ExamService interface {
	CreateExam(ctx context.Context, dto CreateExamDTO) (*Exam, error)
	GetExam(ctx context.Context, id string) (*Exam, error)
	ListMyExams(ctx context.Context) ([]Exam, error)
	UpdateExam(ctx context.Context, id string, dto UpdateExamDTO) (*Exam, error)
	DeleteExam(ctx context.Context, id string) error

	AddSection(ctx context.Context, examID string, dto CreateSectionDTO) (*Section, error)
	DeleteSection(ctx context.Context, examID, sectionID string) error
	AddQuestion(ctx context.Context, examID, sectionID string, dto CreateQuestionDTO) (*SectionQuestion, error)

	Publish(ctx context.Context, id string) (*Exam, error)
	Archive(ctx context.Context, id string) (*Exam, error)
}

type examService struct {
	repo        ExamRepository
	attempts    AttemptGate
	invitations InvitationGate
	now         func() time.Time
}

func NewService(repo ExamRepository, attempts AttemptGate, invitations InvitationGate) ExamService {
	return NewServiceWithClock(repo, attempts, invitations, time.Now)
}

// NewServiceWithClock injects the clock used for archival gating, so
// deadline comparisons are deterministic in tests.
func NewServiceWithClock(repo ExamRepository, attempts AttemptGate, invitations InvitationGate, now func() time.Time) ExamService {
	return &examService{
		repo:        repo,
		attempts:    attempts,
		invitations: invitations,
		now:         now,
	}
}

func ownerIDFromContext(ctx context.Context, log logrus.FieldLogger, action string) (uuid.UUID, error) {
	claims, err := auth.GetUserClaimsFromContext(ctx)
	if err != nil {
		log.WithError(err).Warnf("Attempt to %s without authentication", action)
		return uuid.Nil, ErrUnauthorized
	}
	return uuid.MustParse(claims.UserID), nil
}

func parseUUID(log logrus.FieldLogger, id string, entityName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		log.WithError(err).Warnf("Invalid %s ID", entityName)
		return uuid.Nil, ErrInvalidID
	}
	return parsed, nil
}

func (s *examService) ownedExam(ctx context.Context, log logrus.FieldLogger, id string) (*Exam, error) {
	ownerID, err := ownerIDFromContext(ctx, log, "manage exam")
	if err != nil {
		return nil, err
	}
	examID, err := parseUUID(log, id, "exam")
	if err != nil {
		return nil, err
	}
	e, err := s.repo.FindByID(examID)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != ownerID {
		log.WithFields(logrus.Fields{"exam_id": id, "user_id": ownerID}).Warn("Exam does not belong to user")
		return nil, ErrUnauthorized
	}
	return e, nil
}

func (s *examService) CreateExam(ctx context.Context, dto CreateExamDTO) (*Exam, error) {
	log := config.WithContext(ctx)
	ownerID, err := ownerIDFromContext(ctx, log, "create exam")
	if err != nil {
		return nil, err
	}

	e := &Exam{
		ID:                        uuid.New(),
		OwnerID:                   ownerID,
		Title:                     dto.Title,
		Description:               dto.Description,
		Status:                    StatusDraft,
		DurationInHours:           dto.DurationInHours,
		SubmissionDeadlineInHours: dto.SubmissionDeadlineInHours,
		ShowScore:                 dto.ShowScore,
	}
	if e.DurationInHours <= 0 {
		e.DurationInHours = 1
	}
	if e.SubmissionDeadlineInHours <= 0 {
		e.SubmissionDeadlineInHours = 24
	}

	if err := s.repo.Create(e); err != nil {
		log.WithError(err).Error("Failed to create exam")
		return nil, err
	}

	log.WithField("exam_id", e.ID).Info("Exam created successfully")
	return e, nil
}

func (s *examService) GetExam(ctx context.Context, id string) (*Exam, error) {
	log := config.WithContext(ctx)

	claims, err := auth.GetUserClaimsFromContext(ctx)
	if err != nil {
		return nil, ErrUnauthorized
	}
	examID, err := parseUUID(log, id, "exam")
	if err != nil {
		return nil, err
	}

	e, err := s.repo.FindByID(examID)
	if err != nil {
		return nil, err
	}

	// Candidates may only see published exams.
	if e.OwnerID.String() != claims.UserID && e.Status != StatusPublished {
		return nil, ErrExamNotFound
	}
	return e, nil
}

func (s *examService) ListMyExams(ctx context.Context) ([]Exam, error) {
	log := config.WithContext(ctx)
	ownerID, err := ownerIDFromContext(ctx, log, "list exams")
	if err != nil {
		return nil, err
	}

	exams, err := s.repo.ListByOwner(ownerID)
	if err != nil {
		log.WithError(err).Error("Failed to list exams")
		return nil, err
	}
	return exams, nil
}

func (s *examService) UpdateExam(ctx context.Context, id string, dto UpdateExamDTO) (*Exam, error) {
	log := config.WithContext(ctx)

	e, err := s.ownedExam(ctx, log, id)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusDraft {
		return nil, ErrExamNotDraft
	}

	if dto.Title != nil {
		e.Title = *dto.Title
	}
	if dto.Description != nil {
		e.Description = *dto.Description
	}
	if dto.DurationInHours != nil {
		e.DurationInHours = *dto.DurationInHours
	}
	if dto.SubmissionDeadlineInHours != nil {
		e.SubmissionDeadlineInHours = *dto.SubmissionDeadlineInHours
	}
	if dto.ShowScore != nil {
		e.ShowScore = *dto.ShowScore
	}

	if err := s.repo.Update(e); err != nil {
		log.WithError(err).Error("Failed to update exam")
		return nil, err
	}
	return e, nil
}

func (s *examService) DeleteExam(ctx context.Context, id string) error {
	log := config.WithContext(ctx)

	e, err := s.ownedExam(ctx, log, id)
	if err != nil {
		return err
	}
	if e.Status != StatusDraft {
		return ErrExamNotDraft
	}

	if err := s.repo.Delete(e.ID); err != nil {
		log.WithError(err).Error("Failed to delete exam")
		return err
	}
	log.WithField("exam_id", e.ID).Info("Exam deleted successfully")
	return nil
}

func (s *examService) AddSection(ctx context.Context, examID string, dto CreateSectionDTO) (*Section, error) {
	log := config.WithContext(ctx)

	e, err := s.ownedExam(ctx, log, examID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusDraft {
		return nil, ErrExamNotDraft
	}

	section := &Section{
		ID:              uuid.New(),
		ExamID:          e.ID,
		Title:           dto.Title,
		Weight:          dto.Weight,
		Position:        dto.Position,
		DurationInHours: dto.DurationInHours,
	}
	for _, q := range dto.Questions {
		section.Questions = append(section.Questions, SectionQuestion{
			ID:          uuid.New(),
			SectionID:   section.ID,
			QuestionRef: q.QuestionRef,
			Statement:   q.Statement,
			Rubric:      q.Rubric,
			Weight:      q.Weight,
			Position:    q.Position,
			Options:     q.Options,
		})
	}

	if err := s.repo.AddSection(section); err != nil {
		log.WithError(err).Error("Failed to add section")
		return nil, err
	}
	log.WithField("section_id", section.ID).Info("Section added successfully")
	return section, nil
}

func (s *examService) DeleteSection(ctx context.Context, examID, sectionID string) error {
	log := config.WithContext(ctx)

	e, err := s.ownedExam(ctx, log, examID)
	if err != nil {
		return err
	}
	if e.Status != StatusDraft {
		return ErrExamNotDraft
	}

	id, err := parseUUID(log, sectionID, "section")
	if err != nil {
		return err
	}
	return s.repo.DeleteSection(id)
}

func (s *examService) AddQuestion(ctx context.Context, examID, sectionID string, dto CreateQuestionDTO) (*SectionQuestion, error) {
	log := config.WithContext(ctx)

	e, err := s.ownedExam(ctx, log, examID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusDraft {
		return nil, ErrExamNotDraft
	}

	id, err := parseUUID(log, sectionID, "section")
	if err != nil {
		return nil, err
	}
	section, err := s.repo.FindSectionByID(id)
	if err != nil {
		return nil, err
	}
	if section.ExamID != e.ID {
		return nil, ErrUnauthorized
	}

	q := &SectionQuestion{
		ID:          uuid.New(),
		SectionID:   section.ID,
		QuestionRef: dto.QuestionRef,
		Statement:   dto.Statement,
		Rubric:      dto.Rubric,
		Weight:      dto.Weight,
		Position:    dto.Position,
		Options:     dto.Options,
	}
	if err := s.repo.AddQuestion(q); err != nil {
		log.WithError(err).Error("Failed to add question")
		return nil, err
	}
	return q, nil
}

func (s *examService) Publish(ctx context.Context, id string) (*Exam, error) {
	log := config.WithContext(ctx)

	e, err := s.ownedExam(ctx, log, id)
	if err != nil {
		return nil, err
	}
	if !e.Status.CanTransitionTo(StatusPublished) {
		return nil, ErrExamNotDraft
	}

	if err := ValidatePublishable(e.Sections); err != nil {
		log.WithError(err).WithField("exam_id", e.ID).Warn("Exam failed publish validation")
		return nil, err
	}

	applied, err := s.repo.UpdateStatusIf(e.ID, StatusDraft, StatusPublished)
	if err != nil {
		log.WithError(err).Error("Failed to publish exam")
		return nil, err
	}
	if !applied {
		return nil, ErrExamNotDraft
	}

	e.Status = StatusPublished
	log.WithField("exam_id", e.ID).Info("Exam published successfully")
	return e, nil
}

func (s *examService) Archive(ctx context.Context, id string) (*Exam, error) {
	log := config.WithContext(ctx)

	e, err := s.ownedExam(ctx, log, id)
	if err != nil {
		return nil, err
	}
	if !e.Status.CanTransitionTo(StatusArchived) {
		return nil, ErrExamNotPublished
	}

	deadlines, err := s.attempts.OpenDeadlines(ctx, e.ID)
	if err != nil {
		log.WithError(err).Error("Failed to check pending attempts")
		return nil, err
	}

	now := s.now()
	var latest time.Time
	for _, d := range deadlines {
		if d.After(now) && d.After(latest) {
			latest = d
		}
	}
	if !latest.IsZero() {
		days := int(math.Ceil(latest.Sub(now).Hours() / 24))
		log.WithFields(logrus.Fields{"exam_id": e.ID, "days_remaining": days}).
			Warn("Archival blocked by pending attempts")
		return nil, &PendingAttemptsError{DaysRemaining: days}
	}

	if err := s.invitations.ForceRejectPending(ctx, e.ID); err != nil {
		log.WithError(err).Error("Failed to reject pending invitations")
		return nil, err
	}
	if err := s.attempts.CloseOutstanding(ctx, e.ID); err != nil {
		log.WithError(err).Error("Failed to close outstanding attempts")
		return nil, err
	}

	applied, err := s.repo.UpdateStatusIf(e.ID, StatusPublished, StatusArchived)
	if err != nil {
		log.WithError(err).Error("Failed to archive exam")
		return nil, err
	}
	if !applied {
		return nil, ErrExamNotPublished
	}

	e.Status = StatusArchived
	log.WithField("exam_id", e.ID).Info("Exam archived successfully")
	return e, nil
}
