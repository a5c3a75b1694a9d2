package answersheet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
	"github.com/saulo-duarte/recrutai-lambda/internal/config"
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
	"github.com/saulo-duarte/recrutai-lambda/internal/grading"
	"github.com/saulo-duarte/recrutai-lambda/internal/invitation"
	"github.com/saulo-duarte/recrutai-lambda/internal/user"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidID        = errors.New("invalid id format")
	ErrExamNotPublished = errors.New("exam is not published")
	ErrNotEnrolled      = errors.New("candidate is not enrolled in this exam")
	ErrAlreadyStarted   = errors.New("candidate already has an attempt for this exam")
	ErrSheetClosed      = errors.New("answer sheet is closed")
	ErrSessionClosed    = errors.New("section session is closed")
	ErrSessionOpen      = errors.New("section session is still open")
	ErrSectionNotInExam = errors.New("section does not belong to the exam")
)

type AnswerSheetService interface {
	StartAttempt(ctx context.Context, examID string) (*SheetResponse, error)
	ReadAttempt(ctx context.Context, sheetID string) (*SheetResponse, error)
	SubmitAttempt(ctx context.Context, sheetID string) (*SheetResponse, error)

	StartSection(ctx context.Context, sheetID, sectionID string) (*SectionSessionResponse, error)
	SaveAnswer(ctx context.Context, sessionID string, dto SaveAnswerDTO) (*AnswerResponse, error)
	CloseSection(ctx context.Context, sessionID string, dto CloseSectionDTO) (*SectionSessionResponse, error)
	ReviseAnswer(ctx context.Context, answerID string, dto ReviseAnswerDTO) (*AnswerResponse, error)

	ListExamAttempts(ctx context.Context, examID string) (*ExamAttemptsResponse, error)

	// Gate methods used by exam archival.
	OpenDeadlines(ctx context.Context, examID uuid.UUID) ([]time.Time, error)
	CloseOutstanding(ctx context.Context, examID uuid.UUID) error
}

type answerSheetService struct {
	repo        AnswerSheetRepository
	examRepo    exam.ExamRepository
	invitations invitation.InvitationService
	invRepo     invitation.InvitationRepository
	userRepo    user.UserRepository
	grader      grading.Service
	now         func() time.Time
}

func NewService(
	repo AnswerSheetRepository,
	examRepo exam.ExamRepository,
	invitations invitation.InvitationService,
	invRepo invitation.InvitationRepository,
	userRepo user.UserRepository,
	grader grading.Service,
) AnswerSheetService {
	return NewServiceWithClock(repo, examRepo, invitations, invRepo, userRepo, grader, time.Now)
}

// NewServiceWithClock injects the clock used for deadline checks, so
// auto-close behavior is deterministic in tests.
func NewServiceWithClock(
	repo AnswerSheetRepository,
	examRepo exam.ExamRepository,
	invitations invitation.InvitationService,
	invRepo invitation.InvitationRepository,
	userRepo user.UserRepository,
	grader grading.Service,
	now func() time.Time,
) AnswerSheetService {
	return &answerSheetService{
		repo:        repo,
		examRepo:    examRepo,
		invitations: invitations,
		invRepo:     invRepo,
		userRepo:    userRepo,
		grader:      grader,
		now:         now,
	}
}

func claimsFromContext(ctx context.Context, log logrus.FieldLogger, action string) (*auth.UserClaims, error) {
	claims, err := auth.GetUserClaimsFromContext(ctx)
	if err != nil {
		log.WithError(err).Warnf("Attempt to %s without authentication", action)
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func parseUUID(log logrus.FieldLogger, id string, entityName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		log.WithError(err).Warnf("Invalid %s ID", entityName)
		return uuid.Nil, ErrInvalidID
	}
	return parsed, nil
}

func (s *answerSheetService) StartAttempt(ctx context.Context, examID string) (*SheetResponse, error) {
	log := config.WithContext(ctx)

	claims, err := claimsFromContext(ctx, log, "start attempt")
	if err != nil {
		return nil, err
	}
	candidateID := uuid.MustParse(claims.UserID)

	id, err := parseUUID(log, examID, "exam")
	if err != nil {
		return nil, err
	}
	e, err := s.examRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if e.Status != exam.StatusPublished {
		return nil, ErrExamNotPublished
	}

	if _, err := s.repo.FindSheetByExamAndCandidate(e.ID, candidateID); err == nil {
		return nil, ErrAlreadyStarted
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	candidate, err := s.userRepo.FindByID(candidateID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inv, err := s.invitations.Enroll(ctx, e.ID, candidate.Email, now)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"exam_id":      e.ID,
			"candidate_id": candidateID,
		}).Warn("Candidate is not enrolled in the exam")
		return nil, ErrNotEnrolled
	}

	// The deadline anchors on the invitation; exams without one (public
	// enrollment) fall back to the exam's creation time.
	anchor := e.CreatedAt
	if inv != nil {
		anchor = inv.CreatedAt
	}
	deadline := ComputeDeadline(anchor, e.SubmissionDeadlineInHours)

	sheet := &AnswerSheet{
		ID:          uuid.New(),
		ExamID:      e.ID,
		CandidateID: candidateID,
		StartDate:   now,
		Deadline:    &deadline,
	}
	if err := s.repo.CreateSheet(sheet); err != nil {
		// The unique index on (exam, candidate) closes the race between
		// two concurrent starts.
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return nil, ErrAlreadyStarted
		}
		log.WithError(err).Error("Failed to create answer sheet")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"sheet_id": sheet.ID,
		"exam_id":  e.ID,
		"deadline": deadline,
	}).Info("Attempt started successfully")
	return RedactForRole(toSheetResponse(sheet), claims.Role, e.ShowScore), nil
}

func (s *answerSheetService) ReadAttempt(ctx context.Context, sheetID string) (*SheetResponse, error) {
	log := config.WithContext(ctx)

	claims, err := claimsFromContext(ctx, log, "read attempt")
	if err != nil {
		return nil, err
	}

	id, err := parseUUID(log, sheetID, "answer sheet")
	if err != nil {
		return nil, err
	}
	sheet, err := s.repo.FindSheetByID(id)
	if err != nil {
		return nil, err
	}
	e, err := s.examRepo.FindByID(sheet.ExamID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSheetRead(claims, sheet, e); err != nil {
		return nil, err
	}

	sheet = s.reconcile(ctx, sheet)
	return RedactForRole(toSheetResponse(sheet), claims.Role, e.ShowScore), nil
}

func (s *answerSheetService) authorizeSheetRead(claims *auth.UserClaims, sheet *AnswerSheet, e *exam.Exam) error {
	if claims.Role == auth.RoleCandidate {
		if sheet.CandidateID.String() != claims.UserID {
			return ErrUnauthorized
		}
		return nil
	}
	if e.OwnerID.String() != claims.UserID {
		return ErrUnauthorized
	}
	return nil
}

// reconcile applies the lazy auto-close: an open sheet whose deadline has
// passed is closed on read, cascading over its open sessions, and grading
// is kicked off for the closure winner. Every step is best effort; a read
// never hard-fails because cleanup hit an issue.
func (s *answerSheetService) reconcile(ctx context.Context, sheet *AnswerSheet) *AnswerSheet {
	log := config.WithContext(ctx)

	now := s.now()
	if !sheet.Expired(now) {
		return sheet
	}

	sessions, err := s.repo.ListOpenSessionsBySheet(sheet.ID)
	if err != nil {
		log.WithError(err).Warn("Auto-close: failed to list open sessions")
	}
	for i := range sessions {
		if _, err := s.repo.CloseSession(sessions[i].ID, now); err != nil {
			log.WithError(err).WithField("session_id", sessions[i].ID).
				Warn("Auto-close: failed to close section session")
		}
	}

	applied, err := s.repo.CloseSheet(sheet.ID, now)
	if err != nil {
		log.WithError(err).WithField("sheet_id", sheet.ID).
			Warn("Auto-close: failed to close answer sheet")
		return sheet
	}
	if applied {
		log.WithField("sheet_id", sheet.ID).Info("Answer sheet auto-closed past its deadline")
		s.startGrading(sheet.ID)
	}

	fresh, err := s.repo.FindSheetByID(sheet.ID)
	if err != nil {
		log.WithError(err).Warn("Auto-close: failed to re-read answer sheet")
		sheet.EndDate = &now
		return sheet
	}
	return fresh
}

func (s *answerSheetService) SubmitAttempt(ctx context.Context, sheetID string) (*SheetResponse, error) {
	log := config.WithContext(ctx)

	claims, err := claimsFromContext(ctx, log, "submit attempt")
	if err != nil {
		return nil, err
	}

	id, err := parseUUID(log, sheetID, "answer sheet")
	if err != nil {
		return nil, err
	}
	sheet, err := s.repo.FindSheetByID(id)
	if err != nil {
		return nil, err
	}
	if claims.Role == auth.RoleCandidate && sheet.CandidateID.String() != claims.UserID {
		return nil, ErrUnauthorized
	}
	e, err := s.examRepo.FindByID(sheet.ExamID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sessions, err := s.repo.ListOpenSessionsBySheet(sheet.ID)
	if err != nil {
		log.WithError(err).Warn("Submit: failed to list open sessions")
	}
	for i := range sessions {
		if _, err := s.repo.CloseSession(sessions[i].ID, now); err != nil {
			log.WithError(err).WithField("session_id", sessions[i].ID).
				Warn("Submit: failed to close section session")
		}
	}

	// Submitting twice, or racing the auto-close, is a no-op success:
	// the loser observes the already-recorded end date.
	applied, err := s.repo.CloseSheet(sheet.ID, now)
	if err != nil {
		log.WithError(err).Error("Failed to submit answer sheet")
		return nil, err
	}
	if applied {
		log.WithField("sheet_id", sheet.ID).Info("Answer sheet submitted")
		s.startGrading(sheet.ID)
	}

	fresh, err := s.repo.FindSheetByID(sheet.ID)
	if err != nil {
		return nil, err
	}
	return RedactForRole(toSheetResponse(fresh), claims.Role, e.ShowScore), nil
}

func (s *answerSheetService) StartSection(ctx context.Context, sheetID, sectionID string) (*SectionSessionResponse, error) {
	log := config.WithContext(ctx)

	claims, err := claimsFromContext(ctx, log, "start section")
	if err != nil {
		return nil, err
	}

	id, err := parseUUID(log, sheetID, "answer sheet")
	if err != nil {
		return nil, err
	}
	sheet, err := s.repo.FindSheetByID(id)
	if err != nil {
		return nil, err
	}
	if sheet.CandidateID.String() != claims.UserID {
		return nil, ErrUnauthorized
	}

	sheet = s.reconcile(ctx, sheet)
	if !sheet.Open() {
		return nil, ErrSheetClosed
	}

	e, err := s.examRepo.FindByID(sheet.ExamID)
	if err != nil {
		return nil, err
	}

	secID, err := parseUUID(log, sectionID, "section")
	if err != nil {
		return nil, err
	}
	section, err := s.examRepo.FindSectionByID(secID)
	if err != nil {
		return nil, err
	}
	if section.ExamID != sheet.ExamID {
		return nil, ErrSectionNotInExam
	}

	// Re-entering an already started section returns the existing session.
	if existing, err := s.repo.FindSessionBySheetAndSection(sheet.ID, section.ID); err == nil {
		resp := toSessionResponse(existing)
		return RedactSessionForRole(&resp, claims.Role, e.ShowScore), nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	session := &SectionSession{
		ID:            uuid.New(),
		AnswerSheetID: sheet.ID,
		SectionID:     section.ID,
		StartDate:     s.now(),
	}
	if err := s.repo.CreateSession(session); err != nil {
		log.WithError(err).Error("Failed to create section session")
		return nil, err
	}

	log.WithFields(logrus.Fields{"session_id": session.ID, "sheet_id": sheet.ID}).
		Info("Section session started")
	resp := toSessionResponse(session)
	return RedactSessionForRole(&resp, claims.Role, e.ShowScore), nil
}

func (s *answerSheetService) SaveAnswer(ctx context.Context, sessionID string, dto SaveAnswerDTO) (*AnswerResponse, error) {
	log := config.WithContext(ctx)

	claims, err := claimsFromContext(ctx, log, "save answer")
	if err != nil {
		return nil, err
	}

	session, e, err := s.openSessionForCandidate(ctx, log, sessionID, claims)
	if err != nil {
		return nil, err
	}

	answer, err := s.upsertAnswer(session.ID, dto)
	if err != nil {
		log.WithError(err).Error("Failed to save answer")
		return nil, err
	}

	resp := toAnswerResponse(answer)
	return RedactAnswerForRole(&resp, claims.Role, e.ShowScore), nil
}

// openSessionForCandidate loads the session, checks ownership and that
// both the session and its sheet are still open, reconciling an expired
// sheet first so content freezes exactly at the deadline. The owning exam
// is returned alongside; responses built from the session must pass
// through the score-visibility gate keyed off its ShowScore.
func (s *answerSheetService) openSessionForCandidate(ctx context.Context, log logrus.FieldLogger, sessionID string, claims *auth.UserClaims) (*SectionSession, *exam.Exam, error) {
	id, err := parseUUID(log, sessionID, "section session")
	if err != nil {
		return nil, nil, err
	}
	session, err := s.repo.FindSessionByID(id)
	if err != nil {
		return nil, nil, err
	}
	sheet, err := s.repo.FindSheetByID(session.AnswerSheetID)
	if err != nil {
		return nil, nil, err
	}
	if sheet.CandidateID.String() != claims.UserID {
		return nil, nil, ErrUnauthorized
	}
	e, err := s.examRepo.FindByID(sheet.ExamID)
	if err != nil {
		return nil, nil, err
	}

	sheet = s.reconcile(ctx, sheet)
	if !sheet.Open() || !session.Open() {
		return nil, nil, ErrSessionClosed
	}
	return session, e, nil
}

func (s *answerSheetService) upsertAnswer(sessionID uuid.UUID, dto SaveAnswerDTO) (*Answer, error) {
	answer, err := s.repo.FindAnswer(sessionID, dto.QuestionRef)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		answer = &Answer{
			ID:               uuid.New(),
			SectionSessionID: sessionID,
			QuestionRef:      dto.QuestionRef,
		}
	}
	answer.Content = dto.Content
	if err := s.repo.SaveAnswer(answer); err != nil {
		return nil, err
	}
	return answer, nil
}

func (s *answerSheetService) CloseSection(ctx context.Context, sessionID string, dto CloseSectionDTO) (*SectionSessionResponse, error) {
	log := config.WithContext(ctx)

	claims, err := claimsFromContext(ctx, log, "close section")
	if err != nil {
		return nil, err
	}

	session, e, err := s.openSessionForCandidate(ctx, log, sessionID, claims)
	if err != nil {
		return nil, err
	}

	if dto.FinalAnswer != nil {
		if _, err := s.upsertAnswer(session.ID, *dto.FinalAnswer); err != nil {
			log.WithError(err).Error("Failed to save final answer")
			return nil, err
		}
	}

	applied, err := s.repo.CloseSession(session.ID, s.now())
	if err != nil {
		log.WithError(err).Error("Failed to close section session")
		return nil, err
	}
	if applied {
		log.WithField("session_id", session.ID).Info("Section session closed")
		s.startSessionGrading(session.ID)
	}

	// Grading may have landed between the close and this re-read; the
	// visibility gate applies on this path like on any other read.
	fresh, err := s.repo.FindSessionByID(session.ID)
	if err != nil {
		return nil, err
	}
	resp := toSessionResponse(fresh)
	return RedactSessionForRole(&resp, claims.Role, e.ShowScore), nil
}

func (s *answerSheetService) ReviseAnswer(ctx context.Context, answerID string, dto ReviseAnswerDTO) (*AnswerResponse, error) {
	log := config.WithContext(ctx)

	claims, err := claimsFromContext(ctx, log, "revise answer")
	if err != nil {
		return nil, err
	}

	id, err := parseUUID(log, answerID, "answer")
	if err != nil {
		return nil, err
	}
	answer, err := s.repo.FindAnswerByID(id)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.FindSessionByID(answer.SectionSessionID)
	if err != nil {
		return nil, err
	}
	sheet, err := s.repo.FindSheetByID(session.AnswerSheetID)
	if err != nil {
		return nil, err
	}
	e, err := s.examRepo.FindByID(sheet.ExamID)
	if err != nil {
		return nil, err
	}
	if e.OwnerID.String() != claims.UserID {
		return nil, ErrUnauthorized
	}
	// Scores only exist once the session froze its content.
	if session.Open() {
		return nil, ErrSessionOpen
	}

	if err := s.repo.SetAnswerRevisedResult(answer.ID, dto.RevisedScore, dto.RevisedFeedback); err != nil {
		log.WithError(err).Error("Failed to revise answer")
		return nil, err
	}

	answer.RevisedScore = &dto.RevisedScore
	answer.RevisedFeedback = &dto.RevisedFeedback
	resp := toAnswerResponse(answer)
	return &resp, nil
}

func (s *answerSheetService) ListExamAttempts(ctx context.Context, examID string) (*ExamAttemptsResponse, error) {
	log := config.WithContext(ctx)

	claims, err := claimsFromContext(ctx, log, "list attempts")
	if err != nil {
		return nil, err
	}

	id, err := parseUUID(log, examID, "exam")
	if err != nil {
		return nil, err
	}
	e, err := s.examRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if claims.Role != auth.RoleCandidate && e.OwnerID.String() != claims.UserID {
		return nil, ErrUnauthorized
	}

	sheets, err := s.repo.ListSheetsByExam(e.ID)
	if err != nil {
		log.WithError(err).Error("Failed to list answer sheets")
		return nil, err
	}

	resp := &ExamAttemptsResponse{
		ExamID:    e.ID,
		Title:     e.Title,
		Status:    e.Status,
		ShowScore: e.ShowScore,
	}
	for i := range sheets {
		sheet := s.reconcile(ctx, &sheets[i])
		if claims.Role == auth.RoleCandidate && sheet.CandidateID.String() != claims.UserID {
			continue
		}
		resp.Sheets = append(resp.Sheets, *toSheetResponse(sheet))
	}
	return RedactExamAttempts(resp, claims.Role), nil
}

func (s *answerSheetService) OpenDeadlines(ctx context.Context, examID uuid.UUID) ([]time.Time, error) {
	sheets, err := s.repo.ListOpenSheetsByExam(examID)
	if err != nil {
		return nil, err
	}

	var deadlines []time.Time
	for i := range sheets {
		if sheets[i].Deadline != nil {
			deadlines = append(deadlines, *sheets[i].Deadline)
		}
	}
	return deadlines, nil
}

func (s *answerSheetService) CloseOutstanding(ctx context.Context, examID uuid.UUID) error {
	log := config.WithContext(ctx)
	now := s.now()

	sheets, err := s.repo.ListOpenSheetsByExam(examID)
	if err != nil {
		return err
	}
	for i := range sheets {
		sheet := &sheets[i]
		sessions, err := s.repo.ListOpenSessionsBySheet(sheet.ID)
		if err != nil {
			log.WithError(err).WithField("sheet_id", sheet.ID).
				Warn("Archive: failed to list open sessions")
		}
		for j := range sessions {
			if _, err := s.repo.CloseSession(sessions[j].ID, now); err != nil {
				log.WithError(err).WithField("session_id", sessions[j].ID).
					Warn("Archive: failed to close section session")
			}
		}
		applied, err := s.repo.CloseSheet(sheet.ID, now)
		if err != nil {
			log.WithError(err).WithField("sheet_id", sheet.ID).
				Warn("Archive: failed to close answer sheet")
			continue
		}
		if applied {
			s.startGrading(sheet.ID)
		}
	}

	// Enrolled candidates that never started get a definitive empty
	// result instead of an attempt that could open after archival.
	invitations, err := s.invRepo.ListByExam(examID)
	if err != nil {
		log.WithError(err).Warn("Archive: failed to list invitations")
		return nil
	}
	for i := range invitations {
		inv := &invitations[i]
		if inv.Accepted == nil || !*inv.Accepted {
			continue
		}
		candidate, err := s.userRepo.FindByEmail(inv.Email)
		if err != nil {
			log.WithError(err).WithField("email", inv.Email).
				Warn("Archive: invited candidate has no account")
			continue
		}
		if _, err := s.repo.FindSheetByExamAndCandidate(examID, candidate.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			log.WithError(err).Warn("Archive: failed to check existing sheet")
			continue
		}

		end := now
		sheet := &AnswerSheet{
			ID:          uuid.New(),
			ExamID:      examID,
			CandidateID: candidate.ID,
			StartDate:   now,
			EndDate:     &end,
			Deadline:    &end,
		}
		if err := s.repo.CreateSheet(sheet); err != nil {
			log.WithError(err).WithField("candidate_id", candidate.ID).
				Warn("Archive: failed to create empty submitted sheet")
			continue
		}
		log.WithField("sheet_id", sheet.ID).Info("Archive: empty submitted sheet created")
	}
	return nil
}

// startGrading kicks off grading of a whole sheet in the background.
// Closures never wait for the model; failures leave answers ungraded,
// eligible for a later retry. The goroutines run outside any request and
// its recovery middleware, so a panic here must not take the process down.
func (s *answerSheetService) startGrading(sheetID uuid.UUID) {
	go func() {
		defer recoverGradingPanic("sheet_id", sheetID)
		s.gradeSheet(context.Background(), sheetID)
	}()
}

func (s *answerSheetService) startSessionGrading(sessionID uuid.UUID) {
	go func() {
		defer recoverGradingPanic("session_id", sessionID)
		s.gradeSession(context.Background(), sessionID)
	}()
}

func recoverGradingPanic(field string, id uuid.UUID) {
	if r := recover(); r != nil {
		config.WithContext(context.Background()).WithField(field, id).
			Errorf("Grading: recovered from panic: %v", r)
	}
}

func (s *answerSheetService) gradeSession(ctx context.Context, sessionID uuid.UUID) {
	log := config.WithContext(ctx).WithField("session_id", sessionID)

	session, err := s.repo.FindSessionByID(sessionID)
	if err != nil {
		log.WithError(err).Warn("Grading: failed to load section session")
		return
	}
	sheet, err := s.repo.FindSheetByID(session.AnswerSheetID)
	if err != nil {
		log.WithError(err).Warn("Grading: failed to load answer sheet")
		return
	}
	e, err := s.examRepo.FindByID(sheet.ExamID)
	if err != nil {
		log.WithError(err).Warn("Grading: failed to load exam")
		return
	}

	s.gradeSessionAnswers(ctx, e, session)
}

// gradeSessionAnswers grades each ungraded answer of a closed session.
// Failures are isolated per answer.
func (s *answerSheetService) gradeSessionAnswers(ctx context.Context, e *exam.Exam, session *SectionSession) {
	log := config.WithContext(ctx)

	questions := questionsBySectionID(e, session.SectionID)
	for i := range session.Answers {
		answer := &session.Answers[i]
		if answer.AIScore != nil {
			continue
		}
		q, ok := questions[answer.QuestionRef]
		if !ok {
			log.WithField("question_ref", answer.QuestionRef).
				Warn("Grading: answer references an unknown question")
			continue
		}

		result, err := s.grader.GradeAnswer(ctx, grading.GradeRequest{
			Statement:     q.Statement,
			Rubric:        q.Rubric,
			AnswerContent: answer.Content,
		})
		if err != nil {
			log.WithError(err).WithField("answer_id", answer.ID).
				Warn("Grading: model call failed, answer left ungraded")
			continue
		}

		if err := s.repo.SetAnswerAIResult(answer.ID, result.Score, result.Feedback); err != nil {
			log.WithError(err).WithField("answer_id", answer.ID).
				Warn("Grading: failed to store result")
			continue
		}
		answer.AIScore = &result.Score
	}
}

func (s *answerSheetService) gradeSheet(ctx context.Context, sheetID uuid.UUID) {
	log := config.WithContext(ctx).WithField("sheet_id", sheetID)

	sheet, err := s.repo.FindSheetByID(sheetID)
	if err != nil {
		log.WithError(err).Warn("Grading: failed to load answer sheet")
		return
	}
	e, err := s.examRepo.FindByID(sheet.ExamID)
	if err != nil {
		log.WithError(err).Warn("Grading: failed to load exam")
		return
	}

	for i := range sheet.Sections {
		s.gradeSessionAnswers(ctx, e, &sheet.Sections[i])
	}

	score := aggregateScore(e, sheet)
	if err := s.repo.SetSheetScore(sheet.ID, score); err != nil {
		log.WithError(err).Warn("Grading: failed to store sheet score")
		return
	}
	log.WithField("ai_score", score).Info("Answer sheet graded")
}

func questionsBySectionID(e *exam.Exam, sectionID uuid.UUID) map[string]*exam.SectionQuestion {
	questions := make(map[string]*exam.SectionQuestion)
	for i := range e.Sections {
		if e.Sections[i].ID != sectionID {
			continue
		}
		for j := range e.Sections[i].Questions {
			q := &e.Sections[i].Questions[j]
			questions[q.QuestionRef] = q
		}
	}
	return questions
}

// aggregateScore combines per-answer scores into the sheet score: the
// weighted mean of each section's questions, weighted again by the
// section weight. Unanswered or ungraded questions count as zero.
func aggregateScore(e *exam.Exam, sheet *AnswerSheet) float64 {
	answerScores := make(map[uuid.UUID]map[string]float64)
	for i := range sheet.Sections {
		session := &sheet.Sections[i]
		scores := make(map[string]float64)
		for j := range session.Answers {
			a := &session.Answers[j]
			if a.AIScore != nil {
				scores[a.QuestionRef] = *a.AIScore
			}
		}
		answerScores[session.SectionID] = scores
	}

	total := 0.0
	for i := range e.Sections {
		section := &e.Sections[i]
		weightSum := 0.0
		for j := range section.Questions {
			weightSum += section.Questions[j].Weight
		}
		if weightSum == 0 {
			continue
		}

		scores := answerScores[section.ID]
		sectionScore := 0.0
		for j := range section.Questions {
			q := &section.Questions[j]
			sectionScore += scores[q.QuestionRef] * q.Weight
		}
		total += section.Weight * sectionScore / weightSum
	}
	return total
}
