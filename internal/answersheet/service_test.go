package answersheet_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/recrutai-lambda/internal/answersheet"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
	"github.com/saulo-duarte/recrutai-lambda/internal/grading"
	"github.com/saulo-duarte/recrutai-lambda/internal/invitation"
	"github.com/saulo-duarte/recrutai-lambda/internal/user"
)

// fakeSheetRepo keeps sheets, sessions and answers in memory. CloseSheet
// and CloseSession honor the at-most-once contract under a mutex, which
// is what the concurrency tests lean on.
type fakeSheetRepo struct {
	mu        sync.Mutex
	sheets    map[uuid.UUID]*answersheet.AnswerSheet
	sessions  map[uuid.UUID]*answersheet.SectionSession
	answers   map[uuid.UUID]*answersheet.Answer
	closeWins map[uuid.UUID]int
}

func newFakeSheetRepo() *fakeSheetRepo {
	return &fakeSheetRepo{
		sheets:    make(map[uuid.UUID]*answersheet.AnswerSheet),
		sessions:  make(map[uuid.UUID]*answersheet.SectionSession),
		answers:   make(map[uuid.UUID]*answersheet.Answer),
		closeWins: make(map[uuid.UUID]int),
	}
}

func (r *fakeSheetRepo) CreateSheet(sheet *answersheet.AnswerSheet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sheets {
		if existing.ExamID == sheet.ExamID && existing.CandidateID == sheet.CandidateID {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	stored := *sheet
	stored.Sections = nil
	r.sheets[sheet.ID] = &stored
	return nil
}

func (r *fakeSheetRepo) sheetCopy(sheet *answersheet.AnswerSheet) *answersheet.AnswerSheet {
	copied := *sheet
	copied.Sections = nil
	for _, session := range r.sessions {
		if session.AnswerSheetID == sheet.ID {
			copied.Sections = append(copied.Sections, *r.sessionCopy(session))
		}
	}
	return &copied
}

func (r *fakeSheetRepo) sessionCopy(session *answersheet.SectionSession) *answersheet.SectionSession {
	copied := *session
	copied.Answers = nil
	for _, a := range r.answers {
		if a.SectionSessionID == session.ID {
			copied.Answers = append(copied.Answers, *a)
		}
	}
	return &copied
}

func (r *fakeSheetRepo) FindSheetByID(id uuid.UUID) (*answersheet.AnswerSheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sheet, ok := r.sheets[id]
	if !ok {
		return nil, answersheet.ErrNotFound
	}
	return r.sheetCopy(sheet), nil
}

func (r *fakeSheetRepo) FindSheetByExamAndCandidate(examID, candidateID uuid.UUID) (*answersheet.AnswerSheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sheet := range r.sheets {
		if sheet.ExamID == examID && sheet.CandidateID == candidateID {
			return r.sheetCopy(sheet), nil
		}
	}
	return nil, answersheet.ErrNotFound
}

func (r *fakeSheetRepo) ListSheetsByExam(examID uuid.UUID) ([]answersheet.AnswerSheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []answersheet.AnswerSheet
	for _, sheet := range r.sheets {
		if sheet.ExamID == examID {
			out = append(out, *r.sheetCopy(sheet))
		}
	}
	return out, nil
}

func (r *fakeSheetRepo) ListOpenSheetsByExam(examID uuid.UUID) ([]answersheet.AnswerSheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []answersheet.AnswerSheet
	for _, sheet := range r.sheets {
		if sheet.ExamID == examID && sheet.EndDate == nil {
			out = append(out, *r.sheetCopy(sheet))
		}
	}
	return out, nil
}

func (r *fakeSheetRepo) CloseSheet(id uuid.UUID, endDate time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sheet, ok := r.sheets[id]
	if !ok {
		return false, answersheet.ErrNotFound
	}
	if sheet.EndDate != nil {
		return false, nil
	}
	end := endDate
	sheet.EndDate = &end
	r.closeWins[id]++
	return true, nil
}

func (r *fakeSheetRepo) closeWinCount(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeWins[id]
}

func (r *fakeSheetRepo) SetSheetScore(id uuid.UUID, score float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sheet, ok := r.sheets[id]
	if !ok {
		return answersheet.ErrNotFound
	}
	sheet.AIScore = &score
	return nil
}

func (r *fakeSheetRepo) CreateSession(session *answersheet.SectionSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *session
	stored.Answers = nil
	r.sessions[session.ID] = &stored
	return nil
}

func (r *fakeSheetRepo) FindSessionByID(id uuid.UUID) (*answersheet.SectionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, answersheet.ErrNotFound
	}
	return r.sessionCopy(session), nil
}

func (r *fakeSheetRepo) FindSessionBySheetAndSection(sheetID, sectionID uuid.UUID) (*answersheet.SectionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.AnswerSheetID == sheetID && session.SectionID == sectionID {
			return r.sessionCopy(session), nil
		}
	}
	return nil, answersheet.ErrNotFound
}

func (r *fakeSheetRepo) ListOpenSessionsBySheet(sheetID uuid.UUID) ([]answersheet.SectionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []answersheet.SectionSession
	for _, session := range r.sessions {
		if session.AnswerSheetID == sheetID && session.EndDate == nil {
			out = append(out, *r.sessionCopy(session))
		}
	}
	return out, nil
}

func (r *fakeSheetRepo) CloseSession(id uuid.UUID, endDate time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return false, answersheet.ErrNotFound
	}
	if session.EndDate != nil {
		return false, nil
	}
	end := endDate
	session.EndDate = &end
	return true, nil
}

func (r *fakeSheetRepo) FindAnswer(sessionID uuid.UUID, questionRef string) (*answersheet.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.answers {
		if a.SectionSessionID == sessionID && a.QuestionRef == questionRef {
			copied := *a
			return &copied, nil
		}
	}
	return nil, answersheet.ErrNotFound
}

func (r *fakeSheetRepo) FindAnswerByID(id uuid.UUID) (*answersheet.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.answers[id]
	if !ok {
		return nil, answersheet.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeSheetRepo) SaveAnswer(a *answersheet.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *a
	r.answers[a.ID] = &stored
	return nil
}

func (r *fakeSheetRepo) SetAnswerAIResult(id uuid.UUID, score float64, feedback string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.answers[id]
	if !ok {
		return answersheet.ErrNotFound
	}
	a.AIScore = &score
	a.AIFeedback = &feedback
	return nil
}

func (r *fakeSheetRepo) SetAnswerRevisedResult(id uuid.UUID, score float64, feedback string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.answers[id]
	if !ok {
		return answersheet.ErrNotFound
	}
	a.RevisedScore = &score
	a.RevisedFeedback = &feedback
	return nil
}

// fakeExamStore implements just enough of exam.ExamRepository for the
// answer-sheet flows: lookups by exam and section.
type fakeExamStore struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*exam.Exam
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{exams: make(map[uuid.UUID]*exam.Exam)}
}

func (r *fakeExamStore) Create(e *exam.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *e
	r.exams[e.ID] = &stored
	return nil
}

func (r *fakeExamStore) FindByID(id uuid.UUID) (*exam.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exams[id]
	if !ok {
		return nil, exam.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeExamStore) ListByOwner(ownerID uuid.UUID) ([]exam.Exam, error) { return nil, nil }
func (r *fakeExamStore) Update(e *exam.Exam) error                          { return nil }
func (r *fakeExamStore) Delete(id uuid.UUID) error                          { return nil }
func (r *fakeExamStore) AddSection(s *exam.Section) error                   { return nil }
func (r *fakeExamStore) DeleteSection(id uuid.UUID) error                   { return nil }
func (r *fakeExamStore) AddQuestion(q *exam.SectionQuestion) error          { return nil }

func (r *fakeExamStore) FindSectionByID(id uuid.UUID) (*exam.Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.exams {
		for i := range e.Sections {
			if e.Sections[i].ID == id {
				copied := e.Sections[i]
				return &copied, nil
			}
		}
	}
	return nil, exam.ErrNotFound
}

func (r *fakeExamStore) UpdateStatusIf(id uuid.UUID, from, to exam.ExamStatus) (bool, error) {
	return false, nil
}

// fakeEnrollment stubs the invitation service. Enroll returns whatever
// the test configured.
type fakeEnrollment struct {
	inv       *invitation.Invitation
	enrollErr error
}

func (f *fakeEnrollment) Create(ctx context.Context, examID string, dto invitation.CreateInvitationDTO) (*invitation.InvitationResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEnrollment) ListByExam(ctx context.Context, examID string) ([]invitation.InvitationResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEnrollment) Accept(ctx context.Context, token string) (*invitation.InvitationResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEnrollment) Reject(ctx context.Context, id string) (*invitation.InvitationResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEnrollment) Enroll(ctx context.Context, examID uuid.UUID, email string, now time.Time) (*invitation.Invitation, error) {
	if f.enrollErr != nil {
		return nil, f.enrollErr
	}
	return f.inv, nil
}

func (f *fakeEnrollment) ForceRejectPending(ctx context.Context, examID uuid.UUID) error {
	return nil
}

type fakeInvitationStore struct {
	invitations []invitation.Invitation
}

func (r *fakeInvitationStore) Create(i *invitation.Invitation) error { return nil }
func (r *fakeInvitationStore) FindByID(id uuid.UUID) (*invitation.Invitation, error) {
	return nil, errors.New("not implemented")
}
func (r *fakeInvitationStore) FindByExamAndEmail(examID uuid.UUID, email string) (*invitation.Invitation, error) {
	return nil, errors.New("not implemented")
}
func (r *fakeInvitationStore) ListByExam(examID uuid.UUID) ([]invitation.Invitation, error) {
	return r.invitations, nil
}
func (r *fakeInvitationStore) Update(i *invitation.Invitation) error { return nil }
func (r *fakeInvitationStore) SetAcceptedIfPending(id uuid.UUID, accepted bool) (bool, error) {
	return false, nil
}
func (r *fakeInvitationStore) RejectAllPending(examID uuid.UUID) error { return nil }

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newFakeUserStore(users ...*user.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[uuid.UUID]*user.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (r *fakeUserStore) FindByID(id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserStore) FindByEmail(email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *fakeUserStore) Upsert(u *user.User) error { return nil }

// fakeGrader counts how many times each answer was graded.
type fakeGrader struct {
	mu    sync.Mutex
	calls map[string]int
}

func newFakeGrader() *fakeGrader {
	return &fakeGrader{calls: make(map[string]int)}
}

func (g *fakeGrader) GradeAnswer(ctx context.Context, req grading.GradeRequest) (*grading.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[req.AnswerContent]++
	return &grading.Result{Score: 0.8, Feedback: "Solid answer"}, nil
}

func (g *fakeGrader) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func candidateContext(candidateID uuid.UUID) context.Context {
	return auth.WithUserClaims(context.Background(), &auth.UserClaims{
		UserID: candidateID.String(),
		Role:   auth.RoleCandidate,
	})
}

type fixture struct {
	repo      *fakeSheetRepo
	examStore *fakeExamStore
	invStore  *fakeInvitationStore
	grader    *fakeGrader

	exam      *exam.Exam
	candidate *user.User
	now       time.Time
	clock     *time.Time

	svc answersheet.AnswerSheetService
}

func newFixture(t *testing.T, enrollment *fakeEnrollment) *fixture {
	t.Helper()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	examID := uuid.New()
	sectionID := uuid.New()
	e := &exam.Exam{
		ID:                        examID,
		OwnerID:                   uuid.New(),
		Title:                     "Backend Engineer Screening",
		Status:                    exam.StatusPublished,
		DurationInHours:           2,
		SubmissionDeadlineInHours: 48,
		CreatedAt:                 now.Add(-time.Hour),
		Sections: []exam.Section{
			{
				ID:     sectionID,
				ExamID: examID,
				Weight: 1,
				Questions: []exam.SectionQuestion{
					{
						ID:          uuid.New(),
						SectionID:   sectionID,
						QuestionRef: "q1",
						Statement:   "Explain database indexing trade-offs",
						Rubric:      "Full credit for covering read/write trade-offs",
						Weight:      1,
					},
				},
			},
		},
	}
	candidate := &user.User{
		ID:    uuid.New(),
		Name:  "Ana Souza",
		Email: "ana@example.com",
		Role:  auth.RoleCandidate,
	}
	if enrollment == nil {
		accepted := true
		enrollment = &fakeEnrollment{inv: &invitation.Invitation{
			ID:        uuid.New(),
			ExamID:    e.ID,
			Email:     candidate.Email,
			Accepted:  &accepted,
			CreatedAt: now.Add(-30 * time.Minute),
		}}
	}

	f := &fixture{
		repo:      newFakeSheetRepo(),
		examStore: newFakeExamStore(),
		invStore:  &fakeInvitationStore{},
		grader:    newFakeGrader(),
		exam:      e,
		candidate: candidate,
		now:       now,
	}
	clock := now
	f.clock = &clock
	_ = f.examStore.Create(e)

	f.svc = answersheet.NewServiceWithClock(
		f.repo,
		f.examStore,
		enrollment,
		f.invStore,
		newFakeUserStore(candidate),
		f.grader,
		func() time.Time { return *f.clock },
	)
	return f
}

func (f *fixture) seedOpenSheet(deadline time.Time) (*answersheet.AnswerSheet, *answersheet.SectionSession, *answersheet.Answer) {
	sheet := &answersheet.AnswerSheet{
		ID:          uuid.New(),
		ExamID:      f.exam.ID,
		CandidateID: f.candidate.ID,
		StartDate:   f.now.Add(-time.Hour),
		Deadline:    &deadline,
	}
	_ = f.repo.CreateSheet(sheet)

	session := &answersheet.SectionSession{
		ID:            uuid.New(),
		AnswerSheetID: sheet.ID,
		SectionID:     f.exam.Sections[0].ID,
		StartDate:     sheet.StartDate,
	}
	_ = f.repo.CreateSession(session)

	answer := &answersheet.Answer{
		ID:               uuid.New(),
		SectionSessionID: session.ID,
		QuestionRef:      "q1",
		Content:          "Indexes trade write cost for read speed",
	}
	_ = f.repo.SaveAnswer(answer)
	return sheet, session, answer
}

func TestStartAttempt(t *testing.T) {
	t.Run("DeadlineAnchoredOnInvitation", func(t *testing.T) {
		f := newFixture(t, nil)
		ctx := candidateContext(f.candidate.ID)

		resp, err := f.svc.StartAttempt(ctx, f.exam.ID.String())
		if err != nil {
			t.Fatalf("StartAttempt failed: %v", err)
		}
		if resp.Deadline == nil {
			t.Fatal("Expected a deadline on the new sheet")
		}
		want := f.now.Add(-30 * time.Minute).Add(48 * time.Hour)
		if !resp.Deadline.Equal(want) {
			t.Errorf("Expected deadline %v (invitation time plus window), got: %v", want, resp.Deadline)
		}
		if resp.EndDate != nil {
			t.Error("A new sheet must be open")
		}
	})

	t.Run("FallsBackToExamCreation", func(t *testing.T) {
		f := newFixture(t, &fakeEnrollment{inv: nil})
		ctx := candidateContext(f.candidate.ID)

		resp, err := f.svc.StartAttempt(ctx, f.exam.ID.String())
		if err != nil {
			t.Fatalf("StartAttempt failed: %v", err)
		}
		want := f.exam.CreatedAt.Add(48 * time.Hour)
		if resp.Deadline == nil || !resp.Deadline.Equal(want) {
			t.Errorf("Expected deadline %v (exam creation plus window), got: %v", want, resp.Deadline)
		}
	})

	t.Run("SecondAttemptRejected", func(t *testing.T) {
		f := newFixture(t, nil)
		ctx := candidateContext(f.candidate.ID)

		if _, err := f.svc.StartAttempt(ctx, f.exam.ID.String()); err != nil {
			t.Fatalf("First StartAttempt failed: %v", err)
		}
		if _, err := f.svc.StartAttempt(ctx, f.exam.ID.String()); !errors.Is(err, answersheet.ErrAlreadyStarted) {
			t.Errorf("Expected ErrAlreadyStarted, got: %v", err)
		}
	})

	t.Run("RejectedAfterSubmission", func(t *testing.T) {
		f := newFixture(t, nil)
		ctx := candidateContext(f.candidate.ID)

		resp, err := f.svc.StartAttempt(ctx, f.exam.ID.String())
		if err != nil {
			t.Fatalf("StartAttempt failed: %v", err)
		}
		if _, err := f.svc.SubmitAttempt(ctx, resp.ID.String()); err != nil {
			t.Fatalf("SubmitAttempt failed: %v", err)
		}
		// One attempt per exam, whatever state the first one is in.
		if _, err := f.svc.StartAttempt(ctx, f.exam.ID.String()); !errors.Is(err, answersheet.ErrAlreadyStarted) {
			t.Errorf("Expected ErrAlreadyStarted after submission, got: %v", err)
		}
	})

	t.Run("NotEnrolled", func(t *testing.T) {
		f := newFixture(t, &fakeEnrollment{enrollErr: invitation.ErrNotInvited})
		ctx := candidateContext(f.candidate.ID)

		if _, err := f.svc.StartAttempt(ctx, f.exam.ID.String()); !errors.Is(err, answersheet.ErrNotEnrolled) {
			t.Errorf("Expected ErrNotEnrolled, got: %v", err)
		}
	})

	t.Run("UnpublishedExam", func(t *testing.T) {
		f := newFixture(t, nil)
		f.exam.Status = exam.StatusDraft
		_ = f.examStore.Create(f.exam)
		ctx := candidateContext(f.candidate.ID)

		if _, err := f.svc.StartAttempt(ctx, f.exam.ID.String()); !errors.Is(err, answersheet.ErrExamNotPublished) {
			t.Errorf("Expected ErrExamNotPublished, got: %v", err)
		}
	})
}

func TestAutoCloseOnRead(t *testing.T) {
	f := newFixture(t, nil)
	deadline := f.now.Add(-time.Minute)
	sheet, session, _ := f.seedOpenSheet(deadline)
	ctx := candidateContext(f.candidate.ID)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.svc.ReadAttempt(ctx, sheet.ID.String())
			if err != nil {
				t.Errorf("ReadAttempt failed: %v", err)
				return
			}
			if resp.EndDate == nil {
				t.Error("Expired sheet should be closed on read")
			}
		}()
	}
	wg.Wait()

	if wins := f.repo.closeWinCount(sheet.ID); wins != 1 {
		t.Errorf("Close transition should apply exactly once, got: %d", wins)
	}

	stored, _ := f.repo.FindSessionByID(session.ID)
	if stored.EndDate == nil {
		t.Error("Open sessions should be closed along with the sheet")
	}

	waitFor(t, "grading to run", func() bool { return f.grader.totalCalls() >= 1 })
	time.Sleep(50 * time.Millisecond)
	if got := f.grader.totalCalls(); got != 1 {
		t.Errorf("Each answer should be graded once, got %d grading calls", got)
	}
}

func TestSubmitAttempt(t *testing.T) {
	t.Run("Idempotent", func(t *testing.T) {
		f := newFixture(t, nil)
		sheet, _, _ := f.seedOpenSheet(f.now.Add(24 * time.Hour))
		ctx := candidateContext(f.candidate.ID)

		first, err := f.svc.SubmitAttempt(ctx, sheet.ID.String())
		if err != nil {
			t.Fatalf("SubmitAttempt failed: %v", err)
		}
		if first.EndDate == nil {
			t.Fatal("Submitted sheet should carry an end date")
		}

		*f.clock = f.now.Add(time.Hour)
		second, err := f.svc.SubmitAttempt(ctx, sheet.ID.String())
		if err != nil {
			t.Fatalf("Second SubmitAttempt failed: %v", err)
		}
		if !second.EndDate.Equal(*first.EndDate) {
			t.Errorf("Resubmission must keep the original end date: %v vs %v", second.EndDate, first.EndDate)
		}

		waitFor(t, "grading to run", func() bool { return f.grader.totalCalls() >= 1 })
		time.Sleep(50 * time.Millisecond)
		if got := f.grader.totalCalls(); got != 1 {
			t.Errorf("Resubmission must not re-grade, got %d grading calls", got)
		}
	})

	t.Run("AggregatesSheetScore", func(t *testing.T) {
		f := newFixture(t, nil)
		sheet, _, _ := f.seedOpenSheet(f.now.Add(24 * time.Hour))
		ctx := candidateContext(f.candidate.ID)

		if _, err := f.svc.SubmitAttempt(ctx, sheet.ID.String()); err != nil {
			t.Fatalf("SubmitAttempt failed: %v", err)
		}

		waitFor(t, "sheet score", func() bool {
			stored, err := f.repo.FindSheetByID(sheet.ID)
			return err == nil && stored.AIScore != nil
		})
		stored, _ := f.repo.FindSheetByID(sheet.ID)
		// Single section, single question: the sheet score is the answer score.
		if *stored.AIScore != 0.8 {
			t.Errorf("Expected sheet score 0.8, got: %f", *stored.AIScore)
		}
	})
}

func TestSaveAnswer(t *testing.T) {
	t.Run("UpsertsByQuestion", func(t *testing.T) {
		f := newFixture(t, nil)
		_, session, _ := f.seedOpenSheet(f.now.Add(24 * time.Hour))
		ctx := candidateContext(f.candidate.ID)

		if _, err := f.svc.SaveAnswer(ctx, session.ID.String(), answersheet.SaveAnswerDTO{
			QuestionRef: "q1",
			Content:     "First draft",
		}); err != nil {
			t.Fatalf("SaveAnswer failed: %v", err)
		}
		resp, err := f.svc.SaveAnswer(ctx, session.ID.String(), answersheet.SaveAnswerDTO{
			QuestionRef: "q1",
			Content:     "Second draft",
		})
		if err != nil {
			t.Fatalf("SaveAnswer failed: %v", err)
		}
		if resp.Content != "Second draft" {
			t.Errorf("Expected the answer content replaced, got: %s", resp.Content)
		}

		stored, _ := f.repo.FindSessionByID(session.ID)
		if len(stored.Answers) != 1 {
			t.Errorf("Expected a single answer per question, got: %d", len(stored.Answers))
		}
	})

	t.Run("FrozenPastDeadline", func(t *testing.T) {
		f := newFixture(t, nil)
		sheet, session, _ := f.seedOpenSheet(f.now.Add(-time.Minute))
		ctx := candidateContext(f.candidate.ID)

		if _, err := f.svc.SaveAnswer(ctx, session.ID.String(), answersheet.SaveAnswerDTO{
			QuestionRef: "q1",
			Content:     "Too late",
		}); !errors.Is(err, answersheet.ErrSessionClosed) {
			t.Fatalf("Expected ErrSessionClosed past the deadline, got: %v", err)
		}

		stored, _ := f.repo.FindSheetByID(sheet.ID)
		if stored.EndDate == nil {
			t.Error("The rejected write should have auto-closed the sheet")
		}
	})

	t.Run("NotTheCandidate", func(t *testing.T) {
		f := newFixture(t, nil)
		_, session, _ := f.seedOpenSheet(f.now.Add(24 * time.Hour))
		ctx := candidateContext(uuid.New())

		if _, err := f.svc.SaveAnswer(ctx, session.ID.String(), answersheet.SaveAnswerDTO{
			QuestionRef: "q1",
			Content:     "Not mine",
		}); !errors.Is(err, answersheet.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got: %v", err)
		}
	})
}

func TestCloseSection(t *testing.T) {
	f := newFixture(t, nil)
	_, session, _ := f.seedOpenSheet(f.now.Add(24 * time.Hour))
	ctx := candidateContext(f.candidate.ID)

	resp, err := f.svc.CloseSection(ctx, session.ID.String(), answersheet.CloseSectionDTO{
		FinalAnswer: &answersheet.SaveAnswerDTO{QuestionRef: "q1", Content: "Final version"},
	})
	if err != nil {
		t.Fatalf("CloseSection failed: %v", err)
	}
	if resp.EndDate == nil {
		t.Fatal("Closed session should carry an end date")
	}

	waitFor(t, "section grading", func() bool { return f.grader.totalCalls() >= 1 })

	// The section is closed; further writes are rejected.
	if _, err := f.svc.SaveAnswer(ctx, session.ID.String(), answersheet.SaveAnswerDTO{
		QuestionRef: "q1",
		Content:     "After the fact",
	}); !errors.Is(err, answersheet.ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed after CloseSection, got: %v", err)
	}
}

func TestSessionReadsRedacted(t *testing.T) {
	gradeAnswer := func(f *fixture, answerID uuid.UUID) {
		if err := f.repo.SetAnswerAIResult(answerID, 0.91, "model feedback"); err != nil {
			t.Fatalf("Failed to grade answer: %v", err)
		}
		if err := f.repo.SetAnswerRevisedResult(answerID, 0.95, "reviewer feedback"); err != nil {
			t.Fatalf("Failed to revise answer: %v", err)
		}
	}

	t.Run("CloseSectionHidesScores", func(t *testing.T) {
		f := newFixture(t, nil)
		_, session, answer := f.seedOpenSheet(f.now.Add(24 * time.Hour))
		gradeAnswer(f, answer.ID)
		ctx := candidateContext(f.candidate.ID)

		resp, err := f.svc.CloseSection(ctx, session.ID.String(), answersheet.CloseSectionDTO{})
		if err != nil {
			t.Fatalf("CloseSection failed: %v", err)
		}
		if len(resp.Answers) == 0 {
			t.Fatal("Expected the closed session to carry its answers")
		}
		for _, a := range resp.Answers {
			if a.AIScore != nil || a.AIFeedback != nil || a.RevisedScore != nil || a.RevisedFeedback != nil {
				t.Errorf("Candidate with hidden scores received graded fields: %+v", a)
			}
		}
		if resp.Answers[0].Content != answer.Content {
			t.Error("Redaction must preserve answer content")
		}
	})

	t.Run("CloseSectionDisclosesWhenShowScore", func(t *testing.T) {
		f := newFixture(t, nil)
		f.exam.ShowScore = true
		_ = f.examStore.Create(f.exam)
		_, session, answer := f.seedOpenSheet(f.now.Add(24 * time.Hour))
		gradeAnswer(f, answer.ID)
		ctx := candidateContext(f.candidate.ID)

		resp, err := f.svc.CloseSection(ctx, session.ID.String(), answersheet.CloseSectionDTO{})
		if err != nil {
			t.Fatalf("CloseSection failed: %v", err)
		}
		if len(resp.Answers) == 0 || resp.Answers[0].AIScore == nil {
			t.Error("Candidate with show_score enabled should see the graded fields")
		}
	})

	t.Run("StartSectionReentryHidesScores", func(t *testing.T) {
		f := newFixture(t, nil)
		sheet, session, answer := f.seedOpenSheet(f.now.Add(24 * time.Hour))
		gradeAnswer(f, answer.ID)
		ctx := candidateContext(f.candidate.ID)

		resp, err := f.svc.StartSection(ctx, sheet.ID.String(), session.SectionID.String())
		if err != nil {
			t.Fatalf("StartSection failed: %v", err)
		}
		for _, a := range resp.Answers {
			if a.AIScore != nil || a.AIFeedback != nil {
				t.Errorf("Session re-entry leaked graded fields: %+v", a)
			}
		}
	})
}

// panicGrader stands in for a grading client that blew up at startup.
type panicGrader struct {
	mu    sync.Mutex
	calls int
}

func (g *panicGrader) GradeAnswer(ctx context.Context, req grading.GradeRequest) (*grading.Result, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	panic("model client is nil")
}

func (g *panicGrader) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestGradingPanicIsolated(t *testing.T) {
	f := newFixture(t, nil)
	grader := &panicGrader{}
	accepted := true
	enrollment := &fakeEnrollment{inv: &invitation.Invitation{
		ID:        uuid.New(),
		ExamID:    f.exam.ID,
		Email:     f.candidate.Email,
		Accepted:  &accepted,
		CreatedAt: f.now.Add(-30 * time.Minute),
	}}
	svc := answersheet.NewServiceWithClock(
		f.repo, f.examStore, enrollment, f.invStore,
		newFakeUserStore(f.candidate), grader,
		func() time.Time { return *f.clock },
	)

	sheet, _, _ := f.seedOpenSheet(f.now.Add(24 * time.Hour))
	ctx := candidateContext(f.candidate.ID)

	if _, err := svc.SubmitAttempt(ctx, sheet.ID.String()); err != nil {
		t.Fatalf("SubmitAttempt failed: %v", err)
	}

	waitFor(t, "grading attempt", func() bool { return grader.callCount() >= 1 })
	time.Sleep(50 * time.Millisecond)

	// The panic stayed inside the grading goroutine; reads still work and
	// the answer is simply left ungraded.
	resp, err := svc.ReadAttempt(ctx, sheet.ID.String())
	if err != nil {
		t.Fatalf("ReadAttempt after grading panic failed: %v", err)
	}
	if resp.EndDate == nil {
		t.Error("The submitted sheet should remain closed")
	}
	stored, _ := f.repo.FindSheetByID(sheet.ID)
	if stored.AIScore != nil {
		t.Error("A failed grading pass must not record a score")
	}
}

func TestReviseAnswer(t *testing.T) {
	f := newFixture(t, nil)
	_, session, answer := f.seedOpenSheet(f.now.Add(24 * time.Hour))

	recruiterCtx := auth.WithUserClaims(context.Background(), &auth.UserClaims{
		UserID: f.exam.OwnerID.String(),
		Role:   auth.RoleRecruiter,
	})
	dto := answersheet.ReviseAnswerDTO{RevisedScore: 0.95, RevisedFeedback: "Better than the model thought"}

	t.Run("OpenSessionRejected", func(t *testing.T) {
		if _, err := f.svc.ReviseAnswer(recruiterCtx, answer.ID.String(), dto); !errors.Is(err, answersheet.ErrSessionOpen) {
			t.Errorf("Expected ErrSessionOpen, got: %v", err)
		}
	})

	if _, err := f.repo.CloseSession(session.ID, f.now); err != nil {
		t.Fatalf("Failed to close session: %v", err)
	}

	t.Run("NotTheOwner", func(t *testing.T) {
		otherCtx := auth.WithUserClaims(context.Background(), &auth.UserClaims{
			UserID: uuid.New().String(),
			Role:   auth.RoleRecruiter,
		})
		if _, err := f.svc.ReviseAnswer(otherCtx, answer.ID.String(), dto); !errors.Is(err, answersheet.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got: %v", err)
		}
	})

	t.Run("OwnerRevises", func(t *testing.T) {
		resp, err := f.svc.ReviseAnswer(recruiterCtx, answer.ID.String(), dto)
		if err != nil {
			t.Fatalf("ReviseAnswer failed: %v", err)
		}
		if resp.RevisedScore == nil || *resp.RevisedScore != 0.95 {
			t.Errorf("Expected revised score 0.95, got: %v", resp.RevisedScore)
		}
	})
}

func TestCloseOutstanding(t *testing.T) {
	f := newFixture(t, nil)
	sheet, _, _ := f.seedOpenSheet(f.now.Add(24 * time.Hour))

	// A second candidate accepted the invitation but never started.
	ghost := &user.User{ID: uuid.New(), Name: "Bruno Lima", Email: "bruno@example.com", Role: auth.RoleCandidate}
	accepted := true
	f.invStore.invitations = []invitation.Invitation{
		{ID: uuid.New(), ExamID: f.exam.ID, Email: ghost.Email, Accepted: &accepted, CreatedAt: f.now.Add(-time.Hour)},
	}

	svc := answersheet.NewServiceWithClock(
		f.repo, f.examStore, &fakeEnrollment{}, f.invStore,
		newFakeUserStore(f.candidate, ghost), f.grader,
		func() time.Time { return *f.clock },
	)

	if err := svc.CloseOutstanding(context.Background(), f.exam.ID); err != nil {
		t.Fatalf("CloseOutstanding failed: %v", err)
	}

	stored, _ := f.repo.FindSheetByID(sheet.ID)
	if stored.EndDate == nil {
		t.Error("Open sheet should be force-closed")
	}

	ghostSheet, err := f.repo.FindSheetByExamAndCandidate(f.exam.ID, ghost.ID)
	if err != nil {
		t.Fatalf("Expected an empty submitted sheet for the enrolled candidate: %v", err)
	}
	if ghostSheet.EndDate == nil {
		t.Error("The empty sheet should already be submitted")
	}

	open, _ := f.repo.ListOpenSheetsByExam(f.exam.ID)
	if len(open) != 0 {
		t.Errorf("No sheet should remain open, got: %d", len(open))
	}
}

func TestOpenDeadlines(t *testing.T) {
	f := newFixture(t, nil)
	deadline := f.now.Add(24 * time.Hour)
	sheet, _, _ := f.seedOpenSheet(deadline)

	deadlines, err := f.svc.OpenDeadlines(context.Background(), f.exam.ID)
	if err != nil {
		t.Fatalf("OpenDeadlines failed: %v", err)
	}
	if len(deadlines) != 1 || !deadlines[0].Equal(deadline) {
		t.Errorf("Expected [%v], got: %v", deadline, deadlines)
	}

	if _, err := f.repo.CloseSheet(sheet.ID, f.now); err != nil {
		t.Fatal(err)
	}
	deadlines, _ = f.svc.OpenDeadlines(context.Background(), f.exam.ID)
	if len(deadlines) != 0 {
		t.Errorf("Closed sheets should not report deadlines, got: %v", deadlines)
	}
}
