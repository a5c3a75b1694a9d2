package exam

type ExamContainer struct {
	Handler *Handler
	Service ExamService
	Repo    ExamRepository
}

func NewExamContainer(repo ExamRepository, attempts AttemptGate, invitations InvitationGate) *ExamContainer {
	service := NewService(repo, attempts, invitations)
	handler := NewHandler(service)

	return &ExamContainer{
		Handler: handler,
		Service: service,
		Repo:    repo,
	}
}
