package invitation

import (
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
	"github.com/saulo-duarte/recrutai-lambda/internal/user"
	"gorm.io/gorm"
)

type InvitationContainer struct {
	Handler *Handler
	Service InvitationService
	Repo    InvitationRepository
}

func NewInvitationContainer(db *gorm.DB, examRepo exam.ExamRepository, userRepo user.UserRepository) *InvitationContainer {
	repo := NewRepository(db)
	service := NewService(repo, examRepo, userRepo)
	handler := NewHandler(service)

	return &InvitationContainer{
		Handler: handler,
		Service: service,
		Repo:    repo,
	}
}
