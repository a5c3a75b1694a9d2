package answersheet

import (
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
	"github.com/saulo-duarte/recrutai-lambda/internal/grading"
	"github.com/saulo-duarte/recrutai-lambda/internal/invitation"
	"github.com/saulo-duarte/recrutai-lambda/internal/user"
	"gorm.io/gorm"
)

type AnswerSheetContainer struct {
	Handler *Handler
	Service AnswerSheetService
}

func NewAnswerSheetContainer(
	db *gorm.DB,
	examRepo exam.ExamRepository,
	invitationService invitation.InvitationService,
	invitationRepo invitation.InvitationRepository,
	userRepo user.UserRepository,
	grader grading.Service,
) *AnswerSheetContainer {
	repo := NewRepository(db)
	service := NewService(repo, examRepo, invitationService, invitationRepo, userRepo, grader)
	handler := NewHandler(service)

	return &AnswerSheetContainer{
		Handler: handler,
		Service: service,
	}
}
