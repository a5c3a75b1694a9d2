package container

import (
	"context"
	"log"
	"os"

	"github.com/saulo-duarte/recrutai-lambda/internal/answersheet"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
	"github.com/saulo-duarte/recrutai-lambda/internal/config"
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
	"github.com/saulo-duarte/recrutai-lambda/internal/grading"
	"github.com/saulo-duarte/recrutai-lambda/internal/invitation"
	"github.com/saulo-duarte/recrutai-lambda/internal/user"
)

type Container struct {
	UserContainer        *user.UserContainer
	ExamContainer        *exam.ExamContainer
	InvitationContainer  *invitation.InvitationContainer
	AnswerSheetContainer *answersheet.AnswerSheetContainer
	GradingContainer     *grading.GradingContainer
}

func New() *Container {
	config.Init()
	auth.Init()
	config.InitCrypto()

	dsn := os.Getenv("DATABASE_DSN")
	if err := config.Connect(context.Background(), dsn); err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}

	userContainer := user.NewUserContainer(config.DB)
	examRepo := exam.NewRepository(config.DB)
	invitationContainer := invitation.NewInvitationContainer(config.DB, examRepo, userContainer.Repo)
	gradingContainer := grading.NewGradingContainer()

	answerSheetContainer := answersheet.NewAnswerSheetContainer(
		config.DB,
		examRepo,
		invitationContainer.Service,
		invitationContainer.Repo,
		userContainer.Repo,
		gradingContainer.Service,
	)

	examContainer := exam.NewExamContainer(
		examRepo,
		answerSheetContainer.Service,
		invitationContainer.Service,
	)

	return &Container{
		UserContainer:        userContainer,
		ExamContainer:        examContainer,
		InvitationContainer:  invitationContainer,
		AnswerSheetContainer: answerSheetContainer,
		GradingContainer:     gradingContainer,
	}
}
