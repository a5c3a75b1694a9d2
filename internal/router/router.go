package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/saulo-duarte/recrutai-lambda/internal/answersheet"
	"github.com/saulo-duarte/recrutai-lambda/internal/auth"
	"github.com/saulo-duarte/recrutai-lambda/internal/exam"
	"github.com/saulo-duarte/recrutai-lambda/internal/invitation"
	"github.com/saulo-duarte/recrutai-lambda/internal/middlewares"
	"github.com/saulo-duarte/recrutai-lambda/internal/user"
)

type RouterConfig struct {
	UserHandler        *user.Handler
	ExamHandler        *exam.Handler
	InvitationHandler  *invitation.Handler
	AnswerSheetHandler *answersheet.Handler
}

func New(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.CorsMiddleware)

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", cfg.UserHandler.GoogleLogin)
		r.Post("/refresh", cfg.UserHandler.RefreshToken)
		r.Post("/logout", auth.NewHandler().Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware)

		r.Mount("/exams", exam.Routes(cfg.ExamHandler))
		r.Mount("/invitations", invitation.Routes(cfg.InvitationHandler))
		r.Mount("/answer-sheets", answersheet.Routes(cfg.AnswerSheetHandler))
		r.Mount("/users", user.Routes(cfg.UserHandler))
	})
	return r
}
