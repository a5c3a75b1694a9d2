package main

import (
	"context"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"

	"github.com/saulo-duarte/recrutai-lambda/internal/config"
	"github.com/saulo-duarte/recrutai-lambda/internal/container"
	"github.com/saulo-duarte/recrutai-lambda/internal/router"
)

var chiLambda *chiadapter.ChiLambdaV2

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	c := container.New()

	r := router.New(router.RouterConfig{
		UserHandler:        c.UserContainer.Handler,
		ExamHandler:        c.ExamContainer.Handler,
		InvitationHandler:  c.InvitationContainer.Handler,
		AnswerSheetHandler: c.AnswerSheetContainer.Handler,
	})

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		chiLambda = chiadapter.NewV2(r.(*chi.Mux))
		lambda.Start(handler)
		return
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	config.Logger.Infof("Listening on :%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		config.Logger.WithError(err).Fatal("Server stopped")
	}
}
