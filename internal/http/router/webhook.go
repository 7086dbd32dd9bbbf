package router

import (
	"github.com/gin-gonic/gin"

	"github.com/thomaseleff/bunsen/internal/http/handler/webhook"
)

func WebhookRouter(router *gin.RouterGroup, handler *webhook.GitHubWebhookHandler) {
	router.POST("/github-webhook", handler.HandleEvent)
}
