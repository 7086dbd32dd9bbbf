package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thomaseleff/bunsen/internal/http/handler/webhook"
	"github.com/thomaseleff/bunsen/internal/service"
)

func SetupRoutes(router *gin.Engine, services *service.Services) {
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "The Bunsen issue-agent is running!")
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhookHandler := webhook.NewGitHubWebhookHandler(
		services.WebhookSecret(),
		services.Mapper(),
		services.Dispatcher(),
	)
	WebhookRouter(router.Group(""), webhookHandler)
}
