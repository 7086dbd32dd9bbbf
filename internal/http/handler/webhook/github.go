package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thomaseleff/bunsen/common/id"
	"github.com/thomaseleff/bunsen/common/logger"
	"github.com/thomaseleff/bunsen/internal/mapper"
	"github.com/thomaseleff/bunsen/internal/service"
)

const (
	eventHeader    = "X-GitHub-Event"
	deliveryHeader = "X-GitHub-Delivery"

	// GitHub caps webhook payloads at 25 MB.
	maxPayloadBytes = 25 << 20
)

type GitHubWebhookHandler struct {
	secret     []byte
	mapper     mapper.EventMapper
	dispatcher service.Dispatcher
}

func NewGitHubWebhookHandler(secret []byte, mapper mapper.EventMapper, dispatcher service.Dispatcher) *GitHubWebhookHandler {
	return &GitHubWebhookHandler{
		secret:     secret,
		mapper:     mapper,
		dispatcher: dispatcher,
	}
}

// HandleEvent authenticates the delivery, then always answers 200: failures
// past this point are reported on the issue or in the logs, never to GitHub.
func (h *GitHubWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	signature := c.GetHeader(service.SignatureHeader)
	if signature == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "X-Hub-Signature-256 header missing"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "failed to read request body"})
		return
	}

	if err := service.VerifySignature(body, signature, h.secret); err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "X-Hub-Signature-256 header missing"})
			return
		}
		slog.WarnContext(ctx, "rejected github webhook", "error", err)
		c.JSON(http.StatusForbidden, gin.H{"detail": "X-Hub-Signature-256 header is invalid"})
		return
	}

	eventType := c.GetHeader(eventHeader)
	if eventType == "" {
		eventType = "ping"
	}
	deliveryID := c.GetHeader(deliveryHeader)
	if deliveryID == "" {
		deliveryID = id.NewString()
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		DeliveryID: &deliveryID,
		EventType:  &eventType,
		Component:  "bunsen.http.webhook",
	})

	event := h.mapper.Map(ctx, eventType, body)
	if event.Kind != mapper.EventPing && event.Kind != mapper.EventUnhandled {
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			Repo:           &event.Repo,
			IssueNumber:    &event.IssueNumber,
			InstallationID: &event.InstallationID,
		})
	}
	c.Request = c.Request.WithContext(ctx)

	// GitHub hangs up after 10s, well before a reply or dispatch may finish.
	// The dispatcher's per-call timeouts bound the work instead.
	action := h.dispatcher.Handle(context.WithoutCancel(ctx), event)

	slog.InfoContext(ctx, "github webhook processed",
		"semantic_event", event.Kind,
		"reason", event.Reason,
		"action", action.Kind)

	c.JSON(http.StatusOK, gin.H{"msg": action.Message})
}
