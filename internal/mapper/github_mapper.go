package mapper

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/thomaseleff/bunsen/internal/model"
)

type GitHubEventMapper struct {
	agent        model.AgentIdentity
	triggerLabel string
}

func NewGitHubEventMapper(agent model.AgentIdentity, triggerLabel string) *GitHubEventMapper {
	return &GitHubEventMapper{agent: agent, triggerLabel: triggerLabel}
}

type githubWebhookPayload struct {
	Action     string `json:"action"`
	Repository *struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Issue *struct {
		Number int64 `json:"number"`
	} `json:"issue"`
	Installation *struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	Sender *struct {
		Login string `json:"login"`
	} `json:"sender"`
	Comment *struct {
		User *struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"comment"`
	Label *struct {
		Name string `json:"name"`
	} `json:"label"`
}

func (m *GitHubEventMapper) Map(ctx context.Context, eventType string, body []byte) Event {
	if eventType == "" || eventType == "ping" {
		return Event{Kind: EventPing}
	}

	if eventType != "issues" && eventType != "issue_comment" {
		return unhandled(ReasonUnsupported)
	}

	var payload githubWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.WarnContext(ctx, "malformed github webhook payload", "error", err)
		return unhandled(ReasonMalformed)
	}

	var kind EventKind
	switch {
	case eventType == "issues" && payload.Action == "opened":
		kind = EventIssueOpened
	case eventType == "issues" && payload.Action == "labeled":
		kind = EventIssueLabeled
	case eventType == "issue_comment" && payload.Action == "created":
		kind = EventCommentCreated
	default:
		return unhandled(ReasonUnsupported)
	}

	event := Event{Kind: kind}
	if payload.Repository != nil {
		event.Repo = payload.Repository.FullName
	}
	if payload.Issue != nil {
		event.IssueNumber = payload.Issue.Number
	}
	if payload.Installation != nil {
		event.InstallationID = payload.Installation.ID
	}

	if event.Repo == "" || event.IssueNumber == 0 || event.InstallationID == 0 {
		return unhandled(ReasonIncomplete)
	}

	switch kind {
	case EventIssueLabeled:
		if payload.Label != nil {
			event.Label = payload.Label.Name
		}
		if m.triggerLabel == "" || event.Label != m.triggerLabel {
			return unhandled(ReasonOtherLabel)
		}
	case EventCommentCreated:
		event.CommentAuthor = commentAuthor(payload)
		if m.agent.Authored(event.CommentAuthor) {
			return unhandled(ReasonSelfComment)
		}
	}

	return event
}

func commentAuthor(p githubWebhookPayload) string {
	if p.Comment != nil && p.Comment.User != nil && p.Comment.User.Login != "" {
		return p.Comment.User.Login
	}
	if p.Sender != nil {
		return p.Sender.Login
	}
	return ""
}

func unhandled(reason string) Event {
	return Event{Kind: EventUnhandled, Reason: reason}
}
