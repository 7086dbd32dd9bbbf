package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/thomaseleff/bunsen/common/logger"
	"github.com/thomaseleff/bunsen/internal/lock"
	"github.com/thomaseleff/bunsen/internal/mapper"
	"github.com/thomaseleff/bunsen/internal/model"
	"github.com/thomaseleff/bunsen/internal/prompt"
	"github.com/thomaseleff/bunsen/internal/service/issue_tracker"
)

var errNoReplyGenerator = errors.New("no reply generator configured")

type ActionKind string

const (
	ActionAcknowledged     ActionKind = "acknowledged"      // ping
	ActionIgnored          ActionKind = "ignored"           // unhandled event
	ActionDropped          ActionKind = "dropped"           // issue gone or lock busy
	ActionAlreadyResponded ActionKind = "already_responded" // agent commented before
	ActionNotSummoned      ActionKind = "not_summoned"      // latest message does not mention the agent
	ActionReplied          ActionKind = "replied"
	ActionReplyFailed      ActionKind = "reply_failed" // nothing posted
	ActionDispatched       ActionKind = "dispatched"
	ActionDispatchFailed   ActionKind = "dispatch_failed" // failure reported on the issue
	ActionFailed           ActionKind = "failed"
)

const (
	msgPing        = "Ping event received successfully!"
	msgIncomplete  = "Payload incomplete. Ignoring."
	msgProcessed   = "Github event processed successfully."
	msgInitFailed  = "The issue agent could not be initialized. Ignoring."
	msgDispatchFmt = "Dispatched the Beaker swe-agent for issue #%d."
)

// Action is the outcome of one delivery. Message is the acknowledgement sent
// back to GitHub; Err carries the cause for failed or dropped outcomes.
type Action struct {
	Kind    ActionKind
	Message string
	Err     error
}

type Dispatcher interface {
	Handle(ctx context.Context, event mapper.Event) Action
}

type DispatcherConfig struct {
	Agent            model.AgentIdentity
	Persona          prompt.Persona
	Scanner          MentionScanner
	MainBranch       string
	WorkflowFilename string
	GitHubTimeout    time.Duration
	LLMTimeout       time.Duration
}

type dispatcher struct {
	trackers   issue_tracker.Provider
	replies    ReplyGenerator
	locker     lock.Locker
	resolver   *ParticipantResolver
	engagement *EngagementDetector
	cfg        DispatcherConfig
}

func NewDispatcher(trackers issue_tracker.Provider, replies ReplyGenerator, locker lock.Locker, cfg DispatcherConfig) Dispatcher {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	resolver := NewParticipantResolver(cfg.Agent, cfg.Scanner)
	return &dispatcher{
		trackers:   trackers,
		replies:    replies,
		locker:     locker,
		resolver:   resolver,
		engagement: NewEngagementDetector(resolver),
		cfg:        cfg,
	}
}

func (d *dispatcher) Handle(ctx context.Context, event mapper.Event) Action {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "bunsen.service.dispatcher"})

	sc := logger.StartSpan(ctx, "dispatcher.handle")
	defer sc.End()

	action := d.handle(sc.Context(), event)
	sc.SetOutcome(string(action.Kind))
	if action.Err != nil {
		sc.RecordError(action.Err)
	}
	return action
}

func (d *dispatcher) handle(ctx context.Context, event mapper.Event) Action {
	switch event.Kind {
	case mapper.EventPing:
		return Action{Kind: ActionAcknowledged, Message: msgPing}
	case mapper.EventIssueLabeled:
		return d.dispatchWorkflow(ctx, event)
	case mapper.EventIssueOpened, mapper.EventCommentCreated:
		return d.reply(ctx, event)
	}

	slog.DebugContext(ctx, "event not handled", "kind", event.Kind, "reason", event.Reason)
	if event.Reason == mapper.ReasonIncomplete {
		return Action{Kind: ActionIgnored, Message: msgIncomplete}
	}
	return Action{Kind: ActionIgnored, Message: msgProcessed}
}

// dispatchWorkflow runs on every trigger-label delivery; redeliveries dispatch
// again. Failures are reported on the issue and never retried.
func (d *dispatcher) dispatchWorkflow(ctx context.Context, event mapper.Event) Action {
	ref := issue_tracker.IssueRef{Repo: event.Repo, Number: event.IssueNumber}

	tracker, err := d.trackers.ForInstallation(event.InstallationID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create issue tracker", "error", err)
		return Action{Kind: ActionFailed, Message: msgInitFailed, Err: err}
	}

	params := issue_tracker.DispatchParams{
		Repo:           event.Repo,
		Workflow:       d.cfg.WorkflowFilename,
		Branch:         d.cfg.MainBranch,
		IssueNumber:    event.IssueNumber,
		InstallationID: event.InstallationID,
	}

	slog.InfoContext(ctx, "dispatching coding workflow",
		"workflow", params.Workflow,
		"branch", params.Branch,
		"label", event.Label)

	err = d.call(ctx, "github.dispatch_workflow", d.cfg.GitHubTimeout, func(ctx context.Context) error {
		return tracker.DispatchWorkflow(ctx, params)
	})
	if err != nil {
		slog.ErrorContext(ctx, "workflow dispatch failed", "error", err)
		d.postTracking(ctx, tracker, ref, fmt.Sprintf(
			"Failed to dispatch the `%s` workflow on `%s` for issue #%d.\n\n```\n%v\n```",
			params.Workflow, params.Branch, ref.Number, errors.Unwrap(err)))
		return Action{Kind: ActionDispatchFailed, Message: msgProcessed, Err: err}
	}

	d.postTracking(ctx, tracker, ref, fmt.Sprintf(
		"Dispatched the `%s` workflow on `%s` for issue #%d.",
		params.Workflow, params.Branch, ref.Number))

	return Action{Kind: ActionDispatched, Message: fmt.Sprintf(msgDispatchFmt, ref.Number)}
}

func (d *dispatcher) postTracking(ctx context.Context, tracker issue_tracker.IssueTracker, ref issue_tracker.IssueRef, body string) {
	err := d.call(ctx, "github.post_comment", d.cfg.GitHubTimeout, func(ctx context.Context) error {
		return tracker.PostComment(ctx, ref, body)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to post tracking comment", "error", err)
	}
}

func (d *dispatcher) reply(ctx context.Context, event mapper.Event) Action {
	ref := issue_tracker.IssueRef{Repo: event.Repo, Number: event.IssueNumber}

	tracker, err := d.trackers.ForInstallation(event.InstallationID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create issue tracker", "error", err)
		return Action{Kind: ActionFailed, Message: msgInitFailed, Err: err}
	}

	release, err := d.locker.Acquire(ctx, fmt.Sprintf("%s#%d", ref.Repo, ref.Number))
	if err != nil {
		slog.WarnContext(ctx, "issue busy, dropping delivery", "error", err)
		return Action{Kind: ActionDropped, Message: msgProcessed, Err: err}
	}
	defer release()

	var issue *model.Issue
	err = d.call(ctx, "github.get_issue", d.cfg.GitHubTimeout, func(ctx context.Context) error {
		var err error
		issue, err = tracker.GetIssue(ctx, ref)
		return err
	})
	if err != nil {
		return d.fetchFailed(ctx, err)
	}

	var comments []model.Comment
	err = d.call(ctx, "github.get_comments", d.cfg.GitHubTimeout, func(ctx context.Context) error {
		var err error
		comments, err = tracker.GetComments(ctx, ref)
		return err
	})
	if err != nil {
		return d.fetchFailed(ctx, err)
	}

	sorted := SortComments(comments)

	if d.engagement.HasAgentResponded(sorted) {
		slog.InfoContext(ctx, "agent already responded, skipping", "comments", len(sorted))
		return Action{Kind: ActionAlreadyResponded, Message: msgProcessed}
	}
	if !d.engagement.ShouldRespond(*issue, sorted) {
		slog.DebugContext(ctx, "latest message does not mention the agent", "comments", len(sorted))
		return Action{Kind: ActionNotSummoned, Message: msgProcessed}
	}

	set := d.resolver.Resolve(*issue, sorted)
	userPrompt := prompt.BuildResponsePrompt(d.cfg.Persona, *issue, sorted)

	if d.replies == nil {
		slog.ErrorContext(ctx, "no reply generator configured, nothing posted")
		return Action{Kind: ActionReplyFailed, Message: msgProcessed, Err: errNoReplyGenerator}
	}

	var reply string
	err = d.call(ctx, "llm.generate_reply", d.cfg.LLMTimeout, func(ctx context.Context) error {
		var err error
		reply, err = d.replies.GenerateReply(ctx, userPrompt)
		return err
	})
	if err != nil {
		slog.ErrorContext(ctx, "reply generation failed, nothing posted", "error", err)
		return Action{Kind: ActionReplyFailed, Message: msgProcessed, Err: err}
	}

	body := ComposeReply(set, reply)
	err = d.call(ctx, "github.post_comment", d.cfg.GitHubTimeout, func(ctx context.Context) error {
		return tracker.PostComment(ctx, ref, body)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to post reply", "error", err)
		return Action{Kind: ActionFailed, Message: msgProcessed, Err: err}
	}

	slog.InfoContext(ctx, "reply posted",
		"primary", set.Primary,
		"cc", len(set.CC()),
		"reply", logger.Truncate(reply, 200))

	return Action{Kind: ActionReplied, Message: msgProcessed}
}

func (d *dispatcher) fetchFailed(ctx context.Context, err error) Action {
	if errors.Is(err, issue_tracker.ErrNotFound) {
		slog.InfoContext(ctx, "issue not found, dropping delivery", "error", err)
		return Action{Kind: ActionDropped, Message: msgProcessed, Err: err}
	}
	slog.ErrorContext(ctx, "failed to fetch issue", "error", err)
	return Action{Kind: ActionFailed, Message: msgProcessed, Err: err}
}

// call runs one collaborator request inside a client span, bounded by timeout.
func (d *dispatcher) call(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	sc := logger.StartSpan(ctx, op, trace.WithSpanKind(trace.SpanKindClient))
	defer sc.End()

	callCtx := sc.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(callCtx)
	if err != nil {
		sc.RecordError(err)
		return &CollaboratorError{Op: op, Err: err}
	}

	slog.DebugContext(callCtx, "collaborator call finished", "op", op, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
