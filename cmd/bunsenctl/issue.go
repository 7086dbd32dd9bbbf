package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/thomaseleff/bunsen/common/id"
	"github.com/thomaseleff/bunsen/common/llm"
	"github.com/thomaseleff/bunsen/common/logger"
	"github.com/thomaseleff/bunsen/core/config"
	"github.com/thomaseleff/bunsen/internal/lock"
	"github.com/thomaseleff/bunsen/internal/mapper"
	"github.com/thomaseleff/bunsen/internal/model"
	"github.com/thomaseleff/bunsen/internal/prompt"
	"github.com/thomaseleff/bunsen/internal/service"
	"github.com/thomaseleff/bunsen/internal/service/issue_tracker"
)

type issueArgs struct {
	ref            issue_tracker.IssueRef
	installationID int64
}

func (a *issueArgs) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&a.installationID, "installation", 0, "GitHub App installation id (ignored with GITHUB_TOKEN)")
}

func (a *issueArgs) parse(args []string) error {
	repo := args[0]
	if owner, name, ok := strings.Cut(repo, "/"); !ok || owner == "" || name == "" {
		return fmt.Errorf("repository must be owner/name, got %q", repo)
	}
	number, err := strconv.ParseInt(strings.TrimPrefix(args[1], "#"), 10, 64)
	if err != nil || number <= 0 {
		return fmt.Errorf("invalid issue number %q", args[1])
	}
	a.ref = issue_tracker.IssueRef{Repo: repo, Number: number}
	return nil
}

func newResolveCmd() *cobra.Command {
	var a issueArgs

	cmd := &cobra.Command{
		Use:   "resolve <owner/repo> <issue>",
		Short: "Print the participants and engagement state of an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.parse(args); err != nil {
				return err
			}
			ctx := cmd.Context()

			services, err := buildServices(ctx, false)
			if err != nil {
				return err
			}
			tracker, err := services.Trackers().ForInstallation(a.installationID)
			if err != nil {
				return err
			}

			issue, err := tracker.GetIssue(ctx, a.ref)
			if err != nil {
				return fmt.Errorf("fetching issue: %w", err)
			}
			comments, err := tracker.GetComments(ctx, a.ref)
			if err != nil {
				return fmt.Errorf("fetching comments: %w", err)
			}

			sorted := service.SortComments(comments)
			set := services.Resolver().Resolve(*issue, sorted)
			engagement := services.Engagement()

			printParticipants(cmd.OutOrStdout(), set)
			fmt.Fprintf(cmd.OutOrStdout(), "responded:   %t\n", engagement.HasAgentResponded(sorted))
			fmt.Fprintf(cmd.OutOrStdout(), "summoned:    %t\n", engagement.ShouldRespond(*issue, sorted))
			return nil
		},
	}
	a.bind(cmd)
	return cmd
}

func newRespondCmd() *cobra.Command {
	var a issueArgs

	cmd := &cobra.Command{
		Use:   "respond <owner/repo> <issue>",
		Short: "Run the reply flow for an issue as if it had just been opened",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.parse(args); err != nil {
				return err
			}
			return handle(cmd, true, mapper.Event{
				Kind:           mapper.EventIssueOpened,
				Repo:           a.ref.Repo,
				IssueNumber:    a.ref.Number,
				InstallationID: a.installationID,
			})
		},
	}
	a.bind(cmd)
	return cmd
}

func newDispatchCmd() *cobra.Command {
	var a issueArgs

	cmd := &cobra.Command{
		Use:   "dispatch <owner/repo> <issue>",
		Short: "Trigger the coding workflow for an issue as if it had been labeled",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.parse(args); err != nil {
				return err
			}
			return handle(cmd, false, mapper.Event{
				Kind:           mapper.EventIssueLabeled,
				Repo:           a.ref.Repo,
				IssueNumber:    a.ref.Number,
				InstallationID: a.installationID,
			})
		},
	}
	a.bind(cmd)
	return cmd
}

func handle(cmd *cobra.Command, withReplies bool, event mapper.Event) error {
	ctx := cmd.Context()

	services, err := buildServices(ctx, withReplies)
	if err != nil {
		return err
	}
	action := services.Dispatcher().Handle(ctx, event)

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", action.Kind, action.Message)
	switch action.Kind {
	case service.ActionFailed, service.ActionReplyFailed, service.ActionDispatchFailed:
		if action.Err != nil {
			return action.Err
		}
		return errors.New(string(action.Kind))
	}
	return nil
}

func buildServices(ctx context.Context, withReplies bool) (*service.Services, error) {
	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg)

	trackers, err := issue_tracker.NewGitHubProvider(issue_tracker.ProviderConfig{
		AppID:      cfg.GitHub.AppID,
		PrivateKey: []byte(cfg.GitHub.PrivateKey),
		Token:      cfg.GitHub.Token,
		APIURL:     cfg.GitHub.APIURL,
	})
	if err != nil {
		return nil, err
	}

	servicesCfg := service.ServicesConfig{Config: cfg, Trackers: trackers}

	if withReplies {
		if !cfg.LLM.Enabled() {
			return nil, errors.New("LLM_PROVIDER and LLM_API_KEY are required to generate replies")
		}
		client, err := llm.NewClient(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
		})
		if err != nil {
			return nil, err
		}
		persona := prompt.Persona{Name: cfg.Agent.Name, Identity: model.AgentIdentity(cfg.Agent.Identity)}
		servicesCfg.Replies = service.NewLLMReplyGenerator(client, persona, cfg.LLM.MaxTokens)
	}

	// Share the server's per-issue lock so a manual run never races a live delivery.
	if cfg.Lock.Enabled() {
		if err := id.Init(2); err != nil {
			return nil, err
		}
		opts, err := redis.ParseURL(cfg.Lock.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		servicesCfg.Locker = lock.NewRedisLocker(client, lock.Config{TTL: cfg.Lock.TTL, Wait: cfg.Lock.Wait})
	}

	return service.NewServices(servicesCfg)
}

func printParticipants(w io.Writer, set model.ParticipantSet) {
	fmt.Fprintf(w, "primary:     %s\n", set.Primary)
	fmt.Fprintf(w, "author:      %s\n", set.Author)
	fmt.Fprintf(w, "commenters:  %s\n", strings.Join(set.Commenters, ", "))
	fmt.Fprintf(w, "mentioned:   %s\n", strings.Join(set.Mentioned, ", "))
	fmt.Fprintf(w, "cc:          %s\n", strings.Join(set.CC(), ", "))
}
