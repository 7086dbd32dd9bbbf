package issue_tracker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/thomaseleff/bunsen/internal/model"
)

var _ IssueTracker = (*githubIssueTracker)(nil)

type githubIssueTracker struct {
	gh *gh.Client
}

func NewGitHubIssueTracker(client *gh.Client) IssueTracker {
	return &githubIssueTracker{gh: client}
}

// NewGitHubIssueTrackerWithHTTPClient points the tracker at baseURL, which
// must end in a slash. Used against httptest servers.
func NewGitHubIssueTrackerWithHTTPClient(httpClient *http.Client, baseURL string) (IssueTracker, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &githubIssueTracker{gh: client}, nil
}

func (t *githubIssueTracker) GetIssue(ctx context.Context, ref IssueRef) (*model.Issue, error) {
	owner, repo, err := splitRepo(ref.Repo)
	if err != nil {
		return nil, err
	}

	issue, resp, err := t.gh.Issues.Get(ctx, owner, repo, int(ref.Number))
	if err != nil {
		if isNotFound(resp) {
			return nil, fmt.Errorf("fetching issue %s#%d: %w", ref.Repo, ref.Number, ErrNotFound)
		}
		return nil, fmt.Errorf("fetching issue %s#%d: %w", ref.Repo, ref.Number, err)
	}

	logRateLimit(ctx, resp, ref.Repo+"/issues", 0, 1)

	return &model.Issue{
		Repo:   ref.Repo,
		Number: int64(issue.GetNumber()),
		Title:  issue.GetTitle(),
		Body:   issue.Body,
		Author: issue.GetUser().GetLogin(),
	}, nil
}

// GetComments returns every comment on the issue, following pagination.
func (t *githubIssueTracker) GetComments(ctx context.Context, ref IssueRef) ([]model.Comment, error) {
	owner, repo, err := splitRepo(ref.Repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	comments := []model.Comment{}
	for {
		page, resp, err := t.gh.Issues.ListComments(ctx, owner, repo, int(ref.Number), opts)
		if err != nil {
			if isNotFound(resp) {
				return nil, fmt.Errorf("listing comments for %s#%d: %w", ref.Repo, ref.Number, ErrNotFound)
			}
			return nil, fmt.Errorf("listing comments for %s#%d (page %d): %w", ref.Repo, ref.Number, opts.Page, err)
		}

		logRateLimit(ctx, resp, ref.Repo+"/comments", opts.Page, len(page))

		for _, c := range page {
			comments = append(comments, model.Comment{
				Author:    c.GetUser().GetLogin(),
				Body:      c.GetBody(),
				CreatedAt: c.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return comments, nil
}

func (t *githubIssueTracker) PostComment(ctx context.Context, ref IssueRef, body string) error {
	owner, repo, err := splitRepo(ref.Repo)
	if err != nil {
		return err
	}

	_, resp, err := t.gh.Issues.CreateComment(ctx, owner, repo, int(ref.Number), &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		if isNotFound(resp) {
			return fmt.Errorf("posting comment on %s#%d: %w", ref.Repo, ref.Number, ErrNotFound)
		}
		return fmt.Errorf("posting comment on %s#%d: %w", ref.Repo, ref.Number, err)
	}

	return nil
}

type workflowDispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs"`
}

// DispatchWorkflow fires a workflow_dispatch event for the coding workflow.
// Input values are strings because GitHub rejects other types.
func (t *githubIssueTracker) DispatchWorkflow(ctx context.Context, params DispatchParams) error {
	owner, repo, err := splitRepo(params.Repo)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("repos/%s/%s/actions/workflows/%s/dispatches", owner, repo, url.PathEscape(params.Workflow))
	req, err := t.gh.NewRequest(http.MethodPost, u, &workflowDispatchRequest{
		Ref: params.Branch,
		Inputs: map[string]string{
			"repo_name":       params.Repo,
			"repo_branch":     params.Branch,
			"installation_id": strconv.FormatInt(params.InstallationID, 10),
			"issue_id":        strconv.FormatInt(params.IssueNumber, 10),
		},
	})
	if err != nil {
		return fmt.Errorf("building workflow dispatch request: %w", err)
	}

	resp, err := t.gh.Do(ctx, req, nil)
	if err != nil {
		if isNotFound(resp) {
			return fmt.Errorf("dispatching %s on %s: workflow or repository %w", params.Workflow, params.Repo, ErrNotFound)
		}
		return fmt.Errorf("dispatching %s on %s: %w", params.Workflow, params.Repo, err)
	}

	return nil
}

func isNotFound(resp *gh.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

func logRateLimit(ctx context.Context, resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.DebugContext(ctx, "github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.WarnContext(ctx, "github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
