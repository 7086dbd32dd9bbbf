package issue_tracker

import (
	"context"
	"errors"

	"github.com/thomaseleff/bunsen/internal/model"
)

// ErrNotFound is returned when the issue (or its repository) does not exist
// or is no longer visible to the installation.
var ErrNotFound = errors.New("issue not found")

type IssueRef struct {
	Repo   string // owner/name
	Number int64
}

type DispatchParams struct {
	Repo           string
	Workflow       string // workflow file name, e.g. coding_agent.yaml
	Branch         string
	IssueNumber    int64
	InstallationID int64
}

// IssueTracker is the issue store and workflow trigger for one installation.
type IssueTracker interface {
	GetIssue(ctx context.Context, ref IssueRef) (*model.Issue, error)
	GetComments(ctx context.Context, ref IssueRef) ([]model.Comment, error)
	PostComment(ctx context.Context, ref IssueRef, body string) error
	DispatchWorkflow(ctx context.Context, params DispatchParams) error
}

// Provider hands out installation-scoped trackers.
type Provider interface {
	ForInstallation(installationID int64) (IssueTracker, error)
}
