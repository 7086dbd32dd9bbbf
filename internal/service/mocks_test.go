package service_test

import (
	"context"
	"sync"

	"github.com/thomaseleff/bunsen/common/llm"
	"github.com/thomaseleff/bunsen/internal/model"
	"github.com/thomaseleff/bunsen/internal/service/issue_tracker"
)

type postedComment struct {
	Ref  issue_tracker.IssueRef
	Body string
}

type mockIssueTracker struct {
	mu sync.Mutex

	getIssueFn         func(ctx context.Context, ref issue_tracker.IssueRef) (*model.Issue, error)
	getCommentsFn      func(ctx context.Context, ref issue_tracker.IssueRef) ([]model.Comment, error)
	postCommentFn      func(ctx context.Context, ref issue_tracker.IssueRef, body string) error
	dispatchWorkflowFn func(ctx context.Context, params issue_tracker.DispatchParams) error

	posted     []postedComment
	dispatches []issue_tracker.DispatchParams
}

func (m *mockIssueTracker) GetIssue(ctx context.Context, ref issue_tracker.IssueRef) (*model.Issue, error) {
	if m.getIssueFn != nil {
		return m.getIssueFn(ctx, ref)
	}
	return nil, issue_tracker.ErrNotFound
}

func (m *mockIssueTracker) GetComments(ctx context.Context, ref issue_tracker.IssueRef) ([]model.Comment, error) {
	if m.getCommentsFn != nil {
		return m.getCommentsFn(ctx, ref)
	}
	return []model.Comment{}, nil
}

func (m *mockIssueTracker) PostComment(ctx context.Context, ref issue_tracker.IssueRef, body string) error {
	m.mu.Lock()
	m.posted = append(m.posted, postedComment{Ref: ref, Body: body})
	m.mu.Unlock()
	if m.postCommentFn != nil {
		return m.postCommentFn(ctx, ref, body)
	}
	return nil
}

func (m *mockIssueTracker) DispatchWorkflow(ctx context.Context, params issue_tracker.DispatchParams) error {
	m.mu.Lock()
	m.dispatches = append(m.dispatches, params)
	m.mu.Unlock()
	if m.dispatchWorkflowFn != nil {
		return m.dispatchWorkflowFn(ctx, params)
	}
	return nil
}

type mockProvider struct {
	tracker            issue_tracker.IssueTracker
	forInstallationFn  func(installationID int64) (issue_tracker.IssueTracker, error)
	installationsAsked []int64
}

func (m *mockProvider) ForInstallation(installationID int64) (issue_tracker.IssueTracker, error) {
	m.installationsAsked = append(m.installationsAsked, installationID)
	if m.forInstallationFn != nil {
		return m.forInstallationFn(installationID)
	}
	return m.tracker, nil
}

type mockReplyGenerator struct {
	generateReplyFn func(ctx context.Context, prompt string) (string, error)
	prompts         []string
}

func (m *mockReplyGenerator) GenerateReply(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.generateReplyFn != nil {
		return m.generateReplyFn(ctx, prompt)
	}
	return "Meep.", nil
}

type mockLocker struct {
	acquireFn func(ctx context.Context, key string) (func(), error)
	keys      []string
	released  int
}

func (m *mockLocker) Acquire(ctx context.Context, key string) (func(), error) {
	m.keys = append(m.keys, key)
	if m.acquireFn != nil {
		return m.acquireFn(ctx, key)
	}
	return func() { m.released++ }, nil
}

type mockLLMClient struct {
	completeFn func(ctx context.Context, req llm.Request) (*llm.Response, error)
	requests   []llm.Request
}

func (m *mockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.requests = append(m.requests, req)
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return &llm.Response{Content: "ok"}, nil
}

func (m *mockLLMClient) Model() string {
	return "mock-model"
}
