// Package github wraps the GitHub REST client used by the agent.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/synapsehq/synapse/pkg/types"
)

// Issue and PullRequest are GitHub REST objects as returned by the API.
type (
	Issue       = gh.Issue
	PullRequest = gh.PullRequest
)

// issuesService and pullsService are the slices of the GitHub API the
// client depends on. Narrow so tests can fake them.
type issuesService interface {
	ListByRepo(ctx context.Context, owner, repo string, opts *gh.IssueListByRepoOptions) ([]*gh.Issue, *gh.Response, error)
	Create(ctx context.Context, owner, repo string, issue *gh.IssueRequest) (*gh.Issue, *gh.Response, error)
	CreateComment(ctx context.Context, owner, repo string, number int, comment *gh.IssueComment) (*gh.IssueComment, *gh.Response, error)
	ReplaceLabelsForIssue(ctx context.Context, owner, repo string, number int, labels []string) ([]*gh.Label, *gh.Response, error)
}

type pullsService interface {
	List(ctx context.Context, owner, repo string, opts *gh.PullRequestListOptions) ([]*gh.PullRequest, *gh.Response, error)
}

// Client talks to the GitHub REST API on behalf of the agent.
type Client struct {
	issues issuesService
	pulls  pullsService
}

// Config holds GitHub client settings.
type Config struct {
	Token string
}

// New creates a GitHub client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github token not set")
	}
	api := gh.NewClient(nil).WithAuthToken(cfg.Token)
	return &Client{issues: api.Issues, pulls: api.PullRequests}, nil
}

// splitRepo splits an "owner/repo" reference into its two parts.
func splitRepo(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", repo)
	}
	return owner, name, nil
}

// GetIssues lists issues in a repository, filtered by state and labels.
// Pull requests are excluded even though the REST API returns them as
// issues.
func (c *Client) GetIssues(ctx context.Context, repo, state string, labels []string) ([]*Issue, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	issues, _, err := c.issues.ListByRepo(ctx, owner, name, &gh.IssueListByRepoOptions{
		State:  state,
		Labels: labels,
	})
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	out := make([]*Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

// GetPullRequests lists pull requests in a repository, filtered by state.
func (c *Client) GetPullRequests(ctx context.Context, repo, state string) ([]*PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	prs, _, err := c.pulls.List(ctx, owner, name, &gh.PullRequestListOptions{State: state})
	if err != nil {
		return nil, fmt.Errorf("listing pull requests: %w", err)
	}
	return prs, nil
}

// CreateIssue opens a new issue with optional labels and assignees.
func (c *Client) CreateIssue(ctx context.Context, repo, title, body string, labels, assignees []string) (*Issue, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	req := &gh.IssueRequest{Title: gh.String(title)}
	if body != "" {
		req.Body = gh.String(body)
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	if len(assignees) > 0 {
		req.Assignees = &assignees
	}
	issue, _, err := c.issues.Create(ctx, owner, name, req)
	if err != nil {
		return nil, fmt.Errorf("creating issue: %w", err)
	}
	return issue, nil
}

// AddComment posts a comment on an issue or pull request.
func (c *Client) AddComment(ctx context.Context, repo string, number int, body string) (*types.Comment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	comment, _, err := c.issues.CreateComment(ctx, owner, name, number, &gh.IssueComment{
		Body: gh.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}
	return &types.Comment{
		ID:        comment.GetID(),
		Body:      comment.GetBody(),
		CreatedAt: comment.GetCreatedAt().Format(time.RFC3339),
	}, nil
}

// SetLabels replaces the full label set on an issue and returns the
// labels now applied.
func (c *Client) SetLabels(ctx context.Context, repo string, number int, labels []string) ([]string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	applied, _, err := c.issues.ReplaceLabelsForIssue(ctx, owner, name, number, labels)
	if err != nil {
		return nil, fmt.Errorf("setting labels: %w", err)
	}
	names := make([]string, 0, len(applied))
	for _, label := range applied {
		names = append(names, label.GetName())
	}
	return names, nil
}
