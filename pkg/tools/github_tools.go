package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/synapsehq/synapse/pkg/github"
	"github.com/synapsehq/synapse/pkg/tracking"
	"github.com/synapsehq/synapse/pkg/types"
)

// GitHubAPI is the slice of the GitHub client the issue tools depend on.
type GitHubAPI interface {
	GetIssues(ctx context.Context, repo, state string, labels []string) ([]*github.Issue, error)
	GetPullRequests(ctx context.Context, repo, state string) ([]*github.PullRequest, error)
	CreateIssue(ctx context.Context, repo, title, body string, labels, assignees []string) (*github.Issue, error)
	AddComment(ctx context.Context, repo string, number int, body string) (*types.Comment, error)
	SetLabels(ctx context.Context, repo string, number int, labels []string) ([]string, error)
}

// Analyst produces triage suggestions and pull request reviews.
type Analyst interface {
	TriageIssues(ctx context.Context, issuesBlock string) ([]types.TriageSuggestion, error)
	ReviewPullRequest(ctx context.Context, prBlock string) (*types.Review, error)
}

// IssueToolset groups the GitHub-facing agent tools.
type IssueToolset struct {
	github        GitHubAPI
	llm           Analyst
	tracker       tracking.Tracker
	defaultLabels []string
}

// NewIssueToolset creates the issue-tracker tool group. defaultLabels are
// applied to issues created without explicit labels.
func NewIssueToolset(githubClient GitHubAPI, analyst Analyst, tracker tracking.Tracker, defaultLabels []string) *IssueToolset {
	if tracker == nil {
		tracker = tracking.NopTracker{}
	}
	return &IssueToolset{
		github:        githubClient,
		llm:           analyst,
		tracker:       tracker,
		defaultLabels: defaultLabels,
	}
}

// TriageIssues fetches issues, asks the model for triage suggestions, and
// applies each suggestion as a label replacement plus a report comment.
// Suggestions already applied when a later step fails are not rolled back.
func (it *IssueToolset) TriageIssues(ctx context.Context, repo, state string) (*types.TriageResult, error) {
	start := time.Now()
	if state == "" {
		state = "open"
	}
	input := map[string]any{"repo": repo, "state": state}

	issues, err := it.github.GetIssues(ctx, repo, state, nil)
	if err != nil {
		return nil, logFailure(it.tracker, "triage_issues", input, start, err)
	}
	if len(issues) == 0 {
		it.tracker.LogToolUsage("triage_issues", input, map[string]any{
			"issues_triaged": 0,
		}, time.Since(start), "success")
		return &types.TriageResult{Status: types.StatusSuccess}, nil
	}

	suggestions, err := it.llm.TriageIssues(ctx, formatIssues(issues))
	if err != nil {
		return nil, logFailure(it.tracker, "triage_issues", input, start, err)
	}

	for _, s := range suggestions {
		// Full replace: an empty suggestion clears the issue's labels.
		if _, err := it.github.SetLabels(ctx, repo, s.IssueNumber, s.SuggestedLabels); err != nil {
			return nil, logFailure(it.tracker, "triage_issues", input, start, err)
		}
		if _, err := it.github.AddComment(ctx, repo, s.IssueNumber, formatTriageComment(s)); err != nil {
			return nil, logFailure(it.tracker, "triage_issues", input, start, err)
		}
	}

	it.tracker.LogToolUsage("triage_issues", input, map[string]any{
		"issues_triaged": len(issues),
		"suggestions":    suggestions,
	}, time.Since(start), "success")
	return &types.TriageResult{
		Status:        types.StatusSuccess,
		IssuesTriaged: len(issues),
		Suggestions:   suggestions,
	}, nil
}

// ReviewPullRequest reviews one open pull request and posts the review as
// a comment on it.
func (it *IssueToolset) ReviewPullRequest(ctx context.Context, repo string, prNumber int) (*types.ReviewResult, error) {
	start := time.Now()
	input := map[string]any{"repo": repo, "pr_number": prNumber}

	prs, err := it.github.GetPullRequests(ctx, repo, "open")
	if err != nil {
		return nil, logFailure(it.tracker, "review_pull_request", input, start, err)
	}
	var pr *github.PullRequest
	for _, candidate := range prs {
		if candidate.GetNumber() == prNumber {
			pr = candidate
			break
		}
	}
	if pr == nil {
		err := fmt.Errorf("pull request #%d not found", prNumber)
		return nil, logFailure(it.tracker, "review_pull_request", input, start, err)
	}

	review, err := it.llm.ReviewPullRequest(ctx, formatPullRequest(pr))
	if err != nil {
		return nil, logFailure(it.tracker, "review_pull_request", input, start, err)
	}

	if _, err := it.github.AddComment(ctx, repo, prNumber, formatReviewComment(review)); err != nil {
		return nil, logFailure(it.tracker, "review_pull_request", input, start, err)
	}

	it.tracker.LogToolUsage("review_pull_request", input, map[string]any{
		"pr_number":      prNumber,
		"recommendation": review.Recommendation,
	}, time.Since(start), "success")
	return &types.ReviewResult{
		Status:   types.StatusSuccess,
		PRNumber: prNumber,
		Review:   review,
	}, nil
}

// CreateIssue opens an issue with the configured default labels.
func (it *IssueToolset) CreateIssue(ctx context.Context, repo, title, body string) (*github.Issue, error) {
	start := time.Now()
	input := map[string]any{"repo": repo, "title": title}

	issue, err := it.github.CreateIssue(ctx, repo, title, body, it.defaultLabels, nil)
	if err != nil {
		return nil, logFailure(it.tracker, "create_issue", input, start, err)
	}

	it.tracker.LogToolUsage("create_issue", input, map[string]any{
		"issue_number": issue.GetNumber(),
	}, time.Since(start), "success")
	return issue, nil
}

func formatIssues(issues []*github.Issue) string {
	blocks := make([]string, 0, len(issues))
	for _, issue := range issues {
		labels := make([]string, 0, len(issue.Labels))
		for _, label := range issue.Labels {
			labels = append(labels, label.GetName())
		}
		blocks = append(blocks, fmt.Sprintf("Issue #%d: %s\nLabels: %s\nBody: %s",
			issue.GetNumber(), issue.GetTitle(), strings.Join(labels, ", "), issue.GetBody()))
	}
	return strings.Join(blocks, "\n\n")
}

func formatTriageComment(s types.TriageSuggestion) string {
	return fmt.Sprintf("🤖 **Synapse Triage Report**\n\nPriority: %s\nSuggested Assignees: %s\nAction Needed: %s",
		s.Priority, strings.Join(s.SuggestedAssignees, ", "), s.ActionSummary)
}

func formatPullRequest(pr *github.PullRequest) string {
	return fmt.Sprintf("Title: %s\nDescription: %s\nChanged Files: %d\nAdditions: %d\nDeletions: %d",
		pr.GetTitle(), pr.GetBody(), pr.GetChangedFiles(), pr.GetAdditions(), pr.GetDeletions())
}

func formatReviewComment(review *types.Review) string {
	return fmt.Sprintf("🤖 **Synapse PR Review**\n\n**Assessment:**\n%s\n\n**Issues:**\n%s\n\n**Suggestions:**\n%s\n\n**Recommendation:** %s",
		review.Assessment, bulleted(review.Issues), bulleted(review.Suggestions), review.Recommendation)
}

func bulleted(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
