// Package agent routes natural language requests to the Synapse tool groups.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/synapsehq/synapse/pkg/tracking"
	"github.com/synapsehq/synapse/pkg/types"
)

// MessagingTools is the slice of the messaging tool group the router uses.
type MessagingTools interface {
	SummarizeThread(ctx context.Context, channel, threadTS, model string) (*types.ThreadSummary, error)
	PostSummary(ctx context.Context, channel, threadTS, summary string) (*types.PostedMessage, error)
}

// IssueTools is the slice of the issue tool group the router uses.
type IssueTools interface {
	TriageIssues(ctx context.Context, repo, state string) (*types.TriageResult, error)
	ReviewPullRequest(ctx context.Context, repo string, prNumber int) (*types.ReviewResult, error)
}

// ThreadExtractor pulls thread coordinates out of a free-form message.
type ThreadExtractor interface {
	ExtractThreadInfo(ctx context.Context, message string) (*types.ThreadInfo, error)
}

// intent pairs a keyword predicate with a handler. The router evaluates
// intents in order against the lowercased message; the first match wins.
type intent struct {
	name   string
	match  func(lowered string) bool
	handle func(ctx context.Context, message string) (*types.Envelope, error)
}

// Agent dispatches user messages to the tool groups by keyword intent.
type Agent struct {
	messaging MessagingTools
	issues    IssueTools
	extractor ThreadExtractor
	tracker   tracking.Tracker

	defaultRepo string
	intents     []intent
}

// Config holds router configuration.
type Config struct {
	// DefaultRepo is used when a request names no owner/repo token.
	DefaultRepo string
}

// New creates the agent router.
func New(cfg Config, messaging MessagingTools, issues IssueTools, extractor ThreadExtractor, tracker tracking.Tracker) *Agent {
	if tracker == nil {
		tracker = tracking.NopTracker{}
	}
	a := &Agent{
		messaging:   messaging,
		issues:      issues,
		extractor:   extractor,
		tracker:     tracker,
		defaultRepo: cfg.DefaultRepo,
	}
	a.intents = []intent{
		{
			name: "summarize_thread",
			match: func(m string) bool {
				return strings.Contains(m, "summarize") && strings.Contains(m, "slack")
			},
			handle: a.handleSummarize,
		},
		{
			name: "monitor_channel",
			match: func(m string) bool {
				return strings.Contains(m, "monitor") && strings.Contains(m, "slack")
			},
			handle: a.handleMonitor,
		},
		{
			name: "triage_issues",
			match: func(m string) bool {
				return strings.Contains(m, "triage")
			},
			handle: a.handleTriage,
		},
		{
			name: "review_pull_request",
			match: func(m string) bool {
				return strings.Contains(m, "review") && strings.Contains(m, "pr")
			},
			handle: a.handleReview,
		},
		// Anything mentioning GitHub without a more specific verb gets a
		// triage pass.
		{
			name: "triage_issues",
			match: func(m string) bool {
				return strings.Contains(m, "github")
			},
			handle: a.handleTriage,
		},
	}
	return a
}

// Handle routes one user message. Failures are folded into the returned
// envelope; Handle never returns an error.
func (a *Agent) Handle(ctx context.Context, message string) *types.Envelope {
	start := time.Now()
	lowered := strings.ToLower(message)

	for _, in := range a.intents {
		if !in.match(lowered) {
			continue
		}
		envelope, err := in.handle(ctx, message)
		if err != nil {
			a.tracker.LogToolUsage("agent_handle",
				map[string]any{"message": message},
				map[string]any{"error": err.Error()},
				time.Since(start), "error")
			return &types.Envelope{
				Status:  types.StatusError,
				Message: fmt.Sprintf("Error processing request: %v", err),
			}
		}
		return envelope
	}

	return &types.Envelope{
		Status:  types.StatusError,
		Message: "I'm not sure what to do with that request yet.",
	}
}

func (a *Agent) handleSummarize(ctx context.Context, message string) (*types.Envelope, error) {
	info, err := a.extractor.ExtractThreadInfo(ctx, message)
	if err != nil {
		return nil, err
	}
	if info.Channel == "" || info.ThreadTS == "" {
		return &types.Envelope{
			Status:  types.StatusError,
			Message: "Could not determine the Slack channel and thread timestamp from your request.",
		}, nil
	}

	summary, err := a.messaging.SummarizeThread(ctx, info.Channel, info.ThreadTS, "")
	if err != nil {
		return nil, err
	}
	if _, err := a.messaging.PostSummary(ctx, info.Channel, info.ThreadTS, summary.Summary); err != nil {
		return nil, err
	}

	return &types.Envelope{
		Status: types.StatusSuccess,
		Action: "summarize_thread",
		Data:   summary,
	}, nil
}

func (a *Agent) handleMonitor(ctx context.Context, message string) (*types.Envelope, error) {
	return &types.Envelope{
		Status:  types.StatusNotImplemented,
		Message: "Channel monitoring not yet implemented",
	}, nil
}

func (a *Agent) handleTriage(ctx context.Context, message string) (*types.Envelope, error) {
	repo := a.repoFrom(message)
	if repo == "" {
		return &types.Envelope{
			Status:  types.StatusError,
			Message: "Please specify a repository as owner/repo.",
		}, nil
	}

	result, err := a.issues.TriageIssues(ctx, repo, "open")
	if err != nil {
		return nil, err
	}
	return &types.Envelope{
		Status: types.StatusSuccess,
		Action: "triage_issues",
		Data:   result,
	}, nil
}

func (a *Agent) handleReview(ctx context.Context, message string) (*types.Envelope, error) {
	repo := a.repoFrom(message)
	if repo == "" {
		return &types.Envelope{
			Status:  types.StatusError,
			Message: "Please specify a repository as owner/repo.",
		}, nil
	}
	number, ok := extractPRNumber(message)
	if !ok {
		return &types.Envelope{
			Status:  types.StatusError,
			Message: "Please specify a pull request number, e.g. #42.",
		}, nil
	}

	result, err := a.issues.ReviewPullRequest(ctx, repo, number)
	if err != nil {
		return nil, err
	}
	return &types.Envelope{
		Status: types.StatusSuccess,
		Action: "review_pull_request",
		Data:   result,
	}, nil
}

// repoFrom picks the repository out of the message, falling back to the
// configured default.
func (a *Agent) repoFrom(message string) string {
	if repo := extractRepo(message); repo != "" {
		return repo
	}
	return a.defaultRepo
}

// extractRepo returns the first whitespace-separated token that looks like
// an owner/repo reference. URLs do not qualify.
func extractRepo(message string) string {
	for _, token := range strings.Fields(message) {
		if strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") {
			continue
		}
		if strings.Contains(token, "/") {
			return token
		}
	}
	return ""
}

// extractPRNumber returns the value of the first #-prefixed all-digit token.
func extractPRNumber(message string) (int, bool) {
	for _, token := range strings.Fields(message) {
		digits, ok := strings.CutPrefix(token, "#")
		if !ok || digits == "" || !allDigits(digits) {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
