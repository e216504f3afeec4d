package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/synapsehq/synapse/pkg/types"
)

type fakeMessaging struct {
	ops     []string
	summary *types.ThreadSummary
	sumErr  error
	postErr error

	lastChannel string
	lastTS      string
	lastPosted  string
}

func (f *fakeMessaging) SummarizeThread(ctx context.Context, channel, threadTS, model string) (*types.ThreadSummary, error) {
	f.ops = append(f.ops, "summarize")
	f.lastChannel, f.lastTS = channel, threadTS
	if f.sumErr != nil {
		return nil, f.sumErr
	}
	return f.summary, nil
}

func (f *fakeMessaging) PostSummary(ctx context.Context, channel, threadTS, summary string) (*types.PostedMessage, error) {
	f.ops = append(f.ops, "post")
	f.lastPosted = summary
	if f.postErr != nil {
		return nil, f.postErr
	}
	return &types.PostedMessage{Channel: channel, TS: "1700000002.000300"}, nil
}

type fakeIssues struct {
	triageCalls int
	triageErr   error
	lastRepo    string
	lastState   string

	reviewCalls int
	reviewErr   error
	lastPR      int
}

func (f *fakeIssues) TriageIssues(ctx context.Context, repo, state string) (*types.TriageResult, error) {
	f.triageCalls++
	f.lastRepo, f.lastState = repo, state
	if f.triageErr != nil {
		return nil, f.triageErr
	}
	return &types.TriageResult{Status: types.StatusSuccess, IssuesTriaged: 1}, nil
}

func (f *fakeIssues) ReviewPullRequest(ctx context.Context, repo string, prNumber int) (*types.ReviewResult, error) {
	f.reviewCalls++
	f.lastRepo, f.lastPR = repo, prNumber
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	return &types.ReviewResult{Status: types.StatusSuccess, PRNumber: prNumber}, nil
}

type fakeExtractor struct {
	info *types.ThreadInfo
	err  error
}

func (f *fakeExtractor) ExtractThreadInfo(ctx context.Context, message string) (*types.ThreadInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

type routerTracker struct {
	names    []string
	statuses []string
}

func (r *routerTracker) LogToolUsage(name string, _, _ map[string]any, _ time.Duration, status string) {
	r.names = append(r.names, name)
	r.statuses = append(r.statuses, status)
}

func (r *routerTracker) LogLLMUsage(string, string, string, int, time.Duration) {}

type fixture struct {
	agent     *Agent
	messaging *fakeMessaging
	issues    *fakeIssues
	extractor *fakeExtractor
	tracker   *routerTracker
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		messaging: &fakeMessaging{summary: &types.ThreadSummary{Summary: "the summary"}},
		issues:    &fakeIssues{},
		extractor: &fakeExtractor{info: &types.ThreadInfo{Channel: "C123", ThreadTS: "1700000000.000100"}},
		tracker:   &routerTracker{},
	}
	f.agent = New(cfg, f.messaging, f.issues, f.extractor, f.tracker)
	return f
}

func TestHandle_SummarizeThread(t *testing.T) {
	f := newFixture(Config{})

	env := f.agent.Handle(context.Background(), "Please Summarize the SLACK thread 1700000000.000100 in C123")

	if env.Status != "success" || env.Action != "summarize_thread" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Data != f.messaging.summary {
		t.Error("envelope should carry the summary")
	}

	// Summarize then post, exactly once each.
	if len(f.messaging.ops) != 2 || f.messaging.ops[0] != "summarize" || f.messaging.ops[1] != "post" {
		t.Errorf("unexpected op order: %v", f.messaging.ops)
	}
	if f.messaging.lastChannel != "C123" || f.messaging.lastTS != "1700000000.000100" {
		t.Errorf("extracted coordinates not used: %s %s", f.messaging.lastChannel, f.messaging.lastTS)
	}
	if f.messaging.lastPosted != "the summary" {
		t.Errorf("posted text should be the summary, got %q", f.messaging.lastPosted)
	}
	if len(f.tracker.names) != 0 {
		t.Errorf("successful handling should not log at the router level, got %v", f.tracker.names)
	}
}

func TestHandle_SummarizeThread_MissingFields(t *testing.T) {
	f := newFixture(Config{})
	f.extractor.info = &types.ThreadInfo{Channel: "", ThreadTS: ""}

	env := f.agent.Handle(context.Background(), "summarize the slack thread")

	if env.Status != "error" || !strings.Contains(env.Message, "Could not determine") {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if len(f.messaging.ops) != 0 {
		t.Errorf("no tool calls expected, got %v", f.messaging.ops)
	}
	if len(f.tracker.names) != 0 {
		t.Errorf("user-input errors must not be tracked, got %v", f.tracker.names)
	}
}

func TestHandle_SummarizeThread_ExtractorFailure(t *testing.T) {
	f := newFixture(Config{})
	f.extractor.err = errors.New("model unavailable")

	env := f.agent.Handle(context.Background(), "summarize the slack thread")

	if env.Status != "error" || !strings.HasPrefix(env.Message, "Error processing request: ") {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if len(f.tracker.names) != 1 || f.tracker.names[0] != "agent_handle" {
		t.Fatalf("expected one agent_handle record, got %v", f.tracker.names)
	}
	if f.tracker.statuses[0] != "error" {
		t.Errorf("expected error status, got %s", f.tracker.statuses[0])
	}
}

func TestHandle_Fallback(t *testing.T) {
	f := newFixture(Config{DefaultRepo: "synapsehq/synapse"})

	env := f.agent.Handle(context.Background(), "what's the weather like today?")

	if env.Status != "error" {
		t.Fatalf("unexpected status: %s", env.Status)
	}
	if env.Message != "I'm not sure what to do with that request yet." {
		t.Errorf("unexpected fallback message: %q", env.Message)
	}
	if len(f.messaging.ops) != 0 || f.issues.triageCalls != 0 || f.issues.reviewCalls != 0 {
		t.Error("fallback must not touch any tool group")
	}
	if len(f.tracker.names) != 0 {
		t.Errorf("fallback must not be tracked, got %v", f.tracker.names)
	}
}

func TestHandle_ReviewPullRequest(t *testing.T) {
	f := newFixture(Config{})

	env := f.agent.Handle(context.Background(), "review pr #42 in synapsehq/synapse")

	if env.Status != "success" || env.Action != "review_pull_request" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if f.issues.reviewCalls != 1 {
		t.Fatalf("expected 1 review call, got %d", f.issues.reviewCalls)
	}
	if f.issues.lastRepo != "synapsehq/synapse" || f.issues.lastPR != 42 {
		t.Errorf("unexpected review args: %s #%d", f.issues.lastRepo, f.issues.lastPR)
	}
}

func TestHandle_ReviewPullRequest_MissingNumber(t *testing.T) {
	f := newFixture(Config{})

	env := f.agent.Handle(context.Background(), "review the pr in synapsehq/synapse")

	if env.Status != "error" || !strings.Contains(env.Message, "pull request number") {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if f.issues.reviewCalls != 0 {
		t.Error("review must not be called without a PR number")
	}
}

func TestHandle_TriageIssues(t *testing.T) {
	f := newFixture(Config{})

	env := f.agent.Handle(context.Background(), "triage the issues in synapsehq/synapse")

	if env.Status != "success" || env.Action != "triage_issues" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if f.issues.triageCalls != 1 || f.issues.lastRepo != "synapsehq/synapse" {
		t.Errorf("unexpected triage args: %d calls, repo %s", f.issues.triageCalls, f.issues.lastRepo)
	}
	if f.issues.lastState != "open" {
		t.Errorf("expected open state, got %s", f.issues.lastState)
	}
}

func TestHandle_TriageIssues_DefaultRepo(t *testing.T) {
	f := newFixture(Config{DefaultRepo: "synapsehq/synapse"})

	env := f.agent.Handle(context.Background(), "please triage my issues")

	if env.Status != "success" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if f.issues.lastRepo != "synapsehq/synapse" {
		t.Errorf("expected default repo, got %s", f.issues.lastRepo)
	}
}

func TestHandle_TriageIssues_NoRepo(t *testing.T) {
	f := newFixture(Config{})

	env := f.agent.Handle(context.Background(), "triage my issues")

	if env.Status != "error" || !strings.Contains(env.Message, "owner/repo") {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if f.issues.triageCalls != 0 {
		t.Error("triage must not be called without a repo")
	}
}

func TestHandle_GenericGitHubRoutesToTriage(t *testing.T) {
	f := newFixture(Config{})

	env := f.agent.Handle(context.Background(), "take a look at github synapsehq/synapse")

	if env.Status != "success" || env.Action != "triage_issues" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if f.issues.triageCalls != 1 {
		t.Errorf("expected generic github to trigger triage, got %d calls", f.issues.triageCalls)
	}
}

func TestHandle_TableOrder(t *testing.T) {
	f := newFixture(Config{DefaultRepo: "synapsehq/synapse"})

	// Monitor matches before the generic github entry.
	env := f.agent.Handle(context.Background(), "monitor the slack channel and file github issues")

	if env.Status != "not_implemented" {
		t.Fatalf("expected not_implemented, got %+v", env)
	}
	if env.Message != "Channel monitoring not yet implemented" {
		t.Errorf("unexpected message: %q", env.Message)
	}
	if f.issues.triageCalls != 0 {
		t.Error("monitor must win over the generic github entry")
	}
}

func TestHandle_DownstreamErrorEnvelope(t *testing.T) {
	f := newFixture(Config{DefaultRepo: "synapsehq/synapse"})
	f.issues.triageErr = errors.New("listing issues: boom")

	env := f.agent.Handle(context.Background(), "triage my issues")

	if env.Status != "error" {
		t.Fatalf("unexpected status: %s", env.Status)
	}
	if env.Message != "Error processing request: listing issues: boom" {
		t.Errorf("unexpected message: %q", env.Message)
	}
	if len(f.tracker.names) != 1 || f.tracker.names[0] != "agent_handle" {
		t.Errorf("expected one agent_handle record, got %v", f.tracker.names)
	}
}

func TestExtractRepo(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"triage synapsehq/synapse now", "synapsehq/synapse"},
		{"triage https://github.com/synapsehq/synapse now", ""},
		{"triage http://example.com/x", ""},
		{"see owner/repo and other/things", "owner/repo"},
		{"no repo here", ""},
	}
	for _, tc := range cases {
		if got := extractRepo(tc.message); got != tc.want {
			t.Errorf("extractRepo(%q): expected %q, got %q", tc.message, tc.want, got)
		}
	}
}

func TestExtractPRNumber(t *testing.T) {
	cases := []struct {
		message string
		want    int
		ok      bool
	}{
		{"review pr #42", 42, true},
		{"review pr #42 and #7", 42, true},
		{"review pr 42", 0, false},
		{"review pr #x42", 0, false},
		{"review pr #", 0, false},
		{"channel #general then #12", 12, true},
	}
	for _, tc := range cases {
		got, ok := extractPRNumber(tc.message)
		if got != tc.want || ok != tc.ok {
			t.Errorf("extractPRNumber(%q): expected (%d, %v), got (%d, %v)", tc.message, tc.want, tc.ok, got, ok)
		}
	}
}
