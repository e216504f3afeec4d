package slack

import (
	"context"
	"errors"
	"strings"
	"testing"

	slackapi "github.com/slack-go/slack"
)

type fakeAPI struct {
	replies     []slackapi.Message
	repliesErr  error
	lastReplies *slackapi.GetConversationRepliesParameters

	history     []slackapi.Message
	historyErr  error
	lastHistory *slackapi.GetConversationHistoryParameters

	postChannel string
	postTS      string
	postErr     error
	postCalls   int
	lastOptions int
}

func (f *fakeAPI) GetConversationRepliesContext(ctx context.Context, params *slackapi.GetConversationRepliesParameters) ([]slackapi.Message, bool, string, error) {
	f.lastReplies = params
	if f.repliesErr != nil {
		return nil, false, "", f.repliesErr
	}
	return f.replies, false, "", nil
}

func (f *fakeAPI) GetConversationHistoryContext(ctx context.Context, params *slackapi.GetConversationHistoryParameters) (*slackapi.GetConversationHistoryResponse, error) {
	f.lastHistory = params
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return &slackapi.GetConversationHistoryResponse{Messages: f.history}, nil
}

func (f *fakeAPI) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	f.postCalls++
	f.postChannel = channelID
	f.lastOptions = len(options)
	if f.postErr != nil {
		return "", "", f.postErr
	}
	return channelID, f.postTS, nil
}

func msg(user, text string) slackapi.Message {
	return slackapi.Message{Msg: slackapi.Msg{User: user, Text: text}}
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing bot token")
	}
	client, err := New(Config{BotToken: "xoxb-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client == nil {
		t.Fatal("expected client")
	}
}

func TestGetThreadMessages(t *testing.T) {
	api := &fakeAPI{replies: []slackapi.Message{
		msg("alice", "first"),
		msg("bob", "second"),
		msg("carol", "third"),
	}}
	client := &Client{api: api}

	msgs, err := client.GetThreadMessages(context.Background(), "C123", "1700000000.000100")
	if err != nil {
		t.Fatalf("GetThreadMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	// Source order must be preserved.
	if msgs[0].Text != "first" || msgs[2].Text != "third" {
		t.Errorf("messages out of order: %v", msgs)
	}
	if api.lastReplies.ChannelID != "C123" || api.lastReplies.Timestamp != "1700000000.000100" {
		t.Errorf("unexpected reply params: %+v", api.lastReplies)
	}
}

func TestGetThreadMessages_WrapsError(t *testing.T) {
	api := &fakeAPI{repliesErr: errors.New("channel_not_found")}
	client := &Client{api: api}

	_, err := client.GetThreadMessages(context.Background(), "C404", "1.2")
	if err == nil || !strings.Contains(err.Error(), "fetching thread messages") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestGetChannelHistory(t *testing.T) {
	api := &fakeAPI{history: []slackapi.Message{msg("alice", "deploy done"), msg("bob", "thanks")}}
	client := &Client{api: api}

	msgs, err := client.GetChannelHistory(context.Background(), "C123", 50)
	if err != nil {
		t.Fatalf("GetChannelHistory: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if api.lastHistory.ChannelID != "C123" || api.lastHistory.Limit != 50 {
		t.Errorf("unexpected history params: %+v", api.lastHistory)
	}
}

func TestPostMessage(t *testing.T) {
	api := &fakeAPI{postTS: "1700000001.000200"}
	client := &Client{api: api}

	posted, err := client.PostMessage(context.Background(), "C123", "hello", "")
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if posted.Channel != "C123" || posted.TS != "1700000001.000200" {
		t.Errorf("unexpected posted message: %+v", posted)
	}
	if api.lastOptions != 1 {
		t.Errorf("expected 1 message option without thread ts, got %d", api.lastOptions)
	}

	if _, err := client.PostMessage(context.Background(), "C123", "hello again", "1700000000.000100"); err != nil {
		t.Fatalf("PostMessage threaded: %v", err)
	}
	if api.lastOptions != 2 {
		t.Errorf("expected 2 message options with thread ts, got %d", api.lastOptions)
	}
}

func TestPostMessage_WrapsError(t *testing.T) {
	api := &fakeAPI{postErr: errors.New("not_in_channel")}
	client := &Client{api: api}

	_, err := client.PostMessage(context.Background(), "C123", "hello", "")
	if err == nil || !strings.Contains(err.Error(), "posting message") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
