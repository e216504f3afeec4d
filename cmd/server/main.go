package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/synapsehq/synapse/pkg/agent"
	"github.com/synapsehq/synapse/pkg/config"
	"github.com/synapsehq/synapse/pkg/github"
	"github.com/synapsehq/synapse/pkg/llm"
	"github.com/synapsehq/synapse/pkg/memory"
	"github.com/synapsehq/synapse/pkg/slack"
	"github.com/synapsehq/synapse/pkg/tools"
	"github.com/synapsehq/synapse/pkg/tracking"
)

type agentRequest struct {
	Message string `json:"message"`
}

func main() {
	addr := flag.String("addr", ":8000", "Listen address")
	flag.Parse()

	cfg := config.Load()

	tracker, err := tracking.NewFileTracker(tracking.FileTrackerConfig{
		Dir:        cfg.TrackingDir,
		Experiment: cfg.TrackingExperiment,
	})
	if err != nil {
		log.Fatalf("Failed to open usage tracker: %v", err)
	}
	defer tracker.Close()

	cache := memory.NewSummaryCache(memory.CacheConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	})

	llmClient, err := llm.New(context.Background(), llm.Config{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Tracker:     tracker,
	})
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}

	slackClient, err := slack.New(slack.Config{BotToken: cfg.SlackBotToken})
	if err != nil {
		log.Fatalf("Failed to create Slack client: %v", err)
	}

	githubClient, err := github.New(github.Config{Token: cfg.GitHubToken})
	if err != nil {
		log.Fatalf("Failed to create GitHub client: %v", err)
	}

	messaging := tools.NewMessagingToolset(slackClient, llmClient, cache, tracker)
	issues := tools.NewIssueToolset(githubClient, llmClient, tracker, cfg.DefaultLabels)
	router := agent.New(agent.Config{DefaultRepo: cfg.DefaultRepo}, messaging, issues, llmClient, tracker)

	mux := http.NewServeMux()

	mux.HandleFunc("/agent", withJSON(func(w http.ResponseWriter, r *http.Request) (any, int, error) {
		if r.Method != http.MethodPost {
			return nil, http.StatusMethodNotAllowed, errors.New("method not allowed")
		}
		var req agentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid request body")
		}
		if strings.TrimSpace(req.Message) == "" {
			return nil, http.StatusBadRequest, errors.New("message is required")
		}
		return map[string]any{
			"response": router.Handle(r.Context(), req.Message),
		}, http.StatusOK, nil
	}))

	mux.HandleFunc("/api/health", withJSON(func(w http.ResponseWriter, r *http.Request) (any, int, error) {
		if r.Method != http.MethodGet {
			return nil, http.StatusMethodNotAllowed, errors.New("method not allowed")
		}
		return map[string]any{"status": "ok"}, http.StatusOK, nil
	}))

	mux.HandleFunc("/api/stats", withJSON(func(w http.ResponseWriter, r *http.Request) (any, int, error) {
		if r.Method != http.MethodGet {
			return nil, http.StatusMethodNotAllowed, errors.New("method not allowed")
		}
		return tracker.Stats(), http.StatusOK, nil
	}))

	log.Printf("Agent server listening on %s (model %s)", *addr, llmClient.Model())
	if err := http.ListenAndServe(*addr, logRequest(mux)); err != nil {
		log.Fatal(err)
	}
}

func withJSON(handler func(http.ResponseWriter, *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, status, err := handler(w, r)
		if err != nil {
			writeJSON(w, status, map[string]any{
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, status, payload)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
