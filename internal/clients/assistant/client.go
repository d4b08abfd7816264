package assistant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

// RunStatus mirrors the backend's run lifecycle states.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunExpired        RunStatus = "expired"
)

// Terminal reports whether the run can no longer make progress.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCancelled, RunFailed, RunCompleted, RunExpired:
		return true
	}
	return false
}

// ThreadHandle identifies a server-side conversation container.
type ThreadHandle struct {
	ID        string
	CreatedAt time.Time
}

// BackendMessage is one message as stored by the backend.
type BackendMessage struct {
	ID        string
	Role      string
	Text      string
	RunID     string
	CreatedAt time.Time
}

// RunConfig describes the assistant configuration for one run.
type RunConfig struct {
	AssistantID string
	Model       string
	// AdditionalInstructions carries the per-turn personalization context on
	// top of the assistant's base instructions.
	AdditionalInstructions string
}

// Client is the thread/run AI backend consumed by ConversationSession. The
// production implementation talks to the OpenAI Assistants API; tests
// substitute fakes.
type Client interface {
	CreateThread(ctx context.Context) (ThreadHandle, error)
	RetrieveThread(ctx context.Context, threadID string) (ThreadHandle, error)
	AppendMessage(ctx context.Context, threadID, role, text string, metadata map[string]any) (string, error)
	CreateRun(ctx context.Context, threadID string, cfg RunConfig) (string, error)
	GetRunStatus(ctx context.Context, threadID, runID string) (RunStatus, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	ListMessages(ctx context.Context, threadID string, limit int) ([]BackendMessage, error)

	// EnsureAssistant returns the configured assistant id, creating one with
	// the given base instructions when none is configured.
	EnsureAssistant(ctx context.Context, baseInstructions string) (string, error)
}

type client struct {
	log   *logger.Logger
	api   *openai.Client
	model string

	mu          sync.Mutex
	assistantID string
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	timeoutSec := 120
	if v := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	cfg.HTTPClient = &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o"
	}

	return &client{
		log:         log.With("service", "AssistantClient"),
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		assistantID: strings.TrimSpace(os.Getenv("OPENAI_ASSISTANT_ID")),
	}, nil
}

func (c *client) CreateThread(ctx context.Context) (ThreadHandle, error) {
	th, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return ThreadHandle{}, fmt.Errorf("create thread: %w", err)
	}
	return threadHandle(th), nil
}

func (c *client) RetrieveThread(ctx context.Context, threadID string) (ThreadHandle, error) {
	if threadID == "" {
		return ThreadHandle{}, fmt.Errorf("missing thread id")
	}
	th, err := c.api.RetrieveThread(ctx, threadID)
	if err != nil {
		return ThreadHandle{}, fmt.Errorf("retrieve thread %s: %w", threadID, err)
	}
	return threadHandle(th), nil
}

func (c *client) AppendMessage(ctx context.Context, threadID, role, text string, metadata map[string]any) (string, error) {
	msg, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:     role,
		Content:  text,
		Metadata: metadata,
	})
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	return msg.ID, nil
}

func (c *client) CreateRun(ctx context.Context, threadID string, cfg RunConfig) (string, error) {
	if cfg.AssistantID == "" {
		return "", fmt.Errorf("missing assistant id")
	}
	model := cfg.Model
	if model == "" {
		model = c.model
	}
	run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID:            cfg.AssistantID,
		Model:                  model,
		AdditionalInstructions: cfg.AdditionalInstructions,
	})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

func (c *client) GetRunStatus(ctx context.Context, threadID, runID string) (RunStatus, error) {
	run, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return "", fmt.Errorf("retrieve run %s: %w", runID, err)
	}
	return RunStatus(run.Status), nil
}

func (c *client) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := c.api.CancelRun(ctx, threadID, runID); err != nil {
		return fmt.Errorf("cancel run %s: %w", runID, err)
	}
	return nil
}

func (c *client) ListMessages(ctx context.Context, threadID string, limit int) ([]BackendMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	order := "desc"
	list, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]BackendMessage, 0, len(list.Messages))
	for _, m := range list.Messages {
		bm := BackendMessage{
			ID:        m.ID,
			Role:      m.Role,
			Text:      firstTextBlock(m),
			CreatedAt: time.Unix(int64(m.CreatedAt), 0).UTC(),
		}
		if m.RunID != nil {
			bm.RunID = *m.RunID
		}
		out = append(out, bm)
	}
	return out, nil
}

func (c *client) EnsureAssistant(ctx context.Context, baseInstructions string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assistantID != "" {
		return c.assistantID, nil
	}
	name := "Mentora Chat Assistant"
	created, err := c.api.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        c.model,
		Name:         &name,
		Instructions: &baseInstructions,
	})
	if err != nil {
		return "", fmt.Errorf("create assistant: %w", err)
	}
	c.assistantID = created.ID
	c.log.Info("created assistant", "assistant_id", created.ID, "model", c.model)
	return created.ID, nil
}

func threadHandle(th openai.Thread) ThreadHandle {
	return ThreadHandle{
		ID:        th.ID,
		CreatedAt: time.Unix(th.CreatedAt, 0).UTC(),
	}
}

// firstTextBlock prefers the first text-typed content block; non-text blocks
// (images, files) are ignored.
func firstTextBlock(m openai.Message) string {
	for _, part := range m.Content {
		if part.Type == "text" && part.Text != nil {
			return part.Text.Value
		}
	}
	return ""
}

// IsTransient classifies backend errors: rate limits, server errors and
// transport failures are worth one retry; everything else is fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
