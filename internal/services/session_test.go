package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mentora-app/mentora-backend/internal/clients/assistant"
	"github.com/mentora-app/mentora-backend/internal/data/repos/testutil"
	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
)

// fakeBackend scripts the thread/run API: each GetRunStatus pops the next
// status, and a completed run surfaces replyText as the run's message.
type fakeBackend struct {
	mu sync.Mutex

	threads   map[string][]assistant.BackendMessage
	statuses  []assistant.RunStatus
	replyText string

	createRunErr   error
	retrieveErr    error
	cancelledRuns  []string
	messagesPosted int
	runsCreated    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{threads: map[string][]assistant.BackendMessage{}}
}

func (f *fakeBackend) CreateThread(ctx context.Context) (assistant.ThreadHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("thread_%d", len(f.threads)+1)
	f.threads[id] = nil
	return assistant.ThreadHandle{ID: id, CreatedAt: time.Now()}, nil
}

func (f *fakeBackend) RetrieveThread(ctx context.Context, threadID string) (assistant.ThreadHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retrieveErr != nil {
		return assistant.ThreadHandle{}, f.retrieveErr
	}
	if _, ok := f.threads[threadID]; !ok {
		f.threads[threadID] = nil
	}
	return assistant.ThreadHandle{ID: threadID, CreatedAt: time.Now()}, nil
}

func (f *fakeBackend) AppendMessage(ctx context.Context, threadID, role, text string, metadata map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messagesPosted++
	msg := assistant.BackendMessage{
		ID:   fmt.Sprintf("msg_%d", f.messagesPosted),
		Role: role,
		Text: text,
	}
	f.threads[threadID] = append(f.threads[threadID], msg)
	return msg.ID, nil
}

func (f *fakeBackend) CreateRun(ctx context.Context, threadID string, cfg assistant.RunConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createRunErr != nil {
		err := f.createRunErr
		f.createRunErr = nil
		return "", err
	}
	f.runsCreated++
	return fmt.Sprintf("run_%d", f.runsCreated), nil
}

func (f *fakeBackend) GetRunStatus(ctx context.Context, threadID, runID string) (assistant.RunStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return assistant.RunInProgress, nil
	}
	next := f.statuses[0]
	f.statuses = f.statuses[1:]
	if next == assistant.RunCompleted && f.replyText != "" {
		f.threads[threadID] = append(f.threads[threadID], assistant.BackendMessage{
			ID:    "msg_reply",
			Role:  types.RoleAssistant,
			Text:  f.replyText,
			RunID: runID,
		})
	}
	return next, nil
}

func (f *fakeBackend) CancelRun(ctx context.Context, threadID, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelledRuns = append(f.cancelledRuns, runID)
	return nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, threadID string, limit int) ([]assistant.BackendMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.threads[threadID]
	// Newest first, matching the production client.
	out := make([]assistant.BackendMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (f *fakeBackend) EnsureAssistant(ctx context.Context, baseInstructions string) (string, error) {
	return "asst_test", nil
}

func newSessionForTest(t *testing.T, backend assistant.Client) SessionService {
	t.Helper()
	return NewSessionService(testutil.Logger(t), backend, SessionConfig{
		PollInterval: time.Millisecond,
		MaxWait:      250 * time.Millisecond,
	})
}

func TestSession_StartOrResumeThread(t *testing.T) {
	backend := newFakeBackend()
	svc := newSessionForTest(t, backend)
	ctx := context.Background()

	fresh, err := svc.StartOrResumeThread(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, fresh.ID)

	resumed, err := svc.StartOrResumeThread(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, fresh.ID, resumed.ID)
}

func TestSession_SubmitGuidanceEmptyIsNoop(t *testing.T) {
	backend := newFakeBackend()
	svc := newSessionForTest(t, backend)
	ctx := context.Background()

	th, err := svc.StartOrResumeThread(ctx, "")
	require.NoError(t, err)

	require.NoError(t, svc.SubmitGuidance(ctx, th.ID, ""))
	require.Zero(t, backend.messagesPosted)

	require.NoError(t, svc.SubmitGuidance(ctx, th.ID, "the user likes go"))
	require.Equal(t, 1, backend.messagesPosted)
}

func TestSession_RunToCompletionReturnsReply(t *testing.T) {
	backend := newFakeBackend()
	backend.statuses = []assistant.RunStatus{assistant.RunQueued, assistant.RunInProgress, assistant.RunCompleted}
	backend.replyText = "Here is your answer."
	svc := newSessionForTest(t, backend)
	ctx := context.Background()

	th, err := svc.StartOrResumeThread(ctx, "")
	require.NoError(t, err)
	require.NoError(t, svc.SubmitUserMessage(ctx, th.ID, "question"))

	reply, err := svc.RunToCompletion(ctx, th.ID, assistant.RunConfig{AssistantID: "asst_test"})
	require.NoError(t, err)
	require.Equal(t, "Here is your answer.", reply)
}

func TestSession_RunFailureIsFatal(t *testing.T) {
	backend := newFakeBackend()
	backend.statuses = []assistant.RunStatus{assistant.RunFailed}
	svc := newSessionForTest(t, backend)
	ctx := context.Background()

	th, err := svc.StartOrResumeThread(ctx, "")
	require.NoError(t, err)

	_, err = svc.RunToCompletion(ctx, th.ID, assistant.RunConfig{AssistantID: "asst_test"})
	require.Error(t, err)
	require.False(t, IsTransientRunError(err))
}

func TestSession_RunExpiryIsTransient(t *testing.T) {
	backend := newFakeBackend()
	backend.statuses = []assistant.RunStatus{assistant.RunExpired}
	svc := newSessionForTest(t, backend)
	ctx := context.Background()

	th, err := svc.StartOrResumeThread(ctx, "")
	require.NoError(t, err)

	_, err = svc.RunToCompletion(ctx, th.ID, assistant.RunConfig{AssistantID: "asst_test"})
	require.Error(t, err)
	require.True(t, IsTransientRunError(err))
}

func TestSession_RunTimeoutCancelsAndIsTransient(t *testing.T) {
	backend := newFakeBackend() // never leaves in_progress
	svc := newSessionForTest(t, backend)
	ctx := context.Background()

	th, err := svc.StartOrResumeThread(ctx, "")
	require.NoError(t, err)

	_, err = svc.RunToCompletion(ctx, th.ID, assistant.RunConfig{AssistantID: "asst_test"})
	require.Error(t, err)
	require.True(t, IsTransientRunError(err))
	require.Len(t, backend.cancelledRuns, 1)
}

func TestSession_ContextCancelStopsRun(t *testing.T) {
	backend := newFakeBackend()
	svc := newSessionForTest(t, backend)
	ctx, cancel := context.WithCancel(context.Background())

	th, err := svc.StartOrResumeThread(ctx, "")
	require.NoError(t, err)

	cancel()
	_, err = svc.RunToCompletion(ctx, th.ID, assistant.RunConfig{AssistantID: "asst_test"})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, backend.cancelledRuns, 1)
}

func TestSession_EmptyReplyIsFatal(t *testing.T) {
	backend := newFakeBackend()
	backend.statuses = []assistant.RunStatus{assistant.RunCompleted}
	// replyText empty: the run completes but produces no message.
	svc := newSessionForTest(t, backend)
	ctx := context.Background()

	th, err := svc.StartOrResumeThread(ctx, "")
	require.NoError(t, err)

	_, err = svc.RunToCompletion(ctx, th.ID, assistant.RunConfig{AssistantID: "asst_test"})
	require.ErrorIs(t, err, apperrors.ErrEmptyResponse)
	require.False(t, IsTransientRunError(err))
}

func TestIsTransientRunError(t *testing.T) {
	require.False(t, IsTransientRunError(nil))
	require.False(t, IsTransientRunError(errors.New("plain")))
	require.False(t, IsTransientRunError(&RunError{Transient: false, Err: errors.New("x")}))
	require.True(t, IsTransientRunError(&RunError{Transient: true, Err: errors.New("x")}))
	require.True(t, IsTransientRunError(fmt.Errorf("wrapped: %w", &RunError{Transient: true, Err: errors.New("x")})))
}
