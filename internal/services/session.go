package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mentora-app/mentora-backend/internal/clients/assistant"
	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

// RunError is a failed run execution. Transient errors are worth exactly one
// retry at the call site; fatal ones are not. Either way the turn is never
// billed.
type RunError struct {
	Transient bool
	Err       error
}

func (e *RunError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("run error (%s): %v", kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

func newRunError(err error) *RunError {
	return &RunError{Transient: assistant.IsTransient(err), Err: err}
}

// IsTransientRunError reports whether err is a RunError marked transient.
func IsTransientRunError(err error) bool {
	var re *RunError
	return asRunError(err, &re) && re.Transient
}

func asRunError(err error, target **RunError) bool {
	for err != nil {
		if re, ok := err.(*RunError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// SessionService drives the external thread/run backend through one turn's
// required request sequence.
type SessionService interface {
	// StartOrResumeThread retrieves the thread when an id is given,
	// otherwise creates a fresh one.
	StartOrResumeThread(ctx context.Context, existingThreadID string) (assistant.ThreadHandle, error)

	// SubmitGuidance injects the personalization context as a specially
	// tagged preamble message. No-op when contextText is empty. The backend
	// does not accept system-role messages on a live thread, so the payload
	// travels as a user-role message with guidance metadata.
	SubmitGuidance(ctx context.Context, threadID, contextText string) error

	SubmitUserMessage(ctx context.Context, threadID, text string) error

	// RunToCompletion starts a run and polls it to a terminal state,
	// yielding between polls. It bounds the wait, propagates cancellation
	// with a best-effort backend cancel, and treats empty replies as
	// failures.
	RunToCompletion(ctx context.Context, threadID string, cfg assistant.RunConfig) (string, error)

	// EnsureAssistant resolves the assistant configuration for runs.
	EnsureAssistant(ctx context.Context) (string, error)
}

// Local bookkeeping around the backend's opaque run state, logged for
// debugging a turn's progress.
const (
	stateThreadReady      = "THREAD_READY"
	stateGuidanceSent     = "GUIDANCE_SENT"
	stateMessageSubmitted = "MESSAGE_SUBMITTED"
	stateRunStarted       = "RUN_STARTED"
	stateRunCompleted     = "RUN_COMPLETED"
	stateRunFailed        = "RUN_FAILED"
	stateRunTimedOut      = "RUN_TIMED_OUT"
)

type SessionConfig struct {
	PollInterval     time.Duration
	MaxWait          time.Duration
	BaseInstructions string
}

type sessionService struct {
	log    *logger.Logger
	client assistant.Client
	cfg    SessionConfig
}

func NewSessionService(baseLog *logger.Logger, client assistant.Client, cfg SessionConfig) SessionService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 750 * time.Millisecond
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 90 * time.Second
	}
	if cfg.BaseInstructions == "" {
		cfg.BaseInstructions = "You are a helpful, encouraging mentor. Answer concisely and accurately."
	}
	return &sessionService{
		log:    baseLog.With("service", "SessionService"),
		client: client,
		cfg:    cfg,
	}
}

func (s *sessionService) StartOrResumeThread(ctx context.Context, existingThreadID string) (assistant.ThreadHandle, error) {
	var (
		handle assistant.ThreadHandle
		err    error
	)
	if existingThreadID != "" {
		handle, err = s.client.RetrieveThread(ctx, existingThreadID)
	} else {
		handle, err = s.client.CreateThread(ctx)
	}
	if err != nil {
		return assistant.ThreadHandle{}, newRunError(err)
	}
	s.log.Debug("session state", "state", stateThreadReady, "remote_thread_id", handle.ID, "resumed", existingThreadID != "")
	return handle, nil
}

func (s *sessionService) SubmitGuidance(ctx context.Context, threadID, contextText string) error {
	if contextText == "" {
		return nil
	}
	_, err := s.client.AppendMessage(ctx, threadID, types.RoleUser, contextText, map[string]any{
		"kind": "guidance",
	})
	if err != nil {
		return newRunError(err)
	}
	s.log.Debug("session state", "state", stateGuidanceSent, "remote_thread_id", threadID)
	return nil
}

func (s *sessionService) SubmitUserMessage(ctx context.Context, threadID, text string) error {
	if _, err := s.client.AppendMessage(ctx, threadID, types.RoleUser, text, nil); err != nil {
		return newRunError(err)
	}
	s.log.Debug("session state", "state", stateMessageSubmitted, "remote_thread_id", threadID)
	return nil
}

func (s *sessionService) EnsureAssistant(ctx context.Context) (string, error) {
	id, err := s.client.EnsureAssistant(ctx, s.cfg.BaseInstructions)
	if err != nil {
		return "", newRunError(err)
	}
	return id, nil
}

func (s *sessionService) RunToCompletion(ctx context.Context, threadID string, cfg assistant.RunConfig) (string, error) {
	runID, err := s.client.CreateRun(ctx, threadID, cfg)
	if err != nil {
		return "", newRunError(err)
	}
	s.log.Debug("session state", "state", stateRunStarted, "remote_thread_id", threadID, "run_id", runID)

	deadline := time.Now().Add(s.cfg.MaxWait)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Best-effort cancel so the backend does not keep burning tokens
			// for a turn nobody is waiting on. The turn counts as failed for
			// billing whether or not the cancel lands.
			s.cancelRun(threadID, runID)
			return "", &RunError{Transient: false, Err: ctx.Err()}
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			s.cancelRun(threadID, runID)
			s.log.Warn("session state", "state", stateRunTimedOut, "run_id", runID, "max_wait", s.cfg.MaxWait)
			return "", &RunError{Transient: true, Err: fmt.Errorf("run %s exceeded max wait %s", runID, s.cfg.MaxWait)}
		}

		status, err := s.client.GetRunStatus(ctx, threadID, runID)
		if err != nil {
			if assistant.IsTransient(err) {
				// A flaky poll is not a failed run; keep polling until the
				// deadline decides.
				s.log.Debug("run status poll failed, continuing", "run_id", runID, "error", err)
				continue
			}
			return "", newRunError(err)
		}

		switch status {
		case assistant.RunCompleted:
			s.log.Debug("session state", "state", stateRunCompleted, "run_id", runID)
			return s.extractText(ctx, threadID, runID)
		case assistant.RunFailed:
			s.log.Warn("session state", "state", stateRunFailed, "run_id", runID)
			return "", &RunError{Transient: false, Err: fmt.Errorf("run %s failed", runID)}
		case assistant.RunCancelled:
			return "", &RunError{Transient: false, Err: fmt.Errorf("run %s was cancelled", runID)}
		case assistant.RunExpired:
			return "", &RunError{Transient: true, Err: fmt.Errorf("run %s expired", runID)}
		default:
			// queued / in_progress / requires_action / cancelling: keep waiting.
		}
	}
}

func (s *sessionService) cancelRun(threadID, runID string) {
	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.CancelRun(cctx, threadID, runID); err != nil {
		s.log.Warn("best-effort run cancel failed", "run_id", runID, "error", err)
	}
}

// extractText is the single parsing boundary for backend replies: the first
// assistant message belonging to the run with a non-empty text block wins. A
// completed run with no usable text is a failure, so empty replies are never
// billed.
func (s *sessionService) extractText(ctx context.Context, threadID, runID string) (string, error) {
	msgs, err := s.client.ListMessages(ctx, threadID, 20)
	if err != nil {
		return "", newRunError(err)
	}
	for _, m := range msgs {
		if m.Role != types.RoleAssistant {
			continue
		}
		if m.RunID != "" && m.RunID != runID {
			continue
		}
		if m.Text != "" {
			return m.Text, nil
		}
	}
	return "", &RunError{Transient: false, Err: apperrors.ErrEmptyResponse}
}
