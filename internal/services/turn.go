package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mentora-app/mentora-backend/internal/clients/assistant"
	redisclient "github.com/mentora-app/mentora-backend/internal/clients/redis"
	"github.com/mentora-app/mentora-backend/internal/data/repos"
	types "github.com/mentora-app/mentora-backend/internal/domain"
	"github.com/mentora-app/mentora-backend/internal/pkg/apperrors"
	"github.com/mentora-app/mentora-backend/internal/pkg/dbctx"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

// TurnOutcome is the business result of a chat turn.
type TurnOutcome string

const (
	TurnOutcomeOK                  TurnOutcome = "ok"
	TurnOutcomeInsufficientCredits TurnOutcome = "insufficient_credits"
	TurnOutcomeSigninRequired      TurnOutcome = "signin_required"
	TurnOutcomeFailed              TurnOutcome = "failed"
)

// TurnInput is one user chat turn. UserID is nil for anonymous callers;
// ThreadID is nil to start a new conversation.
type TurnInput struct {
	UserID        *uuid.UUID
	ThreadID      *uuid.UUID
	Text          string
	AttachmentURL string
}

type TurnResult struct {
	Outcome  TurnOutcome
	Thread   *types.ConversationThread
	Messages []*types.ChatMessage

	// NewBalance is set after a billed turn. Nil for anonymous turns and
	// when settlement failed.
	NewBalance *int64

	// BillingWarning is set when the reply was delivered but the debit
	// could not be recorded.
	BillingWarning string
}

// TurnService runs one complete chat turn: admission, generation against the
// AI backend, local delivery, then settlement. Delivery strictly precedes
// settlement so a storage hiccup at the very end can cost the house a credit
// but never costs the user a paid-for reply.
type TurnService interface {
	ExecuteTurn(dbc dbctx.Context, in TurnInput) (*TurnResult, error)
}

type TurnConfig struct {
	// LockTTL bounds how long a crashed turn can keep its thread locked.
	LockTTL time.Duration

	// AddressProbability is the chance a multi-sentence reply gets the
	// user's name spliced into its first sentence.
	AddressProbability float64
}

const signinPrompt = "I don't have a personal profile for you because you're not signed in. " +
	"Sign in and I can remember your name, interests, and preferred topics across conversations."

const apologyPrompt = "I'm sorry, I wasn't able to come up with a response just now. " +
	"Please try again in a moment. You have not been charged for this message."

type turnService struct {
	log             *logger.Logger
	ledger          LedgerService
	personalization PersonalizationService
	session         SessionService
	transcript      TranscriptService
	users           repos.UserRepo
	locker          redisclient.ThreadLocker
	cfg             TurnConfig
}

// NewTurnService wires the orchestrator. locker may be nil, in which case
// per-thread serialization is skipped (single-instance deployments).
func NewTurnService(
	baseLog *logger.Logger,
	ledger LedgerService,
	personalization PersonalizationService,
	session SessionService,
	transcript TranscriptService,
	users repos.UserRepo,
	locker redisclient.ThreadLocker,
	cfg TurnConfig,
) TurnService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.AddressProbability < 0 || cfg.AddressProbability > 1 {
		cfg.AddressProbability = 0.3
	}
	return &turnService{
		log:             baseLog.With("service", "TurnService"),
		ledger:          ledger,
		personalization: personalization,
		session:         session,
		transcript:      transcript,
		users:           users,
		locker:          locker,
		cfg:             cfg,
	}
}

func (s *turnService) ExecuteTurn(dbc dbctx.Context, in TurnInput) (*TurnResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.AttachmentURL == "" {
		return nil, fmt.Errorf("empty turn: %w", apperrors.ErrInvalidArgument)
	}
	ctx := dbc.Ctx

	// Existing threads are loaded and locked up front. A brand-new thread is
	// not persisted until the turn has passed admission, so a refused turn
	// leaves nothing behind.
	var thread *types.ConversationThread
	if in.ThreadID != nil {
		var err error
		thread, err = s.loadOwnedThread(dbc, in)
		if err != nil {
			return nil, err
		}
		if s.locker != nil {
			release, ok, lockErr := s.locker.Acquire(ctx, thread.ID.String(), s.cfg.LockTTL)
			if lockErr != nil {
				// Lock service trouble degrades to unserialized turns
				// rather than taking chat down.
				s.log.Warn("thread lock unavailable, proceeding unlocked", "thread_id", thread.ID, "error", lockErr)
			} else if !ok {
				return nil, fmt.Errorf("thread %s: %w", thread.ID, apperrors.ErrTurnInProgress)
			} else {
				defer release()
			}
		}
	}

	cost, txType := turnCost(in.AttachmentURL)

	// Admission. The precheck is advisory; the authoritative guard is the
	// conditional debit at settlement.
	if in.UserID != nil {
		if err := s.ledger.EnsureInitialized(dbc, *in.UserID); err != nil {
			return nil, err
		}
		enough, err := s.ledger.HasSufficientBalance(dbc, *in.UserID, cost)
		if err != nil {
			return nil, err
		}
		if !enough {
			balance, berr := s.ledger.GetBalance(dbc, *in.UserID)
			if berr != nil {
				return nil, berr
			}
			s.log.Info("turn refused, insufficient credits", "user_id", *in.UserID, "balance", balance, "cost", cost)
			return &TurnResult{Outcome: TurnOutcomeInsufficientCredits, Thread: thread, NewBalance: &balance}, nil
		}
	}

	if thread == nil {
		var err error
		thread, err = s.transcript.CreateThread(dbc, in.UserID, titleFromText(text))
		if err != nil {
			return nil, err
		}
	}

	// Anonymous callers asking about "their" profile get a local nudge to
	// sign in. No backend call, nothing billed.
	if in.UserID == nil && s.personalization.DetectsPersonalQuery(text) {
		msgs, err := s.transcript.Append(dbc, thread.ID, []MessageDraft{
			{Role: types.RoleUser, Content: text, AttachmentURL: in.AttachmentURL},
			{Role: types.RoleAssistant, Content: signinPrompt},
		})
		if err != nil {
			return nil, err
		}
		return &TurnResult{Outcome: TurnOutcomeSigninRequired, Thread: thread, Messages: msgs}, nil
	}

	pctx := s.personalization.Resolve(dbc, in.UserID)
	userDraft := MessageDraft{Role: types.RoleUser, Content: text, AttachmentURL: in.AttachmentURL}

	handle, err := s.session.StartOrResumeThread(ctx, thread.RemoteThreadID)
	if err != nil {
		return s.failTurn(dbc, thread, []MessageDraft{userDraft}, err)
	}
	if thread.RemoteThreadID == "" {
		if err := s.transcript.BindRemoteThread(dbc, thread.ID, handle.ID); err != nil {
			return nil, err
		}
		thread.RemoteThreadID = handle.ID
	}

	var drafts []MessageDraft
	if in.UserID != nil {
		if err := s.session.SubmitGuidance(ctx, handle.ID, pctx); err != nil {
			return s.failTurn(dbc, thread, []MessageDraft{userDraft}, err)
		}
		drafts = append(drafts, MessageDraft{Role: types.RoleSystemGuidance, Content: pctx})
	}

	userContent := composeUserContent(text, in.AttachmentURL)
	if err := s.session.SubmitUserMessage(ctx, handle.ID, userContent); err != nil {
		return s.failTurn(dbc, thread, append(drafts, userDraft), err)
	}
	drafts = append(drafts, userDraft)

	assistantID, err := s.session.EnsureAssistant(ctx)
	if err != nil {
		return s.failTurn(dbc, thread, drafts, err)
	}
	runCfg := assistant.RunConfig{AssistantID: assistantID, AdditionalInstructions: pctx}

	reply, err := s.session.RunToCompletion(ctx, handle.ID, runCfg)
	if IsTransientRunError(err) {
		s.log.Warn("transient run failure, retrying once", "thread_id", thread.ID, "error", err)
		reply, err = s.session.RunToCompletion(ctx, handle.ID, runCfg)
	}
	if err != nil {
		return s.failTurn(dbc, thread, drafts, err)
	}

	reply = s.personalizeReply(dbc, in.UserID, reply)
	drafts = append(drafts, MessageDraft{Role: types.RoleAssistant, Content: reply})

	// Deliver.
	msgs, err := s.transcript.Append(dbc, thread.ID, drafts)
	if err != nil {
		return nil, err
	}
	result := &TurnResult{Outcome: TurnOutcomeOK, Thread: thread, Messages: msgs}

	// Settle. This is the only place a turn is ever debited; a failure here
	// surfaces as a warning on an otherwise successful turn.
	if in.UserID != nil {
		balance, derr := s.ledger.Debit(dbc, *in.UserID, cost, txType, turnDescription(txType))
		if derr != nil {
			s.log.Error("turn delivered but not billed", "user_id", *in.UserID, "thread_id", thread.ID, "error", derr)
			result.BillingWarning = "reply delivered, but the credit charge could not be recorded"
		} else {
			result.NewBalance = &balance
		}
	}
	return result, nil
}

func (s *turnService) loadOwnedThread(dbc dbctx.Context, in TurnInput) (*types.ConversationThread, error) {
	thread, err := s.transcript.GetThread(dbc, *in.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.UserID != nil {
		if in.UserID == nil || *in.UserID != *thread.UserID {
			return nil, fmt.Errorf("thread %s: %w", thread.ID, apperrors.ErrUnauthorized)
		}
	}
	return thread, nil
}

// failTurn persists the user's message alongside whatever the backend already
// received, closes the turn with a generic apology reply so the failure is
// visible in the transcript, and reports the turn as failed. Nothing is ever
// billed on this path.
func (s *turnService) failTurn(dbc dbctx.Context, thread *types.ConversationThread, drafts []MessageDraft, cause error) (*TurnResult, error) {
	s.log.Error("turn failed before delivery", "thread_id", thread.ID, "error", cause)
	result := &TurnResult{Outcome: TurnOutcomeFailed, Thread: thread}
	drafts = append(drafts, MessageDraft{Role: types.RoleAssistant, Content: apologyPrompt})
	msgs, err := s.transcript.Append(dbc, thread.ID, drafts)
	if err != nil {
		s.log.Error("failed to persist failed turn", "thread_id", thread.ID, "error", err)
	} else {
		result.Messages = msgs
	}
	if errors.Is(cause, context.Canceled) {
		return result, cause
	}
	return result, nil
}

// personalizeReply occasionally addresses a signed-in user by name, splicing
// the address into the end of the first sentence. Only replies long enough
// to carry it (two sentences or more) are touched.
func (s *turnService) personalizeReply(dbc dbctx.Context, userID *uuid.UUID, reply string) string {
	if userID == nil || s.cfg.AddressProbability <= 0 {
		return reply
	}
	if sentenceCount(reply) < 2 || rand.Float64() >= s.cfg.AddressProbability {
		return reply
	}
	u, err := s.users.GetByID(dbc, *userID)
	if err != nil || strings.TrimSpace(u.DisplayName) == "" {
		return reply
	}
	return spliceAddress(reply, strings.TrimSpace(u.DisplayName))
}

func spliceAddress(reply, name string) string {
	idx := strings.IndexAny(reply, ".!?")
	if idx <= 0 {
		return reply
	}
	return reply[:idx] + ", " + name + reply[idx:]
}

func sentenceCount(text string) int {
	n := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			n++
		}
	}
	return n
}

func turnCost(attachmentURL string) (int64, types.TransactionType) {
	if attachmentURL != "" {
		return types.ImageAnalysisCost, types.TxImageAnalysis
	}
	return types.ChatMessageCost, types.TxChatMessage
}

func turnDescription(txType types.TransactionType) string {
	if txType == types.TxImageAnalysis {
		return "Image analysis turn"
	}
	return "Chat message turn"
}

func composeUserContent(text, attachmentURL string) string {
	if attachmentURL == "" {
		return text
	}
	if text == "" {
		return "Please analyze the attached image: " + attachmentURL
	}
	return text + "\n\nAttached image: " + attachmentURL
}

func titleFromText(text string) string {
	const maxTitle = 60
	t := strings.TrimSpace(text)
	if t == "" {
		return "New conversation"
	}
	if utf8.RuneCountInString(t) <= maxTitle {
		return t
	}
	runes := []rune(t)
	return string(runes[:maxTitle-1]) + "…"
}
