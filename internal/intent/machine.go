package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/logger"
)

// StepResult is what one message did to the conversation.
type StepResult struct {
	State         State     `json:"state"`
	Path          Path      `json:"path,omitempty"`
	Prompt        string    `json:"prompt,omitempty"`
	Mismatch      *Mismatch `json:"mismatch,omitempty"`
	PendingIntent string    `json:"pending_intent,omitempty"`
	IntentID      string    `json:"intent_id,omitempty"`
	// Executable is set only on explicit confirmation; ambiguous replies
	// never surface the pending intent for execution.
	Executable bool `json:"executable"`
}

// Machine is the per-conversation path state machine. It gates a CONFIRMING
// state before any action executes.
type Machine struct {
	store ContextStore
	now   func() time.Time
}

// NewMachine creates a state machine over the given context store.
func NewMachine(store ContextStore, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{store: store, now: now}
}

// Process advances the conversation with one message.
func (m *Machine) Process(ctx context.Context, key, text string) (*StepResult, error) {
	convo, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", key, err)
	}
	if convo == nil {
		convo = &Conversation{
			Key:          key,
			CurrentState: StateIdle,
			CreatedAt:    m.now(),
		}
	}

	if convo.CurrentState == StateConfirming {
		return m.processConfirmation(ctx, convo, text)
	}
	return m.classify(ctx, convo, text)
}

// Reset returns the conversation to IDLE, superseding any pending intent.
func (m *Machine) Reset(ctx context.Context, key string) error {
	if err := m.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to reset conversation %s: %w", key, err)
	}
	return nil
}

func (m *Machine) classify(ctx context.Context, convo *Conversation, text string) (*StepResult, error) {
	path, mismatch := ClassifyPath(text)

	if mismatch != nil {
		// Conflicting lanes: do not advance, force a re-prompt.
		return &StepResult{
			State:    convo.CurrentState,
			Mismatch: mismatch,
			Prompt:   fmt.Sprintf("That message mixes %v. Did you mean a %s? Please rephrase with one action.", mismatch.Conflicting, mismatch.Suggested),
		}, nil
	}
	if path == PathUnknown {
		return &StepResult{
			State:  convo.CurrentState,
			Prompt: "I couldn't tell what you want to do. Try something like \"swap 50 USDC for ETH\" or \"long ETH 3x\".",
		}, nil
	}

	// A new classifiable message supersedes whatever was pending.
	convo.CurrentState = StateConfirming
	convo.CurrentPath = path
	convo.PendingIntent = text
	convo.PendingIntentID = uuid.New().String()
	convo.IntentStatus = IntentConfirming
	convo.UpdatedAt = m.now()

	if err := m.store.Put(ctx, convo); err != nil {
		return nil, fmt.Errorf("failed to save conversation %s: %w", convo.Key, err)
	}

	logger.Debug("Intent classified",
		zap.String("key", convo.Key),
		zap.String("path", string(path)),
		zap.String("intent_id", convo.PendingIntentID),
	)

	return &StepResult{
		State:         StateConfirming,
		Path:          path,
		PendingIntent: convo.PendingIntent,
		IntentID:      convo.PendingIntentID,
		Prompt:        fmt.Sprintf("Confirm this %s: %q — reply \"yes\" to execute or \"cancel\" to abort.", path, text),
	}, nil
}

func (m *Machine) processConfirmation(ctx context.Context, convo *Conversation, text string) (*StepResult, error) {
	switch classifyReply(text) {
	case replyConfirm:
		intentID := convo.PendingIntentID
		pending := convo.PendingIntent
		path := convo.CurrentPath

		// Confirmation consumes the pending intent; the conversation
		// returns to IDLE for the next turn.
		if err := m.store.Delete(ctx, convo.Key); err != nil {
			return nil, fmt.Errorf("failed to clear confirmed conversation %s: %w", convo.Key, err)
		}

		logger.Info("Intent confirmed",
			zap.String("key", convo.Key),
			zap.String("intent_id", intentID),
			zap.String("path", string(path)),
		)

		return &StepResult{
			State:         StateConfirmed,
			Path:          path,
			PendingIntent: pending,
			IntentID:      intentID,
			Executable:    true,
		}, nil

	case replyCancel:
		if err := m.store.Delete(ctx, convo.Key); err != nil {
			return nil, fmt.Errorf("failed to clear cancelled conversation %s: %w", convo.Key, err)
		}
		return &StepResult{
			State:  StateCancelled,
			Path:   convo.CurrentPath,
			Prompt: "Cancelled. Nothing was executed.",
		}, nil

	default:
		// Neither: hold CONFIRMING and re-prompt. The pending intent is
		// never surfaced for execution here.
		convo.UpdatedAt = m.now()
		if err := m.store.Put(ctx, convo); err != nil {
			return nil, fmt.Errorf("failed to save conversation %s: %w", convo.Key, err)
		}
		return &StepResult{
			State:    StateConfirming,
			Path:     convo.CurrentPath,
			IntentID: convo.PendingIntentID,
			Prompt:   fmt.Sprintf("Still waiting on your confirmation for: %q. Reply \"yes\" to execute or \"cancel\" to abort.", convo.PendingIntent),
		}, nil
	}
}
