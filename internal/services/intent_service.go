package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/blossomfi/blossom-api/internal/intent"
	"github.com/blossomfi/blossom-api/internal/logger"
	"github.com/blossomfi/blossom-api/internal/parser"
	"github.com/blossomfi/blossom-api/internal/plan"
)

// IntentStep is one conversational turn's outcome. Draft is set only when an
// intent was explicitly confirmed and parsed into an executable plan.
type IntentStep struct {
	Step  *intent.StepResult `json:"step"`
	Draft *plan.ActionPlan   `json:"draft,omitempty"`
}

// IntentService runs the conversational path state machine and, on
// confirmation, turns the pending intent into a plan draft.
type IntentService struct {
	machine *intent.Machine
	parser  parser.Parser
}

// NewIntentService creates the conversational service.
func NewIntentService(machine *intent.Machine, p parser.Parser) *IntentService {
	return &IntentService{machine: machine, parser: p}
}

// Process advances the conversation with one message. The returned draft is
// unvalidated; callers run it through the execute path like any other plan.
func (s *IntentService) Process(ctx context.Context, key string, userAddress common.Address, text string) (*IntentStep, error) {
	step, err := s.machine.Process(ctx, key, text)
	if err != nil {
		return nil, err
	}
	out := &IntentStep{Step: step}
	if !step.Executable {
		return out, nil
	}

	actions, err := s.parser.Parse(ctx, step.PendingIntent, step.Path)
	if errors.Is(err, parser.ErrUnparseable) {
		// Confirmed but unparseable: surface a failure instead of guessing.
		step.Executable = false
		step.Prompt = "I couldn't turn that into a concrete action. Please restate it with an amount and token."
		logger.Warn("Confirmed intent failed to parse",
			zap.String("key", key),
			zap.String("intent_id", step.IntentID),
		)
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse confirmed intent: %w", err)
	}

	out.Draft = &plan.ActionPlan{
		User:    userAddress,
		Actions: actions,
	}
	return out, nil
}

// Reset returns the conversation to idle.
func (s *IntentService) Reset(ctx context.Context, key string) error {
	return s.machine.Reset(ctx, key)
}
