// Package parser defines the interface to the upstream natural-language
// intent parser and provides the deterministic fallback used when the
// upstream parser is unavailable. The upstream parser itself is an external
// collaborator; only its contract lives here.
package parser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blossomfi/blossom-api/internal/intent"
	"github.com/blossomfi/blossom-api/internal/plan"
)

// Parser turns a confirmed intent text into plan actions. Implementations
// return ErrUnparseable when they cannot produce a structured action.
type Parser interface {
	Parse(ctx context.Context, text string, path intent.Path) ([]plan.Action, error)
}

// ErrUnparseable signals the text could not be turned into an action.
var ErrUnparseable = fmt.Errorf("intent text is not parseable")

var amountPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
var leveragePattern = regexp.MustCompile(`(\d+)\s*x`)

// Deterministic is the fallback parser: keyword and number extraction only,
// no model calls. It produces the same action shape as the upstream parser.
type Deterministic struct {
	// Tokens maps uppercase symbols to allowlisted token addresses.
	Tokens map[string]common.Address
}

// NewDeterministic creates the fallback parser over the configured symbols.
func NewDeterministic(tokens map[string]common.Address) *Deterministic {
	return &Deterministic{Tokens: tokens}
}

// Parse extracts a single action from text for the given lane.
func (d *Deterministic) Parse(_ context.Context, text string, path intent.Path) ([]plan.Action, error) {
	lowered := strings.ToLower(text)

	switch path {
	case intent.PathSwap:
		return d.parseSwap(text, lowered)
	case intent.PathPerp:
		return d.parsePerp(text, lowered)
	case intent.PathDefi:
		return d.parseDefi(text, lowered)
	case intent.PathEvent:
		return d.parseEvent(text, lowered)
	default:
		return nil, ErrUnparseable
	}
}

func (d *Deterministic) parseSwap(text, lowered string) ([]plan.Action, error) {
	symbols := d.findSymbols(text)
	if len(symbols) < 2 {
		return nil, ErrUnparseable
	}
	amount, ok := findAmountCents(lowered)
	if !ok {
		return nil, ErrUnparseable
	}
	return []plan.Action{{
		Kind: plan.KindSwap,
		Payload: plan.SwapPayload{
			TokenIn:  d.Tokens[symbols[0]],
			TokenOut: d.Tokens[symbols[1]],
			AmountIn: amount,
		},
	}}, nil
}

func (d *Deterministic) parsePerp(text, lowered string) ([]plan.Action, error) {
	side := "long"
	if strings.Contains(lowered, "short") {
		side = "short"
	}
	leverage := int32(1)
	if m := leveragePattern.FindStringSubmatch(lowered); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			leverage = int32(n)
		}
	}
	// Strip the leverage term first so "3x" never reads as the collateral.
	amount, ok := findAmountCents(leveragePattern.ReplaceAllString(lowered, " "))
	if !ok {
		return nil, ErrUnparseable
	}
	market := "ETH-USD"
	if symbols := d.findSymbols(text); len(symbols) > 0 {
		market = symbols[0] + "-USD"
	}
	return []plan.Action{{
		Kind: plan.KindPerp,
		Payload: plan.PerpPayload{
			Market:          market,
			Side:            side,
			CollateralUnits: amount,
			Leverage:        leverage,
		},
	}}, nil
}

func (d *Deterministic) parseDefi(text, lowered string) ([]plan.Action, error) {
	op := plan.DefiSupply
	if strings.Contains(lowered, "withdraw") {
		op = plan.DefiWithdraw
	}
	symbols := d.findSymbols(text)
	if len(symbols) == 0 {
		return nil, ErrUnparseable
	}
	amount, ok := findAmountCents(lowered)
	if !ok && op == plan.DefiSupply {
		return nil, ErrUnparseable
	}
	return []plan.Action{{
		Kind: plan.KindDefi,
		Payload: plan.DefiPayload{
			Protocol:    "blossom-lend",
			Op:          op,
			Token:       d.Tokens[symbols[0]],
			AmountUnits: amount,
		},
	}}, nil
}

func (d *Deterministic) parseEvent(_, lowered string) ([]plan.Action, error) {
	op := plan.EventStake
	if strings.Contains(lowered, "claim") {
		op = plan.EventClaim
	}
	outcome := "yes"
	if strings.Contains(lowered, " no ") || strings.HasSuffix(lowered, " no") {
		outcome = "no"
	}
	amount, ok := findAmountCents(lowered)
	if !ok && op == plan.EventStake {
		return nil, ErrUnparseable
	}
	return []plan.Action{{
		Kind: plan.KindEvent,
		Payload: plan.EventPayload{
			MarketID:   "event-market",
			Outcome:    outcome,
			Op:         op,
			StakeUnits: amount,
		},
	}}, nil
}

// findSymbols returns known token symbols in order of appearance.
func (d *Deterministic) findSymbols(text string) []string {
	upper := strings.ToUpper(text)
	type hit struct {
		pos int
		sym string
	}
	var hits []hit
	for sym := range d.Tokens {
		if idx := strings.Index(upper, sym); idx >= 0 {
			hits = append(hits, hit{pos: idx, sym: sym})
		}
	}
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].pos < hits[i].pos {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.sym
	}
	return out
}

// findAmountCents extracts the first number as USD cents.
func findAmountCents(text string) (int64, bool) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int64(f * 100), true
}
