package intent

import (
	"sort"
	"strings"
)

// Path is the trading lane a message belongs to.
type Path string

const (
	PathSwap    Path = "swap"
	PathPerp    Path = "perp"
	PathDefi    Path = "defi"
	PathEvent   Path = "event"
	PathUnknown Path = "unknown"
)

// laneTerms are the exclusive keyword sets per lane. A message carrying
// terms from two lanes is a mismatch, not a guess.
var laneTerms = map[Path][]string{
	PathSwap:  {"swap", "convert", "exchange", "trade for", "buy", "sell"},
	PathPerp:  {"long", "short", "leverage", "perp", "perpetual", "futures"},
	PathDefi:  {"lend", "supply", "borrow", "yield", "apy", "deposit", "earn interest"},
	PathEvent: {"bet", "wager", "odds", "predict", "prediction", "outcome"},
}

// Mismatch reports conflicting lane terms so the caller can re-prompt
// instead of guessing.
type Mismatch struct {
	Conflicting []string `json:"conflicting_terms"`
	Suggested   Path     `json:"suggested_path"`
}

// ClassifyPath classifies text into one of the four lanes. When terms from
// two exclusive lanes are present it returns PathUnknown plus the mismatch;
// the state machine does not advance on a mismatch.
func ClassifyPath(text string) (Path, *Mismatch) {
	lowered := strings.ToLower(text)

	hits := make(map[Path][]string)
	for lane, terms := range laneTerms {
		for _, term := range terms {
			if containsWord(lowered, term) {
				hits[lane] = append(hits[lane], term)
			}
		}
	}

	switch len(hits) {
	case 0:
		return PathUnknown, nil
	case 1:
		for lane := range hits {
			return lane, nil
		}
	}

	// Two or more lanes matched: collect the conflict and suggest the lane
	// with the most term hits.
	var conflicting []string
	var suggested Path
	best := 0
	lanes := make([]Path, 0, len(hits))
	for lane := range hits {
		lanes = append(lanes, lane)
	}
	sort.Slice(lanes, func(i, j int) bool { return lanes[i] < lanes[j] })
	for _, lane := range lanes {
		conflicting = append(conflicting, hits[lane]...)
		if len(hits[lane]) > best {
			best = len(hits[lane])
			suggested = lane
		}
	}

	return PathUnknown, &Mismatch{Conflicting: conflicting, Suggested: suggested}
}

// containsWord matches a term on word boundaries so "belong" never trips
// the "long" lane.
func containsWord(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// Reply classification while the machine is CONFIRMING.
type reply int

const (
	replyNeither reply = iota
	replyConfirm
	replyCancel
)

var confirmWords = []string{"yes", "confirm", "confirmed", "go ahead", "do it", "execute", "proceed", "ok", "okay", "yep", "sure"}
var cancelWords = []string{"no", "cancel", "stop", "abort", "nevermind", "never mind", "don't", "forget it"}

// classifyReply decides whether a message is an explicit confirmation,
// an explicit cancellation, or neither. Ambiguity never executes.
func classifyReply(text string) reply {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, w := range cancelWords {
		if containsWord(lowered, w) {
			return replyCancel
		}
	}
	for _, w := range confirmWords {
		if containsWord(lowered, w) {
			return replyConfirm
		}
	}
	return replyNeither
}
