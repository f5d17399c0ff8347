package intent

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
)

const (
	nounWeight = 3
	verbWeight = 2
	cueWeight  = 4
)

// PatternSelector matches the input against the keyword hints of each tool.
// It is deterministic and needs no backend.
type PatternSelector struct{}

func NewPatternSelector() *PatternSelector { return &PatternSelector{} }

type match struct {
	def   *tools.Definition
	args  tools.Args
	score int
}

func (p *PatternSelector) Select(_ context.Context, q Query) (Outcome, error) {
	// One tool per turn; once a result exists the reply is composed from it.
	if len(q.Results) > 0 {
		return Outcome{Decision: NoTool, Confidence: 1, Source: "pattern"}, nil
	}
	best, ok := bestMatch(q.Input, q.History, q.Tools)
	if !ok {
		return Outcome{Decision: NoTool, Confidence: 0.5, Source: "pattern"}, nil
	}
	return resolve(best.def, best.args, confidence(best.score), "pattern"), nil
}

// bestMatch scores every definition and returns the highest. Ties keep the
// earlier definition.
func bestMatch(input string, history []models.Message, defs []*tools.Definition) (match, bool) {
	lower := strings.ToLower(input)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	ents := Extract(input)
	past := fromHistory(history)

	var best match
	found := false
	for _, def := range defs {
		score, ok := keywordScore(def.Hints, def.Mutating, lower, words)
		if !ok {
			continue
		}
		args, hits := buildArgs(def, ents, past)
		score += hits - len(tools.MissingArgs(def, args))
		if !found || score > best.score {
			best = match{def: def, args: args, score: score}
			found = true
		}
	}
	return best, found
}

// keywordScore weighs noun, verb and cue hits. A tool is a candidate only
// when a noun or cue matched; mutating tools also need a verb.
func keywordScore(h tools.Hints, mutating bool, lower string, words []string) (int, bool) {
	var nouns, verbs, cues int
	for _, n := range h.Nouns {
		if containsNoun(words, n) {
			nouns++
		}
	}
	for _, v := range h.Verbs {
		if containsWord(words, v) {
			verbs++
		}
	}
	for _, c := range h.Cues {
		if strings.Contains(lower, c) {
			cues++
		}
	}
	if nouns == 0 && cues == 0 {
		return 0, false
	}
	if mutating && verbs == 0 {
		return 0, false
	}
	return nouns*nounWeight + verbs*verbWeight + cues*cueWeight, true
}

func containsWord(words []string, w string) bool {
	for _, word := range words {
		if word == w {
			return true
		}
	}
	return false
}

func containsNoun(words []string, n string) bool {
	for _, word := range words {
		if word == n || word == n+"s" || word == n+"es" {
			return true
		}
	}
	return false
}

func confidence(score int) float64 {
	return math.Min(0.95, 0.4+0.05*float64(score))
}
