package mapper

import (
	"regexp"
	"strings"
	"unicode"
)

// aiStagePhrases are matched as whole token sequences, so "ai" matches
// "AI Video Screen" but not "Email Review".
var aiStagePhrases = phrases(
	"ai",
	"artificial intelligence",
	"video interview",
	"video screen",
	"video screening",
	"automated assessment",
	"automated screening",
	"automated interview",
	"algorithmic",
	"machine learning",
	"hirevue",
	"one-way video",
	"asynchronous video",
	"async video",
	"chatbot",
)

// dottedAI matches the literal "a.i." spelling, which tokenizing would
// reduce to the unrelated pair ["a","i"].
var dottedAI = regexp.MustCompile(`(^|[^\pL\pN.])a\.i\.?($|[^\pL\pN])`)

var videoStagePhrases = phrases(
	"video interview",
	"video screen",
	"video screening",
	"one-way video",
	"asynchronous video",
	"async video",
	"recorded interview",
	"hirevue",
)

func phrases(raw ...string) [][]string {
	out := make([][]string, 0, len(raw))
	for _, p := range raw {
		out = append(out, Tokenize(p))
	}
	return out
}

// Tokenize lowercases s and splits it on every non-alphanumeric rune.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HasPhrase reports whether phrase occurs in tokens as a contiguous run of
// whole tokens.
func HasPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
scan:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, w := range phrase {
			if tokens[i+j] != w {
				continue scan
			}
		}
		return true
	}
	return false
}

func containsPhrase(tokens []string, vocab [][]string) bool {
	for _, phrase := range vocab {
		if HasPhrase(tokens, phrase) {
			return true
		}
	}
	return false
}

// IsAIScreeningStage reports whether an interview-stage name suggests an
// AI-driven or automated screening step. It is a heuristic: false negatives
// are expected, and partial-word hits never count.
func IsAIScreeningStage(stageName string) bool {
	tokens := Tokenize(stageName)
	if len(tokens) == 0 {
		return false
	}
	return containsPhrase(tokens, aiStagePhrases) || dottedAI.MatchString(strings.ToLower(stageName))
}

// IsVideoInterviewStage reports whether a stage name describes a recorded or
// one-way video interview.
func IsVideoInterviewStage(stageName string) bool {
	tokens := Tokenize(stageName)
	if len(tokens) == 0 {
		return false
	}
	return containsPhrase(tokens, videoStagePhrases)
}
