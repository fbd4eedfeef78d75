package engine

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/cast"

	"github.com/quizai/quizai/internal/core"
)

// ParseScore turns whatever the grading model reported as a score into an
// integer in [0, core.MaxQuestionScore]. It never fails: anything that cannot
// be read as a number counts as zero.
//
// Strings are trimmed and lose trailing non-digit characters before parsing,
// so "8 points" reads as 8 while "7/10" does not parse and reads as 0.
func ParseScore(value any) int {
	var score float64
	switch v := value.(type) {
	case nil, bool:
		return 0
	case string:
		score = parseScoreString(v)
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0
		}
		score = f
	}
	return clampScore(score)
}

func parseScoreString(raw string) float64 {
	trimmed := strings.TrimRightFunc(strings.TrimSpace(raw), func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	if trimmed == "" {
		return 0
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return f
}

func clampScore(score float64) int {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	score = math.Round(score)
	if score < 0 {
		return 0
	}
	if score > core.MaxQuestionScore {
		return core.MaxQuestionScore
	}
	return int(score)
}
