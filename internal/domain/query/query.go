// Package query estimates retrieval breadth from question complexity.
package query

import (
	"strings"
	"unicode/utf8"
)

// TopK bounds. Short factual questions need few chunks; the cap prevents
// context growth that would overflow the generation budget downstream.
const (
	MinTopK = 3
	MaxTopK = 15
)

const (
	questionBonusCap = 4
	keywordBonusCap  = 3
)

// complexityKeywords mark multi-part, comparative, or explanatory questions
// that benefit from broader context.
var complexityKeywords = []string{
	"compare",
	"difference",
	"analyze",
	"explain in detail",
	"why",
	"how does",
	"implement",
	"relate",
	"versus",
	"contrast",
}

// EstimateTopK maps question text to a retrieval breadth. Pure and
// deterministic; a caller-supplied explicit top_k always overrides it.
func EstimateTopK(question string) int {
	k := baseForLength(utf8.RuneCountInString(question))

	if extra := strings.Count(question, "?") - 1; extra > 0 {
		bonus := extra * 2
		if bonus > questionBonusCap {
			bonus = questionBonusCap
		}
		k += bonus
	}

	lower := strings.ToLower(question)
	bonus := 0
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			bonus++
			if bonus == keywordBonusCap {
				break
			}
		}
	}
	k += bonus

	if k < MinTopK {
		k = MinTopK
	}
	if k > MaxTopK {
		k = MaxTopK
	}
	return k
}

func baseForLength(n int) int {
	switch {
	case n < 50:
		return 3
	case n < 100:
		return 5
	case n < 150:
		return 7
	default:
		return 9
	}
}
