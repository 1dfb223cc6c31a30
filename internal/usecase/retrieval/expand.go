package retrieval

import (
	"strings"
	"unicode"
)

// stopwords are tokens too common to carry retrieval signal.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "how": {}, "why": {},
	"does": {}, "this": {}, "that": {}, "with": {}, "from": {}, "about": {},
	"can": {}, "you": {}, "your": {}, "our": {}, "have": {}, "has": {},
}

// synonyms is the expansion table for the lexical pass. Keys and values are
// lowercase; expansion is one level deep.
var synonyms = map[string][]string{
	"vacation":  {"leave", "pto", "holiday", "time off"},
	"holiday":   {"vacation", "leave"},
	"sick":      {"illness", "medical leave"},
	"salary":    {"pay", "compensation", "wage"},
	"pay":       {"salary", "compensation", "payroll"},
	"remote":    {"work from home", "wfh", "telecommute"},
	"benefits":  {"insurance", "perks", "compensation"},
	"insurance": {"coverage", "benefits"},
	"policy":    {"rule", "guideline", "procedure"},
	"deadline":  {"due date", "cutoff"},
	"contract":  {"agreement", "terms"},
	"refund":    {"reimbursement", "repayment"},
	"expense":   {"reimbursement", "cost"},
	"onboard":   {"orientation", "induction"},
	"resign":    {"termination", "notice period", "quit"},
}

// tokenize lowercases the query and splits it into searchable tokens,
// dropping stopwords and anything shorter than three characters.
func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// expand returns the tokens plus their synonym expansions, originals first,
// without duplicates.
func expand(tokens []string) []string {
	out := make([]string, 0, len(tokens)*2)
	seen := make(map[string]struct{}, len(tokens)*2)

	add := func(term string) {
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for _, t := range tokens {
		add(t)
	}
	for _, t := range tokens {
		for _, syn := range synonyms[t] {
			add(syn)
		}
	}
	return out
}
