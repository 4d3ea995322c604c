package usecase

import "strings"

// LowConfidencePhrases mark an answer as untrustworthy when found anywhere
// in its lowercase form. Clients depend on this exact list.
var LowConfidencePhrases = []string{
	"i don't know",
	"no relevant answer",
	"i am not sure",
	"unable to help",
	"couldn't find",
	"don't have enough information",
}

// Verdict is the outcome of a confidence check.
type Verdict struct {
	Accepted bool
	Text     string

	// Phrase is the indicator that caused a rejection, if any.
	Phrase string
}

// ConfidenceGate rejects empty answers and answers containing a
// low-confidence phrase. It is a substring heuristic: confident-sounding
// wrong answers pass.
type ConfidenceGate struct {
	phrases []string
}

func NewConfidenceGate() *ConfidenceGate {
	return &ConfidenceGate{phrases: LowConfidencePhrases}
}

func (g *ConfidenceGate) Evaluate(answer string) Verdict {
	// Whitespace-only output carries no answer and counts as empty.
	if strings.TrimSpace(answer) == "" {
		return Verdict{}
	}

	lower := strings.ToLower(answer)
	for _, phrase := range g.phrases {
		if strings.Contains(lower, phrase) {
			return Verdict{Phrase: phrase}
		}
	}
	return Verdict{Accepted: true, Text: answer}
}
