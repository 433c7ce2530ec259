package constants

import "strings"

// Confidence is the model's self-reported certainty about an extraction.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

var allConfidences = []Confidence{
	ConfidenceHigh,
	ConfidenceMedium,
	ConfidenceLow,
}

// Confidences lists the values a model may report, in descending order.
func Confidences() []string {
	out := make([]string, len(allConfidences))
	for i, c := range allConfidences {
		out[i] = string(c)
	}
	return out
}

// CanonicalizeConfidence maps a model-reported value onto the enum.
// Anything missing or unrecognised becomes ConfidenceUnknown and ok=false.
func CanonicalizeConfidence(input string) (Confidence, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return ConfidenceUnknown, false
	}

	synonyms := map[string]Confidence{
		"hoch":    ConfidenceHigh,
		"mittel":  ConfidenceMedium,
		"niedrig": ConfidenceLow,
		"med":     ConfidenceMedium,
	}
	if c, ok := synonyms[normalized]; ok {
		return c, true
	}

	for _, c := range allConfidences {
		if normalized == string(c) {
			return c, true
		}
	}
	return ConfidenceUnknown, false
}
