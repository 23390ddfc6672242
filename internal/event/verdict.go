package event

// Verdict is the outcome of one validation decision for a candidate.
// It is a value type: stages return a new Verdict rather than editing one.
type Verdict struct {
	Approved   bool     `json:"approved"`
	Reason     string   `json:"reason"`
	Confidence int      `json:"confidence"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Approve builds an approving verdict.
func Approve(confidence int, reason string, warnings ...string) Verdict {
	return Verdict{Approved: true, Reason: reason, Confidence: clampConfidence(confidence), Warnings: warnings}
}

// Reject builds a rejecting verdict with zero confidence.
func Reject(reason string, warnings ...string) Verdict {
	return Verdict{Approved: false, Reason: reason, Confidence: 0, Warnings: warnings}
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
