package fallback

// Decision states whether a caller may fall back to an alternate path after
// an upstream failure.
type Decision string

const (
	// Allow permits fallback.
	Allow Decision = "allow"
	// Block forbids fallback; the failure is a business condition.
	Block Decision = "block"
)

// Result pairs a decision with a stable machine-readable reason.
type Result struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
}

// Classify maps an upstream status to a fallback decision. Status 0 (or any
// negative value) means the request never produced a response. The rules are
// ordered: network failure, then inventory contention, then server errors;
// everything else is a business error the caller must not paper over.
func Classify(status int) Result {
	switch {
	case status <= 0:
		return Result{Decision: Allow, Reason: "network-error"}
	case status == 409:
		return Result{Decision: Allow, Reason: "inventory-conflict"}
	case status >= 500 && status < 600:
		return Result{Decision: Allow, Reason: "server-error"}
	default:
		return Result{Decision: Block, Reason: "business-error"}
	}
}

// Permitted applies the process-wide fallback flag to a classification. The
// flag never changes the classification itself, only whether an "allow"
// result may be acted on; with the flag off every decision is effectively
// blocked (fail closed).
func Permitted(enabled bool, result Result) bool {
	return enabled && result.Decision == Allow
}
