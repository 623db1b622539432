package canary

// Result is the outcome of one named assertion.
type Result string

const (
	// Pass means the assertion held.
	Pass Result = "pass"
	// Fail means the assertion was evaluated and did not hold.
	Fail Result = "fail"
	// Skip means the assertion was not evaluated because something it
	// depended on did not run.
	Skip Result = "skip"
	// PolicyBlocked means the probed path is administratively restricted;
	// distinct from failure so an intentionally locked-down configuration
	// does not read as broken.
	PolicyBlocked Result = "policy-blocked"
)

// Assertion is one named check emitted by a canary phase.
type Assertion struct {
	Name   string `json:"name"`
	Result Result `json:"result"`
	Detail string `json:"detail,omitempty"`
}

// Verdict is the aggregated outcome of a run.
type Verdict string

const (
	VerdictPass          Verdict = "pass"
	VerdictFail          Verdict = "fail"
	VerdictPolicyBlocked Verdict = "policy-blocked"
)

// Aggregate applies the fixed precedence: any fail wins, then any
// policy-blocked, else pass. Skips never influence the verdict.
func Aggregate(assertions []Assertion) Verdict {
	verdict := VerdictPass
	for _, a := range assertions {
		switch a.Result {
		case Fail:
			return VerdictFail
		case PolicyBlocked:
			verdict = VerdictPolicyBlocked
		}
	}
	return verdict
}

// Report is the full canary output.
type Report struct {
	Assertions []Assertion `json:"assertions"`
	Verdict    Verdict     `json:"verdict"`
}

// ExitCode maps a verdict to the CLI exit contract: 0 for pass and
// expected-block, 1 for any hard failure. Operators script against this.
func (r Report) ExitCode() int {
	if r.Verdict == VerdictFail {
		return 1
	}
	return 0
}
