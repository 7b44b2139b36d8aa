package model

import "fmt"

// Outcome is the classified result of a job after outcome-table lookup and
// ignore/ok/timeout policy has been applied (spec ch. 4.6). Unlike a
// stage-routing system with open-ended custom labels, litani's outcome
// algebra is closed: exactly these three values are ever written to a
// status file.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFail        Outcome = "fail"
	OutcomeFailIgnored Outcome = "fail_ignored"
)

// ParseOutcome validates a raw string against the closed outcome set.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeSuccess, OutcomeFail, OutcomeFailIgnored:
		return Outcome(s), nil
	default:
		return "", fmt.Errorf("invalid outcome: %q", s)
	}
}

func (o Outcome) Valid() bool {
	_, err := ParseOutcome(string(o))
	return err == nil
}

// PoisonsRun reports whether this outcome makes the owning run a failure.
// fail_ignored never poisons the run; only a bare fail does (spec ch. 4.5,
// "Success rule").
func (o Outcome) PoisonsRun() bool {
	return o == OutcomeFail
}

// Classify implements the first-rule-wins outcome table of spec ch. 4.6 step 6,
// kept as a pure function of the exit status and the job's outcome policy so it
// can be unit tested without spawning a process.
type ClassifyInput struct {
	TimedOut      bool
	ReturnCode    int
	HasReturnCode bool // false when the process was killed by a signal rather than exiting

	IgnoreReturns map[int]struct{}
	OkReturns     map[int]struct{}
	TimeoutOK     bool
	TimeoutIgnore bool

	// OutcomeTable is the parsed contents of outcome_table (return code string -> Outcome).
	// Looked up only when HasReturnCode is true; a match here wins over every other rule.
	OutcomeTable map[string]Outcome
}

type ClassifyResult struct {
	Outcome           Outcome
	WrapperReturnCode int
}

func Classify(in ClassifyInput) ClassifyResult {
	if in.HasReturnCode && in.OutcomeTable != nil {
		if oc, ok := in.OutcomeTable[fmt.Sprint(in.ReturnCode)]; ok {
			wrc := 0
			if oc == OutcomeFail {
				wrc = in.ReturnCode
				if wrc == 0 {
					wrc = 1
				}
			}
			return ClassifyResult{Outcome: oc, WrapperReturnCode: wrc}
		}
	}

	if in.TimedOut && in.TimeoutOK {
		return ClassifyResult{Outcome: OutcomeSuccess, WrapperReturnCode: 0}
	}
	if in.TimedOut && in.TimeoutIgnore {
		return ClassifyResult{Outcome: OutcomeFailIgnored, WrapperReturnCode: 0}
	}
	if in.TimedOut {
		return ClassifyResult{Outcome: OutcomeFail, WrapperReturnCode: 1}
	}

	if in.HasReturnCode {
		if _, ok := in.IgnoreReturns[in.ReturnCode]; ok {
			return ClassifyResult{Outcome: OutcomeSuccess, WrapperReturnCode: 0}
		}
		if _, ok := in.OkReturns[in.ReturnCode]; ok {
			return ClassifyResult{Outcome: OutcomeFailIgnored, WrapperReturnCode: 0}
		}
		if in.ReturnCode == 0 {
			return ClassifyResult{Outcome: OutcomeSuccess, WrapperReturnCode: 0}
		}
		return ClassifyResult{Outcome: OutcomeFail, WrapperReturnCode: in.ReturnCode}
	}

	// Killed by a signal with no timeout in play: treat as a hard failure.
	return ClassifyResult{Outcome: OutcomeFail, WrapperReturnCode: 1}
}
