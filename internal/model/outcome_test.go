package model

import "testing"

func TestParseOutcome(t *testing.T) {
	cases := []struct {
		in   string
		want Outcome
		ok   bool
	}{
		{"success", OutcomeSuccess, true},
		{"fail", OutcomeFail, true},
		{"fail_ignored", OutcomeFailIgnored, true},
		{"retry", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseOutcome(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseOutcome(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseOutcome(%q) expected error", tc.in)
		}
		if got != tc.want {
			t.Fatalf("ParseOutcome(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestOutcome_PoisonsRun(t *testing.T) {
	if !OutcomeFail.PoisonsRun() {
		t.Fatalf("fail must poison the run")
	}
	if OutcomeFailIgnored.PoisonsRun() {
		t.Fatalf("fail_ignored must not poison the run")
	}
	if OutcomeSuccess.PoisonsRun() {
		t.Fatalf("success must not poison the run")
	}
}

func TestClassify_OutcomeTableWinsFirst(t *testing.T) {
	res := Classify(ClassifyInput{
		HasReturnCode: true,
		ReturnCode:    7,
		OutcomeTable:  map[string]Outcome{"7": OutcomeFailIgnored},
		IgnoreReturns: map[int]struct{}{7: {}}, // would otherwise be success
	})
	if res.Outcome != OutcomeFailIgnored {
		t.Fatalf("outcome table must win over ignore_returns: got %+v", res)
	}
}

func TestClassify_TimeoutRules(t *testing.T) {
	if res := Classify(ClassifyInput{TimedOut: true, TimeoutOK: true}); res.Outcome != OutcomeSuccess || res.WrapperReturnCode != 0 {
		t.Fatalf("timeout_ok: got %+v", res)
	}
	if res := Classify(ClassifyInput{TimedOut: true, TimeoutIgnore: true}); res.Outcome != OutcomeFailIgnored || res.WrapperReturnCode != 0 {
		t.Fatalf("timeout_ignore: got %+v", res)
	}
	if res := Classify(ClassifyInput{TimedOut: true}); res.Outcome != OutcomeFail || res.WrapperReturnCode == 0 {
		t.Fatalf("bare timeout must fail with nonzero wrapper code: got %+v", res)
	}
}

func TestClassify_ReturnCodeRules(t *testing.T) {
	ignore := map[int]struct{}{77: {}}
	ok := map[int]struct{}{2: {}}

	if res := Classify(ClassifyInput{HasReturnCode: true, ReturnCode: 77, IgnoreReturns: ignore}); res.Outcome != OutcomeSuccess {
		t.Fatalf("ignore_returns: got %+v", res)
	}
	if res := Classify(ClassifyInput{HasReturnCode: true, ReturnCode: 2, OkReturns: ok}); res.Outcome != OutcomeFailIgnored {
		t.Fatalf("ok_returns: got %+v", res)
	}
	if res := Classify(ClassifyInput{HasReturnCode: true, ReturnCode: 0}); res.Outcome != OutcomeSuccess {
		t.Fatalf("zero exit: got %+v", res)
	}
	if res := Classify(ClassifyInput{HasReturnCode: true, ReturnCode: 1}); res.Outcome != OutcomeFail || res.WrapperReturnCode != 1 {
		t.Fatalf("nonzero exit: got %+v", res)
	}
}

func TestClassify_SignaledWithoutTimeoutIsFail(t *testing.T) {
	res := Classify(ClassifyInput{})
	if res.Outcome != OutcomeFail {
		t.Fatalf("signaled/no-return-code should fail: got %+v", res)
	}
}
