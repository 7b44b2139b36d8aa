package schema

import "testing"

func TestValidateOutcomeTable_AcceptsKnownOutcomes(t *testing.T) {
	if err := ValidateOutcomeTable([]byte(`{"77": "success", "1": "fail_ignored"}`)); err != nil {
		t.Fatalf("expected valid table, got %v", err)
	}
}

func TestValidateOutcomeTable_RejectsUnknownOutcome(t *testing.T) {
	if err := ValidateOutcomeTable([]byte(`{"1": "retry"}`)); err == nil {
		t.Fatalf("expected an error for an outcome outside the closed set")
	}
}

func TestValidateOutcomeTable_RejectsMalformedJSON(t *testing.T) {
	if err := ValidateOutcomeTable([]byte(`not json`)); err == nil {
		t.Fatalf("expected an error for invalid JSON")
	}
}
