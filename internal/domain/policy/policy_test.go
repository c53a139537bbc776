package policy

import (
	"testing"

	"github.com/Strob0t/AgentBridge/internal/domain/risk"
)

func TestRequiresConfirmation(t *testing.T) {
	tests := []struct {
		name   string
		policy ConfirmationPolicy
		level  risk.Level
		want   bool
	}{
		{"never ignores high", NeverConfirm(), risk.LevelHigh, false},
		{"always asks for low", AlwaysConfirm(), risk.LevelLow, true},
		{"risky high threshold passes medium", ConfirmRisky(risk.LevelHigh), risk.LevelMedium, false},
		{"risky medium threshold blocks medium", ConfirmRisky(risk.LevelMedium), risk.LevelMedium, true},
		{"risky medium threshold blocks high", ConfirmRisky(risk.LevelMedium), risk.LevelHigh, true},
		{"risky low threshold blocks low", ConfirmRisky(risk.LevelLow), risk.LevelLow, true},
		{"unknown treated as medium", ConfirmRisky(risk.LevelMedium), risk.LevelUnknown, true},
		{"unknown below high threshold", ConfirmRisky(risk.LevelHigh), risk.LevelUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.RequiresConfirmation(tt.level); got != tt.want {
				t.Errorf("%s.RequiresConfirmation(%s) = %v, want %v", tt.policy, tt.level, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := ConfirmRisky(risk.LevelHigh).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (ConfirmationPolicy{Mode: ModeRisky, Threshold: risk.LevelUnknown}).Validate(); err == nil {
		t.Fatal("expected error for unknown threshold")
	}
	if err := (ConfirmationPolicy{Mode: "sometimes"}).Validate(); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestParseRoundTrip(t *testing.T) {
	p, err := Parse("risky", "high")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != ConfirmRisky(risk.LevelHigh) {
		t.Fatalf("unexpected policy: %+v", p)
	}

	if _, err := Parse("risky", "bogus"); err == nil {
		t.Fatal("expected error for unparseable threshold")
	}
	if _, err := Parse("maybe", ""); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestMalformedPolicyFailsClosed(t *testing.T) {
	var p ConfirmationPolicy // zero value, invalid
	if !p.RequiresConfirmation(risk.LevelLow) {
		t.Fatal("malformed policy must require confirmation")
	}
}
