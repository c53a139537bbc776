// Package policy defines the confirmation policy governing whether a
// pending agent action must be approved by the client before execution.
//
// Policies are immutable value types. Changing a session's policy means
// replacing the stored value, never mutating one in place, so an in-flight
// confirmation check can never observe a half-updated policy.
package policy

import (
	"fmt"

	"github.com/Strob0t/AgentBridge/internal/domain/risk"
)

// Mode is the baseline behavior of a confirmation policy.
type Mode string

const (
	// ModeNever approves every pending action without asking.
	ModeNever Mode = "never"
	// ModeAlways requires a live ask for every pending action.
	ModeAlways Mode = "always"
	// ModeRisky requires a live ask only for actions at or above a
	// risk threshold.
	ModeRisky Mode = "risky"
)

// ConfirmationPolicy decides whether an action of a given risk level blocks
// on client approval. The zero value is not valid; use a constructor.
type ConfirmationPolicy struct {
	Mode      Mode       `json:"mode" yaml:"mode"`
	Threshold risk.Level `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// NeverConfirm returns a policy under which no action ever blocks.
func NeverConfirm() ConfirmationPolicy {
	return ConfirmationPolicy{Mode: ModeNever}
}

// AlwaysConfirm returns a policy under which every pending action blocks.
func AlwaysConfirm() ConfirmationPolicy {
	return ConfirmationPolicy{Mode: ModeAlways}
}

// ConfirmRisky returns a policy that blocks actions whose classified risk
// ranks at or above threshold.
func ConfirmRisky(threshold risk.Level) ConfirmationPolicy {
	return ConfirmationPolicy{Mode: ModeRisky, Threshold: threshold}
}

// RequiresConfirmation reports whether an action at the given risk level
// must be confirmed under this policy. UNKNOWN compares as MEDIUM.
func (p ConfirmationPolicy) RequiresConfirmation(level risk.Level) bool {
	switch p.Mode {
	case ModeNever:
		return false
	case ModeAlways:
		return true
	case ModeRisky:
		return level.AtLeast(p.Threshold)
	default:
		// Malformed policy fails toward asking, never toward silence.
		return true
	}
}

// Validate reports whether the policy is well formed.
func (p ConfirmationPolicy) Validate() error {
	switch p.Mode {
	case ModeNever, ModeAlways:
		return nil
	case ModeRisky:
		switch p.Threshold {
		case risk.LevelLow, risk.LevelMedium, risk.LevelHigh:
			return nil
		default:
			return fmt.Errorf("invalid risk threshold %q", p.Threshold)
		}
	default:
		return fmt.Errorf("invalid policy mode %q", p.Mode)
	}
}

// String renders the policy for logs and persistence.
func (p ConfirmationPolicy) String() string {
	if p.Mode == ModeRisky {
		return fmt.Sprintf("%s(%s)", p.Mode, p.Threshold)
	}
	return string(p.Mode)
}

// Parse builds a policy from a mode string plus an optional threshold, as
// stored in config or session records.
func Parse(mode, threshold string) (ConfirmationPolicy, error) {
	switch Mode(mode) {
	case ModeNever:
		return NeverConfirm(), nil
	case ModeAlways:
		return AlwaysConfirm(), nil
	case ModeRisky:
		p := ConfirmRisky(risk.ParseLevel(threshold))
		if err := p.Validate(); err != nil {
			return ConfirmationPolicy{}, err
		}
		return p, nil
	default:
		return ConfirmationPolicy{}, fmt.Errorf("invalid policy mode %q", mode)
	}
}
