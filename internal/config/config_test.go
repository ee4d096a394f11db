package config

import (
	"testing"
	"time"
)

func TestMustDurationFallsBackOnGarbage(t *testing.T) {
	if got := mustDuration("30s", time.Minute); got != 30*time.Second {
		t.Errorf("mustDuration(30s) = %v, want 30s", got)
	}
	if got := mustDuration("not-a-duration", 30*time.Second); got != 30*time.Second {
		t.Errorf("mustDuration(garbage) = %v, want the 30s fallback", got)
	}
	if got := mustDuration("", 15*time.Minute); got != 15*time.Minute {
		t.Errorf("mustDuration(empty) = %v, want the 15m fallback", got)
	}
}

func TestMustNumericFallbacks(t *testing.T) {
	if got := mustInt("x", 7); got != 7 {
		t.Errorf("mustInt(garbage) = %d, want 7", got)
	}
	if got := mustInt64("", 42); got != 42 {
		t.Errorf("mustInt64(empty) = %d, want 42", got)
	}
	if got := mustFloat("nope", 2.5); got != 2.5 {
		t.Errorf("mustFloat(garbage) = %v, want 2.5", got)
	}
}
