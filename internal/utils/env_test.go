package utils

import (
	"testing"
	"time"
)

func TestSafeEnv(t *testing.T) {
	const key = "_VOTEMONITOR_TEST_SAFEENV"
	t.Setenv(key, "")
	if got := SafeEnv(key, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv(key, " value ")
	if got := SafeEnv(key, "fallback"); got != "value" {
		t.Fatalf("expected 'value', got %q", got)
	}
}

func TestSafeEnvDuration(t *testing.T) {
	const key = "_VOTEMONITOR_TEST_DURATION"
	t.Setenv(key, "45s")
	if got := SafeEnvDuration(key, time.Second); got != 45*time.Second {
		t.Fatalf("got %v, want 45s", got)
	}
	t.Setenv(key, "soon")
	if got := SafeEnvDuration(key, time.Second); got != time.Second {
		t.Fatalf("got %v, want fallback", got)
	}
}
