package environment_test

import (
	"testing"
	"time"

	"github.com/bcraddock/reverie/common/environment"
)

func TestString(t *testing.T) {
	t.Setenv("TEST_SET", "")
	if _, ok := environment.String("TEST_SET"); !ok {
		t.Error("expected ok for set-but-empty variable")
	}
	if _, ok := environment.String("TEST_SET_MISSING"); ok {
		t.Error("expected !ok for missing variable")
	}
}

func TestStringOr(t *testing.T) {
	t.Setenv("TEST_STRING", "hello")
	if got := environment.StringOr("TEST_STRING", "default"); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
	if got := environment.StringOr("TEST_STRING_MISSING", "default"); got != "default" {
		t.Errorf("expected %q, got %q", "default", got)
	}
}

func TestBoolOr(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !environment.BoolOr("TEST_BOOL", false) {
		t.Error("expected true")
	}
	t.Setenv("TEST_BOOL", "0")
	if environment.BoolOr("TEST_BOOL", true) {
		t.Error("expected false")
	}
	if !environment.BoolOr("TEST_BOOL_MISSING", true) {
		t.Error("expected default true")
	}
	t.Setenv("TEST_BOOL", "not-a-bool")
	if !environment.BoolOr("TEST_BOOL", true) {
		t.Error("expected default on parse failure")
	}
}

func TestIntOr(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := environment.IntOr("TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("TEST_INT", "banana")
	if got := environment.IntOr("TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7 on parse failure, got %d", got)
	}
	if got := environment.IntOr("TEST_INT_MISSING", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
}

func TestFloatOr(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.75")
	if got := environment.FloatOr("TEST_FLOAT", 0.5); got != 0.75 {
		t.Errorf("expected 0.75, got %v", got)
	}
	t.Setenv("TEST_FLOAT", "tt")
	if got := environment.FloatOr("TEST_FLOAT", 0.5); got != 0.5 {
		t.Errorf("expected default 0.5 on parse failure, got %v", got)
	}
}

func TestDurationOr(t *testing.T) {
	t.Setenv("TEST_DUR", "45s")
	if got := environment.DurationOr("TEST_DUR", time.Minute); got != 45*time.Second {
		t.Errorf("expected 45s, got %v", got)
	}
	if got := environment.DurationOr("TEST_DUR_MISSING", time.Minute); got != time.Minute {
		t.Errorf("expected default 1m, got %v", got)
	}
}
