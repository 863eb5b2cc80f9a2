package envutil

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_STR", "  value  ")
	if got := String("ENVUTIL_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("String = %q, want trimmed value", got)
	}
	if got := String("ENVUTIL_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("String = %q, want fallback", got)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_INT", "12")
	if got := Int("ENVUTIL_TEST_INT", 3); got != 12 {
		t.Fatalf("Int = %d, want 12", got)
	}
	t.Setenv("ENVUTIL_TEST_INT", "not-a-number")
	if got := Int("ENVUTIL_TEST_INT", 3); got != 3 {
		t.Fatalf("Int = %d, want fallback on parse failure", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_DUR", "90s")
	if got := Duration("ENVUTIL_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("Duration = %v, want 90s", got)
	}
	if got := Duration("ENVUTIL_TEST_DUR_UNSET", time.Second); got != time.Second {
		t.Fatalf("Duration = %v, want fallback", got)
	}
}
