package logger

import "testing"

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"DEBUG":   DEBUG,
		"info":    INFO,
		"warn":    WARN,
		"warning": WARN,
		"error":   ERROR,
		"bogus":   INFO,
		"":        INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetLevelFiltering(t *testing.T) {
	orig := GetLevel()
	defer SetLevel(orig)

	SetLevel(ERROR)
	if GetLevel() != ERROR {
		t.Fatalf("level = %v after SetLevel(ERROR)", GetLevel())
	}

	// Below-threshold calls must be no-ops and must not panic with nil fields.
	DebugC("test", "suppressed")
	InfoCF("test", "suppressed", nil)
	WarnCF("test", "suppressed", map[string]any{"k": 1})
}

func TestLevelString(t *testing.T) {
	if DEBUG.String() != "DEBUG" || ERROR.String() != "ERROR" {
		t.Errorf("unexpected level names: %s %s", DEBUG, ERROR)
	}
	if Level(99).String() != "UNKNOWN" {
		t.Errorf("out-of-range level should stringify as UNKNOWN")
	}
}
