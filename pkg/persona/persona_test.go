package persona

import (
	"strings"
	"testing"
	"time"
)

func TestDetectMood(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Yay, you're back!", "happy"},
		{"I'm so sorry...", "sad"},
		{"baka.", "pout"},
		{"just a plain sentence", "neutral"},
		{"", "neutral"},
		{"I LOVE this", "happy"}, // case-insensitive
	}
	for _, tc := range cases {
		if got := DetectMood(tc.text); got != tc.want {
			t.Errorf("DetectMood(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestDetectMoodFirstCategoryWins(t *testing.T) {
	// "sorry" (sad) and "angry" both present; table order puts happy first,
	// then sad, so the "!" in this text wins as happy.
	if got := DetectMood("sorry, I'm angry!"); got != "happy" {
		t.Errorf("DetectMood = %q, want happy (table order)", got)
	}
	// Without the exclamation mark, sad wins over angry.
	if got := DetectMood("sorry, I'm angry."); got != "sad" {
		t.Errorf("DetectMood = %q, want sad", got)
	}
}

func TestSystemPromptTimeOfDay(t *testing.T) {
	morning := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	prompt := SystemPrompt(PromptOptions{Privileged: true, Now: morning})
	if !strings.Contains(prompt, "Time of day: morning") {
		t.Errorf("expected morning context in prompt")
	}
	if strings.Contains(prompt, "LATE NIGHT MODE") {
		t.Errorf("late night mode should not trigger at 9am")
	}

	lateNight := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	prompt = SystemPrompt(PromptOptions{Privileged: true, Now: lateNight})
	if !strings.Contains(prompt, "LATE NIGHT MODE") {
		t.Errorf("expected late night mode at 23:30")
	}
}

func TestSystemPromptStrangerMode(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	prompt := SystemPrompt(PromptOptions{Privileged: false, Now: now})
	if !strings.Contains(prompt, "PUBLIC / GROUP CHAT MODE") {
		t.Errorf("expected group chat override for non-privileged identity")
	}

	prompt = SystemPrompt(PromptOptions{Privileged: true, Now: now})
	if strings.Contains(prompt, "PUBLIC / GROUP CHAT MODE") {
		t.Errorf("privileged prompt must not carry the group chat override")
	}
}
