package brain

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/omax404/aiko/pkg/capability"
	"github.com/omax404/aiko/pkg/memory"
	"github.com/omax404/aiko/pkg/providers"
	"github.com/omax404/aiko/pkg/recall"
)

// scriptedProvider returns canned responses in order, repeating the last one.
type scriptedProvider struct {
	responses []string
	err       error
	calls     int
	lastSeen  []providers.ChatMessage
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(_ context.Context, messages []providers.ChatMessage) (string, error) {
	p.calls++
	p.lastSeen = messages
	if p.err != nil {
		return "", p.err
	}
	i := p.calls - 1
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], nil
}

type stubVision struct{ analysis string }

func (s *stubVision) ScanScreen(context.Context) (string, error) { return s.analysis, nil }

func newTestBrain(t *testing.T, p providers.LLMProvider, reg *capability.Registry) (*Brain, *memory.Store) {
	t.Helper()
	store := memory.NewStore(memory.Options{
		Path:                 filepath.Join(t.TempDir(), "memory.json"),
		PrivilegedIdentities: []string{"omax404"},
	})
	b, err := New(Options{
		Provider:             p,
		Store:                store,
		Registry:             reg,
		PrivilegedIdentities: []string{"omax404"},
	})
	if err != nil {
		t.Fatalf("new brain: %v", err)
	}
	return b, store
}

func TestChatPlainGreeting(t *testing.T) {
	p := &scriptedProvider{responses: []string{"Hi there!"}}
	b, store := newTestBrain(t, p, nil)

	res := b.Chat(context.Background(), "Hello", "omax404", ChatOptions{})
	if res.Text != "Hi there!" {
		t.Errorf("text = %q", res.Text)
	}
	if p.calls != 1 {
		t.Errorf("expected 1 model call, got %d", p.calls)
	}
	hist := store.GetHistory("omax404")
	if len(hist) != 2 || hist[0].Content != "Hello" || hist[1].Content != "Hi there!" {
		t.Errorf("unexpected history: %#v", hist)
	}
}

func TestChatDrawSideChannel(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		"[DRAW: a cat] Let me draw that.",
		"Here you go!",
	}}
	b, _ := newTestBrain(t, p, nil)

	res := b.Chat(context.Background(), "draw me a cat", "omax404", ChatOptions{})
	// An art tag still triggers a follow-up turn; the closing line is final.
	if p.calls != 2 {
		t.Errorf("expected 2 model calls, got %d", p.calls)
	}
	if res.Text != "Here you go!" {
		t.Errorf("text = %q", res.Text)
	}
	if len(res.ImagePrompts) != 1 || res.ImagePrompts[0] != "a cat" {
		t.Errorf("image prompts = %#v", res.ImagePrompts)
	}
}

func TestChatDrawDedupedAcrossTurns(t *testing.T) {
	reg := capability.NewRegistry(capability.RegistryOptions{Vision: &stubVision{analysis: "desktop"}})
	p := &scriptedProvider{responses: []string{
		"Let me look. [SCAN] [DRAW: a cat]",
		"All done! [DRAW: a dog]",
	}}
	b, _ := newTestBrain(t, p, reg)

	res := b.Chat(context.Background(), "scan and draw", "omax404", ChatOptions{})
	if len(res.ImagePrompts) != 1 || res.ImagePrompts[0] != "a cat" {
		t.Errorf("first draw must win: %#v", res.ImagePrompts)
	}
	if res.Text != "All done!" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestChatLoopTerminatesAtMaxTurns(t *testing.T) {
	reg := capability.NewRegistry(capability.RegistryOptions{Vision: &stubVision{analysis: "still looking"}})
	p := &scriptedProvider{responses: []string{"Checking... [SCAN]"}}
	b, _ := newTestBrain(t, p, reg)

	res := b.Chat(context.Background(), "watch the screen", "omax404", ChatOptions{})
	if p.calls != defaultMaxTurns {
		t.Errorf("expected exactly %d model calls, got %d", defaultMaxTurns, p.calls)
	}
	if res.Text != "Checking..." {
		t.Errorf("text = %q", res.Text)
	}
}

func TestChatObservationsFedBack(t *testing.T) {
	reg := capability.NewRegistry(capability.RegistryOptions{Vision: &stubVision{analysis: "a browser showing cat pictures"}})
	p := &scriptedProvider{responses: []string{
		"Let me see! [SCAN]",
		"You're looking at cat pictures!",
	}}
	b, _ := newTestBrain(t, p, reg)

	res := b.Chat(context.Background(), "what am I looking at?", "omax404", ChatOptions{})
	if res.Text != "You're looking at cat pictures!" {
		t.Errorf("text = %q", res.Text)
	}
	if p.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", p.calls)
	}

	last := p.lastSeen[len(p.lastSeen)-1]
	if last.Role != "system" || !strings.Contains(last.Content, "[OBSERVATIONS]") {
		t.Errorf("observations block missing: %#v", last)
	}
	if !strings.Contains(last.Content, "Screen Analysis: a browser showing cat pictures") {
		t.Errorf("observation content missing: %q", last.Content)
	}
}

func TestChatModelFailureIsApologetic(t *testing.T) {
	p := &scriptedProvider{err: errors.New("connection refused")}
	b, store := newTestBrain(t, p, nil)

	res := b.Chat(context.Background(), "hi", "omax404", ChatOptions{})
	if res.Text != apologyModelDown {
		t.Errorf("text = %q", res.Text)
	}
	if strings.Contains(res.Text, "connection refused") {
		t.Errorf("raw error leaked to user text")
	}
	// The user message is kept, no assistant message is recorded.
	hist := store.GetHistory("omax404")
	if len(hist) != 1 || hist[0].Role != "user" {
		t.Errorf("unexpected history after failure: %#v", hist)
	}
}

func TestChatSystemInputNotRecordedButReplyIs(t *testing.T) {
	p := &scriptedProvider{responses: []string{"Master! The downloads are all sorted now!"}}
	b, store := newTestBrain(t, p, nil)

	res := b.Chat(context.Background(), "Task finished: sort downloads", "omax404",
		ChatOptions{InputRole: "system", SkipRecordInput: true})
	if res.Text != "Master! The downloads are all sorted now!" {
		t.Errorf("text = %q", res.Text)
	}

	// The announcement itself stays out of history, the reply goes in so the
	// conversation remembers what Aiko said.
	hist := store.GetHistory("omax404")
	if len(hist) != 1 || hist[0].Role != "assistant" {
		t.Fatalf("expected only the assistant reply recorded: %#v", hist)
	}

	// The input still reaches the model, carrying its role override.
	last := p.lastSeen[len(p.lastSeen)-1]
	if last.Role != "system" || last.Content != "Task finished: sort downloads" {
		t.Errorf("input not forwarded to the model: %#v", last)
	}
}

func TestChatStrangerGetsGroupChatPrompt(t *testing.T) {
	p := &scriptedProvider{responses: []string{"Hey bestie!"}}
	b, _ := newTestBrain(t, p, nil)

	b.Chat(context.Background(), "yo", "random-user", ChatOptions{})
	system := p.lastSeen[0]
	if system.Role != "system" || !strings.Contains(system.Content, "PUBLIC / GROUP CHAT MODE") {
		t.Errorf("stranger should get the group chat prompt")
	}

	b.Chat(context.Background(), "yo", "omax404", ChatOptions{})
	if strings.Contains(p.lastSeen[0].Content, "PUBLIC / GROUP CHAT MODE") {
		t.Errorf("privileged identity must not get the group chat prompt")
	}
}

func TestRecallTopKConfigurable(t *testing.T) {
	store := memory.NewStore(memory.Options{
		Path: filepath.Join(t.TempDir(), "memory.json"),
	})
	idx := recall.NewIndex(filepath.Join(t.TempDir(), "recall.db"), "")
	defer idx.Close()
	ctx := context.Background()
	idx.Add(ctx, "ramen night is on friday", nil)
	idx.Add(ctx, "ramen toppings live in the left cupboard", nil)

	p := &scriptedProvider{responses: []string{"Noted!"}}
	b, err := New(Options{Provider: p, Store: store, Recall: idx, RecallTopK: 1})
	if err != nil {
		t.Fatalf("new brain: %v", err)
	}

	b.Chat(ctx, "where is the ramen", "omax404", ChatOptions{})
	system := p.lastSeen[0].Content
	pos := strings.Index(system, "[RELEVANT MEMORIES]")
	if pos < 0 {
		t.Fatalf("no recall block in system prompt")
	}
	if n := strings.Count(system[pos:], "- ramen"); n != 1 {
		t.Errorf("expected exactly 1 recalled fragment, got %d", n)
	}
}

func TestRecallTruncationKeepsValidUTF8(t *testing.T) {
	store := memory.NewStore(memory.Options{
		Path: filepath.Join(t.TempDir(), "memory.json"),
	})
	idx := recall.NewIndex(filepath.Join(t.TempDir(), "recall.db"), "")
	defer idx.Close()
	ctx := context.Background()
	idx.Add(ctx, strings.Repeat("ラーメン大好き", 60), nil) // well past the recall budget

	p := &scriptedProvider{responses: []string{"ok"}}
	b, err := New(Options{Provider: p, Store: store, Recall: idx})
	if err != nil {
		t.Fatalf("new brain: %v", err)
	}

	block := b.recallContext(ctx, "ラーメン")
	if block == "" {
		t.Fatalf("expected a recall block")
	}
	if len(block) > recallCharLimit {
		t.Errorf("block length %d exceeds limit %d", len(block), recallCharLimit)
	}
	if !utf8.ValidString(block) {
		t.Errorf("truncation split a multi-byte rune")
	}
}

func TestChatWorksWithoutRecall(t *testing.T) {
	p := &scriptedProvider{responses: []string{"All good!"}}
	b, _ := newTestBrain(t, p, nil) // no recall index wired at all

	res := b.Chat(context.Background(), "hello", "omax404", ChatOptions{})
	if res.Text != "All good!" || res.Mood == "" {
		t.Errorf("degraded recall should still produce a full result: %#v", res)
	}
}

func TestAskRawSurfacesErrors(t *testing.T) {
	p := &scriptedProvider{err: errors.New("down")}
	b, _ := newTestBrain(t, p, nil)

	if _, err := b.AskRaw(context.Background(), "judge this"); err == nil {
		t.Fatalf("AskRaw must surface provider errors")
	}
}
