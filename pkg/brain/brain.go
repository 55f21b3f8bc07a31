// Package brain is the dialogue orchestrator: it gathers context, runs the
// bounded think loop against the model, dispatches tag invocations, and
// produces the final cleaned response. It is the only writer of assistant
// messages into the conversation store.
package brain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/omax404/aiko/pkg/capability"
	"github.com/omax404/aiko/pkg/logger"
	"github.com/omax404/aiko/pkg/memory"
	"github.com/omax404/aiko/pkg/persona"
	"github.com/omax404/aiko/pkg/providers"
	"github.com/omax404/aiko/pkg/recall"
	"github.com/omax404/aiko/pkg/tagparse"
)

const (
	defaultMaxTurns   = 3
	recallCharLimit   = 1000
	defaultRecallTopK = 3
	rawHelperPrompt   = "You are a JSON Computer Agent helper."
	apologyModelDown  = "Uwaah... my head feels all fuzzy right now... I can't reach my thoughts. Give me a moment and try again, okay?"
)

// Result is the outcome of one chat turn. Image and video prompts are side
// channels for the renderer; Text is already tag-free.
type Result struct {
	Text         string
	Mood         string
	ImagePrompts []string
	VideoPrompts []string
}

// ChatOptions tweaks one Chat call.
type ChatOptions struct {
	// InputRole is the role the input message carries, default "user".
	// Task-completion announcements arrive as "system".
	InputRole string
	// SkipRecordInput keeps the input message out of the conversation
	// store. The assistant reply is still recorded either way.
	SkipRecordInput bool
	MoodOverride    string
}

// Options wires the brain's collaborators.
type Options struct {
	Provider             providers.LLMProvider
	Store                *memory.Store
	Recall               *recall.Index
	Registry             *capability.Registry
	MaxTurns             int
	RecallTopK           int
	PrivilegedIdentities []string
	Now                  func() time.Time
}

// Brain runs the gather/think/respond loop.
type Brain struct {
	provider   providers.LLMProvider
	store      *memory.Store
	recall     *recall.Index
	registry   *capability.Registry
	maxTurns   int
	recallTopK int
	privileged map[string]bool
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(opts Options) (*Brain, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	topK := opts.RecallTopK
	if topK <= 0 {
		topK = defaultRecallTopK
	}
	registry := opts.Registry
	if registry == nil {
		registry = capability.NewRegistry(capability.RegistryOptions{})
	}
	privileged := make(map[string]bool, len(opts.PrivilegedIdentities))
	for _, id := range opts.PrivilegedIdentities {
		privileged[id] = true
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Brain{
		provider:   opts.Provider,
		store:      opts.Store,
		recall:     opts.Recall,
		registry:   registry,
		maxTurns:   maxTurns,
		recallTopK: topK,
		privileged: privileged,
		now:        now,
		locks:      map[string]*sync.Mutex{},
	}, nil
}

// identityLock serializes concurrent Chat calls per identity so history
// interleaving stays coherent. Different identities proceed in parallel.
func (b *Brain) identityLock(identity string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		b.locks[identity] = l
	}
	return l
}

// Chat runs one full dialogue turn. It never returns an error: model and
// capability failures degrade into in-persona text on the Result.
func (b *Brain) Chat(ctx context.Context, message, identity string, opts ChatOptions) Result {
	lock := b.identityLock(identity)
	lock.Lock()
	defer lock.Unlock()

	inputRole := opts.InputRole
	if inputRole == "" {
		inputRole = "user"
	}
	logger.InfoCF("brain", fmt.Sprintf("Processing message from %s", identity),
		map[string]any{"length": len(message), "role": inputRole})

	// GATHER
	if !opts.SkipRecordInput {
		b.store.Append(identity, inputRole, message)
	}
	recallBlock := b.recallContext(ctx, message)
	messages := b.assembleMessages(message, inputRole, identity, recallBlock, opts)

	// THINK
	var (
		finalResponse string
		imagePrompts  []string
		videoPrompts  []string
	)
	for turn := 1; turn <= b.maxTurns; turn++ {
		response, err := b.provider.Chat(ctx, messages)
		if err != nil {
			logger.ErrorCF("brain", "Model call failed",
				map[string]any{"turn": turn, "error": err.Error()})
			return Result{Text: apologyModelDown, Mood: "sad"}
		}
		finalResponse = response

		if !tagparse.DetectAny(response) {
			logger.DebugCF("brain", "Direct answer, no tool pass",
				map[string]any{"turn": turn})
			break
		}

		invocations := tagparse.Extract(response)
		imagePrompts = appendSideChannel(imagePrompts, invocations, tagparse.KindDraw)
		videoPrompts = appendSideChannel(videoPrompts, invocations, tagparse.KindVideo)

		observations := b.registry.Dispatch(ctx, invocations)
		logger.InfoCF("brain", "Tool pass complete",
			map[string]any{"turn": turn, "observations": len(observations)})

		// Re-prompt whenever a trigger tag fired, even with nothing to
		// feed back, so the model gets a turn to phrase its closing line.
		messages = append(messages, providers.ChatMessage{Role: "assistant", Content: response})
		if len(observations) > 0 {
			messages = append(messages, providers.ChatMessage{Role: "system", Content: "[OBSERVATIONS]\n" + strings.Join(observations, "\n")})
		}
	}

	// RESPOND
	text := tagparse.Strip(finalResponse)
	if text == "" {
		text = "..."
	}
	b.store.Append(identity, "assistant", text)

	return Result{
		Text:         text,
		Mood:         persona.DetectMood(text),
		ImagePrompts: imagePrompts,
		VideoPrompts: videoPrompts,
	}
}

// AskRaw runs a single persona-free completion. Unlike Chat it surfaces
// errors; callers decide how to degrade.
func (b *Brain) AskRaw(ctx context.Context, prompt string) (string, error) {
	return b.provider.Chat(ctx, []providers.ChatMessage{
		{Role: "system", Content: rawHelperPrompt},
		{Role: "user", Content: prompt},
	})
}

// Affection exposes the stored affection level read-only.
func (b *Brain) Affection(identity string) int {
	return b.store.Affection(identity)
}

func (b *Brain) recallContext(ctx context.Context, message string) string {
	if b.recall == nil || !b.recall.Available() {
		return ""
	}
	fragments := b.recall.Query(ctx, message, b.recallTopK)
	if len(fragments) == 0 {
		return ""
	}
	var parts []string
	for _, f := range fragments {
		parts = append(parts, "- "+f.Text)
	}
	block := strings.Join(parts, "\n")
	if len(block) > recallCharLimit {
		cut := recallCharLimit
		for cut > 0 && !utf8.RuneStart(block[cut]) {
			cut--
		}
		block = block[:cut]
	}
	return block
}

func (b *Brain) assembleMessages(message, inputRole, identity, recallBlock string, opts ChatOptions) []providers.ChatMessage {
	system := persona.SystemPrompt(persona.PromptOptions{
		Privileged:   b.privileged[identity],
		MoodOverride: opts.MoodOverride,
		Now:          b.now(),
	})
	system += "\n\n" + persona.TagLegend
	if recallBlock != "" {
		system += "\n\n[RELEVANT MEMORIES]\n" + recallBlock
	}

	messages := []providers.ChatMessage{{Role: "system", Content: system}}
	for _, h := range b.store.GetHistory(identity) {
		messages = append(messages, providers.ChatMessage{Role: h.Role, Content: h.Content})
	}
	if opts.SkipRecordInput {
		// Not in history, so the input rides along transiently.
		messages = append(messages, providers.ChatMessage{Role: inputRole, Content: message})
	}
	return messages
}

// appendSideChannel keeps at most one prompt per art kind across the whole
// call, first occurrence wins.
func appendSideChannel(prompts []string, invocations []tagparse.Invocation, kind tagparse.Kind) []string {
	if len(prompts) > 0 {
		return prompts
	}
	for _, inv := range invocations {
		if inv.Kind == kind && len(inv.Args) > 0 && inv.Args[0] != "" {
			return append(prompts, inv.Args[0])
		}
	}
	return prompts
}
