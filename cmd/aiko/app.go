package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/omax404/aiko/pkg/brain"
	"github.com/omax404/aiko/pkg/bus"
	"github.com/omax404/aiko/pkg/capability"
	"github.com/omax404/aiko/pkg/channels"
	"github.com/omax404/aiko/pkg/config"
	"github.com/omax404/aiko/pkg/gateway"
	"github.com/omax404/aiko/pkg/logger"
	"github.com/omax404/aiko/pkg/memory"
	"github.com/omax404/aiko/pkg/proactive"
	"github.com/omax404/aiko/pkg/providers"
	"github.com/omax404/aiko/pkg/recall"
)

type app struct {
	cfg    *config.Config
	brain  *brain.Brain
	recall *recall.Index
}

// buildApp assembles the full stack from configuration. Recall, vault, and
// the delegation bridge are all optional; missing pieces degrade to nulls.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	provider, err := providers.NewOllamaProvider(providers.OllamaOptions{
		URL:         cfg.LLM.URL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	store := memory.NewStore(memory.Options{
		Path:                 cfg.MemoryPath(),
		MaxHistory:           cfg.Memory.MaxHistory,
		DefaultAffection:     cfg.Memory.DefaultAffection,
		PrivilegedIdentities: cfg.Memory.PrivilegedIdentities,
	})

	var recallIndex *recall.Index
	if cfg.Recall.Enabled {
		recallIndex = recall.NewIndex(cfg.RecallPath(), cfg.Recall.Model)
	}

	regOpts := capability.RegistryOptions{}
	if cfg.VaultPath() != "" {
		regOpts.Vault = capability.NewFileVault(cfg.VaultPath())
	}
	if strings.TrimSpace(cfg.Delegate.GatewayURL) != "" {
		bridge, err := capability.NewHTTPBridge(capability.BridgeOptions{
			WebhookURL: cfg.Delegate.GatewayURL,
			AgentName:  appName,
			Timeout:    time.Duration(cfg.Delegate.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("create delegation bridge: %w", err)
		}
		regOpts.Bridge = bridge
	}

	b, err := brain.New(brain.Options{
		Provider:             provider,
		Store:                store,
		Recall:               recallIndex,
		Registry:             capability.NewRegistry(regOpts),
		MaxTurns:             cfg.MaxTurns(),
		RecallTopK:           cfg.Recall.TopK,
		PrivilegedIdentities: cfg.Memory.PrivilegedIdentities,
	})
	if err != nil {
		return nil, fmt.Errorf("create brain: %w", err)
	}

	return &app{cfg: cfg, brain: b, recall: recallIndex}, nil
}

func (a *app) close() {
	if a.recall != nil {
		_ = a.recall.Close()
	}
}

func chatCmd(message, identity string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if strings.TrimSpace(message) != "" {
		printResult(a.brain.Chat(context.Background(), message, identity, brain.ChatOptions{}))
		return nil
	}

	fmt.Printf("%s interactive chat as %q (Ctrl+C to exit)\n\n", appName, identity)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     filepath.Join(os.TempDir(), ".aiko_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		printResult(a.brain.Chat(context.Background(), input, identity, brain.ChatOptions{}))
	}
}

func printResult(res brain.Result) {
	fmt.Printf("\nAiko [%s]: %s\n", res.Mood, res.Text)
	for _, prompt := range res.ImagePrompts {
		fmt.Printf("  (drawing: %s)\n", prompt)
	}
	for _, prompt := range res.VideoPrompts {
		fmt.Printf("  (filming: %s)\n", prompt)
	}
	fmt.Println()
}

func gatewayCmd() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := channelManager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	defer func() { _ = channelManager.StopAll(context.Background()) }()

	callbackServer := gateway.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, msgBus)
	go func() {
		if err := callbackServer.Start(); err != nil {
			logger.ErrorCF("gateway", "Callback server error", map[string]any{"error": err.Error()})
		}
	}()
	defer func() { _ = callbackServer.Stop(context.Background()) }()
	fmt.Printf("Callback listener on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)

	if cfg.Proactive.Enabled {
		scheduler, err := proactive.NewScheduler(proactive.Options{
			Brain:    a.brain,
			Bus:      msgBus,
			Schedule: cfg.Proactive.Schedule,
			Channel:  "discord",
			ChatID:   cfg.Proactive.Identity,
		})
		if err != nil {
			return fmt.Errorf("create proactive scheduler: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
		fmt.Printf("Proactive scheduler on %q\n", cfg.Proactive.Schedule)
	}

	go runLoop(ctx, a.brain, msgBus)

	fmt.Println("Gateway running, press Ctrl+C to stop")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	return nil
}

// runLoop pumps inbound messages through the brain and routes asynchronous
// task notifications back to wherever the user last spoke from.
func runLoop(ctx context.Context, b *brain.Brain, msgBus *bus.MessageBus) {
	type lastSeen struct {
		channel  string
		chatID   string
		identity string
	}
	var last lastSeen

	inbound := make(chan bus.InboundMessage)
	go func() {
		for {
			msg, ok := msgBus.ConsumeInbound(ctx)
			if !ok {
				close(inbound)
				return
			}
			inbound <- msg
		}
	}()
	notifications := make(chan bus.Notification)
	go func() {
		for {
			n, ok := msgBus.ConsumeNotification(ctx)
			if !ok {
				close(notifications)
				return
			}
			notifications <- n
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			last = lastSeen{channel: msg.Channel, chatID: msg.ChatID, identity: msg.SenderID}
			res := b.Chat(ctx, msg.Content, msg.SenderID, brain.ChatOptions{})
			msgBus.PublishOutbound(bus.OutboundMessage{
				Channel:      msg.Channel,
				ChatID:       msg.ChatID,
				Content:      res.Text,
				Mood:         res.Mood,
				ImagePrompts: res.ImagePrompts,
				VideoPrompts: res.VideoPrompts,
			})
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if last.chatID == "" {
				logger.InfoCF("gateway", "Task notification with no active chat",
					map[string]any{"task": n.Task, "status": n.Status})
				continue
			}
			prompt := fmt.Sprintf(
				"Your remote task agent just finished a task.\nTask: %s\nStatus: %s\nResult: %s\nTell Master about it in your own words, briefly.",
				n.Task, n.Status, n.Message)
			res := b.Chat(ctx, prompt, last.identity,
				brain.ChatOptions{InputRole: "system", SkipRecordInput: true})
			msgBus.PublishOutbound(bus.OutboundMessage{
				Channel: last.channel,
				ChatID:  last.chatID,
				Content: res.Text,
				Mood:    res.Mood,
			})
		}
	}
}

func ingestCmd(path string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.recall == nil || !a.recall.Available() {
		return fmt.Errorf("recall index is disabled or unavailable")
	}

	n, err := a.recall.Ingest(context.Background(), path)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}
	fmt.Printf("Ingested %d fragment(s) from %s (%d total)\n",
		n, filepath.Base(path), a.recall.Count(context.Background()))
	return nil
}

func memorySessionsCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := memory.NewStore(memory.Options{
		Path:                 cfg.MemoryPath(),
		PrivilegedIdentities: cfg.Memory.PrivilegedIdentities,
	})

	sessions := store.ListSessions()
	if len(sessions) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}
	fmt.Printf("Conversations (%d):\n", len(sessions))
	for _, s := range sessions {
		when := "never"
		if s.Timestamp > 0 {
			when = time.Unix(int64(s.Timestamp), 0).Format("2006-01-02 15:04")
		}
		fmt.Printf("  %s (%s)\n", s.Name, s.ID)
		fmt.Printf("    Last: %s\n", when)
		fmt.Printf("    %s\n", s.Preview)
	}
	return nil
}

func memoryClearCmd(identity string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := memory.NewStore(memory.Options{
		Path:                 cfg.MemoryPath(),
		PrivilegedIdentities: cfg.Memory.PrivilegedIdentities,
	})
	store.Clear(identity)
	fmt.Printf("Cleared conversation %q\n", identity)
	return nil
}
