package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/omax404/aiko/pkg/bus"
	"github.com/omax404/aiko/pkg/logger"
)

const (
	sendTimeout           = 10 * time.Second
	typingRefreshInterval = 8 * time.Second
	messageSplitLimit     = 1500 // Discord caps at 2000, leave room for natural splits
)

// DiscordChannel bridges Discord DMs and servers to the brain. It is an
// alternate caller of the same chat contract the desktop app uses.
type DiscordChannel struct {
	*BaseChannel
	session  *discordgo.Session
	typing   map[string]context.CancelFunc
	typingMu sync.Mutex
}

func NewDiscordChannel(token string, allowFrom []string, b *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", b, allowFrom),
		session:     session,
		typing:      make(map[string]context.CancelFunc),
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bridge")

	c.session.AddHandler(c.handleMessage)
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bridge connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bridge")
	c.setRunning(false)
	c.stopAllTyping()
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

// Send delivers one brain response, split to fit the platform limit. Mood
// and art prompts are surfaced as flavor lines since Discord has no avatar.
func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bridge not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("chat ID is empty")
	}
	defer c.endTyping(msg.ChatID)

	content := msg.Content
	for _, prompt := range msg.ImagePrompts {
		content += fmt.Sprintf("\n*sketches: %s*", prompt)
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	for _, chunk := range splitMessage(content, messageSplitLimit) {
		if err := c.sendChunk(ctx, msg.ChatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage cuts content into platform-sized chunks at natural
// boundaries, preferring newlines over spaces over hard cuts.
func splitMessage(content string, limit int) []string {
	var messages []string
	for len(content) > 0 {
		if len(content) <= limit {
			messages = append(messages, content)
			break
		}
		cut := findLastBoundary(content[:limit], '\n', 200)
		if cut <= 0 {
			cut = findLastBoundary(content[:limit], ' ', 100)
		}
		if cut <= 0 {
			cut = limit
		}
		messages = append(messages, content[:cut])
		content = strings.TrimSpace(content[cut:])
	}
	return messages
}

func findLastBoundary(s string, sep byte, window int) int {
	start := len(s) - window
	if start < 0 {
		start = 0
	}
	for i := len(s) - 1; i >= start; i-- {
		if s[i] == sep {
			return i
		}
	}
	return -1
}

func (c *DiscordChannel) sendChunk(ctx context.Context, channelID, content string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.session.ChannelMessageSend(channelID, content)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) beginTyping(channelID string) {
	if channelID == "" {
		return
	}
	c.typingMu.Lock()
	if _, ok := c.typing[channelID]; ok {
		c.typingMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.typing[channelID] = cancel
	c.typingMu.Unlock()

	c.sendTyping(channelID)
	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !c.IsRunning() {
					return
				}
				c.sendTyping(channelID)
			}
		}
	}()
}

func (c *DiscordChannel) endTyping(channelID string) {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	if cancel, ok := c.typing[channelID]; ok {
		cancel()
		delete(c.typing, channelID)
	}
}

func (c *DiscordChannel) stopAllTyping() {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	for channelID, cancel := range c.typing {
		cancel()
		delete(c.typing, channelID)
	}
}

func (c *DiscordChannel) sendTyping(channelID string) {
	if err := c.session.ChannelTyping(channelID); err != nil {
		logger.ErrorCF("discord", "Failed to send typing indicator",
			map[string]any{"error": err.Error()})
	}
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if !c.IsAllowed(m.Author.ID) {
		logger.DebugCF("discord", "Message rejected by allowlist",
			map[string]any{"user_id": m.Author.ID})
		return
	}

	content := m.Content
	for _, attachment := range m.Attachments {
		content = strings.TrimSpace(content + fmt.Sprintf("\n[attachment: %s]", attachment.URL))
	}
	if content == "" {
		return
	}

	c.beginTyping(m.ChannelID)
	logger.DebugCF("discord", "Received message", map[string]any{
		"sender_id": m.Author.ID,
		"username":  m.Author.Username,
	})
	c.HandleMessage(m.Author.ID, m.ChannelID, content)
}
