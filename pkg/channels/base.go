// Package channels hosts the chat bridges. Each bridge publishes inbound
// messages onto the bus and delivers brain responses back to its platform.
package channels

import (
	"context"
	"strings"

	"github.com/omax404/aiko/pkg/bus"
)

// Channel is one chat surface.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// BaseChannel carries the shared allow-list and bus plumbing.
type BaseChannel struct {
	bus       *bus.MessageBus
	name      string
	allowList []string
	running   bool
}

func NewBaseChannel(name string, b *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		bus:       b,
		name:      name,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string    { return c.name }
func (c *BaseChannel) IsRunning() bool { return c.running }

// IsAllowed checks the sender against the allow-list. An empty list means
// everyone; entries match either the raw ID or a "id|username" part.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		candidate := strings.TrimSpace(strings.TrimPrefix(allowed, "@"))
		if candidate == "" {
			continue
		}
		if candidate == senderID || candidate == idPart || (userPart != "" && candidate == userPart) {
			return true
		}
	}
	return false
}

// HandleMessage publishes an inbound message after the allow-list check.
// The sender ID doubles as the conversation identity.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string) {
	if !c.IsAllowed(senderID) {
		return
	}
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
	})
}

func (c *BaseChannel) setRunning(running bool) {
	c.running = running
}
