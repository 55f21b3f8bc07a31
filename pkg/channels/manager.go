package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/omax404/aiko/pkg/bus"
	"github.com/omax404/aiko/pkg/config"
	"github.com/omax404/aiko/pkg/logger"
)

// Manager owns the configured channels and pumps outbound bus messages to
// the right one.
type Manager struct {
	channels     map[string]Channel
	bus          *bus.MessageBus
	config       *config.Config
	dispatchStop context.CancelFunc
	mu           sync.RWMutex
}

func NewManager(cfg *config.Config, messageBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
		config:   cfg,
	}
	if err := m.initChannels(); err != nil {
		return nil, err
	}
	return m, nil
}

// initChannels builds every channel with configuration present. A missing
// Discord token just means no Discord bridge; the desktop surface does not
// go through the manager.
func (m *Manager) initChannels() error {
	logger.InfoC("channels", "Initializing channel manager")

	if strings.TrimSpace(m.config.Channels.Discord.Token) != "" {
		discord, err := NewDiscordChannel(
			m.config.Channels.Discord.Token,
			m.config.Channels.Discord.AllowFrom,
			m.bus,
		)
		if err != nil {
			return fmt.Errorf("initialize Discord channel: %w", err)
		}
		m.channels["discord"] = discord
		logger.InfoC("channels", "Discord channel initialized")
	}

	logger.InfoCF("channels", "Channel initialization completed",
		map[string]any{"enabled_channels": len(m.channels)})
	return nil
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	channelsCopy := make(map[string]Channel, len(m.channels))
	for name, channel := range m.channels {
		channelsCopy[name] = channel
	}
	m.mu.RUnlock()

	if len(channelsCopy) == 0 {
		logger.WarnC("channels", "No channels enabled")
	}

	var started []string
	var startErrors []string
	for name, channel := range channelsCopy {
		logger.InfoCF("channels", "Starting channel", map[string]any{"channel": name})
		if err := channel.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel",
				map[string]any{"channel": name, "error": err.Error()})
			startErrors = append(startErrors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		started = append(started, name)
	}

	if len(startErrors) > 0 {
		for _, name := range started {
			if err := channelsCopy[name].Stop(ctx); err != nil {
				logger.WarnCF("channels", "Failed to stop partially-started channel",
					map[string]any{"channel": name, "error": err.Error()})
			}
		}
		return fmt.Errorf("failed to start channels: %s", strings.Join(startErrors, "; "))
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.dispatchStop != nil {
		m.dispatchStop()
	}
	m.dispatchStop = cancel
	m.mu.Unlock()

	go m.dispatchOutbound(dispatchCtx)

	logger.InfoCF("channels", "All channels started", map[string]any{"count": len(started)})
	return nil
}

func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dispatchStop != nil {
		m.dispatchStop()
		m.dispatchStop = nil
	}

	for name, channel := range m.channels {
		if err := channel.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Error stopping channel",
				map[string]any{"channel": name, "error": err.Error()})
		}
	}
	logger.InfoC("channels", "All channels stopped")
	return nil
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	logger.InfoC("channels", "Outbound dispatcher started")
	for {
		select {
		case <-ctx.Done():
			logger.InfoC("channels", "Outbound dispatcher stopped")
			return
		default:
			msg, ok := m.bus.SubscribeOutbound(ctx)
			if !ok {
				continue
			}

			m.mu.RLock()
			channel, exists := m.channels[msg.Channel]
			m.mu.RUnlock()
			if !exists {
				logger.WarnCF("channels", "Unknown channel for outbound message",
					map[string]any{"channel": msg.Channel})
				continue
			}

			if err := channel.Send(ctx, msg); err != nil {
				logger.ErrorCF("channels", "Error sending message to channel",
					map[string]any{"channel": msg.Channel, "error": err.Error()})
			}
		}
	}
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.channels[name]
	return channel, ok
}

func (m *Manager) RegisterChannel(name string, channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = channel
}
