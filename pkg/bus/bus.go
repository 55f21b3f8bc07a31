package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// InboundMessage is a user message arriving from a channel bridge or the CLI.
type InboundMessage struct {
	Channel  string
	SenderID string
	ChatID   string
	Content  string
}

// OutboundMessage is a response on its way back to a channel bridge.
type OutboundMessage struct {
	Channel      string
	ChatID       string
	Content      string
	Mood         string
	ImagePrompts []string
	VideoPrompts []string
}

// Notification is an asynchronous completion callback from the remote task
// system (delegated tasks reporting back through the gateway).
type Notification struct {
	Task    string
	Message string
	Status  string
}

type MessageBus struct {
	inbound       chan InboundMessage
	outbound      chan OutboundMessage
	notifications chan Notification
	closed        bool
	dropped       droppedCounters
	mu            sync.RWMutex
}

type droppedCounters struct {
	inbound       atomic.Uint64
	outbound      atomic.Uint64
	notifications atomic.Uint64
}

const publishTimeout = 100 * time.Millisecond

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:       make(chan InboundMessage, 100),
		outbound:      make(chan OutboundMessage, 100),
		notifications: make(chan Notification, 100),
	}
}

func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}

	select {
	case mb.inbound <- msg:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.inbound <- msg:
		case <-timer.C:
			mb.dropped.inbound.Add(1)
		}
	}
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-mb.inbound:
		if !ok {
			return InboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}

	select {
	case mb.outbound <- msg:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.outbound <- msg:
		case <-timer.C:
			mb.dropped.outbound.Add(1)
		}
	}
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg, ok := <-mb.outbound:
		if !ok {
			return OutboundMessage{}, false
		}
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

func (mb *MessageBus) PublishNotification(n Notification) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}

	select {
	case mb.notifications <- n:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.notifications <- n:
		case <-timer.C:
			mb.dropped.notifications.Add(1)
		}
	}
}

func (mb *MessageBus) ConsumeNotification(ctx context.Context) (Notification, bool) {
	select {
	case n, ok := <-mb.notifications:
		if !ok {
			return Notification{}, false
		}
		return n, true
	case <-ctx.Done():
		return Notification{}, false
	}
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound)
	close(mb.outbound)
	close(mb.notifications)
}

func (mb *MessageBus) DroppedInbound() uint64 {
	return mb.dropped.inbound.Load()
}

func (mb *MessageBus) DroppedOutbound() uint64 {
	return mb.dropped.outbound.Load()
}

func (mb *MessageBus) DroppedNotifications() uint64 {
	return mb.dropped.notifications.Load()
}
