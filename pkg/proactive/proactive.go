// Package proactive lets the assistant speak first. A cron-gated scheduler
// periodically asks the model whether anything is worth surfacing and
// publishes the result as an outbound message.
package proactive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/omax404/aiko/pkg/bus"
	"github.com/omax404/aiko/pkg/logger"
	"github.com/omax404/aiko/pkg/persona"
)

const defaultTickInterval = time.Minute

// Asker is the slice of the brain the scheduler needs.
type Asker interface {
	AskRaw(ctx context.Context, prompt string) (string, error)
}

// Options wires a Scheduler.
type Options struct {
	Brain    Asker
	Bus      *bus.MessageBus
	Schedule string // cron expression gating the ticks
	Channel  string // outbound target channel
	ChatID   string // outbound target chat
	Interval time.Duration
	Now      func() time.Time
}

// Scheduler runs the proactive tick loop until stopped.
type Scheduler struct {
	brain    Asker
	bus      *bus.MessageBus
	schedule string
	channel  string
	chatID   string
	interval time.Duration
	now      func() time.Time
	gron     *gronx.Gronx

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Brain == nil || opts.Bus == nil {
		return nil, fmt.Errorf("brain and bus are required")
	}
	g := gronx.New()
	schedule := strings.TrimSpace(opts.Schedule)
	if schedule == "" {
		schedule = "*/30 * * * *"
	}
	if !g.IsValid(schedule) {
		return nil, fmt.Errorf("invalid proactive schedule %q", schedule)
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		brain:    opts.Brain,
		bus:      opts.Bus,
		schedule: schedule,
		channel:  opts.Channel,
		chatID:   opts.ChatID,
		interval: interval,
		now:      now,
		gron:     g,
	}, nil
}

// Start launches the tick loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	logger.InfoCF("proactive", "Scheduler started",
		map[string]any{"schedule": s.schedule})
	go s.run(runCtx)
}

// Stop cancels the loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.InfoC("proactive", "Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var lastMinute time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// gronx resolves 5-field expressions at second zero, so the
			// reference is truncated to the minute and each minute is
			// evaluated once no matter how often the ticker fires.
			ref := s.now().Truncate(time.Minute)
			if ref.Equal(lastMinute) {
				continue
			}
			lastMinute = ref
			due, err := s.gron.IsDue(s.schedule, ref)
			if err != nil || !due {
				continue
			}
			s.tick(ctx)
		}
	}
}

const judgmentPrompt = `You are the inner monologue of Aiko, a desktop companion.
The current time is %s. Decide whether Aiko should say something to Master right now without being asked.
Good reasons: it has been quiet for a while, time-of-day greetings, a gentle reminder to rest late at night.
If there is nothing worth saying, reply with exactly SKIP.
Otherwise reply with only the message Aiko should send, in her voice.`

// tick asks the model for a judgment and publishes anything it wants said.
func (s *Scheduler) tick(ctx context.Context) {
	prompt := fmt.Sprintf(judgmentPrompt, s.now().Format("Monday 03:04 PM"))
	reply, err := s.brain.AskRaw(ctx, prompt)
	if err != nil {
		logger.WarnCF("proactive", "Judgment call failed",
			map[string]any{"error": err.Error()})
		return
	}

	reply = strings.TrimSpace(reply)
	if reply == "" || strings.EqualFold(reply, "SKIP") {
		logger.DebugC("proactive", "Nothing to surface this tick")
		return
	}

	logger.InfoCF("proactive", "Publishing proactive message",
		map[string]any{"length": len(reply)})
	s.bus.PublishOutbound(bus.OutboundMessage{
		Channel: s.channel,
		ChatID:  s.chatID,
		Content: reply,
		Mood:    persona.DetectMood(reply),
	})
}
