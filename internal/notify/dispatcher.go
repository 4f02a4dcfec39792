package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Outcomes reported to the OutcomeFunc.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

const DefaultQueueSize = 64

// Notifier accepts messages for asynchronous delivery.
type Notifier interface {
	Notify(msg Message)
}

// OutcomeFunc observes the fate of each message, e.g. to count it.
type OutcomeFunc func(outcome string)

// Nop discards every message. It is used when no webhook is configured.
type Nop struct{}

func (Nop) Notify(Message) {}

// Dispatcher queues messages in a bounded buffer and delivers them from a
// single goroutine started by Run.
type Dispatcher struct {
	sender  Sender
	queue   chan Message
	timeout time.Duration
	logger  zerolog.Logger
	outcome OutcomeFunc
}

// DispatcherConfig configures NewDispatcher. Zero values select defaults.
type DispatcherConfig struct {
	QueueSize int
	Timeout   time.Duration
	Outcome   OutcomeFunc
}

func NewDispatcher(sender Sender, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Outcome == nil {
		cfg.Outcome = func(string) {}
	}
	return &Dispatcher{
		sender:  sender,
		queue:   make(chan Message, cfg.QueueSize),
		timeout: cfg.Timeout,
		logger:  logger.With().Str("component", "notify").Logger(),
		outcome: cfg.Outcome,
	}
}

// Notify enqueues msg without blocking. When the queue is full the message
// is dropped and logged.
func (d *Dispatcher) Notify(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.outcome(OutcomeDropped)
		d.logger.Warn().Str("title", msg.Title).Msg("notification queue full, dropping message")
	}
}

// Run delivers queued messages until ctx is cancelled. Messages still queued
// at shutdown are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if pending := len(d.queue); pending > 0 {
				d.logger.Info().Int("pending", pending).Msg("dropping queued notifications on shutdown")
			}
			return nil
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, msg); err != nil {
		d.outcome(OutcomeFailed)
		d.logger.Error().Err(err).Str("title", msg.Title).Msg("notification delivery failed")
		return
	}
	d.outcome(OutcomeSent)
	d.logger.Debug().Str("title", msg.Title).Msg("notification sent")
}
