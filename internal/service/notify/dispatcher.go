package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nkiryanov/smarthome/internal/logger"
)

const (
	defaultCountWorkers = 2
	defaultQueueSize    = 128
	defaultSendTimeout  = 10 * time.Second
)

type DispatcherConfig struct {
	CountWorkers int
	QueueSize    int
}

// Dispatcher delivers messages in background so callers never wait for the transport
// Messages are dropped if the queue is full
type Dispatcher struct {
	countWorkers int
	queue        chan Message

	// Transport may throttle us
	// If so, workers wait until the time is up
	waitUntil atomic.Int64

	sender Sender
	logger logger.Logger
}

func NewDispatcher(cfg DispatcherConfig, sender Sender, logger logger.Logger) *Dispatcher {
	if cfg.CountWorkers <= 0 {
		cfg.CountWorkers = defaultCountWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	return &Dispatcher{
		countWorkers: cfg.CountWorkers,
		queue:        make(chan Message, cfg.QueueSize),
		sender:       sender,
		logger:       logger,
	}
}

func (d *Dispatcher) NotifyUser(ctx context.Context, chatID int64, text string) {
	d.enqueue(Message{ChatID: chatID, Text: text})
}

func (d *Dispatcher) NotifyAdmin(ctx context.Context, text string) {
	d.enqueue(Message{Admin: true, Text: text})
}

func (d *Dispatcher) enqueue(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("Notification queue is full, message dropped", "admin", msg.Admin)
	}
}

// Run workers until ctx is done
// The returned channel is closed when every worker stopped
func (d *Dispatcher) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < d.countWorkers; i++ {
		wg.Add(1)
		go func() {
			d.worker(ctx)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		d.logger.Debug("Notification dispatcher stopped")
	}()

	return idleStopped
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		// Wait until rate limit is passed or context is done
		waitUntil := time.Unix(d.waitUntil.Load(), 0)
		if waitUntil.After(time.Now()) {
			d.logger.Debug("Worker is waiting for rate limit to reset", "wait_until", waitUntil)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(waitUntil)):
				continue
			}
		}

		select {
		case <-ctx.Done():
			return

		case msg := <-d.queue:
			sendCtx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
			err := d.sender.Send(sendCtx, msg)
			cancel()

			var retryErr *RetryAfterError
			switch {
			case err == nil:
				d.logger.Debug("Notification sent", "admin", msg.Admin)

			case errors.As(err, &retryErr):
				d.logger.Info("Notification rate limited, waiting", "retry_after", retryErr.RetryAfter)
				d.waitUntil.Store(time.Now().Add(retryErr.RetryAfter).Unix())
				d.enqueue(msg)

			default:
				d.logger.Error("Failed to send notification", "error", err, "admin", msg.Admin)
			}
		}
	}
}
