package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notification dispatcher is closed")
)

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// Задержка перед второй попыткой, дальше удваивается
	Backoff time.Duration
	// Таймаут одной попытки доставки в sink
	DeliveryTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 10 * time.Second
	}
	return c
}

// Stats counts delivery outcomes per sink attempt.
type Stats struct {
	Delivered    int64
	Retried      int64
	DeadLettered int64
	Dropped      int64
}

// Dispatcher - очередь событий и пул воркеров, доставляющих их во все sinks.
// Enqueue никогда не блокирует вызывающего.
type Dispatcher struct {
	cfg    DispatcherConfig
	sinks  []Sink
	queue  chan Event
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	delivered    atomic.Int64
	retried      atomic.Int64
	deadLettered atomic.Int64
	dropped      atomic.Int64
}

func NewDispatcher(cfg DispatcherConfig, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:    cfg,
		sinks:  sinks,
		queue:  make(chan Event, cfg.QueueSize),
		logger: logger,
	}
}

// Start запускает воркеров. ctx прерывает ожидание между повторными попытками.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting notification dispatcher",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize),
		zap.Int("sinks", len(d.sinks)))

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Enqueue ставит событие в очередь. При переполнении событие отбрасывается.
func (d *Dispatcher) Enqueue(ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- ev:
		return nil
	default:
		d.dropped.Add(1)
		d.logger.Warn("Notification queue full, dropping event",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.Int64("group_id", ev.GroupID))
		return ErrQueueFull
	}
}

// Close перестаёт принимать события и ждёт, пока воркеры доставят очередь
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Notification dispatcher stopped")
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered:    d.delivered.Load(),
		Retried:      d.retried.Load(),
		DeadLettered: d.deadLettered.Load(),
		Dropped:      d.dropped.Load(),
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for ev := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(ctx, sink, ev)
		}
	}

	d.logger.Debug("Notification worker finished", zap.Int("worker", id))
}

// deliver доставляет событие в sink с повторными попытками и экспоненциальной задержкой
func (d *Dispatcher) deliver(ctx context.Context, sink Sink, ev Event) {
	backoff := d.cfg.Backoff

	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.DeliveryTimeout)
		err = sink.Deliver(attemptCtx, ev)
		cancel()

		if err == nil {
			d.delivered.Add(1)
			return
		}

		if attempt == d.cfg.MaxAttempts {
			break
		}

		d.retried.Add(1)
		d.logger.Warn("Notification delivery failed, retrying",
			zap.String("sink", sink.Name()),
			zap.String("event_id", ev.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			// при остановке оставшиеся попытки идут без задержки
		}
		backoff *= 2
	}

	d.deadLettered.Add(1)
	d.logger.Error("Notification dead-lettered",
		zap.String("sink", sink.Name()),
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.Int64("group_id", ev.GroupID),
		zap.Int64("slot_id", ev.SlotID),
		zap.Int("attempts", d.cfg.MaxAttempts),
		zap.Error(err))
}
