package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Enqueue when the dispatcher cannot take more
// work. The message is dropped.
var ErrQueueFull = errors.New("mail queue full")

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("mail dispatcher stopped")

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:     2,
		QueueSize:   256,
		SendTimeout: 30 * time.Second,
	}
}

// Dispatcher is a fixed pool of workers draining a bounded queue into a
// Mailer. Failures are logged, never retried and never reported back.
type Dispatcher struct {
	cfg    DispatcherConfig
	mailer Mailer
	logger *zap.Logger

	queue  chan Message
	wg     sync.WaitGroup
	mu     sync.RWMutex
	cancel context.CancelFunc
	state  int
}

const (
	stateIdle = iota
	stateRunning
	stateStopped
)

func NewDispatcher(cfg DispatcherConfig, mailer Mailer, logger *zap.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	return &Dispatcher{
		cfg:    cfg,
		mailer: mailer,
		logger: logger,
		queue:  make(chan Message, cfg.QueueSize),
	}
}

// Start launches the workers. The workers stop when ctx is cancelled or
// Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateIdle {
		return fmt.Errorf("dispatcher already started")
	}
	d.state = stateRunning

	workerCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.work(workerCtx, id)
		}(i + 1)
	}
	d.logger.Info("mail dispatcher started", zap.Int("workers", d.cfg.Workers))
	return nil
}

// Enqueue hands msg to the workers without blocking.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state == stateStopped {
		return ErrStopped
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for the workers to drain what is left,
// or for ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.state == stateStopped {
		d.mu.Unlock()
		return nil
	}
	wasRunning := d.state == stateRunning
	d.state = stateStopped
	close(d.queue)
	d.mu.Unlock()

	if !wasRunning {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("mail dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		return fmt.Errorf("wait for mail workers: %w", ctx.Err())
	}
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, id, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	if err := d.mailer.Send(sendCtx, msg); err != nil {
		d.logger.Warn("mail delivery failed",
			zap.Int("worker", worker),
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return
	}
	d.logger.Debug("mail delivered", zap.Int("worker", worker), zap.String("to", msg.To))
}
