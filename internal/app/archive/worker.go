// Package archive persists decision records off the request path. Submit hands a
// record to a bounded queue and returns immediately; the caller never learns whether
// the write succeeded. Failures are logged and dropped.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/logging"

	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("archive queue full")

type Config struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{Workers: 2, QueueSize: 256, WriteTimeout: 5 * time.Second}
}

type Worker struct {
	store   ports.DecisionStore
	metrics ports.DecisionMetrics
	log     *logging.Logger
	cfg     Config

	mu     sync.RWMutex
	closed bool
	queue  chan ports.DecisionRecord
	wg     sync.WaitGroup
}

func NewWorker(store ports.DecisionStore, cfg Config, metrics ports.DecisionMetrics, log *logging.Logger) *Worker {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Worker{
		store:   store,
		metrics: metrics,
		log:     log.Named("archive"),
		cfg:     cfg,
		queue:   make(chan ports.DecisionRecord, cfg.QueueSize),
	}
}

// Start launches the writer goroutines. Writes run on their own contexts so a
// cancelled request or connection never aborts persistence.
func (w *Worker) Start() {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

// Submit enqueues a record without waiting. It reports false when the record was
// dropped because the queue is full or the worker is stopped.
func (w *Worker) Submit(ctx context.Context, record ports.DecisionRecord) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.log.Warn(ctx, "archive stopped, dropping record", zap.String("npc_id", record.RequesterID))
		return false
	}
	select {
	case w.queue <- record:
		return true
	default:
		w.log.Error(ctx, "archive queue full, dropping record", zap.String("npc_id", record.RequesterID))
		if w.metrics != nil {
			w.metrics.RecordPersist(ErrQueueFull)
		}
		return false
	}
}

// Stop refuses new records and waits for queued ones to be written, or for ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("archive drain: %w", ctx.Err())
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for record := range w.queue {
		w.write(record)
	}
}

func (w *Worker) write(record ports.DecisionRecord) {
	ctx := logging.WithNPC(context.Background(), record.RequesterID)
	ctx, cancel := context.WithTimeout(ctx, w.cfg.WriteTimeout)
	defer cancel()

	var (
		id  string
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("store panic: %v", p)
			}
		}()
		id, err = w.store.Append(ctx, record)
	}()

	if w.metrics != nil {
		w.metrics.RecordPersist(err)
	}
	if err != nil {
		w.log.Error(ctx, "persist decision failed", zap.Error(err))
		return
	}
	w.log.Debug(ctx, "decision persisted", zap.String("record_id", id))
}
