package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mousetube/mousetube-go/internal/logging"
)

// Bus delivers catalog events to registered consumers without blocking
// publishers. Workers start with the first registered consumer.
type Bus struct {
	eventChan chan Event

	bufferSize int
	workers    int

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	initialized atomic.Bool
	running     atomic.Bool
	mu          sync.Mutex

	consumers []Consumer

	dedup *Deduplicator

	stats BusStats

	logger *slog.Logger
}

// Global bus instance (lazily initialized)
var (
	globalBus   *Bus
	globalMutex sync.Mutex
)

// Config holds event bus configuration.
type Config struct {
	BufferSize int
	Workers    int
	Enabled    bool
	// Deduplication suppresses repeated events for the same entity
	// within a short window, double-clicked publish buttons and retried
	// ingest jobs otherwise fan out twice.
	Deduplication *DeduplicationConfig
}

// DefaultConfig returns the default event bus configuration.
func DefaultConfig() *Config {
	return &Config{
		BufferSize:    1000,
		Workers:       2,
		Enabled:       true,
		Deduplication: DefaultDeduplicationConfig(),
	}
}

// Initialize creates or returns the global bus instance. A nil config
// selects defaults. Returns nil without error when disabled.
func Initialize(config *Config) (*Bus, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if globalBus != nil {
		return globalBus, nil
	}

	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return nil, nil
	}

	log := logging.ForService("events")
	if log == nil {
		log = slog.Default().With("service", "events")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		eventChan:  make(chan Event, config.BufferSize),
		bufferSize: config.BufferSize,
		workers:    config.Workers,
		ctx:        ctx,
		cancel:     cancel,
		consumers:  make([]Consumer, 0),
		dedup:      NewDeduplicator(config.Deduplication),
		logger:     log,
	}
	bus.initialized.Store(true)
	globalBus = bus

	bus.logger.Info("event bus initialized",
		"buffer_size", config.BufferSize,
		"workers", config.Workers)
	return bus, nil
}

// GetBus returns the global bus instance, nil before Initialize.
func GetBus() *Bus {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalBus
}

// IsInitialized reports whether the global bus is ready.
func IsInitialized() bool {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	return globalBus != nil && globalBus.initialized.Load()
}

// RegisterConsumer adds a consumer. Worker goroutines start when the
// first consumer registers.
func (b *Bus) RegisterConsumer(consumer Consumer) error {
	if b == nil {
		return fmt.Errorf("event bus not initialized")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}
	b.consumers = append(b.consumers, consumer)

	b.logger.Info("registered event consumer", "consumer", consumer.Name())

	if len(b.consumers) == 1 && !b.running.Load() {
		b.start()
	}
	return nil
}

// TryPublish offers an event to the bus without blocking. Returns true
// when the event was accepted, false when the bus is down, has no
// consumers, the event is a duplicate, or the buffer is full.
func (b *Bus) TryPublish(event Event) bool {
	if b == nil || !b.initialized.Load() || !b.running.Load() {
		return false
	}

	b.mu.Lock()
	hasConsumers := len(b.consumers) > 0
	b.mu.Unlock()
	if !hasConsumers {
		return false
	}

	if !b.dedup.ShouldProcess(event) {
		atomic.AddUint64(&b.stats.EventsSuppressed, 1)
		return false
	}

	select {
	case b.eventChan <- event:
		atomic.AddUint64(&b.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&b.stats.EventsDropped, 1)
		b.logger.Debug("event dropped due to full buffer",
			"type", event.Type, "entity_id", event.EntityID)
		return false
	}
}

func (b *Bus) start() {
	if b.running.Swap(true) {
		return
	}

	b.logger.Info("starting event bus workers", "count", b.workers)
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	log := b.logger.With("worker_id", id)
	log.Debug("worker started")

	for {
		select {
		case <-b.ctx.Done():
			log.Debug("worker stopping due to context cancellation")
			return
		case event, ok := <-b.eventChan:
			if !ok {
				log.Debug("worker stopping due to channel closure")
				return
			}
			b.processEvent(event, log)
		}
	}
}

// processEvent fans the event out to every consumer, isolating panics so
// one misbehaving consumer cannot take down the workers.
func (b *Bus) processEvent(event Event, log *slog.Logger) {
	b.mu.Lock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&b.stats.ConsumerErrors, 1)
					log.Error("consumer panicked",
						"consumer", consumer.Name(),
						"panic", r,
						"type", event.Type,
						"entity_id", event.EntityID)
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&b.stats.ConsumerErrors, 1)
				log.Error("consumer error",
					"consumer", consumer.Name(),
					"error", err,
					"type", event.Type,
					"entity_id", event.EntityID)
			} else {
				atomic.AddUint64(&b.stats.EventsProcessed, 1)
			}
		}()
	}
}

// Shutdown stops accepting events and waits for the workers.
func (b *Bus) Shutdown(timeout time.Duration) error {
	if b == nil || !b.initialized.Load() {
		return nil
	}

	b.logger.Info("shutting down event bus", "timeout", timeout)
	b.running.Store(false)
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		b.logger.Warn("event bus shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetStats returns current counters.
func (b *Bus) GetStats() BusStats {
	if b == nil {
		return BusStats{}
	}
	return BusStats{
		EventsReceived:   atomic.LoadUint64(&b.stats.EventsReceived),
		EventsSuppressed: atomic.LoadUint64(&b.stats.EventsSuppressed),
		EventsProcessed:  atomic.LoadUint64(&b.stats.EventsProcessed),
		EventsDropped:    atomic.LoadUint64(&b.stats.EventsDropped),
		ConsumerErrors:   atomic.LoadUint64(&b.stats.ConsumerErrors),
	}
}

// Publish offers an event to the global bus, a no-op before Initialize.
// The helper keeps emit sites to one line.
func Publish(event Event) bool {
	return GetBus().TryPublish(event)
}

// ResetForTesting tears down the global instance.
func ResetForTesting() {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	if globalBus != nil {
		globalBus.running.Store(false)
		globalBus.cancel()
	}
	globalBus = nil
}
