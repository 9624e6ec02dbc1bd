package services

import (
	"log/slog"
	"sync"

	"github.com/rusticroots/storefront-api/logger"
)

// Dispatcher runs fire-and-forget work outside the request cycle
type Dispatcher interface {
	Dispatch(task func())
}

var dispatcherInstance Dispatcher = InlineDispatcher{}

// GetDispatcher returns the global dispatcher
func GetDispatcher() Dispatcher {
	return dispatcherInstance
}

// SetDispatcher sets the global dispatcher
func SetDispatcher(d Dispatcher) {
	dispatcherInstance = d
}

// PoolDispatcher runs tasks on a bounded worker pool. When the queue is full
// the task runs on its own goroutine so no notification is dropped.
type PoolDispatcher struct {
	mu     sync.RWMutex
	tasks  chan func()
	wg     sync.WaitGroup
	extra  sync.WaitGroup
	closed bool
}

// NewPoolDispatcher starts size workers with a queue of twice that size
func NewPoolDispatcher(size int) *PoolDispatcher {
	if size <= 0 {
		size = 1
	}
	p := &PoolDispatcher{tasks: make(chan func(), size*2)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Dispatch queues task, or runs it immediately on a new goroutine when the
// queue is saturated. Tasks dispatched after Shutdown are dropped and logged.
func (p *PoolDispatcher) Dispatch(task func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		logger.L().Warn("dispatch after shutdown, task dropped")
		return
	}

	select {
	case p.tasks <- task:
	default:
		p.extra.Add(1)
		go func() {
			defer p.extra.Done()
			safeRun(task)
		}()
	}
}

// Shutdown stops accepting tasks and waits for queued and running ones
func (p *PoolDispatcher) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.extra.Wait()
}

func (p *PoolDispatcher) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		safeRun(task)
	}
}

func safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("dispatched task panicked", slog.Any("panic", r))
		}
	}()
	task()
}

// InlineDispatcher runs tasks synchronously
type InlineDispatcher struct{}

// Dispatch runs task before returning
func (InlineDispatcher) Dispatch(task func()) {
	safeRun(task)
}
