package dispatch

import (
	"runtime"
	"sync"

	"github.com/eapache/queue"
	"github.com/jumboframes/armorigo/log"
)

// Dispatcher hands units of work to pooled workers, fire and forget. No
// ordering guarantee exists between independently enqueued tasks.
type Dispatcher interface {
	Enqueue(task func())
	Close()
}

type poolOpts struct {
	workers int
	log     log.Logger
}

// Pool is a fixed set of workers draining an unbounded task queue.
type Pool struct {
	poolOpts

	tasks  *queue.Queue
	mtx    sync.Mutex
	cond   *sync.Cond
	closed bool
	wg     sync.WaitGroup
}

type PoolOption func(*Pool)

func OptionPoolWorkers(workers int) PoolOption {
	return func(pool *Pool) {
		pool.workers = workers
	}
}

func OptionPoolLogger(log log.Logger) PoolOption {
	return func(pool *Pool) {
		pool.log = log
	}
}

func NewPool(opts ...PoolOption) *Pool {
	pool := &Pool{
		tasks: queue.New(),
	}
	for _, opt := range opts {
		opt(pool)
	}
	if pool.workers <= 0 {
		pool.workers = runtime.NumCPU()
	}
	if pool.log == nil {
		pool.log = log.DefaultLog
	}
	pool.cond = sync.NewCond(&pool.mtx)
	for i := 0; i < pool.workers; i++ {
		pool.wg.Add(1)
		go pool.work()
	}
	return pool
}

func (pool *Pool) Enqueue(task func()) {
	pool.mtx.Lock()
	if pool.closed {
		pool.mtx.Unlock()
		pool.log.Debugf("dispatch enqueue after close")
		return
	}
	pool.tasks.Add(task)
	pool.mtx.Unlock()
	pool.cond.Signal()
}

func (pool *Pool) work() {
	defer pool.wg.Done()
	for {
		pool.mtx.Lock()
		for pool.tasks.Length() == 0 && !pool.closed {
			pool.cond.Wait()
		}
		if pool.tasks.Length() == 0 {
			pool.mtx.Unlock()
			return
		}
		task := pool.tasks.Remove().(func())
		pool.mtx.Unlock()
		task()
	}
}

// Close stops the workers once the already queued tasks finish.
func (pool *Pool) Close() {
	pool.mtx.Lock()
	if pool.closed {
		pool.mtx.Unlock()
		return
	}
	pool.closed = true
	pool.mtx.Unlock()
	pool.cond.Broadcast()
	pool.wg.Wait()
}
