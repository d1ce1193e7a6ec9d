package callhub

import (
	"sync"
	"time"

	"github.com/jumboframes/armorigo/log"
	"github.com/quayside/wsession"
	"github.com/singchia/go-timer/v2"
)

// Call is the bookkeeping record for one outstanding request awaiting either
// a response or a timeout.
type Call struct {
	Handler wsession.ResponseHandler

	tick timer.Tick
}

// CancelTimer is best effort, a tick firing after cancellation finds the
// entry already claimed and acts on nothing.
func (call *Call) CancelTimer() {
	if call.tick != nil {
		call.tick.Cancel()
	}
}

// ExpiredHandler is invoked off the timer with the call already claimed from
// the hub.
type ExpiredHandler func(seq string, call *Call)

type callHubOpts struct {
	tmr        timer.Timer
	tmrOutside bool
	log        log.Logger
	expired    ExpiredHandler
}

// CallHub maps outstanding sequence identifiers to pending calls. Lookups may
// run concurrently, mutation is exclusive. TakeAndRemove is the single claim
// point guaranteeing a response and a timeout never both own one call.
type CallHub struct {
	callHubOpts

	calls map[string]*Call
	mtx   sync.RWMutex
}

type CallHubOption func(*CallHub)

func OptionCallHubTimer(tmr timer.Timer) CallHubOption {
	return func(hub *CallHub) {
		hub.tmr = tmr
		hub.tmrOutside = true
	}
}

func OptionCallHubLogger(log log.Logger) CallHubOption {
	return func(hub *CallHub) {
		hub.log = log
	}
}

func OptionCallHubExpiredHandler(expired ExpiredHandler) CallHubOption {
	return func(hub *CallHub) {
		hub.expired = expired
	}
}

func NewCallHub(opts ...CallHubOption) *CallHub {
	hub := &CallHub{
		calls: map[string]*Call{},
	}
	for _, opt := range opts {
		opt(hub)
	}
	if hub.tmr == nil {
		hub.tmr = timer.NewTimer()
	}
	if hub.log == nil {
		hub.log = log.DefaultLog
	}
	return hub
}

// Register inserts the pending call for seq, replacing any entry already
// registered under it. A positive timeout arms the expiry timer concurrently
// with insertion, zero or less leaves the call waiting indefinitely.
func (hub *CallHub) Register(seq string, handler wsession.ResponseHandler, timeout time.Duration) *Call {
	call := &Call{Handler: handler}
	if timeout > 0 {
		call.tick = hub.tmr.Add(timeout, timer.WithHandler(func(event *timer.Event) {
			if event.Error == timer.ErrTimerForceClosed {
				hub.log.Infof("expiry timer force closed, seq: %s", seq)
				return
			}
			hub.expire(seq)
		}))
	}
	hub.mtx.Lock()
	old, ok := hub.calls[seq]
	hub.calls[seq] = call
	hub.mtx.Unlock()
	if ok {
		old.CancelTimer()
		hub.log.Errorf("callhub register overwrites pending call, seq: %s", seq)
	}
	return call
}

// TakeAndRemove atomically looks up and erases the entry for seq. Whichever
// caller gets ok owns delivery, the loser observes not-found and must do
// nothing further.
func (hub *CallHub) TakeAndRemove(seq string) (*Call, bool) {
	hub.mtx.Lock()
	call, ok := hub.calls[seq]
	if ok {
		delete(hub.calls, seq)
	}
	hub.mtx.Unlock()
	return call, ok
}

func (hub *CallHub) Pending(seq string) bool {
	hub.mtx.RLock()
	defer hub.mtx.RUnlock()
	_, ok := hub.calls[seq]
	return ok
}

func (hub *CallHub) Count() int {
	hub.mtx.RLock()
	defer hub.mtx.RUnlock()
	return len(hub.calls)
}

func (hub *CallHub) expire(seq string) {
	call, ok := hub.TakeAndRemove(seq)
	if !ok {
		// the response won the race
		return
	}
	hub.log.Debugf("pending call expired, seq: %s", seq)
	if hub.expired != nil {
		hub.expired(seq, call)
	}
}

// Drain claims every pending call at once with timers cancelled, used by the
// session teardown sweep.
func (hub *CallHub) Drain() map[string]*Call {
	hub.mtx.Lock()
	calls := hub.calls
	hub.calls = map[string]*Call{}
	hub.mtx.Unlock()
	for _, call := range calls {
		call.CancelTimer()
	}
	return calls
}

func (hub *CallHub) Close() {
	hub.Drain()
	if !hub.tmrOutside {
		hub.tmr.Close()
	}
}
