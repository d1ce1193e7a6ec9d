package session

import (
	"sync"

	"github.com/jumboframes/armorigo/log"
	"github.com/quayside/wsession/pkg/dispatch"
	"github.com/singchia/go-timer/v2"
)

type sessionMgrOpts struct {
	// shared timing wheel for response timers
	tmr        timer.Timer
	tmrOutside bool
	// shared worker pool for handler dispatch
	dispatcher        dispatch.Dispatcher
	dispatcherOutside bool
	log               log.Logger
}

// SessionMgr registers live sessions under their identifiers. Deferred
// handler tasks capture a session identifier and re-resolve it here at
// execution time, so a task outliving its session acts on nothing.
type SessionMgr struct {
	sessionMgrOpts

	sessions sync.Map // key: sessionID, value: *Session

	mgrOK  bool
	mgrMtx sync.Mutex
}

type SessionMgrOption func(*SessionMgr)

func OptionSessionMgrTimer(tmr timer.Timer) SessionMgrOption {
	return func(mgr *SessionMgr) {
		mgr.tmr = tmr
		mgr.tmrOutside = true
	}
}

func OptionSessionMgrDispatcher(dispatcher dispatch.Dispatcher) SessionMgrOption {
	return func(mgr *SessionMgr) {
		mgr.dispatcher = dispatcher
		mgr.dispatcherOutside = true
	}
}

func OptionSessionMgrLogger(log log.Logger) SessionMgrOption {
	return func(mgr *SessionMgr) {
		mgr.log = log
	}
}

func NewSessionMgr(opts ...SessionMgrOption) *SessionMgr {
	mgr := &SessionMgr{
		mgrOK: true,
	}
	for _, opt := range opts {
		opt(mgr)
	}
	if mgr.tmr == nil {
		mgr.tmr = timer.NewTimer()
	}
	if mgr.dispatcher == nil {
		mgr.dispatcher = dispatch.NewPool()
	}
	if mgr.log == nil {
		mgr.log = log.DefaultLog
	}
	return mgr
}

func (mgr *SessionMgr) add(sn *Session) {
	mgr.sessions.Store(sn.sessionID, sn)
	mgr.log.Debugf("session registered, sessionID: %s, endpoint: %s",
		sn.sessionID, sn.endPoint)
}

func (mgr *SessionMgr) del(sn *Session) {
	mgr.sessions.Delete(sn.sessionID)
	mgr.log.Debugf("session deregistered, sessionID: %s, endpoint: %s",
		sn.sessionID, sn.endPoint)
}

// Get resolves a session identifier, nil once the session was dropped.
func (mgr *SessionMgr) Get(sessionID string) *Session {
	value, ok := mgr.sessions.Load(sessionID)
	if !ok {
		return nil
	}
	return value.(*Session)
}

func (mgr *SessionMgr) Count() int {
	count := 0
	mgr.sessions.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (mgr *SessionMgr) Range(fn func(sn *Session) bool) {
	mgr.sessions.Range(func(_, value interface{}) bool {
		return fn(value.(*Session))
	})
}

// Close drops every live session, then collects the shared timer and pool.
// The pool drains scheduled disconnect notifications before stopping.
func (mgr *SessionMgr) Close() {
	mgr.mgrMtx.Lock()
	if !mgr.mgrOK {
		mgr.mgrMtx.Unlock()
		return
	}
	mgr.mgrOK = false
	mgr.mgrMtx.Unlock()

	mgr.sessions.Range(func(_, value interface{}) bool {
		value.(*Session).Drop()
		return true
	})
	if !mgr.dispatcherOutside {
		mgr.dispatcher.Close()
	}
	if !mgr.tmrOutside {
		mgr.tmr.Close()
	}
	mgr.log.Infof("session manager closed")
}
