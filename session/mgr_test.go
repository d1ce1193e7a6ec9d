package session

import (
	"sync/atomic"
	"testing"

	"github.com/quayside/wsession"
)

func TestSessionMgrResolve(t *testing.T) {
	mgr := NewSessionMgr()
	defer mgr.Close()

	fs := newFakeStream()
	sn := startClientSession(t, fs, OptionSessionManager(mgr))

	if mgr.Get(sn.SessionID()) != sn {
		t.Error("established session not resolvable")
	}
	if mgr.Count() != 1 {
		t.Errorf("expect 1 session, got %d", mgr.Count())
	}

	sn.Drop()
	if mgr.Get(sn.SessionID()) != nil {
		t.Error("dropped session still resolvable")
	}
	if mgr.Count() != 0 {
		t.Errorf("expect 0 sessions, got %d", mgr.Count())
	}
}

func TestSessionMgrCloseDropsSessions(t *testing.T) {
	mgr := NewSessionMgr()

	disconnectCount := uint64(0)
	streams := make([]*fakeStream, 0, 4)
	sessions := make([]*Session, 0, 4)
	for i := 0; i < 4; i++ {
		fs := newFakeStream()
		sn := startClientSession(t, fs,
			OptionSessionManager(mgr),
			OptionSessionDisconnectHandler(func(err error, session wsession.Session) {
				atomic.AddUint64(&disconnectCount, 1)
			}))
		streams = append(streams, fs)
		sessions = append(sessions, sn)
	}

	mgr.Close()

	// Close drains the shared pool, notifications are already delivered
	if atomic.LoadUint64(&disconnectCount) != 4 {
		t.Errorf("expect 4 disconnect notifications, got %d", atomic.LoadUint64(&disconnectCount))
	}
	for _, sn := range sessions {
		if !sn.Dropped() {
			t.Error("session survived manager close")
		}
	}
	for _, fs := range streams {
		if atomic.LoadInt32(&fs.closeCount) != 1 {
			t.Errorf("transport closed %d times", atomic.LoadInt32(&fs.closeCount))
		}
	}
}
