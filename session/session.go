package session

import (
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/jumboframes/armorigo/log"
	"github.com/quayside/wsession"
	"github.com/quayside/wsession/message"
	"github.com/quayside/wsession/pkg/callhub"
	"github.com/quayside/wsession/pkg/dispatch"
	"github.com/singchia/go-timer/v2"
	"github.com/singchia/yafsm"
)

const (
	HANDSHAKING = "handshaking"
	ESTABLISHED = "established"
	DROPPED     = "dropped"

	ET_ESTABLISHED = "established"
	ET_DROP        = "drop"
)

type sessionOpts struct {
	// timer
	tmr        timer.Timer
	tmrOutside bool
	// worker pool
	dispatcher        dispatch.Dispatcher
	dispatcherOutside bool

	mf  wsession.MessageFactory
	mgr *SessionMgr
	log log.Logger

	// default timeout waiting a response, zero or less disables the timer
	sendTimeout time.Duration

	connectHandler    wsession.ConnectHandler
	disconnectHandler wsession.DisconnectHandler
	recvHandler       wsession.RecvMessageHandler
}

// Session owns one established connection: it serializes outbound writes,
// drives the inbound read loop, correlates request/response pairs by sequence
// identifier and tears the connection down exactly once.
type Session struct {
	sessionOpts

	sessionID string
	endPoint  string
	side      wsession.Side

	fsm *yafsm.FSM

	// exclusively owned transport handle, nil after teardown
	stream    wsession.Stream
	streamMtx sync.Mutex

	// ordered outbound buffers, at most one transmission in flight
	outbound *queue.Queue
	writing  bool
	queueMtx sync.Mutex

	calls *callhub.CallHub

	dropOnce  *sync.Once
	sessionOK bool
	mtx       sync.RWMutex
}

type SessionOption func(*Session) error

func OptionSessionTimer(tmr timer.Timer) SessionOption {
	return func(sn *Session) error {
		sn.tmr = tmr
		sn.tmrOutside = true
		return nil
	}
}

func OptionSessionDispatcher(dispatcher dispatch.Dispatcher) SessionOption {
	return func(sn *Session) error {
		sn.dispatcher = dispatcher
		sn.dispatcherOutside = true
		return nil
	}
}

func OptionSessionMessageFactory(mf wsession.MessageFactory) SessionOption {
	return func(sn *Session) error {
		sn.mf = mf
		return nil
	}
}

// OptionSessionManager registers the session into mgr once established. The
// session then shares the manager's timer and worker pool, and deferred
// handler tasks re-resolve the session through the manager before acting.
func OptionSessionManager(mgr *SessionMgr) SessionOption {
	return func(sn *Session) error {
		sn.mgr = mgr
		return nil
	}
}

func OptionSessionLogger(log log.Logger) SessionOption {
	return func(sn *Session) error {
		sn.log = log
		return nil
	}
}

func OptionSessionSendTimeout(timeout time.Duration) SessionOption {
	return func(sn *Session) error {
		sn.sendTimeout = timeout
		return nil
	}
}

func OptionSessionConnectHandler(handler wsession.ConnectHandler) SessionOption {
	return func(sn *Session) error {
		sn.connectHandler = handler
		return nil
	}
}

func OptionSessionDisconnectHandler(handler wsession.DisconnectHandler) SessionOption {
	return func(sn *Session) error {
		sn.disconnectHandler = handler
		return nil
	}
}

func OptionSessionRecvMessageHandler(handler wsession.RecvMessageHandler) SessionOption {
	return func(sn *Session) error {
		sn.recvHandler = handler
		return nil
	}
}

func NewSession(side wsession.Side, opts ...SessionOption) (*Session, error) {
	err := error(nil)
	sn := &Session{
		sessionID: uuid.NewString(),
		side:      side,
		fsm:       yafsm.NewFSM(),
		outbound:  queue.New(),
		dropOnce:  new(sync.Once),
		sessionOK: true,
	}
	for _, opt := range opts {
		err = opt(sn)
		if err != nil {
			return nil, err
		}
	}
	// the manager shares its timer and pool unless explicitly overridden
	if sn.mgr != nil {
		if sn.tmr == nil {
			sn.tmr = sn.mgr.tmr
			sn.tmrOutside = true
		}
		if sn.dispatcher == nil {
			sn.dispatcher = sn.mgr.dispatcher
			sn.dispatcherOutside = true
		}
	}
	if sn.tmr == nil {
		sn.tmr = timer.NewTimer()
	}
	if sn.dispatcher == nil {
		sn.dispatcher = dispatch.NewPool()
	}
	if sn.mf == nil {
		sn.mf = message.NewMessageFactory()
	}
	if sn.log == nil {
		sn.log = log.DefaultLog
	}
	sn.calls = callhub.NewCallHub(
		callhub.OptionCallHubTimer(sn.tmr),
		callhub.OptionCallHubLogger(sn.log),
		callhub.OptionCallHubExpiredHandler(sn.onRespTimeout))
	sn.initFSM()
	return sn, nil
}

func (sn *Session) initFSM() {
	handshaking := sn.fsm.AddState(HANDSHAKING)
	established := sn.fsm.AddState(ESTABLISHED)
	dropped := sn.fsm.AddState(DROPPED)
	sn.fsm.SetState(HANDSHAKING)

	sn.fsm.AddEvent(ET_ESTABLISHED, handshaking, established)
	sn.fsm.AddEvent(ET_DROP, handshaking, dropped)
	sn.fsm.AddEvent(ET_DROP, established, dropped)
}

// StartAsClient takes a stream whose handshake the dialer already performed,
// invokes the connect handler and starts the read loop.
func (sn *Session) StartAsClient(stream wsession.Stream) error {
	err := sn.establish(stream)
	if err != nil {
		return err
	}
	go sn.readLoop()
	if sn.connectHandler != nil {
		sn.connectHandler(nil, sn)
	}
	sn.log.Infof("session started as client, sessionID: %s, endpoint: %s",
		sn.sessionID, sn.endPoint)
	return nil
}

// StartAsServer performs the handshake for one inbound request. On failure
// the session is dropped with AcceptError. The caller's goroutine performs
// the upgrade, the read loop runs detached afterwards.
func (sn *Session) StartAsServer(hs wsession.Handshaker) {
	stream, err := hs.Handshake()
	if err != nil {
		sn.log.Errorf("handshake err: %s, sessionID: %s", err, sn.sessionID)
		sn.drop(wsession.AcceptError)
		return
	}
	err = sn.establish(stream)
	if err != nil {
		sn.drop(wsession.AcceptError)
		return
	}
	if sn.connectHandler != nil {
		sn.connectHandler(nil, sn)
	}
	go sn.readLoop()
	sn.log.Infof("session started as server, sessionID: %s, endpoint: %s",
		sn.sessionID, sn.endPoint)
}

func (sn *Session) establish(stream wsession.Stream) error {
	err := sn.fsm.EmitEvent(ET_ESTABLISHED)
	if err != nil {
		sn.log.Errorf("emit ET_ESTABLISHED err: %s, sessionID: %s, state: %s",
			err, sn.sessionID, sn.fsm.State())
		return err
	}
	sn.streamMtx.Lock()
	sn.stream = stream
	sn.streamMtx.Unlock()
	sn.endPoint = stream.RemoteAddr().String()
	if sn.mgr != nil {
		sn.mgr.add(sn)
	}
	// flush anything queued before the handshake finished
	sn.kickWriting()
	return nil
}

func (sn *Session) SessionID() string {
	return sn.sessionID
}

func (sn *Session) EndPoint() string {
	return sn.endPoint
}

func (sn *Session) Side() wsession.Side {
	return sn.side
}

func (sn *Session) Dropped() bool {
	return sn.fsm.InStates(DROPPED)
}

// Ping writes a ping control frame on demand, any transport failure is fatal.
func (sn *Session) Ping() {
	sn.streamMtx.Lock()
	stream := sn.stream
	sn.streamMtx.Unlock()
	if stream == nil {
		return
	}
	err := stream.Ping()
	if err != nil {
		sn.log.Errorf("ping err: %s, sessionID: %s, endpoint: %s",
			err, sn.sessionID, sn.endPoint)
		sn.drop(wsession.PingError)
	}
}

func (sn *Session) Pong() {
	sn.streamMtx.Lock()
	stream := sn.stream
	sn.streamMtx.Unlock()
	if stream == nil {
		return
	}
	err := stream.Pong()
	if err != nil {
		sn.log.Errorf("pong err: %s, sessionID: %s, endpoint: %s",
			err, sn.sessionID, sn.endPoint)
		sn.drop(wsession.PongError)
	}
}

// Drop tears the session down on the owner's behalf.
func (sn *Session) Drop() {
	sn.drop(wsession.ErrorKind(0))
}

// drop is the single teardown entry point, callable from any goroutine. Only
// the first effective call closes the transport and schedules the disconnect
// handler, duplicates observe nothing but a log line.
func (sn *Session) drop(kind wsession.ErrorKind) {
	duplicated := true
	sn.dropOnce.Do(func() {
		duplicated = false
		sn.log.Infof("session dropped, reason: %s, sessionID: %s, endpoint: %s",
			kind, sn.sessionID, sn.endPoint)

		sn.mtx.Lock()
		sn.sessionOK = false
		sn.mtx.Unlock()

		sn.fsm.EmitEvent(ET_DROP)
		sn.disconnect()
		if sn.mgr != nil {
			sn.mgr.del(sn)
		}
		// orphaned requests get the drop reason through their own handlers,
		// never silence
		for seq, call := range sn.calls.Drain() {
			call := call
			err := wsession.NewError(kind, "session dropped, seq: "+seq)
			sn.dispatcher.Enqueue(func() {
				call.Handler(err, nil, nil)
			})
		}
		sn.dispatcher.Enqueue(func() {
			if sn.disconnectHandler != nil {
				sn.disconnectHandler(nil, sn)
			}
		})
		sn.collect()
	})
	if duplicated {
		sn.log.Debugf("duplicated drop, reason: %s, sessionID: %s", kind, sn.sessionID)
	}
}

// disconnect closes and releases the transport handle if present, idempotent.
func (sn *Session) disconnect() {
	sn.streamMtx.Lock()
	defer sn.streamMtx.Unlock()
	if sn.stream != nil {
		sn.stream.Close()
		sn.stream = nil
		sn.log.Debugf("session disconnected, sessionID: %s, endpoint: %s",
			sn.sessionID, sn.endPoint)
	}
}

// collect releases session-owned resources once the scheduled tasks finish.
// Shared resources belong to the manager or the caller and stay untouched.
func (sn *Session) collect() {
	if sn.tmrOutside && sn.dispatcherOutside {
		return
	}
	go func() {
		if !sn.dispatcherOutside {
			sn.dispatcher.Close()
		}
		if !sn.tmrOutside {
			sn.tmr.Close()
		}
	}()
}

// onRespTimeout delivers the timeout to the expired call's handler off the
// worker pool. The entry is already claimed, a racing response finds nothing.
func (sn *Session) onRespTimeout(seq string, call *callhub.Call) {
	sn.log.Errorf("wait response timeout, seq: %s, sessionID: %s, endpoint: %s",
		seq, sn.sessionID, sn.endPoint)
	err := wsession.NewError(wsession.TimeOut, "waiting for message response timed out")
	sn.dispatcher.Enqueue(func() {
		call.Handler(err, nil, nil)
	})
}
