package session

import (
	"encoding/hex"

	"github.com/quayside/wsession"
)

// readLoop decodes exactly one message per inbound frame and immediately
// re-arms the read. It terminates only through an error or a drop. Corrupted
// framing is never recovered from, the session ends with PacketError.
func (sn *Session) readLoop() {
	for {
		sn.streamMtx.Lock()
		stream := sn.stream
		sn.streamMtx.Unlock()
		if stream == nil {
			return
		}

		data, err := stream.ReadMessage()
		if err != nil {
			if sn.Dropped() {
				sn.log.Debugf("read down closed, sessionID: %s, endpoint: %s",
					sn.sessionID, sn.endPoint)
				return
			}
			sn.log.Errorf("read err: %s, sessionID: %s, endpoint: %s",
				err, sn.sessionID, sn.endPoint)
			sn.drop(wsession.ReadError)
			return
		}

		msg := sn.mf.NewMessage()
		err = msg.Decode(data)
		if err != nil {
			sn.log.Errorf("decode message err: %s, sessionID: %s, endpoint: %s, data: %s",
				err, sn.sessionID, sn.endPoint, hex.EncodeToString(data))
			sn.drop(wsession.PacketError)
			return
		}
		sn.log.Tracef("read message, seq: %s, sessionID: %s, endpoint: %s",
			string(msg.Seq()), sn.sessionID, sn.endPoint)
		sn.routeMessage(msg)
	}
}

// routeMessage claims any pending call registered under the message's
// sequence identifier and hands delivery to the worker pool, never the read
// goroutine, so slow or faulting handlers cannot stall the loop. The task
// re-resolves the session through the manager at execution time and is
// silently discarded if the session is already released.
func (sn *Session) routeMessage(msg wsession.Message) {
	seq := string(msg.Seq())
	call, ok := sn.calls.TakeAndRemove(seq)

	sessionID := sn.sessionID
	mgr := sn.mgr
	sn.dispatcher.Enqueue(func() {
		var session wsession.Session = sn
		if mgr != nil {
			found := mgr.Get(sessionID)
			if found == nil {
				return
			}
			session = found
		}
		if ok {
			call.CancelTimer()
			call.Handler(nil, msg, session)
			return
		}
		if sn.recvHandler != nil {
			sn.recvHandler(msg, session)
		}
	})
}
