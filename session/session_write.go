package session

import (
	"io"

	"github.com/quayside/wsession"
	"github.com/quayside/wsession/options"
)

// Send encodes msg and appends it to the outbound queue. Producers on
// arbitrary goroutines need no serialization among themselves, ordering and
// the single-writer discipline are internal to the queue. A response handler
// registers a pending call under the message's sequence identifier first, so
// a reply racing the transmission still finds it.
func (sn *Session) Send(msg wsession.Message, responseHandler wsession.ResponseHandler,
	opts ...*options.SendOptions) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	sn.mtx.RLock()
	defer sn.mtx.RUnlock()
	if !sn.sessionOK {
		return io.EOF
	}

	if responseHandler != nil {
		so := options.MergeSendOptions(opts...)
		timeout := sn.sendTimeout
		if so.Timeout != nil {
			timeout = *so.Timeout
		}
		sn.calls.Register(string(msg.Seq()), responseHandler, timeout)
	}
	sn.enqueueBuffer(data)
	sn.log.Tracef("send enqueued, seq: %s, sessionID: %s, endpoint: %s",
		string(msg.Seq()), sn.sessionID, sn.endPoint)
	return nil
}

// enqueueBuffer appends under the queue lock and starts the drainer only on
// the idle transition, keeping at most one transmission in flight.
func (sn *Session) enqueueBuffer(data []byte) {
	sn.queueMtx.Lock()
	sn.outbound.Add(data)
	kick := !sn.writing
	if kick {
		sn.writing = true
	}
	sn.queueMtx.Unlock()
	if kick {
		go sn.writePump()
	}
}

// kickWriting restarts the drainer for buffers queued while no transmission
// could proceed, such as before the server handshake finished.
func (sn *Session) kickWriting() {
	sn.queueMtx.Lock()
	kick := !sn.writing && sn.outbound.Length() > 0
	if kick {
		sn.writing = true
	}
	sn.queueMtx.Unlock()
	if kick {
		go sn.writePump()
	}
}

// writePump transmits head buffers one at a time in submission order. A
// buffer leaves the queue only after the transport confirmed its write, a
// transport error abandons the queue and drops the session.
func (sn *Session) writePump() {
	for {
		sn.queueMtx.Lock()
		if sn.outbound.Length() == 0 {
			sn.writing = false
			sn.queueMtx.Unlock()
			return
		}
		data := sn.outbound.Peek().([]byte)
		sn.queueMtx.Unlock()

		sn.streamMtx.Lock()
		stream := sn.stream
		sn.streamMtx.Unlock()
		if stream == nil {
			sn.queueMtx.Lock()
			sn.writing = false
			sn.queueMtx.Unlock()
			// the handshake may have delivered the stream between the check
			// above and the flag release, leaving kickWriting declined on a
			// still-set flag. Re-check and re-kick so no buffer is stranded.
			// A dropped session keeps the stream nil and the queue abandoned.
			sn.streamMtx.Lock()
			arrived := sn.stream != nil
			sn.streamMtx.Unlock()
			if arrived {
				sn.kickWriting()
			}
			return
		}

		err := stream.WriteMessage(data)
		if err != nil {
			sn.log.Errorf("write err: %s, sessionID: %s, endpoint: %s",
				err, sn.sessionID, sn.endPoint)
			// drop gates new sends before the flag is released, so no
			// fresh pump can retry the failed head on the dying stream
			sn.drop(wsession.WriteError)
			sn.queueMtx.Lock()
			sn.writing = false
			sn.queueMtx.Unlock()
			return
		}

		sn.queueMtx.Lock()
		sn.outbound.Remove()
		sn.queueMtx.Unlock()
	}
}
