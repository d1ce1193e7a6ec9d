package wsession

import (
	"net"

	"github.com/quayside/wsession/options"
)

// Message is one complete application-level unit of data carried over the
// connection. The sequence identifier is an opaque, per-request unique token
// used to correlate a request with its eventual response.
type Message interface {
	Seq() []byte
	SetSeq(seq []byte)
	Payload() []byte
	SetPayload(payload []byte)

	Encode() ([]byte, error)
	Decode(data []byte) error
}

type MessageFactory interface {
	// NewMessage constructs an empty message, typically as a decode target.
	NewMessage() Message
	// NewRequestMessage constructs a message carrying a fresh unique sequence identifier.
	NewRequestMessage(payload []byte) Message
	// NewResponseMessage constructs a message answering the given sequence identifier.
	NewResponseMessage(seq, payload []byte) Message
}

// Stream is the transport collaborator owned by a session. Reads and writes
// block, the session drives them from dedicated goroutines.
type Stream interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Ping() error
	Pong() error
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Handshaker performs the server side handshake for one inbound request and
// yields the established stream.
type Handshaker interface {
	Handshake() (Stream, error)
}

type Side int

const (
	ClientSide Side = 0
	ServerSide Side = 1
)

type (
	ConnectHandler     func(err error, session Session)
	DisconnectHandler  func(err error, session Session)
	RecvMessageHandler func(msg Message, session Session)
	ResponseHandler    func(err error, msg Message, session Session)
)

// Session represents one established connection and all per-connection
// protocol logic.
type Session interface {
	SessionID() string
	EndPoint() string
	Side() Side

	// Send appends msg to the outbound queue. With a responseHandler the
	// caller either receives the correlated response or a TimeOut error
	// through it, never silence. Without one the send is fire-and-forget.
	Send(msg Message, responseHandler ResponseHandler, opts ...*options.SendOptions) error

	Ping()
	Pong()
	Drop()
	Dropped() bool
}
