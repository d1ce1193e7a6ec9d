// Package websocket adapts gorilla websocket connections to the wsession
// transport contract. Application messages travel as binary frames, ping and
// pong as control frames with a bounded write wait.
package websocket

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quayside/wsession"
)

const defaultControlWait = 10 * time.Second

type Stream struct {
	conn        *websocket.Conn
	controlWait time.Duration
}

type StreamOption func(*Stream)

func OptionStreamControlWait(wait time.Duration) StreamOption {
	return func(st *Stream) {
		st.controlWait = wait
	}
}

func NewStream(conn *websocket.Conn, opts ...StreamOption) *Stream {
	st := &Stream{
		conn:        conn,
		controlWait: defaultControlWait,
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Dial performs the client side handshake, the returned stream is already
// established.
func Dial(addr string, opts ...StreamOption) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, err
	}
	return NewStream(conn, opts...), nil
}

// ReadMessage blocks for the next complete frame. Control frames are answered
// by the underlying connection and never surface here.
func (st *Stream) ReadMessage() ([]byte, error) {
	_, data, err := st.conn.ReadMessage()
	return data, err
}

func (st *Stream) WriteMessage(data []byte) error {
	return st.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Ping and Pong are safe concurrently with in-flight data writes, gorilla
// serializes control frames internally.
func (st *Stream) Ping() error {
	return st.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(st.controlWait))
}

func (st *Stream) Pong() error {
	return st.conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(st.controlWait))
}

func (st *Stream) Close() error {
	return st.conn.Close()
}

func (st *Stream) LocalAddr() net.Addr {
	return st.conn.LocalAddr()
}

func (st *Stream) RemoteAddr() net.Addr {
	return st.conn.RemoteAddr()
}

// Acceptor performs the server side upgrade for one inbound request. It must
// run on the request's handler goroutine, gorilla hijacks the connection
// there; the session keeps using the stream after the handler returns.
type Acceptor struct {
	upgrader *websocket.Upgrader
	w        http.ResponseWriter
	r        *http.Request
	opts     []StreamOption
}

func NewAcceptor(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request,
	opts ...StreamOption) *Acceptor {
	if upgrader == nil {
		upgrader = &websocket.Upgrader{}
	}
	return &Acceptor{
		upgrader: upgrader,
		w:        w,
		r:        r,
		opts:     opts,
	}
}

func (a *Acceptor) Handshake() (wsession.Stream, error) {
	conn, err := a.upgrader.Upgrade(a.w, a.r, nil)
	if err != nil {
		return nil, err
	}
	return NewStream(conn, a.opts...), nil
}
