package message

import (
	"encoding/binary"
	"errors"
	"math"
)

type Version byte

const (
	V01 Version = 0x01
)

type Type byte

const (
	TypeRequest  Type = 0x01
	TypeResponse Type = 0x02
	TypeNotify   Type = 0x03
)

func (typ Type) String() string {
	switch typ {
	case TypeRequest:
		return "request message"
	case TypeResponse:
		return "response message"
	case TypeNotify:
		return "notify message"
	}
	return "unknown message"
}

var (
	ErrIllegalMessage    = errors.New("illegal message")
	ErrIncompleteMessage = errors.New("incomplete message")
	ErrVersionMismatch   = errors.New("version mismatch")
)

// header layout, big endian:
// version(1) | type(1) | status(2) | seqLen(2) | payloadLen(4)
const headerLen = 10

// Message is the framed unit exchanged over one websocket frame. Status
// carries an application status code, zero means ok.
type Message struct {
	Version Version
	Typ     Type
	Status  int16

	seq     []byte
	payload []byte
}

func (msg *Message) Seq() []byte {
	return msg.seq
}

func (msg *Message) SetSeq(seq []byte) {
	msg.seq = seq
}

func (msg *Message) Payload() []byte {
	return msg.payload
}

func (msg *Message) SetPayload(payload []byte) {
	msg.payload = payload
}

func (msg *Message) Encode() ([]byte, error) {
	if len(msg.seq) == 0 || len(msg.seq) > math.MaxUint16 {
		return nil, ErrIllegalMessage
	}
	data := make([]byte, headerLen+len(msg.seq)+len(msg.payload))
	data[0] = byte(msg.Version)
	data[1] = byte(msg.Typ)
	binary.BigEndian.PutUint16(data[2:4], uint16(msg.Status))
	binary.BigEndian.PutUint16(data[4:6], uint16(len(msg.seq)))
	binary.BigEndian.PutUint32(data[6:10], uint32(len(msg.payload)))
	copy(data[headerLen:], msg.seq)
	copy(data[headerLen+len(msg.seq):], msg.payload)
	return data, nil
}

func (msg *Message) Decode(data []byte) error {
	if len(data) < headerLen {
		return ErrIncompleteMessage
	}
	if Version(data[0]) != V01 {
		return ErrVersionMismatch
	}
	msg.Version = Version(data[0])
	msg.Typ = Type(data[1])
	msg.Status = int16(binary.BigEndian.Uint16(data[2:4]))
	seqLen := int(binary.BigEndian.Uint16(data[4:6]))
	payloadLen := int(binary.BigEndian.Uint32(data[6:10]))
	if seqLen == 0 {
		return ErrIllegalMessage
	}
	if len(data) != headerLen+seqLen+payloadLen {
		return ErrIncompleteMessage
	}
	msg.seq = data[headerLen : headerLen+seqLen]
	msg.payload = data[headerLen+seqLen:]
	return nil
}
