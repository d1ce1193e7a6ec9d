package message

import (
	"github.com/google/uuid"
	"github.com/quayside/wsession"
)

type messageFactory struct{}

func NewMessageFactory() wsession.MessageFactory {
	return &messageFactory{}
}

func (mf *messageFactory) NewMessage() wsession.Message {
	return &Message{
		Version: V01,
		Typ:     TypeNotify,
	}
}

func (mf *messageFactory) NewRequestMessage(payload []byte) wsession.Message {
	return &Message{
		Version: V01,
		Typ:     TypeRequest,
		seq:     []byte(uuid.NewString()),
		payload: payload,
	}
}

func (mf *messageFactory) NewResponseMessage(seq, payload []byte) wsession.Message {
	return &Message{
		Version: V01,
		Typ:     TypeResponse,
		seq:     seq,
		payload: payload,
	}
}
