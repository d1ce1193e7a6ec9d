package wsession

// ErrorKind enumerates the error kinds surfaced to disconnect and response
// handlers. Transport faults are always fatal to the session, TimeOut is
// local to one outstanding request.
type ErrorKind uint32

const (
	PingError ErrorKind = iota + 1
	PongError
	AcceptError
	PacketError
	ReadError
	WriteError
	TimeOut
)

func (kind ErrorKind) String() string {
	switch kind {
	case PingError:
		return "ping error"
	case PongError:
		return "pong error"
	case AcceptError:
		return "accept error"
	case PacketError:
		return "packet error"
	case ReadError:
		return "read error"
	case WriteError:
		return "write error"
	case TimeOut:
		return "time out"
	}
	return "none"
}

type Error struct {
	Kind    ErrorKind
	Message string
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// KindOf returns the kind carried by err, 0 if err is not a session error.
func KindOf(err error) ErrorKind {
	se, ok := err.(*Error)
	if !ok {
		return ErrorKind(0)
	}
	return se.Kind
}
