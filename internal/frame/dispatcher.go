package frame

import (
	"errors"

	"go.uber.org/zap"
)

// Handlers receives decoded frames, one handler per kind. A nil handler
// drops frames of that kind.
type Handlers struct {
	Message    func(Message)
	Ack        func(Ack)
	Typing     func(Typing)
	UserStatus func(UserStatus)
}

// Dispatcher decodes raw socket payloads and routes each frame to exactly
// one handler based on its kind. Undecodable and unknown frames are logged
// and dropped; neither affects the connection.
type Dispatcher struct {
	dec      Decoder
	handlers Handlers
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher with the given decoder and handlers.
func NewDispatcher(dec Decoder, h Handlers, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{dec: dec, handlers: h, logger: logger}
}

// DispatchRaw decodes data and routes the result.
func (d *Dispatcher) DispatchRaw(data []byte) {
	f, err := d.dec.Decode(data)
	if err != nil {
		if errors.Is(err, ErrMissingKind) || errors.Is(err, ErrUnknownKind) {
			d.logger.Warn("dropping unroutable frame", zap.Error(err))
		} else {
			d.logger.Warn("dropping undecodable frame", zap.Error(err))
		}
		return
	}
	d.Dispatch(f)
}

// Dispatch routes an already-decoded frame.
func (d *Dispatcher) Dispatch(f Inbound) {
	switch v := f.(type) {
	case Message:
		if d.handlers.Message != nil {
			d.handlers.Message(v)
		}
	case Ack:
		if d.handlers.Ack != nil {
			d.handlers.Ack(v)
		}
	case Typing:
		if d.handlers.Typing != nil {
			d.handlers.Typing(v)
		}
	case UserStatus:
		if d.handlers.UserStatus != nil {
			d.handlers.UserStatus(v)
		}
	default:
		d.logger.Warn("no handler for frame", zap.String("kind", string(f.FrameKind())))
	}
}
