package wskit

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fgrzl/json/polymorphic"
	"github.com/fgrzl/obskit/pkg/api"
)

// ErrEndOfStream signals the peer finished sending on a logical channel.
var ErrEndOfStream = errors.New("end of stream")

// ErrStreamClosed signals the logical channel was torn down locally.
var ErrStreamClosed = errors.New("stream closed")

const (
	frameData = "data"
	frameEOS  = "eos"
)

// streamFrame is the unit carried in a MuxerMsg payload. Data frames hold
// an encoded message, EOS frames end the peer's send side and may carry a
// terminal error.
type streamFrame struct {
	Kind  string          `json:"kind"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// MuxerBidiStream is one logical bidirectional stream on a multiplexed
// WebSocket connection. Routed messages are wrapped in a polymorphic
// envelope on the wire; responses and events travel as plain JSON.
type MuxerBidiStream struct {
	send      func(payload []byte) error
	cleanup   func()
	recv      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func NewMuxerBidiStream(send func(payload []byte) error, cleanup func()) *MuxerBidiStream {
	return &MuxerBidiStream{
		send:    send,
		cleanup: cleanup,
		recv:    make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

// RecvChan exposes the inbound payload channel to the muxer read loop.
func (s *MuxerBidiStream) RecvChan() chan []byte {
	return s.recv
}

func (s *MuxerBidiStream) Encode(m any) error {
	select {
	case <-s.closed:
		return ErrStreamClosed
	default:
	}

	var body any = m
	if p, ok := m.(polymorphic.Polymorphic); ok {
		body = polymorphic.NewEnvelope(p)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	return s.sendFrame(&streamFrame{Kind: frameData, Data: data})
}

func (s *MuxerBidiStream) Decode(m any) error {
	var payload []byte
	select {
	case payload = <-s.recv:
	case <-s.closed:
		// Drain anything the read loop delivered before teardown.
		select {
		case payload = <-s.recv:
		default:
			return ErrStreamClosed
		}
	}

	var frame streamFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	switch frame.Kind {
	case frameData:
		return json.Unmarshal(frame.Data, m)
	case frameEOS:
		if frame.Error != "" {
			return errors.New(frame.Error)
		}
		return ErrEndOfStream
	default:
		return fmt.Errorf("unknown frame kind: %q", frame.Kind)
	}
}

// CloseSend ends this side's send stream. A non-nil err is delivered to
// the peer as the terminal stream error.
func (s *MuxerBidiStream) CloseSend(err error) error {
	frame := &streamFrame{Kind: frameEOS}
	if err != nil {
		frame.Error = err.Error()
	}
	return s.sendFrame(frame)
}

// Close tears the stream down. The peer observes end of stream, so a
// plain Close(nil) doubles as a fire-and-forget release signal.
func (s *MuxerBidiStream) Close(err error) {
	s.closeOnce.Do(func() {
		_ = s.CloseSend(err)
		close(s.closed)
		if s.cleanup != nil {
			s.cleanup()
		}
	})
}

func (s *MuxerBidiStream) EndOfStreamError() error {
	return ErrEndOfStream
}

// Closed reports whether the stream has been torn down.
func (s *MuxerBidiStream) Closed() <-chan struct{} {
	return s.closed
}

func (s *MuxerBidiStream) sendFrame(frame *streamFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame failed: %w", err)
	}
	return s.send(payload)
}

var _ api.BidiStream = (*MuxerBidiStream)(nil)
