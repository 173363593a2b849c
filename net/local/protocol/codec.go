package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	m "github.com/Meander-Cloud/go-cne/message"
)

// body accumulates a sequence of msgpack values, integers always in fixed width big endian form.
type body struct {
	buf bytes.Buffer
	enc *msgpack.Encoder
}

func newBody() *body {
	b := &body{}
	b.buf.Grow(typicalBufferLen)
	b.enc = msgpack.NewEncoder(&b.buf)
	return b
}

func (b *body) reset() {
	b.buf.Reset()
	b.enc.Reset(&b.buf)
}

// writes into bytes.Buffer cannot fail
func (b *body) WriteInt(v int32) {
	_ = b.enc.EncodeInt32(v)
}

func (b *body) WriteBool(v bool) {
	if v {
		b.WriteInt(1)
		return
	}
	b.WriteInt(0)
}

func (b *body) WriteString(s string) {
	_ = b.enc.EncodeString(s)
}

func (b *body) WriteRat(r m.Rat) {
	b.WriteInt(int32(r))
}

func (b *body) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *body) Len() int {
	return b.buf.Len()
}

// EncodeFrame returns body prefixed by its length, failing when body exceeds maxLen.
func EncodeFrame(data []byte, maxLen uint32) ([]byte, error) {
	if maxLen == 0 || maxLen > MaxMessageLen {
		maxLen = MaxMessageLen
	}
	if uint32(len(data)) > maxLen {
		return nil, fmt.Errorf("message of %d bytes exceeds max %d", len(data), maxLen)
	}

	frame := make([]byte, lengthPrefixLen+len(data))
	// 0,1 - always zero
	// 2,3 - message length, big endian byte order
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(data)))
	copy(frame[lengthPrefixLen:], data)
	return frame, nil
}

// ReadFrame reads one length prefixed message into buf and returns the message slice of buf.
// Hitting end of stream anywhere inside a frame is an error.
func ReadFrame(r io.Reader, buf []byte, maxLen uint32) ([]byte, error) {
	var prefix [4]byte
	_, err := io.ReadFull(r, prefix[:])
	if err != nil {
		return nil, err
	}

	// all four bytes are honoured on read
	messageLen := binary.BigEndian.Uint32(prefix[:])
	if messageLen > maxLen || int(messageLen) > len(buf) {
		return nil, fmt.Errorf("message length %d in prefix %X exceeds max %d", messageLen, prefix, maxLen)
	}

	_, err = io.ReadFull(r, buf[:messageLen])
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return buf[:messageLen], nil
}

type Response struct {
	Kind      m.ResponseKind
	Solicited *m.Solicited
	Event     *m.Event
}

// DecodeResponse decodes one inbound message body. Unknown event tags decode to an Event
// without payload so that the caller can log and drop them.
func DecodeResponse(data []byte) (*Response, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))

	kind, err := dec.DecodeInt32()
	if err != nil {
		return nil, fmt.Errorf("decode kind: %w", err)
	}

	switch m.ResponseKind(kind) {
	case m.ResponseSolicited:
		serial, err := dec.DecodeInt32()
		if err != nil {
			return nil, fmt.Errorf("decode serial: %w", err)
		}
		status, err := dec.DecodeInt32()
		if err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		return &Response{
			Kind: m.ResponseSolicited,
			Solicited: &m.Solicited{
				Serial: serial,
				Status: status,
			},
		}, nil
	case m.ResponseUnsolicited:
		event, err := decodeEvent(dec)
		if err != nil {
			return nil, err
		}
		return &Response{
			Kind:  m.ResponseUnsolicited,
			Event: event,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported response kind=%d", kind)
	}
}

type reader struct {
	dec *msgpack.Decoder
	err error
}

func (r *reader) int() int32 {
	if r.err != nil {
		return 0
	}
	var v int32
	v, r.err = r.dec.DecodeInt32()
	return v
}

func (r *reader) rat() m.Rat {
	return m.Rat(r.int())
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	var s string
	s, r.err = r.dec.DecodeString()
	return s
}

func decodeEvent(dec *msgpack.Decoder) (*m.Event, error) {
	r := &reader{dec: dec}
	tag := m.EventTag(r.int())
	if r.err != nil {
		return nil, fmt.Errorf("decode event tag: %w", r.err)
	}

	event := &m.Event{Tag: tag}

	switch tag {
	case m.EventRegRoleResponse:
		event.RegRoleResponse = &m.RoleResponse{RegID: r.int(), Status: m.Status(r.int())}
	case m.EventCompatibleNwsResponse:
		rsp := &m.CompatibleNwsResponse{RegID: r.int(), Status: m.Status(r.int())}
		if r.err == nil && rsp.Status == m.StatusSuccess {
			rsp.ActiveRat = r.rat()
			for i := 0; i < m.RatSlotCount; i++ {
				rat := r.rat()
				if rat == m.RatInvalid || rat == m.RatNone {
					continue
				}
				rsp.Rats = append(rsp.Rats, rat)
			}
			rsp.IPAddr = r.string()
			rsp.FwBwEst = r.int()
			rsp.RevBwEst = r.int()
		}
		event.CompatibleNwsResponse = rsp
	case m.EventConfirmNwResponse:
		event.ConfirmNwResponse = &m.RoleResponse{RegID: r.int(), Status: m.Status(r.int())}
	case m.EventDeregRoleResponse:
		event.DeregRoleResponse = &m.RoleResponse{RegID: r.int(), Status: m.Status(r.int())}
	case m.EventBringRatDown:
		event.BringRatDown = &m.RatCommand{Rat: r.rat()}
	case m.EventBringRatUp:
		event.BringRatUp = &m.RatCommand{Rat: r.rat()}
	case m.EventMorePreferredRatAvail:
		event.MorePreferredRatAvail = &m.MorePreferredRatAvail{
			RegID:     r.int(),
			BetterRat: r.rat(),
			IPAddr:    r.string(),
			FwBwEst:   r.int(),
			RevBwEst:  r.int(),
		}
	case m.EventRatLost:
		event.RatLost = &m.RatLost{RegID: r.int(), Rat: r.rat()}
	case m.EventStartScanWlan:
		event.StartScanWlan = &m.StartScanWlan{}
	case m.EventInflightStatus:
		event.InflightStatus = &m.InflightStatus{Status: r.int()}
	default:
		// payload left unread
	}

	if r.err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, r.err)
	}
	return event, nil
}
