package protocol

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	m "github.com/Meander-Cloud/go-cne/message"
)

// Daemon side of the wire format, used by tools and tests that stand in for the decision daemon.

type Request struct {
	Type   m.RequestType
	Serial int32
	Fields []interface{} // int32 or string, in wire order
}

func (r *Request) Int(i int) int32 {
	if i >= len(r.Fields) {
		return 0
	}
	v, _ := r.Fields[i].(int32)
	return v
}

func (r *Request) String(i int) string {
	if i >= len(r.Fields) {
		return ""
	}
	s, _ := r.Fields[i].(string)
	return s
}

func DecodeRequest(data []byte) (*Request, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))

	requestType, err := dec.DecodeInt32()
	if err != nil {
		return nil, fmt.Errorf("decode request type: %w", err)
	}
	serial, err := dec.DecodeInt32()
	if err != nil {
		return nil, fmt.Errorf("decode serial: %w", err)
	}

	req := &Request{
		Type:   m.RequestType(requestType),
		Serial: serial,
	}

	for {
		_, err = dec.PeekCode()
		if err != nil {
			// end of body
			break
		}

		v, err := dec.DecodeInterface()
		if err != nil {
			return nil, fmt.Errorf("decode %s field %d: %w", req.Type, len(req.Fields), err)
		}
		req.Fields = append(req.Fields, v)
	}

	return req, nil
}

func EncodeSolicited(serial int32, status int32) []byte {
	b := newBody()
	b.WriteInt(int32(m.ResponseSolicited))
	b.WriteInt(serial)
	b.WriteInt(status)
	return b.Bytes()
}

func EncodeEvent(event *m.Event) ([]byte, error) {
	b := newBody()
	b.WriteInt(int32(m.ResponseUnsolicited))
	b.WriteInt(int32(event.Tag))

	writeRoleResponse := func(rsp *m.RoleResponse) error {
		if rsp == nil {
			return fmt.Errorf("nil payload for %s", event.Tag)
		}
		b.WriteInt(rsp.RegID)
		b.WriteInt(int32(rsp.Status))
		return nil
	}

	var err error
	switch event.Tag {
	case m.EventRegRoleResponse:
		err = writeRoleResponse(event.RegRoleResponse)
	case m.EventConfirmNwResponse:
		err = writeRoleResponse(event.ConfirmNwResponse)
	case m.EventDeregRoleResponse:
		err = writeRoleResponse(event.DeregRoleResponse)
	case m.EventCompatibleNwsResponse:
		rsp := event.CompatibleNwsResponse
		if rsp == nil {
			return nil, fmt.Errorf("nil payload for %s", event.Tag)
		}
		if len(rsp.Rats) > m.RatSlotCount {
			return nil, fmt.Errorf("%d rats exceed %d slots", len(rsp.Rats), m.RatSlotCount)
		}
		b.WriteInt(rsp.RegID)
		b.WriteInt(int32(rsp.Status))
		if rsp.Status == m.StatusSuccess {
			b.WriteRat(rsp.ActiveRat)
			for i := 0; i < m.RatSlotCount; i++ {
				if i < len(rsp.Rats) {
					b.WriteRat(rsp.Rats[i])
				} else {
					b.WriteRat(m.RatInvalid)
				}
			}
			b.WriteString(rsp.IPAddr)
			b.WriteInt(rsp.FwBwEst)
			b.WriteInt(rsp.RevBwEst)
		}
	case m.EventBringRatDown:
		if event.BringRatDown == nil {
			return nil, fmt.Errorf("nil payload for %s", event.Tag)
		}
		b.WriteRat(event.BringRatDown.Rat)
	case m.EventBringRatUp:
		if event.BringRatUp == nil {
			return nil, fmt.Errorf("nil payload for %s", event.Tag)
		}
		b.WriteRat(event.BringRatUp.Rat)
	case m.EventMorePreferredRatAvail:
		ev := event.MorePreferredRatAvail
		if ev == nil {
			return nil, fmt.Errorf("nil payload for %s", event.Tag)
		}
		b.WriteInt(ev.RegID)
		b.WriteRat(ev.BetterRat)
		b.WriteString(ev.IPAddr)
		b.WriteInt(ev.FwBwEst)
		b.WriteInt(ev.RevBwEst)
	case m.EventRatLost:
		if event.RatLost == nil {
			return nil, fmt.Errorf("nil payload for %s", event.Tag)
		}
		b.WriteInt(event.RatLost.RegID)
		b.WriteRat(event.RatLost.Rat)
	case m.EventStartScanWlan:
	case m.EventInflightStatus:
		if event.InflightStatus == nil {
			return nil, fmt.Errorf("nil payload for %s", event.Tag)
		}
		b.WriteInt(event.InflightStatus.Status)
	default:
		// unknown tags go out bare, receivers are expected to drop them
	}
	if err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}
