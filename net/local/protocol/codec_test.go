package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	m "github.com/Meander-Cloud/go-cne/message"
)

func TestBody_FixedWidthInt(t *testing.T) {
	b := newBody()
	b.WriteInt(1)
	b.WriteInt(-2)

	want := []byte{0xd2, 0, 0, 0, 1, 0xd2, 0xff, 0xff, 0xff, 0xfe}
	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("expected %X, got %X", want, b.Bytes())
	}
}

func TestEncodeFrame_Prefix(t *testing.T) {
	data := bytes.Repeat([]byte{0xab}, 0x0102)

	frame, err := EncodeFrame(data, MaxMessageLen)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	if !bytes.Equal(frame[:4], []byte{0, 0, 0x01, 0x02}) {
		t.Fatalf("unexpected prefix %X", frame[:4])
	}
	if !bytes.Equal(frame[4:], data) {
		t.Fatal("payload mismatch")
	}
}

func TestEncodeFrame_Cap(t *testing.T) {
	_, err := EncodeFrame(make([]byte, 65535), MaxMessageLen)
	if err != nil {
		t.Fatalf("expected 65535 bytes accepted, got %v", err)
	}

	_, err = EncodeFrame(make([]byte, 65536), MaxMessageLen)
	if err == nil {
		t.Fatal("expected 65536 bytes rejected")
	}

	// a larger configured max is clamped to what the two populated prefix bytes can carry
	_, err = EncodeFrame(make([]byte, 65536), 1<<20)
	if err == nil {
		t.Fatal("expected 65536 bytes rejected with oversize max")
	}

	_, err = EncodeFrame(make([]byte, 101), 100)
	if err == nil {
		t.Fatal("expected configured max enforced")
	}
}

// The encoder only ever populates the low two prefix bytes while the decoder honours all
// four. A peer setting the high bytes announces a length above the cap and is refused.
func TestReadFrame_PrefixAsymmetry(t *testing.T) {
	buf := make([]byte, MaxMessageLen)

	stream := append([]byte{0, 1, 0, 0}, make([]byte, 16)...)
	_, err := ReadFrame(bytes.NewReader(stream), buf, MaxMessageLen)
	if err == nil {
		t.Fatal("expected 65536 byte prefix rejected")
	}

	stream = append([]byte{0, 0, 0, 3}, 'a', 'b', 'c')
	data, err := ReadFrame(bytes.NewReader(stream), buf, MaxMessageLen)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("expected abc, got %q", data)
	}
}

func TestReadFrame_PartialReads(t *testing.T) {
	var stream bytes.Buffer
	for _, s := range []string{"first", "second message"} {
		frame, err := EncodeFrame([]byte(s), MaxMessageLen)
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		stream.Write(frame)
	}

	r := iotest.OneByteReader(&stream)
	buf := make([]byte, MaxMessageLen)

	for _, want := range []string{"first", "second message"} {
		data, err := ReadFrame(r, buf, MaxMessageLen)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(data) != want {
			t.Fatalf("expected %q, got %q", want, data)
		}
	}

	_, err := ReadFrame(r, buf, MaxMessageLen)
	if err != io.EOF {
		t.Fatalf("expected io.EOF at frame boundary, got %v", err)
	}
}

func TestReadFrame_TruncatedStream(t *testing.T) {
	buf := make([]byte, MaxMessageLen)

	// inside the prefix
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), buf, MaxMessageLen)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}

	// inside the payload
	_, err = ReadFrame(bytes.NewReader([]byte{0, 0, 0, 8, 1, 2, 3}), buf, MaxMessageLen)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}

	// declared length present, payload absent
	_, err = ReadFrame(bytes.NewReader([]byte{0, 0, 0, 8}), buf, MaxMessageLen)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestDecodeResponse_Solicited(t *testing.T) {
	rsp, err := DecodeResponse(EncodeSolicited(42, 7))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if rsp.Kind != m.ResponseSolicited || rsp.Solicited == nil {
		t.Fatalf("expected solicited response, got %+v", rsp)
	}
	if rsp.Solicited.Serial != 42 || rsp.Solicited.Status != 7 {
		t.Fatalf("unexpected %+v", *rsp.Solicited)
	}
}

func TestDecodeResponse_CompatibleNwsSkipsEmptySlots(t *testing.T) {
	data, err := EncodeEvent(&m.Event{
		Tag: m.EventCompatibleNwsResponse,
		CompatibleNwsResponse: &m.CompatibleNwsResponse{
			RegID:     3,
			Status:    m.StatusSuccess,
			ActiveRat: m.RatWlan,
			Rats:      []m.Rat{m.RatWlan, m.RatNone, m.RatWwan},
			IPAddr:    "10.0.0.2",
			FwBwEst:   1000,
			RevBwEst:  500,
		},
	})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}

	rsp, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	got := rsp.Event.CompatibleNwsResponse
	if got == nil {
		t.Fatalf("expected compatible networks payload, got %+v", rsp.Event)
	}
	if len(got.Rats) != 2 || got.Rats[0] != m.RatWlan || got.Rats[1] != m.RatWwan {
		t.Fatalf("expected [WLAN WWAN], got %v", got.Rats)
	}
	if got.IPAddr != "10.0.0.2" || got.FwBwEst != 1000 || got.RevBwEst != 500 {
		t.Fatalf("unexpected estimates %+v", *got)
	}
}

func TestDecodeResponse_FailedCompatibleNwsCarriesNoRats(t *testing.T) {
	data, err := EncodeEvent(&m.Event{
		Tag: m.EventCompatibleNwsResponse,
		CompatibleNwsResponse: &m.CompatibleNwsResponse{
			RegID:  3,
			Status: m.StatusFailure,
		},
	})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}

	rsp, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	got := rsp.Event.CompatibleNwsResponse
	if got.Status != m.StatusFailure || len(got.Rats) != 0 {
		t.Fatalf("unexpected %+v", *got)
	}
}

func TestDecodeResponse_UnknownTag(t *testing.T) {
	data, err := EncodeEvent(&m.Event{Tag: m.EventTag(99)})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}

	rsp, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if rsp.Kind != m.ResponseUnsolicited || rsp.Event.Tag != 99 {
		t.Fatalf("unexpected %+v", rsp)
	}
	if rsp.Event.RegRoleResponse != nil || rsp.Event.StartScanWlan != nil {
		t.Fatal("expected no payload for unknown tag")
	}
}

func TestDecodeResponse_Malformed(t *testing.T) {
	b := newBody()
	b.WriteInt(int32(m.ResponseUnsolicited))
	b.WriteInt(int32(m.EventRatLost))
	b.WriteInt(1) // rat missing

	_, err := DecodeResponse(b.Bytes())
	if err == nil {
		t.Fatal("expected truncated event rejected")
	}

	b = newBody()
	b.WriteInt(5)
	_, err = DecodeResponse(b.Bytes())
	if err == nil {
		t.Fatal("expected unknown kind rejected")
	}
}
