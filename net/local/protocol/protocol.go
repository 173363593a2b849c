package protocol

import (
	"net"
)

const (
	// length prefix is four bytes wide, only the low two are ever populated by the encoder
	lengthPrefixLen int = 4

	MaxMessageLen    uint32 = 65535
	typicalBufferLen int    = 256

	// free list bound of the request pool
	PoolCapacity int = 4
)

type ConnState struct {
	ConnID     uint32
	Conn       net.Conn
	Generation uint64 // serial generation this connection was opened under
	Descriptor string

	// set by the sender once init is on the wire, nothing else is written before
	handshaken bool
}
