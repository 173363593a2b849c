package local

import (
	"context"
	"net"
	"time"

	"github.com/Meander-Cloud/go-cne/config"
	"github.com/Meander-Cloud/go-cne/metrics"
	lp "github.com/Meander-Cloud/go-cne/net/local/protocol"
)

// UnixDialer connects to the daemon's stream socket at address.
func UnixDialer(address string, timeout time.Duration) lp.Dialer {
	return func(ctx context.Context) (net.Conn, error) {
		d := &net.Dialer{
			Timeout: timeout,
		}
		return d.DialContext(ctx, "unix", address)
	}
}

// NewClient builds the protocol client from c, filling every zero field with its default.
// The client is not started. dial may be nil, in which case the unix socket at the
// configured address is used.
func NewClient(
	c *config.Config,
	ch lp.ClientHandler,
	mt *metrics.Metrics,
	dial lp.Dialer,
) (*lp.Client, error) {
	var address string
	if c.Address == "" {
		address = config.Address
	} else {
		address = c.Address
	}

	var eventChannelLength uint16
	if c.EventChannelLength == 0 {
		eventChannelLength = config.EventChannelLength
	} else {
		eventChannelLength = c.EventChannelLength
	}

	var dialTimeout time.Duration
	if c.DialTimeout == 0 {
		dialTimeout = config.DialTimeout
	} else {
		dialTimeout = time.Millisecond * time.Duration(c.DialTimeout)
	}

	var writeTimeout time.Duration
	if c.WriteTimeout == 0 {
		writeTimeout = config.WriteTimeout
	} else {
		writeTimeout = time.Millisecond * time.Duration(c.WriteTimeout)
	}

	var reconnectInterval time.Duration
	if c.ReconnectInterval == 0 {
		reconnectInterval = config.ReconnectInterval
	} else {
		reconnectInterval = time.Millisecond * time.Duration(c.ReconnectInterval)
	}

	var reconnectLogLimit uint16
	if c.ReconnectLogLimit == 0 {
		reconnectLogLimit = config.ReconnectLogLimit
	} else {
		reconnectLogLimit = c.ReconnectLogLimit
	}

	var maxMessageLen uint32
	if c.MaxMessageLen == 0 {
		maxMessageLen = config.MaxMessageLen
	} else {
		maxMessageLen = c.MaxMessageLen
	}

	var logPrefix string
	if c.LogPrefix == "" {
		logPrefix = config.LogPrefix
	} else {
		logPrefix = c.LogPrefix
	}

	if dial == nil {
		dial = UnixDialer(address, dialTimeout)
	}

	return lp.NewClient(
		&lp.ClientOptions{
			Address: address,
			Dial:    dial,

			EventChannelLength: eventChannelLength,
			WriteTimeout:       writeTimeout,
			ReconnectInterval:  reconnectInterval,
			ReconnectLogLimit:  reconnectLogLimit,
			MaxMessageLen:      maxMessageLen,

			ClientHandler: ch,
			Metrics:       mt,

			LogPrefix: logPrefix + "-Protocol",
			LogDebug:  c.LogDebug,
		},
	)
}
