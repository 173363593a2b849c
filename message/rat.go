package message

import (
	"fmt"
	"strings"
)

// Rat identifies a radio access technology as understood by the daemon.
type Rat int32

const (
	RatWwan    Rat = 0
	RatWlan    Rat = 1
	RatAny     Rat = 2
	RatNone    Rat = 3
	RatInvalid Rat = 4

	// number of rat slots carried by a compatible networks response
	RatSlotCount = 4
)

func (r Rat) String() string {
	switch r {
	case RatWwan:
		return "WWAN"
	case RatWlan:
		return "WLAN"
	case RatAny:
		return "ANY"
	case RatNone:
		return "NONE"
	case RatInvalid:
		return "INVALID"
	default:
		return "Unknown Rat"
	}
}

// Selectable reports whether r names an actual bearer.
func (r Rat) Selectable() bool {
	return r == RatWwan || r == RatWlan || r == RatAny
}

func ParseRat(s string) (Rat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wwan", "mobile":
		return RatWwan, nil
	case "wlan", "wifi":
		return RatWlan, nil
	case "any":
		return RatAny, nil
	default:
		return RatInvalid, fmt.Errorf("invalid rat=%s", s)
	}
}
