package message

// Status is the outcome code carried inside unsolicited response events.
type Status int32

const (
	StatusFailure Status = 0
	StatusSuccess Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusFailure:
		return "Failure"
	case StatusSuccess:
		return "Success"
	default:
		return "Unknown Status"
	}
}

// ResponseKind is the first field of every inbound message.
type ResponseKind int32

const (
	ResponseSolicited   ResponseKind = 0
	ResponseUnsolicited ResponseKind = 1
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseSolicited:
		return "Solicited"
	case ResponseUnsolicited:
		return "Unsolicited"
	default:
		return "Unknown Kind"
	}
}

const (
	InflightOff int32 = 0
	InflightOn  int32 = 1
)
