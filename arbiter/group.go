package arbiter

// Group keys scheduler variants, the arbiter only ever schedules its own event channel.
type Group uint8

const (
	GroupInvalid Group = 0
	GroupSend    Group = 1
)

func (g Group) String() string {
	switch g {
	case GroupInvalid:
		return "Invalid Group"
	case GroupSend:
		return "Send"
	default:
		return "Unknown Group"
	}
}
