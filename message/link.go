package message

type Role int32

const (
	RoleInvalid Role = -1
	RoleDefault Role = 0
)

type FailureReason uint8

const (
	FailureGeneral FailureReason = 0
	FailureNoLinks FailureReason = 1
)

func (r FailureReason) String() string {
	switch r {
	case FailureGeneral:
		return "General Failure"
	case FailureNoLinks:
		return "No Links"
	default:
		return "Unknown Reason"
	}
}

// bandwidth value meaning not specified
const Unspecified int32 = -1

type LinkRequirements struct {
	FwLinkBw  int32 `json:"fw_link_bw" yaml:"fw_link_bw"`
	RevLinkBw int32 `json:"rev_link_bw" yaml:"rev_link_bw"`
}

type LinkInfo struct {
	IPAddr     string `json:"ip_addr"`
	AvailFwBw  int32  `json:"avail_fw_bw"`
	AvailRevBw int32  `json:"avail_rev_bw"`
	NetworkID  Rat    `json:"network_id"`
}
