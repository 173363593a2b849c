package message

type EventTag int32

const (
	EventRegRoleResponse       EventTag = 1
	EventCompatibleNwsResponse EventTag = 2
	EventConfirmNwResponse     EventTag = 3
	EventDeregRoleResponse     EventTag = 4
	EventBringRatDown          EventTag = 5
	EventBringRatUp            EventTag = 6
	EventMorePreferredRatAvail EventTag = 7
	EventRatLost               EventTag = 8
	EventStartScanWlan         EventTag = 9
	EventInflightStatus        EventTag = 10
)

func (t EventTag) String() string {
	switch t {
	case EventRegRoleResponse:
		return "Reg Role Response"
	case EventCompatibleNwsResponse:
		return "Compatible Nws Response"
	case EventConfirmNwResponse:
		return "Confirm Nw Response"
	case EventDeregRoleResponse:
		return "Dereg Role Response"
	case EventBringRatDown:
		return "Bring Rat Down"
	case EventBringRatUp:
		return "Bring Rat Up"
	case EventMorePreferredRatAvail:
		return "More Preferred Rat Avail"
	case EventRatLost:
		return "Rat Lost"
	case EventStartScanWlan:
		return "Start Scan Wlan"
	case EventInflightStatus:
		return "Inflight Status"
	default:
		return "Unknown Event"
	}
}

// RoleResponse carries the outcome of a reg role, confirm nw or dereg role request.
type RoleResponse struct {
	RegID  int32  `json:"reg_id"`
	Status Status `json:"status"`
}

type CompatibleNwsResponse struct {
	RegID  int32  `json:"reg_id"`
	Status Status `json:"status"`

	// populated only on success
	ActiveRat Rat    `json:"active_rat"`
	Rats      []Rat  `json:"rats"` // ranked, invalid and none slots removed
	IPAddr    string `json:"ip_addr"`
	FwBwEst   int32  `json:"fw_bw_est"`
	RevBwEst  int32  `json:"rev_bw_est"`
}

type RatCommand struct {
	Rat Rat `json:"rat"`
}

type MorePreferredRatAvail struct {
	RegID     int32  `json:"reg_id"`
	BetterRat Rat    `json:"better_rat"`
	IPAddr    string `json:"ip_addr"`
	FwBwEst   int32  `json:"fw_bw_est"`
	RevBwEst  int32  `json:"rev_bw_est"`
}

type RatLost struct {
	RegID int32 `json:"reg_id"`
	Rat   Rat   `json:"rat"`
}

type StartScanWlan struct{}

type InflightStatus struct {
	Status int32 `json:"status"`
}
