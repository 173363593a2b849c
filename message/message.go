package message

// Event is one decoded unsolicited message, exactly one payload is set.
type Event struct {
	Tag EventTag `json:"tag"`

	RegRoleResponse       *RoleResponse          `json:"reg_role_response,omitempty"`
	CompatibleNwsResponse *CompatibleNwsResponse `json:"compatible_nws_response,omitempty"`
	ConfirmNwResponse     *RoleResponse          `json:"confirm_nw_response,omitempty"`
	DeregRoleResponse     *RoleResponse          `json:"dereg_role_response,omitempty"`

	BringRatDown *RatCommand `json:"bring_rat_down,omitempty"`
	BringRatUp   *RatCommand `json:"bring_rat_up,omitempty"`

	MorePreferredRatAvail *MorePreferredRatAvail `json:"more_preferred_rat_avail,omitempty"`
	RatLost               *RatLost               `json:"rat_lost,omitempty"`

	StartScanWlan  *StartScanWlan  `json:"start_scan_wlan,omitempty"`
	InflightStatus *InflightStatus `json:"inflight_status,omitempty"`
}

// Solicited is the acknowledgement of one request, correlated by serial.
type Solicited struct {
	Serial int32 `json:"serial"`
	Status int32 `json:"status"` // zero means success
}
