package message

type RequestType int32

const (
	RequestInit                  RequestType = 1
	RequestRegRole               RequestType = 2
	RequestGetCompatibleNws      RequestType = 3
	RequestConfirmNw             RequestType = 4
	RequestDeregRole             RequestType = 5
	RequestRegNotifications      RequestType = 6
	RequestUpdateBatteryInfo     RequestType = 7
	RequestUpdateWlanInfo        RequestType = 8
	RequestUpdateWwanInfo        RequestType = 9
	RequestNotifyRatConnect      RequestType = 10
	RequestNotifyDefaultNwPref   RequestType = 11
	RequestUpdateWlanScanResults RequestType = 12
	RequestNotifySensorEvent     RequestType = 13
	RequestConfigIproute2        RequestType = 14
)

func (t RequestType) String() string {
	switch t {
	case RequestInit:
		return "Init"
	case RequestRegRole:
		return "Reg Role"
	case RequestGetCompatibleNws:
		return "Get Compatible Nws"
	case RequestConfirmNw:
		return "Confirm Nw"
	case RequestDeregRole:
		return "Dereg Role"
	case RequestRegNotifications:
		return "Reg Notifications"
	case RequestUpdateBatteryInfo:
		return "Update Battery Info"
	case RequestUpdateWlanInfo:
		return "Update Wlan Info"
	case RequestUpdateWwanInfo:
		return "Update Wwan Info"
	case RequestNotifyRatConnect:
		return "Notify Rat Connect Status"
	case RequestNotifyDefaultNwPref:
		return "Notify Default Nw Pref"
	case RequestUpdateWlanScanResults:
		return "Update Wlan Scan Results"
	case RequestNotifySensorEvent:
		return "Notify Sensor Event"
	case RequestConfigIproute2:
		return "Config Iproute2"
	default:
		return "Unknown Request"
	}
}

// Iproute2Command selects the routing change carried by RequestConfigIproute2.
type Iproute2Command int32

const (
	Iproute2AddDefault            Iproute2Command = 0
	Iproute2DeleteDefault         Iproute2Command = 1
	Iproute2DeleteDefaultFromMain Iproute2Command = 2
	Iproute2ChangeDefaultFromMain Iproute2Command = 3
)

func (c Iproute2Command) String() string {
	switch c {
	case Iproute2AddDefault:
		return "Add Default"
	case Iproute2DeleteDefault:
		return "Delete Default"
	case Iproute2DeleteDefaultFromMain:
		return "Delete Default From Main"
	case Iproute2ChangeDefaultFromMain:
		return "Change Default From Main"
	default:
		return "Unknown Command"
	}
}
