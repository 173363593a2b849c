package engine

import (
	"log"

	m "github.com/Meander-Cloud/go-cne/message"
)

type WlanStatus struct {
	Type      int32
	State     int32
	Rssi      int32
	Ssid      string
	IPAddr    string
	Timestamp string
}

type WwanStatus struct {
	Type      int32
	State     int32
	Rssi      int32
	Roaming   bool
	IPAddr    string
	Timestamp string
}

type WlanScanResult struct {
	Level        int32
	Frequency    int32
	Ssid         string
	Bssid        string
	Capabilities string
}

func (e *Engine) UpdateBatteryStatus(status int32, pluginType int32, level int32) bool {
	if e.c.LogDebug {
		log.Printf("%s: updateBatteryStatus: status=%d, pluginType=%d, level=%d", e.logPrefix, status, pluginType, level)
	}

	env := e.client.Obtain(m.RequestUpdateBatteryInfo)
	env.WriteInt(status)
	env.WriteInt(pluginType)
	env.WriteInt(level)
	return e.send(env)
}

func (e *Engine) UpdateWlanStatus(status *WlanStatus) bool {
	if status == nil {
		return false
	}
	if e.c.LogDebug {
		log.Printf("%s: updateWlanStatus: %+v", e.logPrefix, *status)
	}

	env := e.client.Obtain(m.RequestUpdateWlanInfo)
	env.WriteInt(status.Type)
	env.WriteInt(status.State)
	env.WriteInt(status.Rssi)
	env.WriteString(status.Ssid)
	env.WriteString(status.IPAddr)
	env.WriteString(status.Timestamp)
	return e.send(env)
}

func (e *Engine) UpdateWwanStatus(status *WwanStatus) bool {
	if status == nil {
		return false
	}
	if e.c.LogDebug {
		log.Printf("%s: updateWwanStatus: %+v", e.logPrefix, *status)
	}

	env := e.client.Obtain(m.RequestUpdateWwanInfo)
	env.WriteInt(status.Type)
	env.WriteInt(status.State)
	env.WriteInt(status.Rssi)
	env.WriteBool(status.Roaming)
	env.WriteString(status.IPAddr)
	env.WriteString(status.Timestamp)
	return e.send(env)
}

func (e *Engine) NotifyRatConnectStatus(rat m.Rat, status int32, ipAddr string) bool {
	log.Printf("%s: notifyRatConnectStatus: rat=%s, status=%d, ipAddr=%s", e.logPrefix, rat, status, ipAddr)

	env := e.client.Obtain(m.RequestNotifyRatConnect)
	env.WriteRat(rat)
	env.WriteInt(status)
	env.WriteString(ipAddr)
	return e.send(env)
}

// UpdateWlanScanResults forwards one scan, results are sent in the order given.
func (e *Engine) UpdateWlanScanResults(results []WlanScanResult) bool {
	if e.c.LogDebug {
		log.Printf("%s: updateWlanScanResults: count=%d", e.logPrefix, len(results))
	}

	env := e.client.Obtain(m.RequestUpdateWlanScanResults)
	env.WriteInt(int32(len(results)))
	for i := range results {
		env.WriteInt(results[i].Level)
		env.WriteInt(results[i].Frequency)
		env.WriteString(results[i].Ssid)
		env.WriteString(results[i].Bssid)
		env.WriteString(results[i].Capabilities)
	}
	return e.send(env)
}

func (e *Engine) ConfigureIproute2(command m.Iproute2Command, ifName string, ipAddr string, gatewayAddr string) bool {
	log.Printf("%s: configureIproute2: command=%s, ifName=%s, ipAddr=%s, gatewayAddr=%s", e.logPrefix, command, ifName, ipAddr, gatewayAddr)

	env := e.client.Obtain(m.RequestConfigIproute2)
	env.WriteInt(int32(command))
	env.WriteString(ifName)
	env.WriteString(ipAddr)
	env.WriteString(gatewayAddr)
	return e.send(env)
}
