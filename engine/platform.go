package engine

import (
	"log"
)

// Platform performs radio actions requested by the daemon.
type Platform interface {
	StartScanWlan()
	InflightStatus(on bool)
}

type LogPlatform struct {
	LogPrefix string
}

func (p *LogPlatform) StartScanWlan() {
	log.Printf("%s: platform: wlan scan requested", p.LogPrefix)
}

func (p *LogPlatform) InflightStatus(on bool) {
	log.Printf("%s: platform: inflight=%t", p.LogPrefix, on)
}
