package engine

import (
	"log"

	m "github.com/Meander-Cloud/go-cne/message"
)

// RouteApplier acts on routing decisions, invoked on the receiver goroutine with no engine lock held.
type RouteApplier interface {
	// the default connection moved to rat
	LinkActivated(rat m.Rat)
	BringRatUp(rat m.Rat)
	BringRatDown(rat m.Rat)
}

type LogRouteApplier struct {
	LogPrefix string
}

func (a *LogRouteApplier) LinkActivated(rat m.Rat) {
	log.Printf("%s: route: default network now %s", a.LogPrefix, rat)
}

func (a *LogRouteApplier) BringRatUp(rat m.Rat) {
	log.Printf("%s: route: bring up %s", a.LogPrefix, rat)
}

func (a *LogRouteApplier) BringRatDown(rat m.Rat) {
	log.Printf("%s: route: bring down %s", a.LogPrefix, rat)
}

// Iproute2RouteApplier asks the daemon to reprogram the main routing table whenever the
// default network changes. WLAN becoming default removes the WWAN default route from main,
// anything else restores it.
type Iproute2RouteApplier struct {
	e             *Engine
	wwanInterface string
}

func NewIproute2RouteApplier(e *Engine, wwanInterface string) *Iproute2RouteApplier {
	return &Iproute2RouteApplier{
		e:             e,
		wwanInterface: wwanInterface,
	}
}

func (a *Iproute2RouteApplier) LinkActivated(rat m.Rat) {
	if rat == m.RatWlan {
		a.e.ConfigureIproute2(m.Iproute2DeleteDefaultFromMain, a.wwanInterface, "", "")
		return
	}
	a.e.ConfigureIproute2(m.Iproute2ChangeDefaultFromMain, a.wwanInterface, "", "")
}

func (a *Iproute2RouteApplier) BringRatUp(rat m.Rat) {
	log.Printf("%s: route: bring up %s left to the platform", a.e.logPrefix, rat)
}

func (a *Iproute2RouteApplier) BringRatDown(rat m.Rat) {
	if rat != m.RatWwan {
		log.Printf("%s: route: bring down %s left to the platform", a.e.logPrefix, rat)
		return
	}
	a.e.ConfigureIproute2(m.Iproute2DeleteDefault, a.wwanInterface, "", "")
}
