package engine

import (
	"log"

	m "github.com/Meander-Cloud/go-cne/message"
)

// DefaultConnection holds the default role for the engine's own process so that something is
// always connected. Offers are accepted as they come, better ones included, and every change
// of network is handed to the route applier.
type DefaultConnection struct {
	e *Engine
}

func newDefaultConnection(e *Engine) *DefaultConnection {
	return &DefaultConnection{
		e: e,
	}
}

// receiver goroutine, after handshake
func (dc *DefaultConnection) start() {
	log.Printf("%s: default connection starting", dc.e.logPrefix)
	dc.e.getLink(m.RoleDefault, nil, dc.e.self, dc, false)
}

// receiver goroutine, after disconnect; nothing is sent since the daemon already forgot the role
func (dc *DefaultConnection) stop() {
	e := dc.e

	removed := func() bool {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		info := e.table.lookup(m.RoleDefault, e.self)
		if info == nil {
			return false
		}
		e.table.remove(info.RegID)
		return true
	}()
	if !removed {
		return
	}

	log.Printf("%s: default connection stopped", e.logPrefix)
	e.metrics.Registrations.Set(float64(e.table.Len()))
}

func (dc *DefaultConnection) LinkAvailable(cb *LinkAvailable) {
	log.Printf("%s: default connection: link available on %s", dc.e.logPrefix, cb.Link.NetworkID)
	if dc.e.ReportLinkSatisfaction(m.RoleDefault, dc.e.self, &cb.Link, true, true) {
		dc.e.routeApplier.LinkActivated(cb.Link.NetworkID)
	}
}

func (dc *DefaultConnection) BetterLinkAvailable(cb *BetterLinkAvailable) {
	log.Printf("%s: default connection: better link available on %s", dc.e.logPrefix, cb.Link.NetworkID)
	if dc.e.SwitchLink(m.RoleDefault, dc.e.self, &cb.Link, true) {
		dc.e.routeApplier.LinkActivated(cb.Link.NetworkID)
	}
}

func (dc *DefaultConnection) LinkLost(cb *LinkLost) {
	log.Printf("%s: default connection: link lost on %s", dc.e.logPrefix, cb.Link.NetworkID)
}

// registration is kept, a better link may still be offered
func (dc *DefaultConnection) GetLinkFailure(cb *GetLinkFailure) {
	log.Printf("%s: default connection: get link failure, reason=%s", dc.e.logPrefix, cb.Reason)
}

// SetDefaultNetworkPreference records rat as the preferred default network, announced on every
// handshake. A live default registration on another network is asked to move.
func (e *Engine) SetDefaultNetworkPreference(rat m.Rat) bool {
	if rat != m.RatWlan && rat != m.RatWwan {
		log.Printf("%s: setDefaultNetworkPreference: invalid rat=%s", e.logPrefix, rat)
		return false
	}

	prev := m.Rat(e.preference.Swap(int32(rat)))
	log.Printf("%s: setDefaultNetworkPreference: %s -> %s", e.logPrefix, prev, rat)

	if e.defaultConn == nil {
		return true
	}

	e.table.mutex.Lock()
	defer e.table.mutex.Unlock()

	info := e.table.lookup(m.RoleDefault, e.self)
	if info == nil {
		log.Printf("%s: setDefaultNetworkPreference: default registration does not exist", e.logPrefix)
		return true
	}
	if !info.notified(NotifiedLinkAvailable) || info.ActiveRat == rat {
		return true
	}

	return e.sendConfirmNw(info, info.ActiveRat, false, info.NotifyBetter, rat)
}
