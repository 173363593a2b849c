package engine

import (
	"log"

	m "github.com/Meander-Cloud/go-cne/message"
	lp "github.com/Meander-Cloud/go-cne/net/local/protocol"
)

// Handler routes daemon events into the registration table, invoked on the receiver goroutine.
type Handler struct {
	e *Engine
}

func (h *Handler) Connected(_ *lp.Client, connState *lp.ConnState) {
	e := h.e
	log.Printf("%s: %s: handshake", e.logPrefix, connState.Descriptor)

	env := e.client.Obtain(m.RequestNotifyDefaultNwPref)
	env.WriteRat(e.NetworkPreference())
	e.send(env)

	var hooks []func(*Engine)
	func() {
		e.hookMutex.Lock()
		defer e.hookMutex.Unlock()

		hooks = append(hooks, e.hooks...)
	}()
	for _, f := range hooks {
		f(e)
	}

	if e.defaultConn != nil {
		e.defaultConn.start()
	}
}

func (h *Handler) Disconnected(_ *lp.Client, connState *lp.ConnState) {
	e := h.e

	if e.defaultConn != nil {
		e.defaultConn.stop()
	}

	// the daemon forgets every registration with the connection, negotiations in
	// flight are abandoned without a callback
	var d deferred
	func() {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		for _, info := range e.table.entries {
			switch info.State {
			case StateRegistering, StateNetworkPending:
				info.State = StateUnregistered
			case StateLinkOffered, StateSatisfied, StateSwitching:
				info.State = StateLost
				e.notifyLinkLost(&d, info, info.ActiveRat)
			}
		}
	}()
	d.run()

	log.Printf("%s: %s: disconnected, %d registrations inert", e.logPrefix, connState.Descriptor, e.table.Len())
}

func (h *Handler) RegRoleResponse(_ *lp.Client, rsp *m.RoleResponse) {
	e := h.e

	var d deferred
	func() {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		info := e.table.get(rsp.RegID)
		if info == nil {
			log.Printf("%s: regRoleResponse: regID=%d does not exist", e.logPrefix, rsp.RegID)
			return
		}
		log.Printf("%s: regRoleResponse: %s, status=%s", e.logPrefix, info, rsp.Status)

		if rsp.Status != m.StatusSuccess {
			info.State = StateUnregistered
			e.notifyGetLinkFailure(&d, info, m.FailureGeneral)
			return
		}

		env := e.client.Obtain(m.RequestGetCompatibleNws)
		env.WriteInt(info.RegID)
		e.send(env)

		info.State = StateNetworkPending
	}()
	d.run()
}

func (h *Handler) CompatibleNwsResponse(_ *lp.Client, rsp *m.CompatibleNwsResponse) {
	e := h.e

	var d deferred
	func() {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		info := e.table.get(rsp.RegID)
		if info == nil {
			log.Printf("%s: compatibleNwsResponse: regID=%d does not exist", e.logPrefix, rsp.RegID)
			return
		}

		if rsp.Status != m.StatusSuccess {
			log.Printf("%s: compatibleNwsResponse: %s, status=%s", e.logPrefix, info, rsp.Status)
			e.notifyGetLinkFailure(&d, info, m.FailureNoLinks)
			return
		}

		info.ActiveRat = rsp.ActiveRat
		info.mergeRats(rsp.ActiveRat, rsp.Rats)
		info.Link = m.LinkInfo{
			IPAddr:     rsp.IPAddr,
			AvailFwBw:  rsp.FwBwEst,
			AvailRevBw: rsp.RevBwEst,
			NetworkID:  rsp.ActiveRat,
		}
		info.NotificationsSent |= NotifiedLinkAvailable
		info.State = StateLinkOffered

		log.Printf(
			"%s: compatibleNwsResponse: %s, active=%s, rats=%+v, ipAddr=%s, fwBwEst=%d, revBwEst=%d",
			e.logPrefix,
			info,
			info.ActiveRat,
			info.Rats,
			rsp.IPAddr,
			rsp.FwBwEst,
			rsp.RevBwEst,
		)

		e.notifyLinkAvailable(&d, info)
	}()
	d.run()
}

func (h *Handler) ConfirmNwResponse(_ *lp.Client, rsp *m.RoleResponse) {
	log.Printf("%s: confirmNwResponse: regID=%d, status=%s", h.e.logPrefix, rsp.RegID, rsp.Status)
}

func (h *Handler) DeregRoleResponse(_ *lp.Client, rsp *m.RoleResponse) {
	e := h.e

	var unwatch func()
	removed := func() bool {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		info := e.table.remove(rsp.RegID)
		if info == nil {
			if e.c.LogDebug {
				log.Printf("%s: deregRoleResponse: regID=%d already released, status=%s", e.logPrefix, rsp.RegID, rsp.Status)
			}
			return false
		}
		log.Printf("%s: deregRoleResponse: removed %s, status=%s", e.logPrefix, info, rsp.Status)
		unwatch = info.unwatch
		return true
	}()
	if !removed {
		return
	}

	if unwatch != nil {
		unwatch()
	}
	e.metrics.Registrations.Set(float64(e.table.Len()))
}

func (h *Handler) BringRatDown(_ *lp.Client, cmd *m.RatCommand) {
	log.Printf("%s: bringRatDown: rat=%s", h.e.logPrefix, cmd.Rat)
	h.e.routeApplier.BringRatDown(cmd.Rat)
}

func (h *Handler) BringRatUp(_ *lp.Client, cmd *m.RatCommand) {
	log.Printf("%s: bringRatUp: rat=%s", h.e.logPrefix, cmd.Rat)
	h.e.routeApplier.BringRatUp(cmd.Rat)
}

func (h *Handler) MorePreferredRatAvail(_ *lp.Client, evt *m.MorePreferredRatAvail) {
	e := h.e

	var d deferred
	func() {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		info := e.table.get(evt.RegID)
		if info == nil {
			log.Printf("%s: morePreferredRatAvail: regID=%d does not exist", e.logPrefix, evt.RegID)
			return
		}
		log.Printf(
			"%s: morePreferredRatAvail: %s, betterRat=%s, ipAddr=%s, fwBwEst=%d, revBwEst=%d",
			e.logPrefix,
			info,
			evt.BetterRat,
			evt.IPAddr,
			evt.FwBwEst,
			evt.RevBwEst,
		)

		info.BetterRat = evt.BetterRat
		info.NotificationsSent |= NotifiedBetterLinkAvailable
		info.State = StateSwitching

		e.notifyBetterLinkAvailable(
			&d,
			info,
			m.LinkInfo{
				IPAddr:     evt.IPAddr,
				AvailFwBw:  evt.FwBwEst,
				AvailRevBw: evt.RevBwEst,
				NetworkID:  evt.BetterRat,
			},
		)
	}()
	d.run()
}

func (h *Handler) RatLost(_ *lp.Client, evt *m.RatLost) {
	e := h.e

	var d deferred
	func() {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		info := e.table.get(evt.RegID)
		if info == nil {
			log.Printf("%s: ratLost: regID=%d does not exist", e.logPrefix, evt.RegID)
			return
		}

		if evt.Rat != info.ActiveRat {
			log.Printf("%s: ratLost: %s, lost rat=%s is not active rat=%s", e.logPrefix, info, evt.Rat, info.ActiveRat)
			return
		}

		info.State = StateLost
		e.notifyLinkLost(&d, info, evt.Rat)

		candidate := info.nextRatToTry()
		log.Printf("%s: ratLost: %s, lost rat=%s, next candidate=%s", e.logPrefix, info, evt.Rat, candidate)
		if candidate == m.RatInvalid {
			e.notifyGetLinkFailure(&d, info, m.FailureNoLinks)
			return
		}

		if e.sendConfirmNw(info, info.ActiveRat, false, info.NotifyBetter, candidate) {
			info.markTried(candidate)
			info.State = StateNetworkPending
		}
	}()
	d.run()
}

func (h *Handler) StartScanWlan(_ *lp.Client, _ *m.StartScanWlan) {
	log.Printf("%s: startScanWlan", h.e.logPrefix)
	h.e.platform.StartScanWlan()
}

func (h *Handler) InflightStatus(_ *lp.Client, evt *m.InflightStatus) {
	on := evt.Status == m.InflightOn
	log.Printf("%s: inflightStatus: status=%d, on=%t", h.e.logPrefix, evt.Status, on)
	h.e.platform.InflightStatus(on)
}
