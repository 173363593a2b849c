package engine

import (
	"log"

	m "github.com/Meander-Cloud/go-cne/message"
)

// GetLink registers role for caller and starts negotiation with the daemon. The outcome
// arrives through notifier. Returns false when caller already holds role or the request
// could not be queued.
func (e *Engine) GetLink(role m.Role, requirements *m.LinkRequirements, caller Caller, notifier LinkNotifier) bool {
	return e.getLink(role, requirements, caller, notifier, true)
}

func (e *Engine) getLink(role m.Role, requirements *m.LinkRequirements, caller Caller, notifier LinkNotifier, watch bool) bool {
	if notifier == nil {
		log.Printf("%s: getLink: role=%d, caller=%d, nil notifier", e.logPrefix, role, caller)
		return false
	}
	if role < 0 {
		log.Printf("%s: getLink: invalid role=%d, caller=%d", e.logPrefix, role, caller)
		return false
	}

	reqs := m.LinkRequirements{
		FwLinkBw:  m.Unspecified,
		RevLinkBw: m.Unspecified,
	}
	if requirements != nil {
		reqs = *requirements
	}

	var regID int32
	accepted := func() bool {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		cached := e.table.lookup(role, caller)
		if cached != nil {
			log.Printf("%s: getLink: %s already registered", e.logPrefix, cached)
			return false
		}

		info := e.table.insert(role, caller, reqs, notifier)
		regID = info.RegID

		env := e.client.Obtain(m.RequestRegRole)
		env.WriteInt(int32(role))
		env.WriteInt(info.RegID)
		env.WriteInt(reqs.FwLinkBw)
		env.WriteInt(reqs.RevLinkBw)
		if !e.send(env) {
			e.table.remove(info.RegID)
			return false
		}

		info.State = StateRegistering
		log.Printf("%s: getLink: %s, fwBw=%d, revBw=%d", e.logPrefix, info, reqs.FwLinkBw, reqs.RevLinkBw)
		return true
	}()
	if !accepted {
		return false
	}
	e.metrics.Registrations.Set(float64(e.table.Len()))

	if watch {
		e.watch(regID, caller)
	}
	return true
}

// ReportLinkSatisfaction tells the daemon whether the offered link suits the caller. When it
// does not, the next untried candidate is proposed, and GetLinkFailure follows immediately
// once none remain.
func (e *Engine) ReportLinkSatisfaction(role m.Role, caller Caller, link *m.LinkInfo, satisfied bool, notifyBetter bool) bool {
	var d deferred
	defer func() {
		// after the table mutex is released
		d.run()
	}()

	e.table.mutex.Lock()
	defer e.table.mutex.Unlock()

	info := e.table.lookup(role, caller)
	if info == nil {
		log.Printf("%s: reportLinkSatisfaction: role=%d, caller=%d not registered", e.logPrefix, role, caller)
		return false
	}
	if !info.notified(NotifiedLinkAvailable) {
		log.Printf("%s: reportLinkSatisfaction: %s, link not offered yet", e.logPrefix, info)
		return false
	}

	iface := info.ActiveRat
	if link != nil && link.NetworkID.Selectable() {
		iface = link.NetworkID
	}

	// nothing changes unless the confirmation is queued
	if satisfied {
		if !e.sendConfirmNw(info, iface, true, notifyBetter, m.RatNone) {
			return false
		}
		info.NotifyBetter = notifyBetter
		info.State = StateSatisfied
		return true
	}

	candidate := info.nextRatToTry()
	if !e.sendConfirmNw(info, iface, false, notifyBetter, candidate) {
		return false
	}
	info.NotifyBetter = notifyBetter
	info.markTried(candidate)
	log.Printf("%s: reportLinkSatisfaction: %s rejected %s, next candidate=%s", e.logPrefix, info, iface, candidate)

	if candidate == m.RatInvalid {
		info.State = StateLost
		e.notifyGetLinkFailure(&d, info, m.FailureNoLinks)
		return true
	}

	info.State = StateNetworkPending
	return true
}

// SwitchLink accepts the better link most recently offered to caller.
func (e *Engine) SwitchLink(role m.Role, caller Caller, link *m.LinkInfo, notifyBetter bool) bool {
	e.table.mutex.Lock()
	defer e.table.mutex.Unlock()

	info := e.table.lookup(role, caller)
	if info == nil {
		log.Printf("%s: switchLink: role=%d, caller=%d not registered", e.logPrefix, role, caller)
		return false
	}
	if !info.notified(NotifiedBetterLinkAvailable) {
		log.Printf("%s: switchLink: %s, better link not offered", e.logPrefix, info)
		return false
	}

	rat := info.BetterRat
	if link != nil && link.NetworkID.Selectable() {
		rat = link.NetworkID
	}

	if !e.sendConfirmNw(info, rat, true, notifyBetter, m.RatNone) {
		return false
	}
	info.NotifyBetter = notifyBetter

	log.Printf("%s: switchLink: %s, %s -> %s", e.logPrefix, info, info.ActiveRat, rat)
	info.ActiveRat = rat
	info.markTried(rat)
	info.BetterRat = m.RatInvalid
	info.NotificationsSent &^= NotifiedBetterLinkAvailable
	if link != nil {
		info.Link = *link
	}
	info.Link.NetworkID = rat
	info.State = StateSatisfied
	return true
}

// RejectSwitch declines the better link most recently offered to caller, the active link is kept.
func (e *Engine) RejectSwitch(role m.Role, caller Caller, link *m.LinkInfo, notifyBetter bool) bool {
	e.table.mutex.Lock()
	defer e.table.mutex.Unlock()

	info := e.table.lookup(role, caller)
	if info == nil {
		log.Printf("%s: rejectSwitch: role=%d, caller=%d not registered", e.logPrefix, role, caller)
		return false
	}
	if !info.notified(NotifiedBetterLinkAvailable) {
		log.Printf("%s: rejectSwitch: %s, better link not offered", e.logPrefix, info)
		return false
	}

	rat := info.BetterRat
	if link != nil && link.NetworkID.Selectable() {
		rat = link.NetworkID
	}

	if !e.sendConfirmNw(info, rat, false, notifyBetter, m.RatNone) {
		return false
	}
	info.NotifyBetter = notifyBetter

	log.Printf("%s: rejectSwitch: %s, keeping %s over %s", e.logPrefix, info, info.ActiveRat, rat)
	info.BetterRat = m.RatInvalid
	info.NotificationsSent &^= NotifiedBetterLinkAvailable
	info.State = StateSatisfied
	return true
}

// ReleaseLink deregisters role for caller. Releasing an unknown pair is rejected.
func (e *Engine) ReleaseLink(role m.Role, caller Caller) bool {
	var unwatch func()

	released := func() bool {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		info := e.table.lookup(role, caller)
		if info == nil {
			log.Printf("%s: releaseLink: role=%d, caller=%d not registered", e.logPrefix, role, caller)
			return false
		}

		env := e.client.Obtain(m.RequestDeregRole)
		env.WriteInt(info.RegID)
		e.send(env)

		unwatch = info.unwatch
		e.table.remove(info.RegID)
		log.Printf("%s: releaseLink: %s", e.logPrefix, info)
		return true
	}()
	if !released {
		return false
	}

	if unwatch != nil {
		unwatch()
	}
	e.metrics.Registrations.Set(float64(e.table.Len()))
	return true
}

// releaseCaller releases every registration of caller, invoked once caller is gone.
func (e *Engine) releaseCaller(caller Caller) {
	var roles []m.Role
	func() {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		for _, info := range e.table.byCaller(caller) {
			roles = append(roles, info.Role)
		}
	}()

	for _, role := range roles {
		log.Printf("%s: caller=%d gone, releasing role=%d", e.logPrefix, caller, role)
		e.ReleaseLink(role, caller)
	}
}

func (e *Engine) watch(regID int32, caller Caller) {
	unwatch, err := e.liveness.Watch(
		caller,
		func() {
			// invoked on liveness goroutine
			e.releaseCaller(caller)
		},
	)
	if err != nil {
		log.Printf("%s: failed to watch caller=%d, err=%s", e.logPrefix, caller, err.Error())
		return
	}

	stale := func() bool {
		e.table.mutex.Lock()
		defer e.table.mutex.Unlock()

		info := e.table.get(regID)
		if info == nil {
			return true
		}
		info.unwatch = unwatch
		return false
	}()
	if stale {
		// released while the watch was being set up
		unwatch()
	}
}

// requires table mutex held
func (e *Engine) sendConfirmNw(info *RegInfo, iface m.Rat, confirmed bool, notifyBetter bool, candidate m.Rat) bool {
	env := e.client.Obtain(m.RequestConfirmNw)
	env.WriteInt(info.RegID)
	env.WriteRat(iface)
	env.WriteBool(confirmed)
	env.WriteBool(notifyBetter)
	env.WriteRat(candidate)
	return e.send(env)
}
