package engine

import (
	m "github.com/Meander-Cloud/go-cne/message"
)

type LinkAvailable struct {
	Role  m.Role
	RegID int32
	Link  m.LinkInfo
}

type BetterLinkAvailable struct {
	Role  m.Role
	RegID int32
	Link  m.LinkInfo
}

type LinkLost struct {
	Role  m.Role
	RegID int32
	Link  m.LinkInfo
}

type GetLinkFailure struct {
	Role   m.Role
	RegID  int32
	Reason m.FailureReason
}

// LinkNotifier is implemented by callers of GetLink, invoked on the receiver goroutine
// with no engine lock held.
type LinkNotifier interface {
	LinkAvailable(*LinkAvailable)
	BetterLinkAvailable(*BetterLinkAvailable)
	LinkLost(*LinkLost)
	GetLinkFailure(*GetLinkFailure)
}

// callback kinds, used as metric labels
const (
	kindLinkAvailable       = "link_available"
	kindBetterLinkAvailable = "better_link_available"
	kindLinkLost            = "link_lost"
	kindGetLinkFailure      = "get_link_failure"
)

// deferred caller notifications, collected under the table lock and delivered after it is released
type deferred []func()

func (d *deferred) add(f func()) {
	*d = append(*d, f)
}

func (d deferred) run() {
	for _, f := range d {
		f()
	}
}

func (e *Engine) notifyLinkAvailable(d *deferred, info *RegInfo) {
	notifier := info.Notifier
	cb := &LinkAvailable{
		Role:  info.Role,
		RegID: info.RegID,
		Link:  info.Link,
	}
	d.add(func() {
		e.metrics.CallbacksInvoked.WithLabelValues(kindLinkAvailable).Inc()
		notifier.LinkAvailable(cb)
	})
}

func (e *Engine) notifyBetterLinkAvailable(d *deferred, info *RegInfo, link m.LinkInfo) {
	notifier := info.Notifier
	cb := &BetterLinkAvailable{
		Role:  info.Role,
		RegID: info.RegID,
		Link:  link,
	}
	d.add(func() {
		e.metrics.CallbacksInvoked.WithLabelValues(kindBetterLinkAvailable).Inc()
		notifier.BetterLinkAvailable(cb)
	})
}

func (e *Engine) notifyLinkLost(d *deferred, info *RegInfo, rat m.Rat) {
	notifier := info.Notifier
	cb := &LinkLost{
		Role:  info.Role,
		RegID: info.RegID,
		Link: m.LinkInfo{
			AvailFwBw:  m.Unspecified,
			AvailRevBw: m.Unspecified,
			NetworkID:  rat,
		},
	}
	d.add(func() {
		e.metrics.CallbacksInvoked.WithLabelValues(kindLinkLost).Inc()
		notifier.LinkLost(cb)
	})
}

func (e *Engine) notifyGetLinkFailure(d *deferred, info *RegInfo, reason m.FailureReason) {
	notifier := info.Notifier
	cb := &GetLinkFailure{
		Role:   info.Role,
		RegID:  info.RegID,
		Reason: reason,
	}
	d.add(func() {
		e.metrics.CallbacksInvoked.WithLabelValues(kindGetLinkFailure).Inc()
		notifier.GetLinkFailure(cb)
	})
}
