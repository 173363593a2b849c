package engine

import (
	"fmt"
	"sync"

	m "github.com/Meander-Cloud/go-cne/message"
)

// Caller identifies the process owning a registration.
type Caller int32

type RegState uint8

const (
	StateUnregistered   RegState = 0
	StateRegistering    RegState = 1
	StateNetworkPending RegState = 2
	StateLinkOffered    RegState = 3
	StateSatisfied      RegState = 4
	StateSwitching      RegState = 5
	StateLost           RegState = 6
	StateDeregistered   RegState = 7
)

func (s RegState) String() string {
	switch s {
	case StateUnregistered:
		return "Unregistered"
	case StateRegistering:
		return "Registering"
	case StateNetworkPending:
		return "NetworkPending"
	case StateLinkOffered:
		return "LinkOffered"
	case StateSatisfied:
		return "Satisfied"
	case StateSwitching:
		return "Switching"
	case StateLost:
		return "Lost"
	case StateDeregistered:
		return "Deregistered"
	default:
		return "Unknown State"
	}
}

// notification bits
const (
	NotifiedLinkAvailable       uint8 = 1 << 0
	NotifiedBetterLinkAvailable uint8 = 1 << 1
)

// RatInfo is one ranked candidate, two entries are the same candidate when their RATs match.
type RatInfo struct {
	Rat   m.Rat
	Tried bool
}

func (r RatInfo) Equal(o RatInfo) bool {
	return r.Rat == o.Rat
}

type RegInfo struct {
	Role         m.Role
	RegID        int32
	Caller       Caller
	Requirements m.LinkRequirements
	Notifier     LinkNotifier

	State             RegState
	ActiveRat         m.Rat
	BetterRat         m.Rat
	NotificationsSent uint8
	NotifyBetter      bool
	Rats              []RatInfo

	// last link handed to the caller
	Link m.LinkInfo

	unwatch func()
}

func (r *RegInfo) String() string {
	return fmt.Sprintf("[%d]<role=%d,caller=%d,%s>", r.RegID, r.Role, r.Caller, r.State)
}

func (r *RegInfo) notified(bit uint8) bool {
	return r.NotificationsSent&bit != 0
}

// mergeRats replaces the candidate list with ranked, keeping tried flags of surviving candidates.
// The active RAT is always considered tried.
func (r *RegInfo) mergeRats(active m.Rat, ranked []m.Rat) {
	merged := make([]RatInfo, 0, len(ranked))
	for _, rat := range ranked {
		if !rat.Selectable() {
			continue
		}

		next := RatInfo{Rat: rat}
		if rat == active {
			next.Tried = true
		} else {
			for _, prev := range r.Rats {
				if prev.Equal(next) {
					next.Tried = prev.Tried
					break
				}
			}
		}
		merged = append(merged, next)
	}
	r.Rats = merged
}

// nextRatToTry scans past the active entry for the first untried candidate, the caller marks
// it tried once the proposal has been queued. Returns RatInvalid once every candidate has been tried.
func (r *RegInfo) nextRatToTry() m.Rat {
	for index := 1; index < len(r.Rats); index++ {
		if r.Rats[index].Tried {
			continue
		}
		return r.Rats[index].Rat
	}
	return m.RatInvalid
}

func (r *RegInfo) markTried(rat m.Rat) {
	for index := range r.Rats {
		if r.Rats[index].Rat == rat {
			r.Rats[index].Tried = true
			return
		}
	}
}

// Snapshot is a copy of one registration for diagnostics.
type Snapshot struct {
	Role              m.Role
	RegID             int32
	Caller            Caller
	State             RegState
	ActiveRat         m.Rat
	BetterRat         m.Rat
	NotificationsSent uint8
	Rats              []RatInfo
}

// Table indexes live registrations by id, guarded by one mutex held across every
// read-modify-write of a RegInfo.
type Table struct {
	mutex     sync.Mutex
	nextRegID int32
	entries   map[int32]*RegInfo
}

func NewTable() *Table {
	return &Table{
		nextRegID: 0,
		entries:   make(map[int32]*RegInfo),
	}
}

// below require mutex held

func (t *Table) lookup(role m.Role, caller Caller) *RegInfo {
	for _, info := range t.entries {
		if info.Role == role && info.Caller == caller {
			return info
		}
	}
	return nil
}

func (t *Table) get(regID int32) *RegInfo {
	return t.entries[regID]
}

func (t *Table) insert(role m.Role, caller Caller, requirements m.LinkRequirements, notifier LinkNotifier) *RegInfo {
	info := &RegInfo{
		Role:         role,
		RegID:        t.nextRegID,
		Caller:       caller,
		Requirements: requirements,
		Notifier:     notifier,

		State:     StateUnregistered,
		ActiveRat: m.RatInvalid,
		BetterRat: m.RatInvalid,
	}
	t.nextRegID++
	t.entries[info.RegID] = info
	return info
}

func (t *Table) remove(regID int32) *RegInfo {
	info, found := t.entries[regID]
	if !found {
		return nil
	}
	delete(t.entries, regID)
	info.State = StateDeregistered
	info.Rats = nil
	return info
}

func (t *Table) byCaller(caller Caller) []*RegInfo {
	var list []*RegInfo
	for _, info := range t.entries {
		if info.Caller == caller {
			list = append(list, info)
		}
	}
	return list
}

// below acquire mutex

func (t *Table) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return len(t.entries)
}

func (t *Table) Snapshot() []Snapshot {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	list := make([]Snapshot, 0, len(t.entries))
	for _, info := range t.entries {
		rats := make([]RatInfo, len(info.Rats))
		copy(rats, info.Rats)

		list = append(list, Snapshot{
			Role:              info.Role,
			RegID:             info.RegID,
			Caller:            info.Caller,
			State:             info.State,
			ActiveRat:         info.ActiveRat,
			BetterRat:         info.BetterRat,
			NotificationsSent: info.NotificationsSent,
			Rats:              rats,
		})
	}
	return list
}
