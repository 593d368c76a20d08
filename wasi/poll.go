package wasi

import "time"

// SubscriptionKind is the poll_oneoff subscription_u union tag.
type SubscriptionKind byte

const (
	SubscriptionClock SubscriptionKind = iota
	SubscriptionFdRead
	SubscriptionFdWrite
)

// Subscription is one 48-byte poll_oneoff input record, decoded from guest
// memory by the dispatcher.
type Subscription struct {
	UserData uint64
	Kind     SubscriptionKind

	// Clock fields, valid when Kind == SubscriptionClock.
	ClockTimeout time.Duration
	ClockAbs     bool

	// Fd fields, valid when Kind is SubscriptionFdRead/SubscriptionFdWrite.
	Fd int32
}

// Event is one 32-byte poll_oneoff output record.
type Event struct {
	UserData uint64
	Errno    Errno
	Kind     SubscriptionKind
}

// Poll evaluates subs against the open-descriptor table and returns the
// ready events, implementing poll_oneoff semantics: fd_read/fd_write
// subscriptions resolve immediately against the backend's current
// readiness; only when no fd subscription yields an event does Poll
// sleep for the shortest clock timeout and report that clock event. An
// fd_read subscription that is not ready yields no event and is not
// waited for.
//
// The single-relative-timer short circuit: when subs contains exactly one
// clock subscription and no fd subscriptions, Poll sleeps for that
// duration directly rather than running the generalized readiness loop,
// since there is nothing else to multiplex against.
func Poll(table *Table, subs []Subscription) []Event {
	if len(subs) == 1 && subs[0].Kind == SubscriptionClock {
		sleepClock(subs[0])
		return []Event{{UserData: subs[0].UserData, Kind: SubscriptionClock}}
	}

	var minClock *Subscription
	events := make([]Event, 0, len(subs))

	for i := range subs {
		s := &subs[i]
		switch s.Kind {
		case SubscriptionClock:
			if minClock == nil || s.ClockTimeout < minClock.ClockTimeout {
				minClock = s
			}
		case SubscriptionFdRead:
			e := Event{UserData: s.UserData, Kind: s.Kind}
			entry := table.Get(s.Fd)
			if entry == nil || entry.Kind != EntryKindFile {
				e.Errno = ErrnoBadf
			} else if !entry.File.PollReadable() {
				continue // not ready: no event is reported for it
			}
			events = append(events, e)
		case SubscriptionFdWrite:
			entry := table.Get(s.Fd)
			e := Event{UserData: s.UserData, Kind: s.Kind}
			if entry == nil || entry.Kind != EntryKindFile {
				e.Errno = ErrnoBadf
			}
			events = append(events, e)
		}
	}

	if len(events) == 0 && minClock != nil {
		sleepClock(*minClock)
		events = append(events, Event{UserData: minClock.UserData, Kind: SubscriptionClock})
	}
	return events
}

func sleepClock(s Subscription) {
	if s.ClockAbs {
		d := time.Until(time.Unix(0, int64(s.ClockTimeout)))
		if d > 0 {
			time.Sleep(d)
		}
		return
	}
	time.Sleep(s.ClockTimeout)
}

// DecodeSubscriptions parses nsubscriptions 48-byte records starting at
// offset, per the subscription_u layout: 8 bytes userdata, 1 byte tag (+7
// pad), then the union payload.
func DecodeSubscriptions(mem Memory, offset, n uint32) ([]Subscription, bool) {
	out := make([]Subscription, 0, n)
	for i := uint32(0); i < n; i++ {
		base := offset + i*48
		userData, ok := le64(mem, base)
		if !ok {
			return nil, false
		}
		b, ok := mem.Bytes(base, 48)
		if !ok {
			return nil, false
		}
		tag := b[8]
		s := Subscription{UserData: userData}
		switch tag {
		case 0:
			s.Kind = SubscriptionClock
			clockID := b[16]
			timeoutNanos, _ := le64(mem, base+24)
			flags, _ := le32(mem, base+40) // subscription_clock.flags (bit 0: subscription_clock_abstime)
			s.ClockAbs = flags&1 != 0
			s.ClockTimeout = time.Duration(timeoutNanos)
			_ = clockID
		case 1:
			s.Kind = SubscriptionFdRead
			fd, _ := le32(mem, base+16)
			s.Fd = int32(fd)
		case 2:
			s.Kind = SubscriptionFdWrite
			fd, _ := le32(mem, base+16)
			s.Fd = int32(fd)
		}
		out = append(out, s)
	}
	return out, true
}

// EncodeEvents writes nevents 32-byte event records starting at offset:
// 8 bytes userdata, 2 bytes errno, 1 byte type, 5 pad, then (for
// fd_read/fd_write) an 8-byte nbytes + 2-byte flags payload this core
// always reports as zero since it has no async readiness size to offer.
func EncodeEvents(mem Memory, offset uint32, events []Event) bool {
	for i, e := range events {
		base := offset + uint32(i)*32
		rec, ok := mem.Bytes(base, 32)
		if !ok {
			return false
		}
		for j := range rec {
			rec[j] = 0
		}
		putLE64(mem, base, e.UserData)
		rec[8], rec[9] = byte(e.Errno), byte(e.Errno>>8)
		rec[10] = byte(e.Kind)
	}
	return true
}
