package wasi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoll_SingleRelativeTimerShortCircuit(t *testing.T) {
	subs := []Subscription{{UserData: 7, Kind: SubscriptionClock, ClockTimeout: time.Millisecond}}
	start := time.Now()
	events := Poll(NewTable(), subs)
	require.Less(t, time.Since(start), 200*time.Millisecond)
	require.Len(t, events, 1)
	require.Equal(t, uint64(7), events[0].UserData)
	require.Equal(t, SubscriptionClock, events[0].Kind)
}

func TestPoll_FdReadReadyImmediately(t *testing.T) {
	tbl := NewTable()
	f := NewMemFile([]byte("data"))
	fd := tbl.Open(&Entry{Kind: EntryKindFile, File: f, FileCaps: FileCapRead | FileCapPollReadwrite})

	events := Poll(tbl, []Subscription{{UserData: 1, Kind: SubscriptionFdRead, Fd: fd}})
	require.Len(t, events, 1)
	require.Equal(t, ErrnoSuccess, events[0].Errno)
}

func TestPoll_FdReadBadfForClosedFd(t *testing.T) {
	tbl := NewTable()
	events := Poll(tbl, []Subscription{{UserData: 1, Kind: SubscriptionFdRead, Fd: 99}})
	require.Len(t, events, 1)
	require.Equal(t, ErrnoBadf, events[0].Errno)
}

func TestDecodeSubscriptions_Clock(t *testing.T) {
	mem := NewSliceMemory(make([]byte, 48))
	require.True(t, putLE64(mem, 0, 42))  // userdata
	b, _ := mem.Bytes(8, 1)
	b[0] = 0 // clock tag
	require.True(t, putLE64(mem, 24, uint64(5*time.Millisecond)))
	require.True(t, putLE32(mem, 40, 0)) // relative

	subs, ok := DecodeSubscriptions(mem, 0, 1)
	require.True(t, ok)
	require.Len(t, subs, 1)
	require.Equal(t, uint64(42), subs[0].UserData)
	require.Equal(t, SubscriptionClock, subs[0].Kind)
	require.Equal(t, 5*time.Millisecond, subs[0].ClockTimeout)
	require.False(t, subs[0].ClockAbs)
}

func TestDecodeSubscriptions_FdRead(t *testing.T) {
	mem := NewSliceMemory(make([]byte, 48))
	require.True(t, putLE64(mem, 0, 1))
	b, _ := mem.Bytes(8, 1)
	b[0] = 1 // fd_read tag
	require.True(t, putLE32(mem, 16, 3))

	subs, ok := DecodeSubscriptions(mem, 0, 1)
	require.True(t, ok)
	require.Equal(t, SubscriptionFdRead, subs[0].Kind)
	require.Equal(t, int32(3), subs[0].Fd)
}

func TestEncodeEvents_RoundTrip(t *testing.T) {
	mem := NewSliceMemory(make([]byte, 32))
	ok := EncodeEvents(mem, 0, []Event{{UserData: 99, Errno: ErrnoSuccess, Kind: SubscriptionFdRead}})
	require.True(t, ok)

	userData, _ := le64(mem, 0)
	require.Equal(t, uint64(99), userData)
	errnoByte, _ := mem.Bytes(8, 1)
	require.Equal(t, byte(ErrnoSuccess), errnoByte[0])
	kindByte, _ := mem.Bytes(10, 1)
	require.Equal(t, byte(SubscriptionFdRead), kindByte[0])
}
