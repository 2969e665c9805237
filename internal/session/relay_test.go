package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

func drain(p *Participant) []string {
	var got []string
	for {
		select {
		case b := <-p.Outbound():
			got = append(got, string(b))
		default:
			return got
		}
	}
}

func TestBroadcastRoundTrip(t *testing.T) {
	r, _ := newTestRegistry(0)
	relay := NewRelay(r, true, zap.NewNop(), nil)

	a := NewParticipant("a", 4)
	b := NewParticipant("b", 4)
	c := NewParticipant("c", 4)
	require.NoError(t, r.Join("r1", a))
	require.NoError(t, r.Join("r1", b))
	require.NoError(t, r.Join("r2", c))

	d := relay.Broadcast("r1", a.ID, []byte("hello"))

	assert.Equal(t, Delivery{Delivered: 2}, d)
	assert.Equal(t, []string{"hello"}, drain(a))
	assert.Equal(t, []string{"hello"}, drain(b))
	assert.Empty(t, drain(c))
}

func TestBroadcastWithoutEcho(t *testing.T) {
	r, _ := newTestRegistry(0)
	relay := NewRelay(r, false, nil, nil)

	a := NewParticipant("a", 4)
	b := NewParticipant("b", 4)
	require.NoError(t, r.Join("r1", a))
	require.NoError(t, r.Join("r1", b))

	relay.Broadcast("r1", a.ID, []byte("hello"))

	assert.Empty(t, drain(a))
	assert.Equal(t, []string{"hello"}, drain(b))
}

func TestBroadcastEmptyRoom(t *testing.T) {
	r, _ := newTestRegistry(0)
	relay := NewRelay(r, true, nil, nil)
	assert.Equal(t, Delivery{}, relay.Broadcast("nobody", "x", []byte("hi")))
}

func TestBroadcastIsolatesSaturatedMember(t *testing.T) {
	r, _ := newTestRegistry(0)
	scope := tally.NewTestScope("testing", make(map[string]string, 0))
	relay := NewRelay(r, true, zap.NewNop(), scope)

	fast := NewParticipant("fast", 4)
	slow := NewParticipant("slow", 1)
	require.NoError(t, r.Join("r1", fast))
	require.NoError(t, r.Join("r1", slow))

	relay.Broadcast("r1", fast.ID, []byte("one"))
	d := relay.Broadcast("r1", fast.ID, []byte("two"))

	assert.Equal(t, Delivery{Delivered: 1, Evicted: 1}, d)
	assert.Equal(t, []string{"one", "two"}, drain(fast))
	assert.True(t, slow.Closed())
	assert.Equal(t, []*Participant{fast}, r.MembersOf("r1"))
	assert.Equal(t, int64(1), counterValue(scope, "testing.relay.evicted"))
	assert.Equal(t, int64(2), counterValue(scope, "testing.relay.broadcasts"))
}

func TestBroadcastRemovesClosedMember(t *testing.T) {
	r, _ := newTestRegistry(0)
	relay := NewRelay(r, true, nil, nil)

	a := NewParticipant("a", 4)
	b := NewParticipant("b", 4)
	gone := NewParticipant("gone", 4)
	for _, p := range []*Participant{a, b, gone} {
		require.NoError(t, r.Join("r1", p))
	}
	gone.Close()

	before := r.Count("r1")
	d := relay.Broadcast("r1", a.ID, []byte("hello"))

	assert.Equal(t, Delivery{Delivered: 2, Evicted: 1}, d)
	assert.Equal(t, before-1, r.Count("r1"))

	// later broadcasts never try the departed participant again
	d = relay.Broadcast("r1", a.ID, []byte("again"))
	assert.Equal(t, Delivery{Delivered: 2}, d)
}

func TestBroadcastPreservesSenderOrder(t *testing.T) {
	r, _ := newTestRegistry(0)
	relay := NewRelay(r, true, nil, nil)

	const n = 100
	sender := NewParticipant("sender", n)
	reader := NewParticipant("reader", n)
	require.NoError(t, r.Join("r1", sender))
	require.NoError(t, r.Join("r1", reader))

	var want []string
	for i := 0; i < n; i++ {
		msg := fmt.Sprintf("edit-%d", i)
		want = append(want, msg)
		relay.Broadcast("r1", sender.ID, []byte(msg))
	}

	assert.Equal(t, want, drain(reader))
}
