package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
)

func newTestRegistry(maxRoomSize int) (*Registry, tally.TestScope) {
	scope := tally.NewTestScope("testing", make(map[string]string, 0))
	return NewRegistry(RegistryOptions{Shards: 4, MaxRoomSize: maxRoomSize, Stats: scope}), scope
}

func TestRegistryJoinLeave(t *testing.T) {
	r, scope := newTestRegistry(0)
	a := NewParticipant("a", 1)
	b := NewParticipant("b", 1)

	require.NoError(t, r.Join("r1", a))
	require.NoError(t, r.Join("r1", b))

	assert.ElementsMatch(t, []*Participant{a, b}, r.MembersOf("r1"))
	assert.Equal(t, "r1", a.Room())
	assert.Equal(t, 2, r.Count("r1"))

	r.Leave("r1", a)
	assert.Equal(t, []*Participant{b}, r.MembersOf("r1"))
	assert.Equal(t, "", a.Room())

	assert.Equal(t, int64(2), counterValue(scope, "testing.registry.joins"))
	assert.Equal(t, int64(1), counterValue(scope, "testing.registry.leaves"))
}

func TestRegistryLeaveIsIdempotent(t *testing.T) {
	r, scope := newTestRegistry(0)
	a := NewParticipant("a", 1)
	b := NewParticipant("b", 1)
	require.NoError(t, r.Join("r1", a))
	require.NoError(t, r.Join("r1", b))

	r.Leave("r1", a)
	r.Leave("r1", a)
	r.Leave("unknown", a)

	assert.Equal(t, 1, r.Count("r1"))
	assert.Equal(t, int64(1), counterValue(scope, "testing.registry.leaves"))
}

func TestRegistryDropsEmptyRooms(t *testing.T) {
	r, _ := newTestRegistry(0)
	a := NewParticipant("a", 1)
	require.NoError(t, r.Join("r1", a))
	assert.Equal(t, []RoomInfo{{Room: "r1", Members: 1}}, r.Rooms())

	r.Leave("r1", a)
	assert.Empty(t, r.Rooms())
	assert.Empty(t, r.MembersOf("r1"))
}

func TestRegistryRejoinDoesNotDuplicate(t *testing.T) {
	r, _ := newTestRegistry(0)
	a := NewParticipant("a", 1)
	require.NoError(t, r.Join("r1", a))
	require.NoError(t, r.Join("r1", a))
	assert.Equal(t, 1, r.Count("r1"))
}

func TestRegistryJoinMovesBetweenRooms(t *testing.T) {
	r, _ := newTestRegistry(0)
	a := NewParticipant("a", 1)
	require.NoError(t, r.Join("r1", a))
	require.NoError(t, r.Join("r2", a))

	assert.Equal(t, 0, r.Count("r1"))
	assert.Equal(t, 1, r.Count("r2"))
	assert.Equal(t, "r2", a.Room())

	// a stale leave for the old room must not clear the new membership
	r.Leave("r1", a)
	assert.Equal(t, "r2", a.Room())
}

func TestRegistryRejectsClosedParticipant(t *testing.T) {
	r, scope := newTestRegistry(0)
	a := NewParticipant("a", 1)
	a.Close()

	err := r.Join("r1", a)
	assert.ErrorIs(t, err, ErrParticipantClosed)
	assert.Equal(t, 0, r.Count("r1"))
	assert.Equal(t, int64(1), counterValue(scope, "testing.registry.rejected"))
}

func TestRegistryMaxRoomSize(t *testing.T) {
	r, _ := newTestRegistry(2)
	require.NoError(t, r.Join("r1", NewParticipant("a", 1)))
	require.NoError(t, r.Join("r1", NewParticipant("b", 1)))

	err := r.Join("r1", NewParticipant("c", 1))
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 2, r.Count("r1"))

	// other rooms are unaffected
	assert.NoError(t, r.Join("r2", NewParticipant("d", 1)))
}

func TestRegistryRoomsSorted(t *testing.T) {
	r, _ := newTestRegistry(0)
	for _, room := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Join(room, NewParticipant(room+"-p", 1)))
	}
	require.NoError(t, r.Join("alpha", NewParticipant("alpha-q", 1)))

	assert.Equal(t, []RoomInfo{
		{Room: "alpha", Members: 2},
		{Room: "mid", Members: 1},
		{Room: "zeta", Members: 1},
	}, r.Rooms())
}

func TestRegistryCloseAll(t *testing.T) {
	r, _ := newTestRegistry(0)
	a := NewParticipant("a", 1)
	b := NewParticipant("b", 1)
	require.NoError(t, r.Join("r1", a))
	require.NoError(t, r.Join("r2", b))

	r.CloseAll()

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Empty(t, r.Rooms())
}

func TestRegistryConcurrentJoinLeave(t *testing.T) {
	r, _ := newTestRegistry(0)
	const rooms, perRoom = 8, 50

	var wg sync.WaitGroup
	kept := make([][]*Participant, rooms)
	for i := 0; i < rooms; i++ {
		room := fmt.Sprintf("room-%d", i)
		for j := 0; j < perRoom; j++ {
			p := NewParticipant(fmt.Sprintf("%s-%d", room, j), 1)
			leave := j%2 == 0
			if !leave {
				kept[i] = append(kept[i], p)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := r.Join(room, p); err != nil {
					t.Errorf("join: %v", err)
					return
				}
				_ = r.MembersOf(room)
				if leave {
					r.Leave(room, p)
					r.Leave(room, p)
				}
			}()
		}
	}
	wg.Wait()

	for i := 0; i < rooms; i++ {
		room := fmt.Sprintf("room-%d", i)
		assert.ElementsMatch(t, kept[i], r.MembersOf(room), room)
	}
}
