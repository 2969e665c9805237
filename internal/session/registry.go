package session

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
	"github.com/uber-go/tally"
)

const defaultShards = 32

// RoomInfo summarizes one occupied room.
type RoomInfo struct {
	Room    string `json:"room"`
	Members int    `json:"members"`
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Shards      int // room buckets, each with its own lock
	MaxRoomSize int // 0 means unlimited
	Stats       tally.Scope
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]map[*Participant]struct{}
}

// Registry maps room IDs to their connected participants. Rooms are spread
// over independently locked shards so unrelated rooms do not contend.
type Registry struct {
	shards      []*shard
	maxRoomSize int
	roomCount   atomic.Int64
	stats       tally.Scope
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	n := opts.Shards
	if n <= 0 {
		n = defaultShards
	}
	stats := opts.Stats
	if stats == nil {
		stats = tally.NoopScope
	}
	r := &Registry{
		shards:      make([]*shard, n),
		maxRoomSize: opts.MaxRoomSize,
		stats:       stats.SubScope("registry"),
	}
	for i := range r.shards {
		r.shards[i] = &shard{rooms: make(map[string]map[*Participant]struct{})}
	}
	return r
}

func (r *Registry) shardFor(room string) *shard {
	return r.shards[xxhash.Sum64String(room)%uint64(len(r.shards))]
}

// Join registers p under room, creating the room if needed. A participant
// already in a different room is moved out of it first. Joining the room it
// is already in is a no-op.
func (r *Registry) Join(room string, p *Participant) error {
	if prev := p.Room(); prev != "" && prev != room {
		r.Leave(prev, p)
	}

	s := r.shardFor(room)
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Closed() {
		r.stats.Counter("rejected").Inc(1)
		return ErrParticipantClosed
	}

	members := s.rooms[room]
	if _, ok := members[p]; ok {
		return nil
	}
	if r.maxRoomSize > 0 && len(members) >= r.maxRoomSize {
		r.stats.Counter("rejected").Inc(1)
		return ErrRoomFull
	}
	if members == nil {
		members = make(map[*Participant]struct{})
		s.rooms[room] = members
		r.stats.Gauge("rooms").Update(float64(r.roomCount.Add(1)))
	}
	members[p] = struct{}{}
	p.setRoom(room)
	r.stats.Counter("joins").Inc(1)
	return nil
}

// Leave removes p from room. Removing an absent participant is a no-op, so
// an eviction racing with the endpoint's own cleanup is harmless. The room
// is dropped once empty.
func (r *Registry) Leave(room string, p *Participant) {
	s := r.shardFor(room)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[room]
	if !ok {
		return
	}
	if _, ok := members[p]; !ok {
		return
	}
	delete(members, p)
	p.clearRoom(room)
	r.stats.Counter("leaves").Inc(1)

	if len(members) == 0 {
		delete(s.rooms, room)
		r.stats.Gauge("rooms").Update(float64(r.roomCount.Add(-1)))
	}
}

// MembersOf returns a snapshot of room's participants for one broadcast pass.
func (r *Registry) MembersOf(room string) []*Participant {
	s := r.shardFor(room)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Keys(s.rooms[room])
}

// Count returns the number of participants in room.
func (r *Registry) Count(room string) int {
	s := r.shardFor(room)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[room])
}

// Rooms lists occupied rooms ordered by name.
func (r *Registry) Rooms() []RoomInfo {
	var out []RoomInfo
	for _, s := range r.shards {
		s.mu.RLock()
		out = append(out, lo.MapToSlice(s.rooms, func(room string, members map[*Participant]struct{}) RoomInfo {
			return RoomInfo{Room: room, Members: len(members)}
		})...)
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}

// CloseAll closes every participant and empties the registry.
func (r *Registry) CloseAll() {
	for _, s := range r.shards {
		s.mu.Lock()
		for room, members := range s.rooms {
			for p := range members {
				p.clearRoom(room)
				p.Close()
			}
			delete(s.rooms, room)
			r.roomCount.Add(-1)
		}
		s.mu.Unlock()
	}
	r.stats.Gauge("rooms").Update(float64(r.roomCount.Load()))
}
