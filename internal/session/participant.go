package session

import (
	"errors"
	"sync"
)

var (
	// ErrParticipantClosed is returned when delivering to, or joining with, a
	// participant whose channel has been closed.
	ErrParticipantClosed = errors.New("participant closed")

	// ErrSaturated is returned when a participant's outbound buffer is full.
	ErrSaturated = errors.New("participant outbound buffer full")

	// ErrRoomFull is returned by Join when the room is at its size limit.
	ErrRoomFull = errors.New("room is full")
)

// Participant is one connected client's outbound channel. The endpoint that
// creates it owns it; the registry only keeps a reference for fan-out.
type Participant struct {
	ID string

	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	room string
}

// NewParticipant creates a participant with an outbound buffer of the given
// size.
func NewParticipant(id string, buffer int) *Participant {
	if buffer < 1 {
		buffer = 1
	}
	return &Participant{
		ID:   id,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Deliver queues payload without blocking.
func (p *Participant) Deliver(payload []byte) error {
	select {
	case <-p.done:
		return ErrParticipantClosed
	default:
	}
	select {
	case p.send <- payload:
		return nil
	case <-p.done:
		return ErrParticipantClosed
	default:
		return ErrSaturated
	}
}

// Outbound is drained by the connection writer.
func (p *Participant) Outbound() <-chan []byte {
	return p.send
}

// Done is closed once the participant is closed.
func (p *Participant) Done() <-chan struct{} {
	return p.done
}

// Close marks the participant closed. Safe to call more than once.
func (p *Participant) Close() {
	p.once.Do(func() { close(p.done) })
}

// Closed reports whether Close has been called.
func (p *Participant) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Room returns the room the participant is currently joined to, or "".
func (p *Participant) Room() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room
}

func (p *Participant) setRoom(room string) {
	p.mu.Lock()
	p.room = room
	p.mu.Unlock()
}

// clearRoom resets the room only if it still matches, so a stale Leave does
// not wipe a newer Join.
func (p *Participant) clearRoom(room string) {
	p.mu.Lock()
	if p.room == room {
		p.room = ""
	}
	p.mu.Unlock()
}
