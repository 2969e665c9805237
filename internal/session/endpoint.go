package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is a connection's position in its lifecycle.
type State int

const (
	Connecting State = iota
	Joined
	Relaying
	Left
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	case Relaying:
		return "relaying"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Conn is one participant's transport. ReadMessage blocks until a payload
// arrives or the connection fails; Close must unblock a pending read.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(payload []byte) error
	Close() error
}

// Pinger is implemented by transports that need keepalive frames.
type Pinger interface {
	Ping() error
}

// Endpoint runs the join, relay, leave lifecycle for connections.
type Endpoint struct {
	registry     *Registry
	relay        *Relay
	logger       *zap.Logger
	pingInterval time.Duration

	// OnTransition, if set, observes every state change.
	OnTransition func(p *Participant, from, to State)
}

// NewEndpoint creates an endpoint. A zero pingInterval disables keepalives.
func NewEndpoint(registry *Registry, relay *Relay, logger *zap.Logger, pingInterval time.Duration) *Endpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Endpoint{
		registry:     registry,
		relay:        relay,
		logger:       logger.Named("endpoint"),
		pingInterval: pingInterval,
	}
}

// Serve joins p to room over an already accepted conn and relays every
// inbound payload until the connection fails, p is evicted, or ctx is done.
// The participant is always removed from the registry before conn is
// closed. It returns the error that ended the read loop, if any.
func (e *Endpoint) Serve(ctx context.Context, room string, conn Conn, p *Participant) error {
	log := e.logger.With(zap.String("room", room), zap.String("participant", p.ID))
	state := Connecting
	transition := func(to State) {
		log.Debug("state change", zap.Stringer("from", state), zap.Stringer("to", to))
		if e.OnTransition != nil {
			e.OnTransition(p, state, to)
		}
		state = to
	}

	if err := e.registry.Join(room, p); err != nil {
		p.Close()
		conn.Close()
		transition(Left)
		return fmt.Errorf("joining room %s: %w", room, err)
	}
	transition(Joined)

	stop := sync.OnceFunc(func() {
		e.registry.Leave(room, p)
		p.Close()
	})

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
		case <-p.Done():
		}
		stop()
		conn.Close()
	}()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		if err := e.writeLoop(conn, p); err != nil {
			log.Debug("write failed", zap.Error(err))
		}
		stop()
	}()

	transition(Relaying)
	var readErr error
	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		e.relay.Broadcast(room, p.ID, payload)
	}

	stop()
	<-watchDone
	<-writeDone
	transition(Left)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return readErr
}

func (e *Endpoint) writeLoop(conn Conn, p *Participant) error {
	var tick <-chan time.Time
	pinger, ok := conn.(Pinger)
	if ok && e.pingInterval > 0 {
		ticker := time.NewTicker(e.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-p.Done():
			return nil
		case payload := <-p.Outbound():
			if err := conn.WriteMessage(payload); err != nil {
				return err
			}
		case <-tick:
			if err := pinger.Ping(); err != nil {
				return err
			}
		}
	}
}
