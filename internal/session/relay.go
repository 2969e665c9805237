package session

import (
	"errors"

	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// Delivery reports the outcome of one broadcast.
type Delivery struct {
	Delivered int
	Evicted   int
}

// Relay fans a payload out to every member of a room.
type Relay struct {
	registry   *Registry
	echoSender bool
	logger     *zap.Logger
	stats      tally.Scope
}

// NewRelay creates a relay over registry. When echoSender is false the
// sender does not receive its own payloads.
func NewRelay(registry *Registry, echoSender bool, logger *zap.Logger, stats tally.Scope) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = tally.NoopScope
	}
	return &Relay{
		registry:   registry,
		echoSender: echoSender,
		logger:     logger.Named("relay"),
		stats:      stats.SubScope("relay"),
	}
}

// Broadcast delivers payload to the current members of room. Membership is
// read from the registry on every call. Members that are closed or cannot
// keep up are removed from the room and closed; the rest still receive the
// payload.
func (r *Relay) Broadcast(room, senderID string, payload []byte) Delivery {
	var d Delivery
	for _, p := range r.registry.MembersOf(room) {
		if !r.echoSender && p.ID == senderID {
			continue
		}
		err := p.Deliver(payload)
		if err == nil {
			d.Delivered++
			continue
		}

		r.registry.Leave(room, p)
		p.Close()
		d.Evicted++

		if errors.Is(err, ErrSaturated) {
			r.logger.Warn("evicting slow participant",
				zap.String("room", room), zap.String("participant", p.ID))
		} else {
			r.logger.Debug("removing closed participant",
				zap.String("room", room), zap.String("participant", p.ID))
		}
	}

	r.stats.Counter("broadcasts").Inc(1)
	r.stats.Counter("delivered").Inc(int64(d.Delivered))
	if d.Evicted > 0 {
		r.stats.Counter("evicted").Inc(int64(d.Evicted))
	}
	return d
}
