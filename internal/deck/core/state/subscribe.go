package state

import (
	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	"github.com/opsdeck/opsdeck/internal/pkg/metrics"
)

// Subscribe registers a listener for every future event. Events are
// delivered in publish order; when the channel buffer is full the event is
// dropped for that subscriber only. cancel closes the channel.
func (s *Store) Subscribe() (<-chan model.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan model.Event, s.buffer)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// publish must be called with mu held.
func (s *Store) publish(kind model.EventKind, data any) {
	s.seq++
	ev := model.Event{
		Seq:  s.seq,
		Kind: kind,
		Time: s.clock.Now(),
		Data: data,
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			metrics.EventsDroppedTotal.Inc()
		}
	}
}
