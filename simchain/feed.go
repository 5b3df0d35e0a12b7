package simchain

import (
	"context"
	"sync"
)

// feed fans events out to any number of subscribers. Publishing never
// blocks; each subscriber drains its own queue in publish order.
type feed[T any] struct {
	mu     sync.Mutex
	subs   map[*subscription[T]]struct{}
	closed chan struct{}
	once   sync.Once
}

type subscription[T any] struct {
	mu      sync.Mutex
	pending []T
	notify  chan struct{}
}

func newFeed[T any]() *feed[T] {
	return &feed[T]{
		subs:   make(map[*subscription[T]]struct{}),
		closed: make(chan struct{}),
	}
}

// subscribe returns a channel that receives every event published after the
// call. It is closed when ctx ends, or once the events queued before the
// feed was closed have been delivered.
func (f *feed[T]) subscribe(ctx context.Context) <-chan T {
	s := &subscription[T]{notify: make(chan struct{}, 1)}
	out := make(chan T)

	f.mu.Lock()
	select {
	case <-f.closed:
		f.mu.Unlock()
		close(out)
		return out
	default:
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go func() {
		defer close(out)
		defer f.remove(s)

		for {
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			s.mu.Unlock()

			for _, ev := range batch {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-s.notify:
			case <-ctx.Done():
				return
			case <-f.closed:
				if s.drained() {
					return
				}
			}
		}
	}()

	return out
}

func (s *subscription[T]) drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0
}

// publish queues ev for every subscriber. It is a no-op once the feed is
// closed.
func (f *feed[T]) publish(ev T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.closed:
		return
	default:
	}

	for s := range f.subs {
		s.mu.Lock()
		s.pending = append(s.pending, ev)
		s.mu.Unlock()

		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

func (f *feed[T]) remove(s *subscription[T]) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

func (f *feed[T]) close() {
	f.once.Do(func() {
		f.mu.Lock()
		close(f.closed)
		f.mu.Unlock()
	})
}
