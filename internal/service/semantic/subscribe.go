package semantic

import (
	"context"
	"sync"
)

// subscriber holds the latest resolution for one watcher. The channel has a
// buffer of one and a newer value replaces an unread older one.
type subscriber struct {
	mu      sync.Mutex
	ch      chan Resolution
	version uint64
	closed  bool
}

func (s *subscriber) send(res Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || res.Version < s.version {
		return
	}
	s.version = res.Version
	select {
	case <-s.ch:
	default:
	}
	s.ch <- res
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Subscribe returns a channel that first receives the current resolution of
// entity and then a fresh one after every schema mutation. Intermediate
// values may be skipped when the reader is slow. The channel is closed when
// ctx is done.
func (ds *DataSource) Subscribe(ctx context.Context, entity string) <-chan Resolution {
	sub := &subscriber{ch: make(chan Resolution, 1)}

	ds.mu.Lock()
	if ds.subs[entity] == nil {
		ds.subs[entity] = map[*subscriber]struct{}{}
	}
	ds.subs[entity][sub] = struct{}{}
	ds.mu.Unlock()

	go func() {
		sub.send(ds.resolve(ctx, entity))
		<-ctx.Done()
		ds.mu.Lock()
		delete(ds.subs[entity], sub)
		if len(ds.subs[entity]) == 0 {
			delete(ds.subs, entity)
		}
		ds.mu.Unlock()
		sub.close()
	}()
	return sub.ch
}

// notify re-resolves every watched entity against the current snapshot.
func (ds *DataSource) notify() {
	ds.mu.Lock()
	watched := make(map[string][]*subscriber, len(ds.subs))
	for entity, set := range ds.subs {
		for sub := range set {
			watched[entity] = append(watched[entity], sub)
		}
	}
	ds.mu.Unlock()

	for entity, subs := range watched {
		go func(entity string, subs []*subscriber) {
			res := ds.resolve(context.Background(), entity)
			for _, sub := range subs {
				sub.send(res)
			}
		}(entity, subs)
	}
}
