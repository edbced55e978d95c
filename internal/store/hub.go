package store

import "sync"

// hub fans change notifications out to key subscribers. Each subscriber owns a
// queue drained by its own goroutine, so publishers never block on callbacks.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]*subscriber
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]*subscriber)}
}

type subscriber struct {
	fn     func(Change)
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Change
	closed bool
}

func newSubscriber(fn func(Change)) *subscriber {
	s := &subscriber{fn: fn}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *subscriber) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.fn(c)
	}
}

func (s *subscriber) enqueue(c Change) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, c)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// stop drops anything still queued; no callback starts after stop returns.
func (s *subscriber) stop() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.cond.Signal()
	s.mu.Unlock()
}

func (h *hub) subscribe(key string, fn func(Change)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return func() {}
	}

	id := h.nextID
	h.nextID++
	s := newSubscriber(fn)
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]*subscriber)
	}
	h.subs[key][id] = s

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if byID, ok := h.subs[key]; ok {
				delete(byID, id)
				if len(byID) == 0 {
					delete(h.subs, key)
				}
			}
			h.mu.Unlock()
			s.stop()
		})
	}
}

func (h *hub) publish(c Change) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[c.Key]))
	for _, s := range h.subs[c.Key] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.enqueue(c)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]map[int]*subscriber)
	h.closed = true
	h.mu.Unlock()

	for _, byID := range subs {
		for _, s := range byID {
			s.stop()
		}
	}
}
