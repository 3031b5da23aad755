package lifecycle

import "sync"

type task struct {
	run  func() error
	done chan error
}

// Serializer executes submitted tasks strictly one at a time, in submission
// order. A failing task settles its own result channel and never aborts
// queued successors. The head entry stays in the queue while it runs and is
// removed the moment it settles, so the queue is empty exactly when no task
// is in flight.
type Serializer struct {
	mu    sync.Mutex
	queue []*task
}

// NewSerializer returns an empty Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Submit appends run to the queue and returns a channel that receives its
// result once it settles. If no task is in flight, execution starts
// immediately.
func (s *Serializer) Submit(run func() error) <-chan error {
	t := &task{run: run, done: make(chan error, 1)}

	s.mu.Lock()
	s.queue = append(s.queue, t)
	start := len(s.queue) == 1
	s.mu.Unlock()

	if start {
		go s.drain()
	}
	return t.done
}

// Len returns the number of queued tasks, including the one in flight.
func (s *Serializer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Serializer) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		t := s.queue[0]
		s.mu.Unlock()

		t.done <- t.run()

		s.mu.Lock()
		s.queue = s.queue[1:]
		empty := len(s.queue) == 0
		s.mu.Unlock()
		if empty {
			return
		}
	}
}
