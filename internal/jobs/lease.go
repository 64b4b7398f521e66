package jobs

import "sync"

// leaseSet tracks job ids currently owned by a worker in this process.
type leaseSet struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func (l *leaseSet) acquire(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[int64]struct{})
	}
	if _, ok := l.held[id]; ok {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

func (l *leaseSet) release(id int64) {
	l.mu.Lock()
	delete(l.held, id)
	l.mu.Unlock()
}
