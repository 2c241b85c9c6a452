package vectorstore

import "sync"

// SubjectLocks hands out one RWMutex per subject. Index writes take the write
// side, retrieval the read side.
type SubjectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func NewSubjectLocks() *SubjectLocks {
	return &SubjectLocks{locks: make(map[string]*sync.RWMutex)}
}

// For returns the lock for subject, creating it on first use.
func (l *SubjectLocks) For(subject string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[subject]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[subject] = m
	}
	return m
}
