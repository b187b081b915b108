package services

import "sync"

// keyedLocks serialisiert Regenerierungen pro (userId, week)-Schlüssel.
// Reicht für ein Single-Instance-Deployment; die Locks werden nie wieder
// freigegeben, die Kardinalität ist durch Studenten x Wochen begrenzt.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}
