package replication

import "sync"

// ledger tracks, for one pull session, which objects have announced
// their shape (ObjectInfo) and how many Chunk frames demux has routed
// to each one's driver (resent frames included), so the session's
// finalize step can log an object still short of the count ObjectInfo
// promised. The object's own driver reports such a shortfall as
// dataproxyerrs.ReplicationIncomplete, never as a silent partial write.
type ledger struct {
	mu        sync.Mutex
	expected  map[string]int64 // objectID -> chunk count from ObjectInfo
	received  map[string]int64 // objectID -> Chunk frames routed so far
	completed map[string]bool
}

func newLedger() *ledger {
	return &ledger{
		expected:  make(map[string]int64),
		received:  make(map[string]int64),
		completed: make(map[string]bool),
	}
}

func (l *ledger) announce(objectID string, chunks int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expected[objectID] = chunks
	if _, ok := l.received[objectID]; !ok {
		l.received[objectID] = 0
	}
}

func (l *ledger) ackChunk(objectID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.received[objectID]++
	n := l.received[objectID]
	if exp, ok := l.expected[objectID]; ok && n >= exp {
		l.completed[objectID] = true
	}
	return n
}

// shortfalls returns every announced object whose received count
// never reached its expected count, for the session's finalize step.
func (l *ledger) shortfalls() map[string]struct{ Expected, Received int64 } {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]struct{ Expected, Received int64 })
	for id, exp := range l.expected {
		if !l.completed[id] {
			out[id] = struct{ Expected, Received int64 }{Expected: exp, Received: l.received[id]}
		}
	}
	return out
}
