package store

import (
	"sync"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// Fanout delivers documents to subscribers of a session. Every subscriber
// has its own queue and goroutine, so a slow handler never blocks writers
// or other subscribers. Versions at or below the last delivered one are
// dropped, which keeps delivery ordered when a backend re-sends.
type Fanout struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]*queue
	nextID uint64
	closed bool
}

// NewFanout creates an empty Fanout.
func NewFanout() *Fanout {
	return &Fanout{subs: make(map[string]map[uint64]*queue)}
}

// Add registers fn for sessionID. The returned func stops delivery; it is
// safe to call more than once.
func (f *Fanout) Add(sessionID string, fn func(models.SharedDocument)) (remove func(), ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return func() {}, false
	}

	id := f.nextID
	f.nextID++
	q := newQueue(fn)
	if f.subs[sessionID] == nil {
		f.subs[sessionID] = make(map[uint64]*queue)
	}
	f.subs[sessionID][id] = q
	go q.run()

	return func() {
		f.mu.Lock()
		if subs := f.subs[sessionID]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(f.subs, sessionID)
			}
		}
		f.mu.Unlock()
		q.close()
	}, true
}

// Count returns the number of subscribers of sessionID.
func (f *Fanout) Count(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[sessionID])
}

// Publish queues doc for every subscriber of its session.
func (f *Fanout) Publish(doc models.SharedDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.subs[doc.SessionID] {
		q.push(doc.Clone())
	}
}

// Close stops every subscriber.
func (f *Fanout) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = make(map[string]map[uint64]*queue)
	f.closed = true
	f.mu.Unlock()

	for _, session := range subs {
		for _, q := range session {
			q.close()
		}
	}
}

type queue struct {
	fn func(models.SharedDocument)

	mu      sync.Mutex
	cond    *sync.Cond
	pending []models.SharedDocument
	last    uint64
	closed  bool
}

func newQueue(fn func(models.SharedDocument)) *queue {
	q := &queue{fn: fn}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(doc models.SharedDocument) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || doc.Version <= q.last {
		return
	}
	q.last = doc.Version
	q.pending = append(q.pending, doc)
	q.cond.Signal()
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *queue) run() {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		doc := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.fn(doc)
	}
}
