package store

import "sort"

// Op identifies what a Change did to a record.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpAttach Op = "attach"
	OpDetach Op = "detach"
)

// Change describes one record mutation. Cascade deletion produces one
// Change per deleted record, children first, in position order.
type Change struct {
	// Op is the mutation kind.
	Op Op

	// Seq is the logical clock value stamped on this mutation.
	Seq int64

	// RecordID identifies the mutated record.
	RecordID string

	// Kind is the mutated record's kind.
	Kind string

	// Field names the updated field. Set for OpUpdate only.
	Field string
}

// Subscriber receives change notifications. Called synchronously on
// the mutating goroutine while the writer lock is held: the store is
// exactly as the mutation left it, and no further mutation can start
// until every subscriber returns. Subscribers must not mutate the
// store (deadlock).
type Subscriber func(Change)

// Subscribe registers a change subscriber and returns an unsubscribe
// function. Subscribers are notified in subscription order.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// notify delivers changes to all subscribers, conservatively: every
// subscriber sees every change and decides for itself whether its
// view is affected.
func (s *Store) notify(changes []Change) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, change := range changes {
		for _, fn := range fns {
			fn(change)
		}
	}
}
