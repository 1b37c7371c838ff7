package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/bindery/internal/predicate"
	"github.com/roach88/bindery/internal/record"
	"github.com/roach88/bindery/internal/store"
)

// Observer receives the full result sequence after each re-evaluation.
// Observers run synchronously on the mutating goroutine and must not
// call back into the query or mutate the store.
type Observer func(results []record.Record)

// Live is a query whose result set tracks the store. Construct with
// New or NewFromDefinition and release with Close.
type Live struct {
	store *store.Store
	kind  string
	log   *slog.Logger

	mu        sync.Mutex
	pred      predicate.Predicate
	sort      predicate.SortOrder
	results   []record.Record
	lastErr   error
	observers map[int]Observer
	nextObs   int

	unsubscribe func()
}

// New validates the predicate and sort order against the store's
// schema and runs the initial evaluation. A nil predicate matches
// every record of the kind; a nil sort order falls back to the
// store's identity order.
func New(ctx context.Context, s *store.Store, kind string, pred predicate.Predicate, order predicate.SortOrder) (*Live, error) {
	kindDecl, ok := s.Schema().Kind(kind)
	if !ok {
		return nil, fmt.Errorf("live query: unknown kind %q", kind)
	}
	if err := predicate.Validate(kindDecl, pred); err != nil {
		return nil, err
	}
	if err := predicate.ValidateSort(kindDecl, order); err != nil {
		return nil, err
	}

	q := &Live{
		store:     s,
		kind:      kind,
		log:       slog.Default().With("component", "livequery", "kind", kind),
		pred:      pred,
		sort:      order,
		observers: map[int]Observer{},
	}
	if err := q.evaluate(ctx); err != nil {
		return nil, err
	}

	// Conservative re-evaluation: every store change recomputes the
	// result set, whatever kind it touched.
	q.unsubscribe = s.Subscribe(func(store.Change) {
		q.mu.Lock()
		defer q.mu.Unlock()
		if err := q.evaluate(context.Background()); err != nil {
			q.lastErr = err
			q.log.Error("re-evaluation failed", "error", err)
			return
		}
		q.lastErr = nil
		q.publish()
	})
	return q, nil
}

// NewFromDefinition builds a live query from a parsed YAML query
// definition.
func NewFromDefinition(ctx context.Context, s *store.Store, def *predicate.Definition) (*Live, error) {
	return New(ctx, s, def.Kind, def.Where, def.Sort)
}

// Close detaches the query from the store. Results() keeps returning
// the last computed sequence; it just stops tracking.
func (q *Live) Close() {
	if q.unsubscribe != nil {
		q.unsubscribe()
		q.unsubscribe = nil
	}
}

// Results returns the current ordered result sequence. The returned
// slice is the caller's to keep.
func (q *Live) Results() []record.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]record.Record, len(q.results))
	for i, r := range q.results {
		out[i] = r.Clone()
	}
	return out
}

// Err returns the error from the most recent re-evaluation, or nil.
// After a failed re-evaluation Results() keeps the last good sequence.
func (q *Live) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

// SetPredicate replaces the filter and re-evaluates immediately. An
// invalid predicate is rejected and the query keeps its current
// configuration.
func (q *Live) SetPredicate(ctx context.Context, pred predicate.Predicate) error {
	kindDecl, _ := q.store.Schema().Kind(q.kind)
	if err := predicate.Validate(kindDecl, pred); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	prev := q.pred
	q.pred = pred
	if err := q.evaluate(ctx); err != nil {
		q.pred = prev
		return err
	}
	q.publish()
	return nil
}

// SetSort replaces the sort order and re-evaluates immediately.
// Membership is unaffected; only the ordering changes.
func (q *Live) SetSort(ctx context.Context, order predicate.SortOrder) error {
	kindDecl, _ := q.store.Schema().Kind(q.kind)
	if err := predicate.ValidateSort(kindDecl, order); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	prev := q.sort
	q.sort = order
	if err := q.evaluate(ctx); err != nil {
		q.sort = prev
		return err
	}
	q.publish()
	return nil
}

// Observe registers an observer called with the new result sequence
// after every re-evaluation. Returns an unregister func.
func (q *Live) Observe(fn Observer) (unobserve func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextObs
	q.nextObs++
	q.observers[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.observers, id)
	}
}

// evaluate refreshes q.results from the store. Callers hold q.mu
// except during construction.
func (q *Live) evaluate(ctx context.Context) error {
	results, err := q.store.Fetch(ctx, q.kind, q.pred, q.sort)
	if err != nil {
		return err
	}
	q.results = results
	return nil
}

// publish delivers the current results to every observer in a stable
// order. Callers hold q.mu.
func (q *Live) publish() {
	ids := make([]int, 0, len(q.observers))
	for id := range q.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		snapshot := make([]record.Record, len(q.results))
		copy(snapshot, q.results)
		q.observers[id](snapshot)
	}
}
