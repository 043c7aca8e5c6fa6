// Package flight is a coalescing cache: concurrent requests for the same key
// share one computation, and finished values are kept for a while.
package flight

import (
	"context"
	"fmt"
	"sync"
	"time"
	"weak"
)

// Cache computes missing values in batches. Each entry keeps a strong
// reference until its deadline passes, after which only a weak pointer
// remains and the value lives as long as something else holds it.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	finished map[K]*entry[V]
	pending  map[K]*job[V]
	ttl      time.Duration

	work func(context.Context, []K) ([]V, error)
}

type entry[V any] struct {
	w        weak.Pointer[V]
	strong   *V
	deadline time.Time // zero => infinite
}

type job[V any] struct {
	val  V
	err  error
	done chan struct{}
}

// New returns a cache whose work function computes values for a batch of
// keys, returning them in key order.
func New[K comparable, V any](work func(context.Context, []K) ([]V, error)) *Cache[K, V] {
	return &Cache[K, V]{
		finished: make(map[K]*entry[V]),
		pending:  make(map[K]*job[V]),
		ttl:      time.Hour,
		work:     work,
	}
}

// Expiry sets the strong-hold duration for future writes.
// d <= 0 keeps a permanent strong reference.
func (c *Cache[K, V]) Expiry(d time.Duration) {
	c.mu.Lock()
	c.ttl = max(d, 0)
	c.mu.Unlock()
}

func (c *Cache[K, V]) Get(ctx context.Context, k K) (V, error) {
	vs, err := c.GetAll(ctx, []K{k})
	if err != nil {
		var zero V
		return zero, err
	}
	return vs[0], nil
}

type wait[V any] struct {
	i int
	j *job[V]
}

// GetAll returns the values for keys in order. Cached keys are served
// directly, keys already being computed are joined, and the rest are computed
// with a single call to the work function.
func (c *Cache[K, V]) GetAll(ctx context.Context, keys []K) ([]V, error) {
	out := make([]V, len(keys))
	var (
		claim []K
		mine  []*job[V]
		waits []wait[V]
	)

	c.mu.Lock()
	for i, k := range keys {
		if v, ok := c.lookup(k); ok {
			out[i] = v
			continue
		}
		if j, ok := c.pending[k]; ok {
			waits = append(waits, wait[V]{i, j})
			continue
		}
		j := &job[V]{done: make(chan struct{})}
		c.pending[k] = j
		claim = append(claim, k)
		mine = append(mine, j)
		waits = append(waits, wait[V]{i, j})
	}
	c.mu.Unlock()

	if len(claim) > 0 {
		vals, err := c.work(ctx, claim)
		if err == nil && len(vals) != len(claim) {
			err = fmt.Errorf("flight: work returned %d values for %d keys", len(vals), len(claim))
		}
		c.mu.Lock()
		for n, k := range claim {
			j := mine[n]
			if err != nil {
				j.err = err
			} else {
				j.val = vals[n]
				c.store(k, vals[n])
			}
			close(j.done)
			delete(c.pending, k)
		}
		c.mu.Unlock()
	}

	for _, w := range waits {
		select {
		case <-w.j.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if w.j.err != nil {
			return nil, w.j.err
		}
		out[w.i] = w.j.val
	}
	return out, nil
}

// Forget drops a finished value so the next request recomputes it.
func (c *Cache[K, V]) Forget(k K) {
	c.mu.Lock()
	delete(c.finished, k)
	c.mu.Unlock()
}

// Len counts finished entries, including ones only weakly held.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.finished)
}

// lookup must be called with c.mu held.
func (c *Cache[K, V]) lookup(k K) (V, bool) {
	var zero V
	e, ok := c.finished[k]
	if !ok {
		return zero, false
	}
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		e.strong = nil
	}
	vp := e.w.Value()
	if vp == nil {
		delete(c.finished, k)
		return zero, false
	}
	return *vp, true
}

// store must be called with c.mu held.
func (c *Cache[K, V]) store(k K, val V) {
	// Allocate a dedicated heap cell so the weak pointer refers to a stable address.
	v := new(V)
	*v = val

	e := &entry[V]{w: weak.Make(v), strong: v}
	if c.ttl > 0 {
		e.deadline = time.Now().Add(c.ttl)
	}
	c.finished[k] = e
}
