package service

import "sync"

// observers is an ordered set of subscriber callbacks with a FIFO delivery
// queue. Mutations enqueue a snapshot while holding the container lock and
// deliver after releasing it, so subscribers may read the container. A
// subscriber must not mutate the container from inside its callback.
type observers[S any] struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]func(S)
	order   []int
	pending []S

	deliverMu sync.Mutex
}

func (o *observers[S]) subscribe(fn func(S)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.subs == nil {
		o.subs = make(map[int]func(S))
	}
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.order = append(o.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			for i, v := range o.order {
				if v == id {
					o.order = append(o.order[:i], o.order[i+1:]...)
					break
				}
			}
		})
	}
}

// enqueue must be called while the owning container's lock is held so that
// the queue order matches the mutation order.
func (o *observers[S]) enqueue(s S) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, s)
}

// deliver drains the queue. Only one goroutine delivers at a time, which
// keeps callbacks in enqueue order.
func (o *observers[S]) deliver() {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	for {
		o.mu.Lock()
		if len(o.pending) == 0 {
			o.mu.Unlock()
			return
		}
		s := o.pending[0]
		o.pending = o.pending[1:]
		fns := make([]func(S), 0, len(o.order))
		for _, id := range o.order {
			fns = append(fns, o.subs[id])
		}
		o.mu.Unlock()

		for _, fn := range fns {
			fn(s)
		}
	}
}

// reset drops every subscriber and any undelivered snapshot.
func (o *observers[S]) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = nil
	o.order = nil
	o.pending = nil
}

func (o *observers[S]) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.order)
}
