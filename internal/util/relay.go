// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "sync"

// Relay hands values to a deliver function on one goroutine, in the order
// they were pushed. Push never blocks, so producers holding locks or running
// on the network goroutine are not held up by a slow consumer.
type Relay[T any] struct {
	mu    sync.Mutex
	queue []T

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewRelay starts the delivering goroutine.
func NewRelay[T any](deliver func(T)) *Relay[T] {
	r := &Relay[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go r.run(deliver)
	return r
}

// Push queues v. Values pushed after Close are dropped.
func (r *Relay[T]) Push(v T) {
	select {
	case <-r.done:
		return
	default:
	}

	r.mu.Lock()
	r.queue = append(r.queue, v)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Close stops delivery. Queued values that were not delivered yet are
// dropped; a delivery already in progress finishes.
func (r *Relay[T]) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *Relay[T]) run(deliver func(T)) {
	for {
		select {
		case <-r.done:
			return
		case <-r.wake:
		}

		for {
			v, ok := r.pop()
			if !ok {
				break
			}
			select {
			case <-r.done:
				return
			default:
			}
			deliver(v)
		}
	}
}

func (r *Relay[T]) pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if len(r.queue) == 0 {
		return zero, false
	}
	v := r.queue[0]
	r.queue[0] = zero
	r.queue = r.queue[1:]
	return v, true
}
