// Package weakindex associates metadata with (owner, key) pairs without
// keeping the owner alive.
//
// An Index holds one inner map per owner. The outer association is keyed by a
// weak pointer, and a runtime cleanup is attached to every owner the first
// time it is seen, so once the owner becomes unreachable all of its per-key
// entries are dropped without an explicit Delete call.
//
// Values must not hold strong references back to their owner. A value that
// points at its own owner keeps the owner reachable through the index and the
// entries are never reclaimed.
//
// The index is safe for concurrent use. Cleanups run on a runtime goroutine,
// so the index locks even when every caller lives on a single goroutine.
package weakindex

import (
	"runtime"
	"sync"
	"weak"
)

// Index maps (owner, key) pairs to values of type V.
type Index[O any, V any] struct {
	mu      sync.Mutex
	entries map[weak.Pointer[O]]map[string]V
}

// New creates an empty index.
func New[O any, V any]() *Index[O, V] {
	return &Index[O, V]{
		entries: make(map[weak.Pointer[O]]map[string]V),
	}
}

// Set stores value under (owner, key), replacing any previous value.
func (x *Index[O, V]) Set(owner *O, key string, value V) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.inner(owner)[key] = value
}

// Get returns the value stored under (owner, key).
func (x *Index[O, V]) Get(owner *O, key string) (V, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var zero V
	inner, ok := x.entries[weak.Make(owner)]
	if !ok {
		return zero, false
	}
	v, ok := inner[key]
	return v, ok
}

// Has reports whether a value is stored under (owner, key).
func (x *Index[O, V]) Has(owner *O, key string) bool {
	_, ok := x.Get(owner, key)
	return ok
}

// Upsert returns the value stored under (owner, key), creating it with create
// when absent. create runs with the index locked and must not call back into
// the index.
func (x *Index[O, V]) Upsert(owner *O, key string, create func() V) V {
	x.mu.Lock()
	defer x.mu.Unlock()

	inner := x.inner(owner)
	if v, ok := inner[key]; ok {
		return v
	}
	v := create()
	inner[key] = v
	return v
}

// Delete removes the value stored under (owner, key).
func (x *Index[O, V]) Delete(owner *O, key string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	wp := weak.Make(owner)
	inner, ok := x.entries[wp]
	if !ok {
		return
	}
	delete(inner, key)
}

// Keys returns the keys stored for owner, in no particular order.
func (x *Index[O, V]) Keys(owner *O) []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	inner := x.entries[weak.Make(owner)]
	keys := make([]string, 0, len(inner))
	for k := range inner {
		keys = append(keys, k)
	}
	return keys
}

// Owners returns the number of owners that currently have an inner map.
// Owners that were collected but whose cleanup has not run yet are counted.
func (x *Index[O, V]) Owners() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

// inner returns the per-owner map, creating it and registering the cleanup on
// first use. Caller holds x.mu.
func (x *Index[O, V]) inner(owner *O) map[string]V {
	wp := weak.Make(owner)
	if inner, ok := x.entries[wp]; ok {
		return inner
	}
	inner := make(map[string]V)
	x.entries[wp] = inner
	runtime.AddCleanup(owner, x.forget, wp)
	return inner
}

func (x *Index[O, V]) forget(wp weak.Pointer[O]) {
	x.mu.Lock()
	delete(x.entries, wp)
	x.mu.Unlock()
}
