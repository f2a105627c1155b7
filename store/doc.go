// Package store defines the persistence contracts shared by the queue's
// durable store adapters. It abstracts the underlying database so the
// queue engine works against any ACID-transactional backend, and provides
// the transaction helper hosts use to make enqueue atomic with their own
// optimistic local-state writes.
package store
