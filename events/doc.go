// Package events defines the typed notifications the queue emits as
// operation records change state, and the observer interfaces hosts use
// to reconcile optimistic local state. Events carry copies of record
// fields rather than records themselves so observers cannot mutate queue
// state and the package stays free of a dependency on the queue engine.
package events
