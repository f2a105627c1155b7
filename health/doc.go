// Package health exposes the queue's per-status record counts over HTTP
// so hosts can wire liveness checks and backpressure dashboards without
// reaching into the store themselves.
package health
